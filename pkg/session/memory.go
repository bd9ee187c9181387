package session

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

const (
	// DefaultTTL は放置されたセッションが回収されるまでの既定時間です。
	DefaultTTL = 24 * time.Hour
	// DefaultCleanupInterval は期限切れエントリの掃除間隔です。
	DefaultCleanupInterval = time.Hour
)

// MemoryStore は go-cache を背にしたプロセス内ストアです。
// セッションの寿命管理（TTL）はキャッシュ側に任せます。
type MemoryStore struct {
	sessions *cache.Cache
	ttl      time.Duration
}

// NewMemoryStore は TTL 付きのインメモリストアを生成します。
// ttl が 0 以下の場合は DefaultTTL を使います。
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &MemoryStore{
		sessions: cache.New(ttl, cleanupInterval),
		ttl:      ttl,
	}
}

// Create は Store.Create の実装です。IDには uuid v4 の16進表記を使います。
func (m *MemoryStore) Create(script string, style domain.Style, characters []domain.Character, scenes []domain.Scene) (*domain.Session, error) {
	sess := &domain.Session{
		ID:              newSessionID(),
		Script:          script,
		Style:           style,
		Characters:      copyCharacters(characters),
		Scenes:          copyScenes(scenes),
		CharacterAssets: make(map[string]domain.CharacterAsset),
		ShotAssets:      make(map[domain.ShotKey]domain.ShotAsset),
	}
	m.sessions.Set(sess.ID, sess, m.ttl)
	return sess, nil
}

// 同じ抽出結果から複数セッションを作っても互いに独立であることを保証するため、
// 入力のスライスは防御的にコピーします。
func copyCharacters(src []domain.Character) []domain.Character {
	copied := make([]domain.Character, len(src))
	copy(copied, src)
	return copied
}

func copyScenes(src []domain.Scene) []domain.Scene {
	copied := make([]domain.Scene, len(src))
	for i, sc := range src {
		sceneCopy := sc
		sceneCopy.Shots = make([]domain.Shot, len(sc.Shots))
		for j, shot := range sc.Shots {
			shotCopy := shot
			if shot.CharactersInShot != nil {
				shotCopy.CharactersInShot = append([]string(nil), shot.CharactersInShot...)
			}
			sceneCopy.Shots[j] = shotCopy
		}
		copied[i] = sceneCopy
	}
	return copied
}

// Get は Store.Get の実装です。
func (m *MemoryStore) Get(id string) (*domain.Session, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*domain.Session), nil
}

// Replace は Store.Replace の実装です。TTLも更新されます。
func (m *MemoryStore) Replace(sess *domain.Session) error {
	m.sessions.Set(sess.ID, sess, m.ttl)
	return nil
}

func newSessionID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
