// Package storyboard は、セッション状態のリコンサイルを担う中核層です。
// 台本の取り込み、キャラクター／ショットの生成、説明文編集時のアセット無効化、
// ショット挿入に伴うリナンバリングとアセットの付け替えをここで行います。
package storyboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/imagegen"
	"github.com/shouni/go-storyboard-kit/pkg/narrative"
	"github.com/shouni/go-storyboard-kit/pkg/session"
)

// DefaultMaxConcurrentGenerations は、キャラクター一括生成の同時実行上限です。
const DefaultMaxConcurrentGenerations = 8

// CastExtractor は台本からの構造抽出能力です。
type CastExtractor interface {
	ExtractCast(ctx context.Context, script string, style domain.Style) ([]domain.Character, error)
	ExtractScenes(ctx context.Context, script string, cast []domain.Character, style domain.Style) ([]domain.Scene, error)
}

// EditDecider はショット編集の refine / generate 判断能力です。
type EditDecider interface {
	DecideShotEdit(ctx context.Context, in narrative.DecisionInput) (*narrative.ShotDecision, error)
}

// Synthesizer は画像合成能力です。
type Synthesizer interface {
	GenerateCharacter(ctx context.Context, description string, style domain.Style) (*imagegen.Result, error)
	GenerateShot(ctx context.Context, description string, style domain.Style, referenceImageURLs []string) (*imagegen.Result, error)
	RefineShot(ctx context.Context, editPrompt, rawStructuredPrompt string, seed int64, referenceImageURLs []string) (*imagegen.Result, error)
}

// Service は各操作の実体です。ストアと3つの外部能力にのみ依存します。
type Service struct {
	store         session.Store
	extractor     CastExtractor
	decider       EditDecider
	synth         Synthesizer
	limiter       *rate.Limiter
	maxConcurrent int
}

// ServiceArgs は Service の生成に必要な依存一式です。
type ServiceArgs struct {
	Store       session.Store
	Extractor   CastExtractor
	Decider     EditDecider
	Synthesizer Synthesizer

	// RateInterval は画像合成呼び出しの間隔です。0以下で制限なし。
	RateInterval time.Duration
	// MaxConcurrent はキャラクター一括生成の同時実行数です。0以下でデフォルト。
	MaxConcurrent int
}

// NewService は依存を検証して Service を生成します。
func NewService(args ServiceArgs) (*Service, error) {
	if args.Store == nil {
		return nil, fmt.Errorf("Store は必須です")
	}
	if args.Extractor == nil {
		return nil, fmt.Errorf("Extractor は必須です")
	}
	if args.Decider == nil {
		return nil, fmt.Errorf("Decider は必須です")
	}
	if args.Synthesizer == nil {
		return nil, fmt.Errorf("Synthesizer は必須です")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if args.RateInterval > 0 {
		// Burst 2 により、バッチ開始直後は2件まで同時にリクエストを開始できます。
		limiter = rate.NewLimiter(rate.Every(args.RateInterval), 2)
	}

	maxConcurrent := args.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentGenerations
	}

	return &Service{
		store:         args.Store,
		extractor:     args.Extractor,
		decider:       args.Decider,
		synth:         args.Synthesizer,
		limiter:       limiter,
		maxConcurrent: maxConcurrent,
	}, nil
}

func (s *Service) getSession(id string) (*domain.Session, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, err
	}
	return sess, nil
}

// GetSession はセッションの現在状態を返します。
// 一括生成が途中で失敗した後の再照会などに使います。
func (s *Service) GetSession(id string) (*domain.Session, error) {
	return s.getSession(id)
}
