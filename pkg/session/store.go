// Package session は、ストーリーボードセッションのインメモリ保管を提供します。
package session

import (
	"errors"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// ErrNotFound は、指定されたIDのセッションが存在しない場合に返されます。
var ErrNotFound = errors.New("セッションが見つかりません")

// Store はセッションの作成・取得・差し替えを行う抽象です。
// 将来KVSなどの実バックエンドに差し替えられるよう、リコンサイル層は
// このインターフェースにのみ依存します。
type Store interface {
	// Create は新しい不透明IDを払い出し、空のアセットマップを持つ
	// 初期セッションを保存して返します。
	Create(script string, style domain.Style, characters []domain.Character, scenes []domain.Scene) (*domain.Session, error)

	// Get はIDでセッションを引きます。未知のIDは ErrNotFound です。
	Get(id string) (*domain.Session, error)

	// Replace はセッション全体を上書き保存します（last-writer-wins）。
	// 楽観ロックはなく、同一セッションへの並行編集は後勝ちになります。
	Replace(sess *domain.Session) error
}
