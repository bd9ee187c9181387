package storyboard

import (
	"errors"
	"fmt"
	"strings"
)

// クライアント起因のエラー（NotFound系）。呼び出し側は errors.Is で判別します。
var (
	ErrSessionNotFound   = errors.New("セッションが見つかりません")
	ErrCharacterNotFound = errors.New("キャラクターが見つかりません")
	ErrSceneNotFound     = errors.New("シーンが見つかりません")
	ErrShotNotFound      = errors.New("ショットが見つかりません。先に生成してください")
)

// IsNotFound は err がNotFound系のいずれかであるかを返します。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrCharacterNotFound) ||
		errors.Is(err, ErrSceneNotFound) ||
		errors.Is(err, ErrShotNotFound)
}

// ValidationError は、上流に投げる前に弾くべき不正な入力です。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// MissingReferencesError は、ショットが依存するキャラクターの中に
// 画像未生成のものがある場合のエラーです。欠けている名前を「すべて」持ちます。
type MissingReferencesError struct {
	Missing []string
}

func (e *MissingReferencesError) Error() string {
	return fmt.Sprintf("参照画像が未生成のキャラクターがいます: %s。先にキャラクターを生成してください",
		strings.Join(e.Missing, ", "))
}

// UpstreamError は、外部能力（抽出・意思決定・画像合成）の呼び出し失敗を、
// 失敗したエンティティを特定できる座標付きで表します。自動リトライはしません。
type UpstreamError struct {
	Op          string
	SceneNumber int
	ShotNumber  int
	Character   string
	Err         error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Character != "":
		return fmt.Sprintf("%s に失敗しました (character=%s): %v", e.Op, e.Character, e.Err)
	case e.SceneNumber != 0:
		return fmt.Sprintf("%s に失敗しました (scene=%d shot=%d): %v", e.Op, e.SceneNumber, e.ShotNumber, e.Err)
	default:
		return fmt.Sprintf("%s に失敗しました: %v", e.Op, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }
