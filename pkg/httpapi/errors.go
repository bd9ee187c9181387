package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shouni/go-storyboard-kit/pkg/storyboard"
)

// writeError はサービス層のエラー種別をHTTPステータスに写します。
//   - NotFound系           → 404
//   - 入力不正・参照不足   → 400
//   - 外部能力の失敗       → 502
//   - それ以外             → 500
//
// ボディは常に {"detail": メッセージ} です。
func writeError(w http.ResponseWriter, err error) {
	var vErr *storyboard.ValidationError
	var missErr *storyboard.MissingReferencesError
	var upErr *storyboard.UpstreamError

	switch {
	case storyboard.IsNotFound(err):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.As(err, &vErr), errors.As(err, &missErr):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upErr):
		writeDetail(w, http.StatusBadGateway, err.Error())
	default:
		slog.Error("ハンドラで未分類のエラーが発生しました", "error", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
