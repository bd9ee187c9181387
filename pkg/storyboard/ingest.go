package storyboard

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// Ingest は台本を2段階の抽出（キャスト → シーン構成）にかけ、
// 両方成功した時点で初めてセッションを作成します。
func (s *Service) Ingest(ctx context.Context, script string, style domain.Style) (*domain.Session, error) {
	if strings.TrimSpace(script) == "" {
		return nil, &ValidationError{Message: "台本が空です"}
	}

	cast, err := s.extractor.ExtractCast(ctx, script, style)
	if err != nil {
		return nil, &UpstreamError{Op: "キャスト抽出", Err: err}
	}
	slog.Info("キャストを抽出しました", "characters", len(cast))

	scenes, err := s.extractor.ExtractScenes(ctx, script, cast, style)
	if err != nil {
		return nil, &UpstreamError{Op: "シーン構成の抽出", Err: err}
	}
	slog.Info("シーン構成を抽出しました", "scenes", len(scenes))

	sess, err := s.store.Create(script, style, cast, scenes)
	if err != nil {
		return nil, err
	}
	slog.Info("セッションを作成しました", "session_id", sess.ID, "style", style)
	return sess, nil
}
