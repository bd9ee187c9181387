package storyboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// GenerateCharacters は、（指定があればその一部の）キャラクターの設定画を
// 並列生成します。すでにアセットを持つキャラクターはスキップされるため、
// 失敗後の再実行は成功済み分に対して冪等です。
//
// 各ワーカーは結果をローカルに集め、全員の完了後に一度だけアセットマップへ
// 反映します。1件でも失敗するとバッチ全体が中断され、そのバッチからの
// 書き込みは行われません。
func (s *Service) GenerateCharacters(ctx context.Context, sessionID string, characterNames []string) ([]domain.CharacterAsset, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	targets, err := resolveTargets(sess, characterNames)
	if err != nil {
		return nil, err
	}
	targets = filterMissingAssets(sess, targets)

	// 生成対象がなければセッションはそのまま、空のリストを返します。
	if len(targets) == 0 {
		return []domain.CharacterAsset{}, nil
	}

	slog.Info("キャラクターの一括生成を開始します", "session_id", sess.ID, "count", len(targets))

	results := make([]domain.CharacterAsset, len(targets))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.maxConcurrent)

	for i, character := range targets {
		eg.Go(func() error {
			if err := s.limiter.Wait(egCtx); err != nil {
				return err
			}

			res, err := s.synth.GenerateCharacter(egCtx, character.Description, sess.Style)
			if err != nil {
				return &UpstreamError{Op: "キャラクター生成", Character: character.Name, Err: err}
			}

			results[i] = domain.CharacterAsset{
				Name:                character.Name,
				Description:         character.Description,
				ImageURL:            res.ImageURL,
				Seed:                res.Seed,
				StructuredPrompt:    res.StructuredPrompt,
				RawStructuredPrompt: res.RawStructuredPrompt,
			}
			slog.Info("キャラクターを生成しました", "name", character.Name)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// join完了後に一度だけ共有状態を書き換えます。
	for _, asset := range results {
		sess.CharacterAssets[asset.Name] = asset
	}
	if err := s.store.Replace(sess); err != nil {
		return nil, err
	}
	return results, nil
}

// resolveTargets は names が指定されていればその部分集合を返します。
// 1人も一致しない指定は NotFound です。
func resolveTargets(sess *domain.Session, names []string) ([]domain.Character, error) {
	if len(names) == 0 {
		return sess.Characters, nil
	}
	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[strings.ToLower(n)] = true
	}
	var targets []domain.Character
	for _, c := range sess.Characters {
		if nameSet[strings.ToLower(c.Name)] {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: 指定された名前に一致するキャラクターがいません", ErrCharacterNotFound)
	}
	return targets, nil
}

// filterMissingAssets はまだ設定画を持たないキャラクターだけを残します。
func filterMissingAssets(sess *domain.Session, targets []domain.Character) []domain.Character {
	existing := make(map[string]bool, len(sess.CharacterAssets))
	for name := range sess.CharacterAssets {
		existing[strings.ToLower(name)] = true
	}
	var missing []domain.Character
	for _, c := range targets {
		if !existing[strings.ToLower(c.Name)] {
			missing = append(missing, c)
		}
	}
	return missing
}

// UpdateCharacter はキャラクターの説明文を置き換えます。名前は保存されている
// 表記のまま変わりません。トリム後の説明文が実際に変わった場合のみ既存の
// 設定画アセットを破棄します（空白だけの再送信ではキャッシュを壊しません）。
func (s *Service) UpdateCharacter(sessionID, name, newDescription string) ([]domain.Character, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	idx := sess.FindCharacter(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, name)
	}

	prev := sess.Characters[idx]
	sess.Characters[idx] = domain.Character{
		Name:        prev.Name,
		Description: newDescription,
	}

	if strings.TrimSpace(newDescription) != strings.TrimSpace(prev.Description) {
		delete(sess.CharacterAssets, prev.Name)
		slog.Info("説明文が変わったため設定画アセットを破棄しました", "name", prev.Name)
	}

	if err := s.store.Replace(sess); err != nil {
		return nil, err
	}
	return sess.Characters, nil
}
