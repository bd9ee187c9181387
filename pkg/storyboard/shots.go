package storyboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/imagegen"
)

// ResolveReferences は、要求されたキャラクター名それぞれを生成済み設定画の
// 画像URLに解決します。全員解決できた場合のみ入力順のリストを返し、
// 1人でも欠けていれば欠けている「全員」を列挙して失敗します。
// 部分的なリストを返すことはありません。
func ResolveReferences(sess *domain.Session, characterNames []string) ([]string, error) {
	var refs []string
	var missing []string
	for _, name := range characterNames {
		asset, ok := sess.CharacterAssets[name]
		if ok {
			refs = append(refs, asset.ImageURL)
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingReferencesError{Missing: missing}
	}
	return refs, nil
}

func composeShotDescription(scene domain.Scene, shot domain.Shot) string {
	base := fmt.Sprintf("Scene %d - %s: %s", scene.SceneNumber, scene.SceneTitle, shot.ShotDescription)
	if len(shot.CharactersInShot) > 0 {
		return fmt.Sprintf("%s Characters in shot: %s.", base, strings.Join(shot.CharactersInShot, ", "))
	}
	return base
}

// GenerateShots は、（指定があればそのシーン群の）全ショットを順番に生成します。
// ショットごとに参照画像を全員分解決してから画像合成に渡します。
// 1件の失敗で中断しますが、それまでに成功したショットはセッションに残ります。
func (s *Service) GenerateShots(ctx context.Context, sessionID string, sceneNumbers []int) ([]domain.ShotAsset, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	scenes, err := filterScenes(sess.Scenes, sceneNumbers)
	if err != nil {
		return nil, err
	}

	var generated []domain.ShotAsset
	for _, scene := range scenes {
		for _, shot := range scene.Shots {
			asset, err := s.generateSingleShot(ctx, sess, scene, shot)
			if err != nil {
				// 成功済み分は残して再照会できるようにします。
				if replaceErr := s.store.Replace(sess); replaceErr != nil {
					slog.Error("失敗後のセッション保存に失敗しました", "error", replaceErr)
				}
				return nil, err
			}
			generated = append(generated, *asset)
		}
	}

	if err := s.store.Replace(sess); err != nil {
		return nil, err
	}
	return generated, nil
}

// GenerateShot は単一ショットだけを生成します。
func (s *Service) GenerateShot(ctx context.Context, sessionID string, sceneNumber, shotNumber int) (*domain.ShotAsset, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	sceneIdx := sess.FindScene(sceneNumber)
	if sceneIdx < 0 {
		return nil, fmt.Errorf("%w: scene=%d", ErrSceneNotFound, sceneNumber)
	}
	scene := sess.Scenes[sceneIdx]
	shotIdx := scene.FindShot(shotNumber)
	if shotIdx < 0 {
		return nil, fmt.Errorf("%w", ErrShotNotFound)
	}

	asset, err := s.generateSingleShot(ctx, sess, scene, scene.Shots[shotIdx])
	if err != nil {
		return nil, err
	}
	if err := s.store.Replace(sess); err != nil {
		return nil, err
	}
	return asset, nil
}

// generateSingleShot は1ショット分の合成とセッションへの反映を行います。
// 永続化は呼び出し側の責務です。
func (s *Service) generateSingleShot(ctx context.Context, sess *domain.Session, scene domain.Scene, shot domain.Shot) (*domain.ShotAsset, error) {
	references, err := ResolveReferences(sess, shot.CharactersInShot)
	if err != nil {
		return nil, err
	}

	res, err := s.synth.GenerateShot(ctx, composeShotDescription(scene, shot), sess.Style, references)
	if err != nil {
		return nil, &UpstreamError{Op: "ショット生成", SceneNumber: scene.SceneNumber, ShotNumber: shot.ShotNumber, Err: err}
	}

	asset := domain.ShotAsset{
		SceneNumber:         scene.SceneNumber,
		ShotNumber:          shot.ShotNumber,
		ShotDescription:     shot.ShotDescription,
		CharactersInShot:    shot.CharactersInShot,
		ImageURL:            res.ImageURL,
		Seed:                res.Seed,
		StructuredPrompt:    res.StructuredPrompt,
		RawStructuredPrompt: res.RawStructuredPrompt,
	}
	sess.ShotAssets[domain.ShotKey{Scene: scene.SceneNumber, Shot: shot.ShotNumber}] = asset
	slog.Info("ショットを生成しました", "scene", scene.SceneNumber, "shot", shot.ShotNumber)
	return &asset, nil
}

func filterScenes(scenes []domain.Scene, sceneNumbers []int) ([]domain.Scene, error) {
	if len(sceneNumbers) == 0 {
		return scenes, nil
	}
	allowed := make(map[int]bool, len(sceneNumbers))
	for _, n := range sceneNumbers {
		allowed[n] = true
	}
	var filtered []domain.Scene
	for _, sc := range scenes {
		if allowed[sc.SceneNumber] {
			filtered = append(filtered, sc)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: 指定された番号に一致するシーンがありません", ErrSceneNotFound)
	}
	return filtered, nil
}

// RefineShot は、生成済みショットへの局所編集です。直前の structured_prompt と
// シードを引き継ぐため、構図とフレーミングは保たれます。
func (s *Service) RefineShot(ctx context.Context, sessionID string, sceneNumber, shotNumber int, editPrompt string, useReferenceImages bool) (*domain.ShotAsset, error) {
	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	key := domain.ShotKey{Scene: sceneNumber, Shot: shotNumber}
	asset, ok := sess.ShotAssets[key]
	if !ok {
		return nil, fmt.Errorf("%w", ErrShotNotFound)
	}

	var references []string
	if useReferenceImages && len(asset.CharactersInShot) > 0 {
		references, err = ResolveReferences(sess, asset.CharactersInShot)
		if err != nil {
			return nil, err
		}
	}

	res, err := s.synth.RefineShot(ctx, editPrompt, asset.RawStructuredPrompt, asset.Seed, references)
	if err != nil {
		return nil, &UpstreamError{Op: "ショットリファイン", SceneNumber: sceneNumber, ShotNumber: shotNumber, Err: err}
	}

	updated := asset
	applyResult(&updated, res)
	sess.ShotAssets[key] = updated

	if err := s.store.Replace(sess); err != nil {
		return nil, err
	}
	return &updated, nil
}

func applyResult(asset *domain.ShotAsset, res *imagegen.Result) {
	asset.ImageURL = res.ImageURL
	asset.Seed = res.Seed
	asset.StructuredPrompt = res.StructuredPrompt
	asset.RawStructuredPrompt = res.RawStructuredPrompt
}
