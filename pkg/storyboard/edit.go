package storyboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/narrative"
)

// EditShotResult は編集の結末です。Action はエージェントが取った行動
// （フォールバック時は "generate"）です。
type EditShotResult struct {
	Action string
	Shot   domain.ShotAsset
}

// EditShot は、自由記述の編集依頼を1ショットに適用します。
//
// 行動の選択は決定エージェントに委ねます。生成済みアセットがあれば
// 直前の structured_prompt とシードを渡し、局所編集（refine）か
// 作り直し（generate)かを選ばせます。未生成ショットへの依頼と、
// エージェントの応答が解釈できなかった場合は、説明文に依頼を連結した
// 全面生成にフォールバックします。応答は解釈できたが action が
// refine / generate のどちらでもない場合は契約違反としてエラーです。
func (s *Service) EditShot(ctx context.Context, sessionID string, sceneNumber, shotNumber int, userRequest string) (*EditShotResult, error) {
	if strings.TrimSpace(userRequest) == "" {
		return nil, &ValidationError{Message: "編集依頼が空です"}
	}

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
		return nil, fmt.Errorf("%w: scene=%d shot=%d", ErrShotNotFound, sceneNumber, shotNumber)
	}
	shot := scene.Shots[shotIdx]

	key := domain.ShotKey{Scene: sceneNumber, Shot: shotNumber}
	prior, hasAsset := sess.ShotAssets[key]

	in := narrative.DecisionInput{
		ShotDescription: shot.ShotDescription,
		UserRequest:     userRequest,
		Style:           sess.Style,
		HasAsset:        hasAsset,
	}
	if hasAsset {
		in.ShotDescription = prior.ShotDescription
		in.CharactersInShot = prior.CharactersInShot
		in.PreviousStructuredPrompt = prior.RawStructuredPrompt
		in.Seed = prior.Seed
	} else {
		// 未生成ショットでは、登場しうる人物を全員知らせて判断させます。
		for _, c := range sess.Characters {
			in.CharactersInShot = append(in.CharactersInShot, c.Name)
		}
	}

	decision, err := s.decider.DecideShotEdit(ctx, in)
	if err != nil {
		// エージェントが落ちても編集依頼を無駄にしないため、
		// 依頼文を連結した全面生成へフォールバックします。
		slog.Warn("決定エージェントに失敗したため generate にフォールバックします",
			"scene", sceneNumber, "shot", shotNumber, "error", err)
		decision = &narrative.ShotDecision{
			Action:          narrative.ActionGenerate,
			ShotDescription: appendRequest(in.ShotDescription, userRequest),
		}
	}

	var result *EditShotResult
	switch {
	case decision.Action == narrative.ActionRefine && hasAsset:
		result, err = s.editByRefine(ctx, sess, key, prior, decision, userRequest)
	case decision.Action == narrative.ActionRefine || decision.Action == narrative.ActionGenerate:
		// 未生成ショットへの refine は成立しないので generate として扱います。
		result, err = s.editByGenerate(ctx, sess, scene, shotIdx, key, decision, userRequest)
	default:
		return nil, fmt.Errorf("決定エージェントが未知の action を返しました: %q", decision.Action)
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.Replace(sess); err != nil {
		return nil, err
	}
	return result, nil
}

// editByRefine は、直前の structured_prompt とシードを引き継ぐ局所編集です。
// 説明文と登場キャラクターは変わりません。
func (s *Service) editByRefine(ctx context.Context, sess *domain.Session, key domain.ShotKey, prior domain.ShotAsset, decision *narrative.ShotDecision, userRequest string) (*EditShotResult, error) {
	editPrompt := strings.TrimSpace(decision.EditPrompt)
	if editPrompt == "" {
		editPrompt = userRequest
	}

	// refine では参照画像が構図を崩しやすいため、明示指定がある場合のみ渡します。
	var references []string
	if decision.UseReferenceImages != nil && *decision.UseReferenceImages && len(prior.CharactersInShot) > 0 {
		refs, err := ResolveReferences(sess, prior.CharactersInShot)
		if err != nil {
			return nil, err
		}
		references = refs
	}

	res, err := s.synth.RefineShot(ctx, editPrompt, prior.RawStructuredPrompt, prior.Seed, references)
	if err != nil {
		return nil, &UpstreamError{Op: "ショットリファイン", SceneNumber: key.Scene, ShotNumber: key.Shot, Err: err}
	}

	updated := prior
	applyResult(&updated, res)
	sess.ShotAssets[key] = updated
	slog.Info("ショットを局所編集しました", "scene", key.Scene, "shot", key.Shot)
	return &EditShotResult{Action: narrative.ActionRefine, Shot: updated}, nil
}

// editByGenerate は説明文を書き換えての全面生成です。新しい説明文は
// シーン側のショットにも反映し、以後の表示と再生成の基準にします。
func (s *Service) editByGenerate(ctx context.Context, sess *domain.Session, scene domain.Scene, shotIdx int, key domain.ShotKey, decision *narrative.ShotDecision, userRequest string) (*EditShotResult, error) {
	shot := scene.Shots[shotIdx]

	description := strings.TrimSpace(decision.ShotDescription)
	if description == "" {
		description = appendRequest(shot.ShotDescription, userRequest)
	}

	characters := domain.InferCharacters(description, sess.Characters)
	if len(characters) == 0 {
		// 新しい説明文から誰も特定できなければ元の配役を保ちます。
		// それも空で、セッションの登場人物が1人だけなら、その人物とみなします。
		characters = shot.CharactersInShot
		if len(characters) == 0 && len(sess.Characters) == 1 {
			characters = []string{sess.Characters[0].Name}
		}
	}

	// generate では明示的に拒否されない限り参照画像を使い、配役の一貫性を優先します。
	var references []string
	if decision.UseReferenceImages == nil || *decision.UseReferenceImages {
		refs, err := ResolveReferences(sess, characters)
		if err != nil {
			return nil, err
		}
		references = refs
	}

	newShot := domain.Shot{
		ShotNumber:       shot.ShotNumber,
		ShotDescription:  description,
		CharactersInShot: characters,
	}
	res, err := s.synth.GenerateShot(ctx, composeShotDescription(scene, newShot), sess.Style, references)
	if err != nil {
		return nil, &UpstreamError{Op: "ショット生成", SceneNumber: key.Scene, ShotNumber: key.Shot, Err: err}
	}

	asset := domain.ShotAsset{
		SceneNumber:         key.Scene,
		ShotNumber:          key.Shot,
		ShotDescription:     description,
		CharactersInShot:    characters,
		ImageURL:            res.ImageURL,
		Seed:                res.Seed,
		StructuredPrompt:    res.StructuredPrompt,
		RawStructuredPrompt: res.RawStructuredPrompt,
	}
	sess.ShotAssets[key] = asset
	sess.Scenes[sess.FindScene(scene.SceneNumber)].Shots[shotIdx] = newShot
	slog.Info("ショットを作り直しました", "scene", key.Scene, "shot", key.Shot)
	return &EditShotResult{Action: narrative.ActionGenerate, Shot: asset}, nil
}

func appendRequest(description, userRequest string) string {
	return strings.TrimSpace(description) + ". " + strings.TrimSpace(userRequest)
}
