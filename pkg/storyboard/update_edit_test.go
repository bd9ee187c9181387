package storyboard

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/narrative"
)

func boolPtr(b bool) *bool { return &b }

func TestUpdateShot(t *testing.T) {
	t.Run("説明文の更新で該当アセットだけを破棄する", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedShotAsset(t, 1, 1, "Alice walks along the river", []string{"Alice"})
		env.seedShotAsset(t, 1, 2, "Alice meets Bob at the bridge", []string{"Alice", "Bob"})

		res, err := env.svc.UpdateShot(env.sess.ID, 1, 2, "Alice waves to Bob from the shore", false)
		if err != nil {
			t.Fatalf("UpdateShot: %v", err)
		}

		scene := res.Scenes[0]
		if len(scene.Shots) != 3 {
			t.Fatalf("shots = %d, want 3", len(scene.Shots))
		}
		if scene.Shots[1].ShotDescription != "Alice waves to Bob from the shore" {
			t.Errorf("description = %q", scene.Shots[1].ShotDescription)
		}
		// 既存の配役リストは保たれます。
		if len(scene.Shots[1].CharactersInShot) != 2 {
			t.Errorf("characters = %v", scene.Shots[1].CharactersInShot)
		}

		stored, _ := env.svc.GetSession(env.sess.ID)
		if _, ok := stored.ShotAssets[domain.ShotKey{Scene: 1, Shot: 2}]; ok {
			t.Error("内容が変わったショットのアセットが残っています")
		}
		if _, ok := stored.ShotAssets[domain.ShotKey{Scene: 1, Shot: 1}]; !ok {
			t.Error("無関係なショットのアセットまで消えています")
		}
	})

	t.Run("空白だけの再送信ではアセットを保つ", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedShotAsset(t, 1, 2, "Alice meets Bob at the bridge", []string{"Alice", "Bob"})

		_, err := env.svc.UpdateShot(env.sess.ID, 1, 2, "  Alice meets Bob at the bridge \n", false)
		if err != nil {
			t.Fatalf("UpdateShot: %v", err)
		}
		stored, _ := env.svc.GetSession(env.sess.ID)
		if _, ok := stored.ShotAssets[domain.ShotKey{Scene: 1, Shot: 2}]; !ok {
			t.Error("内容が変わっていないのにアセットが破棄されています")
		}
	})

	t.Run("挿入で後続ショットとアセットが番号ごとずれる", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedShotAsset(t, 1, 2, "Alice meets Bob at the bridge", []string{"Alice", "Bob"})
		env.seedShotAsset(t, 1, 3, "Wide view of the empty town", nil)
		env.seedShotAsset(t, 2, 1, "Bob packs his bag", []string{"Bob"})

		res, err := env.svc.UpdateShot(env.sess.ID, 1, 2, "Bob appears in the distance", true)
		if err != nil {
			t.Fatalf("UpdateShot: %v", err)
		}

		scene := res.Scenes[0]
		if len(scene.Shots) != 4 {
			t.Fatalf("shots = %d, want 4", len(scene.Shots))
		}
		for i, shot := range scene.Shots {
			if shot.ShotNumber != i+1 {
				t.Errorf("shots[%d].ShotNumber = %d, want %d", i, shot.ShotNumber, i+1)
			}
		}
		if scene.Shots[1].ShotDescription != "Bob appears in the distance" {
			t.Errorf("挿入位置が不正です: %q", scene.Shots[1].ShotDescription)
		}
		// 新規ショットの配役は説明文から推定されます。
		if len(scene.Shots[1].CharactersInShot) != 1 || scene.Shots[1].CharactersInShot[0] != "Bob" {
			t.Errorf("characters = %v, want [Bob]", scene.Shots[1].CharactersInShot)
		}

		stored, _ := env.svc.GetSession(env.sess.ID)
		// 旧 1-2 → 1-3、旧 1-3 → 1-4 に付け替わります。新しい 1-2 は未生成です。
		if _, ok := stored.ShotAssets[domain.ShotKey{Scene: 1, Shot: 2}]; ok {
			t.Error("挿入した未生成ショットにアセットが付いています")
		}
		moved, ok := stored.ShotAssets[domain.ShotKey{Scene: 1, Shot: 3}]
		if !ok || moved.ShotDescription != "Alice meets Bob at the bridge" {
			t.Errorf("旧 1-2 のアセットが 1-3 に移っていません: %+v", moved)
		}
		if moved.ShotNumber != 3 {
			t.Errorf("非正規化された番号が更新されていません: %d", moved.ShotNumber)
		}
		if _, ok := stored.ShotAssets[domain.ShotKey{Scene: 1, Shot: 4}]; !ok {
			t.Error("旧 1-3 のアセットが 1-4 に移っていません")
		}
		// 他のシーンのアセットは無傷です。
		if _, ok := stored.ShotAssets[domain.ShotKey{Scene: 2, Shot: 1}]; !ok {
			t.Error("別シーンのアセットが巻き込まれています")
		}
	})

	t.Run("範囲外の挿入位置は末尾にクランプされる", func(t *testing.T) {
		env := newTestEnv(t)
		res, err := env.svc.UpdateShot(env.sess.ID, 1, 99, "Closing shot of the sunset", true)
		if err != nil {
			t.Fatalf("UpdateShot: %v", err)
		}
		scene := res.Scenes[0]
		last := scene.Shots[len(scene.Shots)-1]
		if last.ShotDescription != "Closing shot of the sunset" || last.ShotNumber != 4 {
			t.Errorf("末尾挿入が不正です: %+v", last)
		}
	})

	t.Run("存在しない番号への更新は挿入として扱う", func(t *testing.T) {
		env := newTestEnv(t)
		res, err := env.svc.UpdateShot(env.sess.ID, 2, 5, "Bob looks back at the town", false)
		if err != nil {
			t.Fatalf("UpdateShot: %v", err)
		}
		if len(res.Scenes[1].Shots) != 2 {
			t.Fatalf("shots = %d, want 2", len(res.Scenes[1].Shots))
		}
	})

	t.Run("存在しないシーンはNotFound", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.UpdateShot(env.sess.ID, 9, 1, "whatever", false)
		if !errors.Is(err, ErrSceneNotFound) {
			t.Fatalf("ErrSceneNotFound を期待しましたが %v でした", err)
		}
	})
}

func TestEditShot(t *testing.T) {
	ctx := context.Background()

	t.Run("refine判断は直前のプロンプトとシードで局所編集する", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedShotAsset(t, 1, 2, "Alice meets Bob at the bridge", []string{"Alice", "Bob"})
		env.decider.decision = &narrative.ShotDecision{
			Action:     narrative.ActionRefine,
			EditPrompt: "add heavy rain and umbrellas",
		}

		res, err := env.svc.EditShot(ctx, env.sess.ID, 1, 2, "make it rain")
		if err != nil {
			t.Fatalf("EditShot: %v", err)
		}
		if res.Action != narrative.ActionRefine {
			t.Errorf("action = %q", res.Action)
		}
		if env.synth.lastRefinePrompt != "add heavy rain and umbrellas" {
			t.Errorf("editPrompt = %q", env.synth.lastRefinePrompt)
		}
		if env.synth.lastRefineSeed != 102 {
			t.Errorf("seed = %d, want 102", env.synth.lastRefineSeed)
		}
		// 明示指定がなければ参照画像は渡しません。
		if env.synth.lastRefineRefs != nil {
			t.Errorf("refs = %v, want nil", env.synth.lastRefineRefs)
		}
		// エージェントには直前の文脈を渡しています。
		if !env.decider.lastInput.HasAsset || env.decider.lastInput.Seed != 102 {
			t.Errorf("判断材料が不正です: %+v", env.decider.lastInput)
		}
		if res.Shot.ShotDescription != "Alice meets Bob at the bridge" {
			t.Errorf("refine で説明文が変わっています: %q", res.Shot.ShotDescription)
		}
	})

	t.Run("generate判断は説明文を書き換えて作り直す", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedShotAsset(t, 1, 2, "Alice meets Bob at the bridge", []string{"Alice", "Bob"})
		env.seedCharacterAsset(t, "Bob")
		env.decider.decision = &narrative.ShotDecision{
			Action:          narrative.ActionGenerate,
			ShotDescription: "Bob stands alone on the bridge at night",
		}

		res, err := env.svc.EditShot(ctx, env.sess.ID, 1, 2, "remove Alice, make it night")
		if err != nil {
			t.Fatalf("EditShot: %v", err)
		}
		if res.Action != narrative.ActionGenerate {
			t.Errorf("action = %q", res.Action)
		}
		// 新しい説明文から配役が推定し直されます。
		if len(res.Shot.CharactersInShot) != 1 || res.Shot.CharactersInShot[0] != "Bob" {
			t.Errorf("characters = %v, want [Bob]", res.Shot.CharactersInShot)
		}
		if len(env.synth.lastShotRefs) != 1 {
			t.Errorf("refs = %v, want Bob の1件", env.synth.lastShotRefs)
		}
		// シーン側のショットにも新しい説明文が反映されます。
		stored, _ := env.svc.GetSession(env.sess.ID)
		shot := stored.Scenes[0].Shots[1]
		if shot.ShotDescription != "Bob stands alone on the bridge at night" {
			t.Errorf("シーンへ伝播していません: %q", shot.ShotDescription)
		}
		if stored.ShotAssets[domain.ShotKey{Scene: 1, Shot: 2}].ShotDescription != shot.ShotDescription {
			t.Error("アセットの説明文がシーンと一致しません")
		}
	})

	t.Run("generateで参照画像を明示的に拒否できる", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedShotAsset(t, 1, 2, "Alice meets Bob at the bridge", []string{"Alice", "Bob"})
		env.decider.decision = &narrative.ShotDecision{
			Action:             narrative.ActionGenerate,
			ShotDescription:    "Bob stands alone on the bridge at night",
			UseReferenceImages: boolPtr(false),
		}

		// Bob の設定画は未生成ですが、参照なし指定なので成功します。
		_, err := env.svc.EditShot(ctx, env.sess.ID, 1, 2, "remove Alice")
		if err != nil {
			t.Fatalf("EditShot: %v", err)
		}
		if env.synth.lastShotRefs != nil {
			t.Errorf("refs = %v, want nil", env.synth.lastShotRefs)
		}
	})

	t.Run("refineでも明示指定があれば参照画像を解決する", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedShotAsset(t, 1, 2, "Alice meets Bob at the bridge", []string{"Alice", "Bob"})
		env.seedCharacterAsset(t, "Alice")
		env.seedCharacterAsset(t, "Bob")
		env.decider.decision = &narrative.ShotDecision{
			Action:             narrative.ActionRefine,
			EditPrompt:         "match the faces to the reference sheets",
			UseReferenceImages: boolPtr(true),
		}

		_, err := env.svc.EditShot(ctx, env.sess.ID, 1, 2, "fix the faces")
		if err != nil {
			t.Fatalf("EditShot: %v", err)
		}
		if len(env.synth.lastRefineRefs) != 2 {
			t.Errorf("refs = %v, want 2件", env.synth.lastRefineRefs)
		}
	})

	t.Run("未生成ショットへのrefine判断はgenerateに落ちる", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedCharacterAsset(t, "Alice")
		env.seedCharacterAsset(t, "Bob")
		env.decider.decision = &narrative.ShotDecision{
			Action:     narrative.ActionRefine,
			EditPrompt: "brighter lighting",
		}

		res, err := env.svc.EditShot(ctx, env.sess.ID, 1, 2, "brighter")
		if err != nil {
			t.Fatalf("EditShot: %v", err)
		}
		if res.Action != narrative.ActionGenerate {
			t.Errorf("action = %q, want generate", res.Action)
		}
		if env.decider.lastInput.HasAsset {
			t.Error("未生成ショットなのに has_asset が真です")
		}
	})

	t.Run("一人芝居のセッションでは推定ゼロでもその人物を配役する", func(t *testing.T) {
		env := newTestEnv(t)
		solo, err := env.store.Create("monologue", domain.StyleRealistic,
			[]domain.Character{{Name: "Narrator", Description: "An old storyteller"}},
			[]domain.Scene{{
				SceneNumber: 1,
				SceneTitle:  "Stage",
				Shots:       []domain.Shot{{ShotNumber: 1, ShotDescription: "A dim spotlight on an empty chair"}},
			}},
		)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		solo.CharacterAssets["Narrator"] = domain.CharacterAsset{Name: "Narrator", ImageURL: "https://images.example/narrator.png"}
		env.decider.decision = &narrative.ShotDecision{
			Action:          narrative.ActionGenerate,
			ShotDescription: "The spotlight tightens on the chair",
		}

		res, err := env.svc.EditShot(ctx, solo.ID, 1, 1, "tighter framing")
		if err != nil {
			t.Fatalf("EditShot: %v", err)
		}
		if len(res.Shot.CharactersInShot) != 1 || res.Shot.CharactersInShot[0] != "Narrator" {
			t.Errorf("characters = %v, want [Narrator]", res.Shot.CharactersInShot)
		}
	})

	t.Run("エージェント失敗時は依頼文を連結して作り直す", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedCharacterAsset(t, "Alice")
		env.seedCharacterAsset(t, "Bob")
		env.decider.err = errors.New("llm timeout")

		res, err := env.svc.EditShot(ctx, env.sess.ID, 1, 2, "make it night")
		if err != nil {
			t.Fatalf("EditShot: %v", err)
		}
		if res.Action != narrative.ActionGenerate {
			t.Errorf("action = %q, want generate", res.Action)
		}
		want := "Alice meets Bob at the bridge. make it night"
		if res.Shot.ShotDescription != want {
			t.Errorf("description = %q, want %q", res.Shot.ShotDescription, want)
		}
		if !strings.Contains(env.synth.shotDescriptions[0], want) {
			t.Errorf("合成プロンプトに連結結果がありません: %q", env.synth.shotDescriptions[0])
		}
	})

	t.Run("未知のactionは契約違反として失敗する", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedShotAsset(t, 1, 2, "Alice meets Bob at the bridge", []string{"Alice", "Bob"})
		env.decider.decision = &narrative.ShotDecision{Action: "repaint"}

		_, err := env.svc.EditShot(ctx, env.sess.ID, 1, 2, "whatever")
		if err == nil || !strings.Contains(err.Error(), "repaint") {
			t.Fatalf("未知のactionエラーを期待しましたが %v でした", err)
		}
	})

	t.Run("空の依頼はバリデーションエラー", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.EditShot(ctx, env.sess.ID, 1, 1, "   ")
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("ValidationError を期待しましたが %v でした", err)
		}
	})

	t.Run("存在しないショットはNotFound", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.EditShot(ctx, env.sess.ID, 1, 9, "whatever")
		if !errors.Is(err, ErrShotNotFound) {
			t.Fatalf("ErrShotNotFound を期待しましたが %v でした", err)
		}
	})
}
