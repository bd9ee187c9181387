package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// Extractor は台本から登場人物とシーン構成を抽出するエージェント群の窓口です。
type Extractor struct {
	gen ContentGenerator
}

// NewExtractor は新しい Extractor を生成します。
func NewExtractor(gen ContentGenerator) *Extractor {
	return &Extractor{gen: gen}
}

type castOutput struct {
	Characters []domain.Character `json:"characters"`
}

type scriptOutput struct {
	Scenes []domain.Scene `json:"scenes"`
}

// ExtractCast は台本を読んで主要登場人物のリストを返します。
// 形の崩れた応答はそのままハードエラーです（リトライはしません）。
func (e *Extractor) ExtractCast(ctx context.Context, script string, style domain.Style) ([]domain.Character, error) {
	prompt := fmt.Sprintf("%s\n\nVisual style for the project: %s\n\nScript:\n%s",
		castAgentPrompt, style, strings.TrimSpace(script))

	raw, err := e.gen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("キャストエージェントの呼び出しに失敗しました: %w", err)
	}

	var out castOutput
	if err := json.Unmarshal([]byte(ExtractJSONBlock(raw)), &out); err != nil {
		return nil, fmt.Errorf("キャストエージェントの出力を解釈できません: %w", err)
	}
	if len(out.Characters) == 0 {
		return nil, fmt.Errorf("キャストエージェントが登場人物を1人も返しませんでした")
	}
	for i, c := range out.Characters {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("キャストエージェントの出力 %d 番目に名前がありません", i+1)
		}
	}
	return out.Characters, nil
}

// ExtractScenes は台本と確定済みキャストからシーン／ショット構成を返します。
func (e *Extractor) ExtractScenes(ctx context.Context, script string, cast []domain.Character, style domain.Style) ([]domain.Scene, error) {
	castJSON, err := json.Marshal(cast)
	if err != nil {
		return nil, fmt.Errorf("キャスト情報のシリアライズに失敗しました: %w", err)
	}

	prompt := fmt.Sprintf("%s\n\nVisual style for the project: %s\n\nCharacters:\n%s\n\nScript:\n%s",
		scriptAgentPrompt, style, castJSON, strings.TrimSpace(script))

	raw, err := e.gen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("スクリプトエージェントの呼び出しに失敗しました: %w", err)
	}

	var out scriptOutput
	if err := json.Unmarshal([]byte(ExtractJSONBlock(raw)), &out); err != nil {
		return nil, fmt.Errorf("スクリプトエージェントの出力を解釈できません: %w", err)
	}
	if err := validateScenes(out.Scenes); err != nil {
		return nil, fmt.Errorf("スクリプトエージェントの出力が不正です: %w", err)
	}
	return out.Scenes, nil
}

func validateScenes(scenes []domain.Scene) error {
	if len(scenes) == 0 {
		return fmt.Errorf("シーンが1つもありません")
	}
	seen := make(map[int]bool, len(scenes))
	for _, sc := range scenes {
		if sc.SceneNumber <= 0 {
			return fmt.Errorf("シーン番号 %d が不正です", sc.SceneNumber)
		}
		if seen[sc.SceneNumber] {
			return fmt.Errorf("シーン番号 %d が重複しています", sc.SceneNumber)
		}
		seen[sc.SceneNumber] = true
		for _, shot := range sc.Shots {
			if shot.ShotNumber <= 0 {
				return fmt.Errorf("シーン %d のショット番号 %d が不正です", sc.SceneNumber, shot.ShotNumber)
			}
			if strings.TrimSpace(shot.ShotDescription) == "" {
				return fmt.Errorf("シーン %d ショット %d に説明文がありません", sc.SceneNumber, shot.ShotNumber)
			}
		}
	}
	return nil
}

// ExtractJSONBlock は、AIの応答からJSON本体を取り出します。
// Markdownのコードフェンスや前後の散文が付いていても許容します。
func ExtractJSONBlock(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return text
	}

	// 散文に埋まっている場合は最初の括弧から最後の括弧までを切り出します。
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "}]")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
