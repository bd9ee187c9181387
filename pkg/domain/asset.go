package domain

import (
	"encoding/json"
	"fmt"
)

// CharacterAsset は、あるキャラクターの説明文からその時点で生成された画像と、
// 再生成に必要なメタデータの組です。説明文が変われば破棄されます。
type CharacterAsset struct {
	Name                string         `json:"name"`
	Description         string         `json:"description"`
	ImageURL            string         `json:"image_url"`
	Seed                int64          `json:"seed"`
	StructuredPrompt    map[string]any `json:"structured_prompt"`
	RawStructuredPrompt string         `json:"raw_structured_prompt"`
}

// ShotAsset は、ショット1つ分の生成結果です。生成時点のシーン番号・ショット番号・
// 説明文・キャラクターリストを非正規化して保持します（再表示と陳腐化判定のため）。
// セッション内では現在の位置キー (scene_number, shot_number) で索引されます。
type ShotAsset struct {
	SceneNumber         int            `json:"scene_number"`
	ShotNumber          int            `json:"shot_number"`
	ShotDescription     string         `json:"shot_description"`
	CharactersInShot    []string       `json:"characters_in_shot"`
	ImageURL            string         `json:"image_url"`
	Seed                int64          `json:"seed"`
	StructuredPrompt    map[string]any `json:"structured_prompt"`
	RawStructuredPrompt string         `json:"raw_structured_prompt"`
}

// DecodeStructuredPrompt は画像生成サービスが返す structured_prompt 文字列を
// デコードします。中身はサービス側が所有する不透明な辞書であり、この層では
// 保持と転送以外の解釈をしません。
func DecodeStructuredPrompt(raw string) (map[string]any, error) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("structured_prompt のデコードに失敗しました: %w", err)
	}
	return decoded, nil
}
