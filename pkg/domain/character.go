package domain

import "strings"

// Character は物語の主要登場人物です。
// Name はセッション内で一意（大文字小文字を区別しない）で、セッションの寿命を
// 通じて不変の同一性キーになります。改名はサポートせず、説明文のみ変更できます。
type Character struct {
	Name        string `json:"name"`
	Description string `json:"character_description"` // 画像生成に使う視覚的な説明文
}

// InferCharacters は説明文の中に既知のキャラクター名が（大文字小文字を無視した
// 部分文字列として）現れるかを走査し、一致した名前を登場順リストの順で返します。
// あくまでベストエフォートの事前推定であり、明示的なリストが常に優先されます。
func InferCharacters(text string, characters []Character) []string {
	lowered := strings.ToLower(text)
	var names []string
	for _, c := range characters {
		if strings.Contains(lowered, strings.ToLower(c.Name)) {
			names = append(names, c.Name)
		}
	}
	return names
}
