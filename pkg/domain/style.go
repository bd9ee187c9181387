package domain

import "fmt"

// Style は、セッション全体に適用される画風タグです。
// セッション作成後は変更できません（全アセットの描画制約を決めるため）。
type Style string

const (
	StyleOutline   Style = "outline"   // 白黒ストーリーボード線画
	StyleRealistic Style = "realistic" // 実写調のシネマティックフレーム
	Style3D        Style = "3d"        // Pixar調の3Dアニメーションスチル
	StyleAnime     Style = "anime"     // 2Dアニメ、フラットなセル塗り
)

// DefaultStyle は指定がない場合に使用する画風です。
const DefaultStyle = StyleRealistic

// ParseStyle は文字列を Style に変換します。空文字はデフォルトを返し、
// 未知の値はエラーになります。
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleOutline, StyleRealistic, Style3D, StyleAnime:
		return Style(s), nil
	case "":
		return DefaultStyle, nil
	}
	return "", fmt.Errorf("未知の画風タグです: %q", s)
}
