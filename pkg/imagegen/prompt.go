package imagegen

import (
	"fmt"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// 画風ごとのスタイル指示です。全アセットで共通に適用されます。
var stylePrompts = map[domain.Style]string{
	domain.StyleOutline: "black and white storyboard frame, clean line art, zero color, zero gray shading, " +
		"inked outlines only, simple shapes, high-contrast silhouettes, looks like a classic storyboard sketch",
	domain.StyleRealistic: "highly realistic cinematic frame, natural lighting, realistic materials and skin, " +
		"film still quality",
	domain.Style3D: "high quality 3D animation still, soft stylized characters, detailed materials, " +
		"Pixar-like cinematic render, gentle lighting",
	domain.StyleAnime: "2D anime frame, flat cel shading, bold line art, simplified shapes, expressive faces, " +
		"no 3D rendering, no heavy detail",
}

func styleDescription(style domain.Style) string {
	if desc, ok := stylePrompts[style]; ok {
		return desc
	}
	return stylePrompts[domain.StyleRealistic]
}

// BuildShotPrompt は1ショット分のストーリーボードフレーム用プロンプトを組み立てます。
func BuildShotPrompt(shotDescription string, style domain.Style) string {
	return fmt.Sprintf(
		"Storyboard frame for a film or series. Style: %s. "+
			"Single cinematic shot with intentional camera choice and framing (e.g., wide, close-up, over-the-shoulder, low angle, dutch tilt when fitting). "+
			"Include depth, lighting, and composition that feel like a film still. "+
			"No on-screen text or captions. "+
			"Scene to depict: %s",
		styleDescription(style), shotDescription,
	)
}

// BuildCharacterPrompt はキャラクター設定画用のプロンプトを組み立てます。
// 複数ショットで参照画像として使い回せるよう、背景なしの全身／七分身を要求します。
func BuildCharacterPrompt(characterDescription string, style domain.Style) string {
	var enforcement string
	if style == domain.StyleOutline {
		enforcement = "Pure black ink line art on a flat white background. No color anywhere. No gray shading. " +
			"No gradients, no tones. Ignore color words in the description and render as black line art only. " +
			"No environment; leave the background fully white."
	} else {
		enforcement = "Pure white seamless studio background only. No scene, no environment, no props unless explicitly requested. " +
			"Do not add backgrounds or scenery. Subject is cleanly separated on white."
	}

	return fmt.Sprintf(
		"Single character design for a storyboard. Style: %s. "+
			"%s "+
			"Full or three quarter body view. "+
			"No on-screen text. "+
			"Character should be clearly readable for use in multiple storyboard shots. "+
			"Character description: %s",
		styleDescription(style), enforcement, characterDescription,
	)
}
