// Package narrative は、台本からの構造抽出とショット編集の意思決定を
// テキスト生成AIに依頼する層です。出力の形状検証までがこの層の責務で、
// セッションへの反映はリコンサイル層が行います。
package narrative

import (
	"context"
	"fmt"

	"github.com/shouni/go-gemini-client/gemini"
)

// ContentGenerator は、プロンプトを渡してテキスト応答を得る最小の抽象です。
// テストではこの小さな面だけを差し替えます。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator は go-gemini-client を ContentGenerator に適合させる
// アダプターです。モデル名はここで束ねます。
type GeminiGenerator struct {
	client gemini.GenerativeModel
	model  string
}

// NewGeminiGenerator は新しいアダプターを生成します。
func NewGeminiGenerator(client gemini.GenerativeModel, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

// GenerateContent は ContentGenerator の実装です。
func (g *GeminiGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.GenerateContent(ctx, prompt, g.model)
	if err != nil {
		return "", fmt.Errorf("テキスト生成に失敗しました: %w", err)
	}
	return resp.Text, nil
}
