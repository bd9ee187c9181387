// Package imagegen は、外部の画像合成APIへのクライアントです。
// プロンプト（必要なら直前の structured_prompt とシード、参照画像1枚）を渡すと、
// 画像URL・シード・再利用可能な structured_prompt が返ります。
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shouni/go-http-kit/httpkit"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

const (
	// DefaultAPIURL は画像合成サービスの生成エンドポイントです。
	DefaultAPIURL = "https://engine.prod.bria-api.com/v2/image/generate"

	// CharacterAspectRatio は全身のキャラクター設定画用です。
	CharacterAspectRatio = "9:16"
	// ShotAspectRatio はストーリーボードの1ショット用です。
	ShotAspectRatio = "16:9"

	// maxReferenceImages はAPIが受け付ける参照画像の上限です。
	maxReferenceImages = 1
)

// httpDoer は内部で使う最小のHTTPクライアント面です。
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client は画像合成APIのクライアントです。
type Client struct {
	httpClient httpDoer
	apiURL     string
	apiToken   string
}

// New は共有のHTTPクライアントとAPI設定から Client を生成します。
func New(httpClient httpkit.Doer, apiURL, apiToken string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient: httpClient,
		apiURL:     apiURL,
		apiToken:   apiToken,
	}
}

// Result は生成1回分の結果です。RawStructuredPrompt が正であり、
// StructuredPrompt はAPIレスポンス表示用のデコード済みコピーです。
type Result struct {
	ImageURL            string
	Seed                int64
	StructuredPrompt    map[string]any
	RawStructuredPrompt string
}

// GenerationError は画像合成APIの失敗を、上流のステータスとボディ付きで表します。
type GenerationError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s に失敗しました: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s に失敗しました (status=%d): %s", e.Op, e.StatusCode, e.Body)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type apiRequest struct {
	Prompt           string   `json:"prompt"`
	Sync             bool     `json:"sync"`
	AspectRatio      string   `json:"aspect_ratio"`
	StructuredPrompt string   `json:"structured_prompt,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
	Images           []string `json:"images,omitempty"`
}

type apiResponse struct {
	Result struct {
		ImageURL         string `json:"image_url"`
		Seed             int64  `json:"seed"`
		StructuredPrompt string `json:"structured_prompt"`
	} `json:"result"`
}

// GenerateCharacter はキャラクター設定画を新規生成します。
func (c *Client) GenerateCharacter(ctx context.Context, description string, style domain.Style) (*Result, error) {
	return c.post(ctx, "キャラクター生成", apiRequest{
		Prompt:      BuildCharacterPrompt(description, style),
		Sync:        true,
		AspectRatio: CharacterAspectRatio,
	})
}

// GenerateShot はショット画像を新規生成します。参照画像は現状のAPI上限に従い
// 先頭の1枚だけを渡します。
func (c *Client) GenerateShot(ctx context.Context, description string, style domain.Style, referenceImageURLs []string) (*Result, error) {
	return c.post(ctx, "ショット生成", apiRequest{
		Prompt:      BuildShotPrompt(description, style),
		Sync:        true,
		AspectRatio: ShotAspectRatio,
		Images:      truncateReferences(referenceImageURLs),
	})
}

// RefineShot は、直前の structured_prompt とシードを引き継いだ局所編集です。
// 構図とフレーミングを保ったまま小さな変更を適用します。
func (c *Client) RefineShot(ctx context.Context, editPrompt, rawStructuredPrompt string, seed int64, referenceImageURLs []string) (*Result, error) {
	return c.post(ctx, "ショットリファイン", apiRequest{
		Prompt:           editPrompt,
		Sync:             true,
		AspectRatio:      ShotAspectRatio,
		StructuredPrompt: rawStructuredPrompt,
		Seed:             &seed,
		Images:           truncateReferences(referenceImageURLs),
	})
}

func truncateReferences(refs []string) []string {
	if len(refs) > maxReferenceImages {
		return refs[:maxReferenceImages]
	}
	return refs
}

func (c *Client) post(ctx context.Context, op string, payload apiRequest) (*Result, error) {
	if c.apiToken == "" {
		return nil, &GenerationError{Op: op, Err: fmt.Errorf("画像合成APIのトークンが設定されていません")}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &GenerationError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_token", c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &GenerationError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GenerationError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &GenerationError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var decoded apiResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &GenerationError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("レスポンスのデコードに失敗しました: %w", err)}
	}

	structured, err := domain.DecodeStructuredPrompt(decoded.Result.StructuredPrompt)
	if err != nil {
		return nil, &GenerationError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	return &Result{
		ImageURL:            decoded.Result.ImageURL,
		Seed:                decoded.Result.Seed,
		StructuredPrompt:    structured,
		RawStructuredPrompt: decoded.Result.StructuredPrompt,
	}, nil
}
