package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/shouni/go-gemini-client/gemini"
	"github.com/shouni/go-http-kit/httpkit"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/shouni/go-storyboard-kit/internal/config"
	"github.com/shouni/go-storyboard-kit/pkg/httpapi"
	"github.com/shouni/go-storyboard-kit/pkg/imagegen"
	"github.com/shouni/go-storyboard-kit/pkg/narrative"
	"github.com/shouni/go-storyboard-kit/pkg/session"
	"github.com/shouni/go-storyboard-kit/pkg/storyboard"
)

// serveCmd は、ストーリーボード生成APIサーバーを起動するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "APIサーバーを起動しますなのだ。",
	Long: `セッションストア・テキストLLM・画像合成クライアントを組み立てて、
REST APIとして待ち受けるのだ。SIGTERM を受けると処理中のリクエストを
描き切ってから終了するのだよ。`,
	RunE: serveCommand,
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	normalizeOptions()
	cfg := config.LoadConfig()
	cfg.Options = opts
	if opts.ListenAddr != "" {
		cfg.ListenAddr = opts.ListenAddr
	}

	svc, err := buildService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("サービスの組み立てに失敗したのだ: %w", err)
	}

	handler := httpapi.NewHandler(svc, httpapi.HealthInfo{
		Environment:    cfg.Environment,
		BriaConfigured: cfg.BriaConfigured(),
		LLMConfigured:  cfg.LLMConfigured(),
	})

	// フロントエンドはどこで動くかわからないので、CORS は全面的に許可するのだ。
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: cors(handler.Router()),
		// 画像合成の応答待ちがあるため、書き込みタイムアウトは外部APIの
		// タイムアウトより長めに取るのだ。
		ReadTimeout:  30 * time.Second,
		WriteTimeout: opts.HTTPTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return runServer(ctx, srv)
}

// buildService は設定から依存一式を構築するのだ。
func buildService(ctx context.Context, cfg *config.Config) (*storyboard.Service, error) {
	const defaultGeminiTemperature = float32(0.2)
	aiClient, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:      cfg.GeminiAPIKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	})
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}

	httpClient := httpkit.New(cfg.Options.HTTPTimeout)
	extractor := narrative.NewExtractor(narrative.NewGeminiGenerator(aiClient, cfg.GeminiModel))

	return storyboard.NewService(storyboard.ServiceArgs{
		Store:         session.NewMemoryStore(cfg.Options.SessionTTL, session.DefaultCleanupInterval),
		Extractor:     extractor,
		Decider:       extractor,
		Synthesizer:   imagegen.New(httpClient, cfg.BriaAPIURL, cfg.BriaAPIToken),
		RateInterval:  cfg.Options.RateInterval,
		MaxConcurrent: cfg.Options.MaxConcurrent,
	})
}

// runServer はサーバーを起動し、シグナルを受けたら猶予付きで閉じるのだ。
func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("APIサーバーを起動するのだ！", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("サーバーが異常終了したのだ: %w", err)
	case <-ctx.Done():
	case sig := <-quit:
		slog.Info("シグナルを受信したのだ。処理中のリクエストを描き切るのだよ", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーの停止に失敗したのだ: %w", err)
	}
	slog.Info("すべてのリクエストを描き切って終了したのだ！")
	return nil
}
