package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shouni/go-storyboard-kit/internal/config"
)

// opts はフラグの受け皿なのだ。環境変数由来の設定と合流して Config になるのだよ。
var opts config.ServeOptions

var rootCmd = &cobra.Command{
	Use:   "storyboard-kit",
	Short: "台本からストーリーボードを生成するバックエンドなのだ。",
	Long: `台本テキストを解析してキャラクターとシーン構成を抽出し、
外部の画像合成APIでキャラクター設定画とショット画像を生成するのだ。
生成状態はセッションとして保持され、説明文の編集・ショットの挿入・
局所リファインを何度でも往復できるのだよ。`,
	SilenceUsage:      true,
	PersistentPreRunE: preRunAppE,
}

// addAppFlags は、アプリケーション全般に適用されるフラグを定義するのだ。
func addAppFlags() {
	rootCmd.PersistentFlags().StringVarP(&opts.ListenAddr, "listen", "l", "", "待ち受けアドレス（未指定なら LISTEN_ADDR か "+config.DefaultListenAddr+" なのだ）。")

	// --- 外部API制御 ---
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "画像合成APIリクエストのタイムアウトなのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.RateInterval, "rate-interval", 0, "画像合成呼び出しの最小間隔（0で制限なし）なのだ。")

	// --- 実行制御 ---
	rootCmd.PersistentFlags().IntVar(&opts.MaxConcurrent, "max-concurrent", config.DefaultMaxConcurrent, "キャラクター一括生成の並列数なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.SessionTTL, "session-ttl", config.DefaultSessionTTL, "放置されたセッションが回収されるまでの時間なのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// 本番では .env ではなくインフラ側から環境変数を注入するのだ。
	if os.Getenv("ENVIRONMENT") != "production" {
		_ = godotenv.Load()
	}

	// テキストLLMはキャスト・シーン抽出に必須なのだ！
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}
	if os.Getenv("BRIA_API_TOKEN") == "" {
		return fmt.Errorf("エラー: 環境変数 BRIA_API_TOKEN が設定されていません。画像合成APIの利用には必須なのだ")
	}
	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	addAppFlags()
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// フラグ未指定の項目を config 側のデフォルトで埋めるのだ。
func normalizeOptions() {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = config.DefaultHTTPTimeout
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = config.DefaultSessionTTL
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = config.DefaultMaxConcurrent
	}
	if opts.RateInterval < 0 {
		opts.RateInterval = time.Duration(0)
	}
}
