package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fpang/ai-image-editor/internal/cli"
	"github.com/fpang/ai-image-editor/internal/config"
	"github.com/fpang/ai-image-editor/internal/httpapi"
	"github.com/fpang/ai-image-editor/internal/logging"
	"github.com/fpang/ai-image-editor/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Build-time version, overridden with -ldflags "-X main.version=...".
var version = "dev"

// CLI flags
var (
	portFlag     int
	modelFlag    string
	providerFlag string
	baseURLFlag  string
	strictFlag   bool
	skipValidate bool
)

var rootCmd = &cobra.Command{
	Use:   "image-edit-web",
	Short: "HTTP backend for the AI image editor",
	Long: `Image Edit Web starts a local HTTP server exposing the image processing
API and the session API used by the browser editor.

Examples:
  image-edit-web
  image-edit-web --port 9090
  image-edit-web --provider gemini --model gemini-2.5-flash-image`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default from PORT or 8080)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model to use (default depends on provider)")
	rootCmd.Flags().StringVar(&providerFlag, "provider", "", "Remote provider: openai or gemini")
	rootCmd.Flags().StringVar(&baseURLFlag, "base-url", "", "Base URL of the OpenAI-compatible endpoint")
	rootCmd.Flags().BoolVar(&strictFlag, "strict", false, "Reject replies that only contain raw base64 text")
	rootCmd.Flags().BoolVar(&skipValidate, "skip-validation", false, "Skip the API key check at startup")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()

	if providerFlag != "" {
		os.Setenv("IMAGE_EDIT_PROVIDER", providerFlag)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	applyFlags(cmd, cfg)
	metrics.SetEnabled(cfg.MetricsEnabled)

	ctx := context.Background()
	editor, keySource := cli.InitEditor(ctx, cfg, !skipValidate)

	server, sessions := httpapi.Build(editor, cfg, version)
	defer sessions.Shutdown()

	srv := newHTTPServer(cfg.Port, server.Handler())

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	logging.NewStartupLogger("image-edit-web").
		Version(version).
		InitDuration(time.Since(initStart)).
		Config("provider", cfg.Provider).
		Config("model", cfg.Model).
		Config("baseURL", cfg.BaseURL).
		Config("port", fmt.Sprint(cfg.Port)).
		Config("historyLimit", fmt.Sprint(cfg.HistoryLimit)).
		Config("maxUploadMB", fmt.Sprint(cfg.MaxUploadBytes>>20)).
		Config("allowedOrigins", strings.Join(cfg.AllowedOrigins, ",")).
		Config("apiKeySource", keySource).
		Feature("strictParsing", cfg.StrictParsing).
		Feature("metrics", cfg.MetricsEnabled).
		Feature("originVerify", cfg.OriginVerifySecret != "").
		Log()

	fmt.Printf("\n  Image Edit API: http://localhost:%d/image-edit\n\n", cfg.Port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// newHTTPServer sets no WriteTimeout. The operations route blocks until the
// remote edit returns, however long that takes.
func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// applyFlags lets explicitly set flags override environment configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = modelFlag
	}
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = baseURLFlag
	}
	if cmd.Flags().Changed("strict") {
		cfg.StrictParsing = strictFlag
	}
}
