// Package main runs the image editor HTTP API behind API Gateway.
//
// Only the stateless routes are mounted. A Lambda instance handles one
// request at a time and concurrent requests land on other instances, so an
// in-memory session would not be visible to the next call. The session API
// is served by image-edit-web. The API key comes from the environment or
// from SSM Parameter Store (SSM_API_KEY_PARAM).
//
// Endpoints:
//
//	GET  /api/health                 health check
//	GET  /image-edit                 capability descriptor
//	POST /image-edit                 stateless edit
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-image-editor/internal/chat"
	"github.com/fpang/ai-image-editor/internal/config"
	"github.com/fpang/ai-image-editor/internal/httpapi"
	"github.com/fpang/ai-image-editor/internal/lambdaboot"
	"github.com/fpang/ai-image-editor/internal/logging"
	"github.com/fpang/ai-image-editor/internal/metrics"
)

// Build-time version, overridden with -ldflags "-X main.version=...".
var version = "dev"

var server *httpapi.Server

func init() {
	initStart := time.Now()
	if os.Getenv("IMAGE_EDIT_LOG_FORMAT") == "" {
		os.Setenv("IMAGE_EDIT_LOG_FORMAT", "json")
	}
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	metrics.SetEnabled(cfg.MetricsEnabled)

	keySource := "env"
	if cfg.APIKey == "" {
		clients := lambdaboot.InitAWS()
		cfg.APIKey, err = lambdaboot.LoadAPIKey(context.Background(), clients.SSM, cfg.APIKey, cfg.SSMParam)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load API key")
		}
		keySource = "ssm"
	}
	if cfg.OriginVerifySecret == "" {
		log.Warn().Msg("ORIGIN_VERIFY_SECRET not set, origin verification disabled")
	}

	editor, err := chat.NewEditor(context.Background(), *cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create remote editor")
	}
	server = httpapi.BuildStateless(editor, cfg, version)

	lambdaboot.StartupLog("image-edit-lambda", initStart).
		Version(version).
		Config("provider", cfg.Provider).
		Config("model", cfg.Model).
		Config("apiKeySource", keySource).
		Feature("strictParsing", cfg.StrictParsing).
		Feature("metrics", cfg.MetricsEnabled).
		Feature("originVerify", cfg.OriginVerifySecret != "").
		Log()
}

func main() {
	adapter := httpadapter.NewV2(server.Handler())
	lambda.Start(adapter.ProxyWithContext)
}
