// Package lambdaboot provides the Lambda cold-start bootstrap: AWS config,
// the API key from SSM Parameter Store, and startup logging.
package lambdaboot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-image-editor/internal/logging"
)

// DefaultAPIKeyParam is used when SSM_API_KEY_PARAM is unset.
const DefaultAPIKeyParam = "/ai-image-editor/prod/api-key"

// AWSClients holds the AWS SDK clients used by the Lambda.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// ParameterGetter is the subset of the SSM client used for secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// LoadAPIKey returns existing when it is already set (from the environment),
// otherwise it reads the decrypted SecureString parameter.
func LoadAPIKey(ctx context.Context, client ParameterGetter, existing, paramName string) (string, error) {
	if existing != "" {
		return existing, nil
	}
	if paramName == "" {
		paramName = DefaultAPIKeyParam
	}

	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read API key from SSM parameter %s: %w", paramName, err)
	}
	if result.Parameter == nil || strings.TrimSpace(aws.ToString(result.Parameter.Value)) == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", paramName)
	}

	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(start)).Msg("API key loaded from SSM")
	return strings.TrimSpace(aws.ToString(result.Parameter.Value)), nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
