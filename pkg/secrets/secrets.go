// Package secrets fills the process environment from a .env file and from a
// JSON secret in AWS Secrets Manager, before the configuration is read.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const DefaultVersionStage = "AWSCURRENT"

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) (bool, error) {
	err := godotenv.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("loading env file %s: %w", path, err)
	}

	return true, nil
}

type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type Source struct {
	SecretID     string
	VersionStage string
	// Overwrite replaces variables that already have a value
	Overwrite bool
}

type Loader struct {
	client SecretsManagerAPI
	log    zerolog.Logger
}

// Apply reads the secret as a flat JSON object and exports each member as an
// environment variable, returning how many were set.
func (l *Loader) Apply(ctx context.Context, src Source) (int, error) {
	versionStage := src.VersionStage
	if versionStage == "" {
		versionStage = DefaultVersionStage
	}

	out, err := l.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(src.SecretID),
		VersionStage: aws.String(versionStage),
	})
	if err != nil {
		return 0, fmt.Errorf("fetching secret %s: %w", src.SecretID, err)
	}

	var payload []byte

	switch {
	case out.SecretString != nil:
		payload = []byte(*out.SecretString)
	case len(out.SecretBinary) > 0:
		payload = out.SecretBinary
	default:
		return 0, fmt.Errorf("secret %s has no payload", src.SecretID)
	}

	var kv map[string]any

	err = json.Unmarshal(payload, &kv)
	if err != nil {
		return 0, fmt.Errorf("parsing secret %s as JSON: %w", src.SecretID, err)
	}

	applied := 0

	for key, val := range kv {
		if !src.Overwrite && os.Getenv(key) != "" {
			continue
		}

		err := os.Setenv(key, fmt.Sprint(val))
		if err != nil {
			return applied, fmt.Errorf("setting env %s from secret: %w", key, err)
		}

		applied++
	}

	l.log.Info().Str("secret_id", src.SecretID).Int("applied", applied).Bool("overwrite", src.Overwrite).Msg("loaded environment from secret")

	return applied, nil
}

func NewLoader(client SecretsManagerAPI, log zerolog.Logger) *Loader {
	return &Loader{
		client: client,
		log:    log,
	}
}

// NewSecretsManagerClient uses the default AWS credential chain.
func NewSecretsManagerClient(ctx context.Context, region string) (*secretsmanager.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return secretsmanager.NewFromConfig(cfg), nil
}
