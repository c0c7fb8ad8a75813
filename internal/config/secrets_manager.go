package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/sentryops/account-security/internal/util/logger"
)

// SecretsLoader fetches named secret values.
type SecretsLoader interface {
	GetSecret(name string) (string, error)
}

// SecretsManagerClient is the minimal AWS Secrets Manager surface used here.
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsLoader loads secrets from AWS Secrets Manager.
type AWSSecretsLoader struct {
	client SecretsManagerClient
}

// NewAWSSecretsLoader creates a loader with the default AWS config chain.
func NewAWSSecretsLoader(ctx context.Context) (*AWSSecretsLoader, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &AWSSecretsLoader{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// GetSecret retrieves a secret string from AWS Secrets Manager.
func (l *AWSSecretsLoader) GetSecret(name string) (string, error) {
	out, err := l.client.GetSecretValue(context.TODO(), &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		logger.Errorf("Failed to get secret %s: %v", name, err)
		return "", fmt.Errorf("get secret: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}
	logger.Infof("Retrieved secret: %s", name)
	return *out.SecretString, nil
}
