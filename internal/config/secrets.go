package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// ParameterGetter is the SSM call used to resolve secrets. *ssm.Client
// satisfies it.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// NeedsSecrets reports whether any value must be read from SSM.
func (c *Config) NeedsSecrets() bool {
	return c.Email.Password == "" && c.Email.PasswordSSMParam != ""
}

// NewSSMClient loads the default AWS config for region.
func NewSSMClient(ctx context.Context, region string) (*ssm.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return ssm.NewFromConfig(cfg), nil
}

// ResolveSecrets fills the SMTP password from SSM Parameter Store when it
// is not set directly.
func (c *Config) ResolveSecrets(ctx context.Context, client ParameterGetter) error {
	if !c.NeedsSecrets() {
		return nil
	}
	param := c.Email.PasswordSSMParam
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &param,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("read %s from SSM: %w", param, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return fmt.Errorf("SSM parameter %s has no value", param)
	}
	c.Email.Password = *result.Parameter.Value
	log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msg("SMTP password loaded from SSM")
	return nil
}
