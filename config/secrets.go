package config

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterGetter is the subset of the SSM client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStore reads values from AWS Systems Manager Parameter Store.
// The SSM client is created lazily so dev runs never touch AWS.
type ParameterStore struct {
	client ParameterGetter
}

func NewParameterStore() *ParameterStore {
	return &ParameterStore{}
}

// NewParameterStoreWithClient is used by tests and callers that already own a client.
func NewParameterStoreWithClient(client ParameterGetter) *ParameterStore {
	return &ParameterStore{client: client}
}

// Lookup returns the parameter value or an error when it cannot be read.
func (p *ParameterStore) Lookup(ctx context.Context, name string, decrypt bool) (string, error) {
	if p.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return "", fmt.Errorf("load aws config: %w", err)
		}
		p.client = ssm.NewFromConfig(cfg)
	}

	result, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	return *result.Parameter.Value, nil
}

// Value is Lookup with errors collapsed to an empty string.
func (p *ParameterStore) Value(ctx context.Context, name string, decrypt bool) string {
	v, err := p.Lookup(ctx, name, decrypt)
	if err != nil {
		return ""
	}
	return v
}

// ResolveLeadSecrets replaces inline lead credentials with SSM values in prod.
// Leads without parameter names keep their inline credentials.
func ResolveLeadSecrets(ctx context.Context, cfg *Config, store *ParameterStore) error {
	if cfg.Log.Environment != "prod" {
		return nil
	}
	for i := range cfg.Leads {
		lead := &cfg.Leads[i]
		if lead.APIKeyParam != "" {
			v, err := store.Lookup(ctx, lead.APIKeyParam, true)
			if err != nil {
				return fmt.Errorf("lead %s api key: %w", lead.ID, err)
			}
			lead.APIKey = v
		}
		if lead.APISecretParam != "" {
			v, err := store.Lookup(ctx, lead.APISecretParam, true)
			if err != nil {
				return fmt.Errorf("lead %s api secret: %w", lead.ID, err)
			}
			lead.APISecret = v
		}
	}
	return nil
}
