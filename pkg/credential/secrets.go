package credential

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// SecretStore looks up secrets by name. A missing secret is reported as
// ok == false with a nil error; err is reserved for store failures.
type SecretStore interface {
	Get(ctx context.Context, name string) (value string, ok bool, err error)
}

// DefaultSecretEnvPrefix is the environment prefix used by EnvSecrets.
const DefaultSecretEnvPrefix = "ENRICHGPT_SECRETS_"

// EnvSecrets reads secrets from environment variables named
// Prefix + upper-cased secret name, e.g. ENRICHGPT_SECRETS_OPENAI_API_KEY.
type EnvSecrets struct {
	Prefix string
}

// Get implements SecretStore.
func (e EnvSecrets) Get(_ context.Context, name string) (string, bool, error) {
	prefix := e.Prefix
	if prefix == "" {
		prefix = DefaultSecretEnvPrefix
	}
	v, ok := os.LookupEnv(prefix + envName(name))
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

// ViperSecrets reads secrets from the "secrets" section of a viper config:
//
//	secrets:
//	  openai_api_key: sk-...
type ViperSecrets struct {
	V *viper.Viper
}

// Get implements SecretStore.
func (s ViperSecrets) Get(_ context.Context, name string) (string, bool, error) {
	v := s.V
	if v == nil {
		v = viper.GetViper()
	}
	val := v.GetString("secrets." + name)
	if val == "" {
		return "", false, nil
	}
	return val, true, nil
}

// MapSecrets is a fixed in-memory SecretStore.
type MapSecrets map[string]string

// Get implements SecretStore.
func (m MapSecrets) Get(_ context.Context, name string) (string, bool, error) {
	v, ok := m[name]
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// ChainSecrets queries stores in order and returns the first hit.
type ChainSecrets []SecretStore

// Get implements SecretStore.
func (c ChainSecrets) Get(ctx context.Context, name string) (string, bool, error) {
	for _, s := range c {
		if s == nil {
			continue
		}
		v, ok, err := s.Get(ctx, name)
		if err != nil {
			return "", false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// PluginAPIKey returns the deployment-level key configured for a plugin at
// plugins.<plugin>.api_key, or "" when none is set.
func PluginAPIKey(v *viper.Viper, plugin string) string {
	if v == nil {
		v = viper.GetViper()
	}
	return v.GetString("plugins." + plugin + ".api_key")
}
