package config

import (
	"refcache-api/pkg/provider"
)

// MustLoadProviders loads etc/providers.yaml from the project root and panics on error.
// Tools that only need provider endpoints use it instead of the full service config.
func MustLoadProviders() *provider.Config {
	return provider.MustLoad()
}

// ProvidersOrDefault returns the hydrated providers section, falling back to
// the project default file.
func (c *Config) ProvidersOrDefault() *provider.Config {
	if c != nil && c.Providers.Value != nil {
		return c.Providers.Value
	}
	return MustLoadProviders()
}
