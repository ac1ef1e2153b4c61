package provider

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"refcache-api/pkg/confkit"
)

// Config describes the upstream reference-data providers the executor may call.
type Config struct {
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents a single HTTP provider.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`

	// AccessToken is merged into outbound requests after fingerprinting,
	// either as a parameter (TokenParam) or a header (TokenHeader).
	AccessToken string `yaml:"access_token"`
	TokenParam  string `yaml:"token_param"`
	TokenHeader string `yaml:"token_header"`

	CallMaxAgeRaw  string        `yaml:"call_max_age"`
	CallMaxAge     time.Duration `yaml:"-"`
	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`

	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

const defaultHTTPTimeout = 15 * time.Second

// LoadConfig reads provider configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open provider config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads etc/providers.yaml from the project root and panics on error.
func MustLoad() *Config {
	cfg, err := LoadConfig(confkit.MustProjectPath("etc/providers.yaml"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read provider config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal provider config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, p := range c.Providers {
		if p == nil {
			p = &ProviderConfig{}
			c.Providers[name] = p
		}
		p.expandEnv()
		if err := p.parseDurations(name); err != nil {
			return err
		}
		if p.HTTPTimeout == 0 {
			p.HTTPTimeout = defaultHTTPTimeout
		}
		if p.RateLimit > 0 && p.RateBurst <= 0 {
			p.RateBurst = 1
		}
	}
	return nil
}

func (p *ProviderConfig) expandEnv() {
	p.BaseURL = strings.TrimSpace(os.ExpandEnv(p.BaseURL))
	p.AccessToken = strings.TrimSpace(os.ExpandEnv(p.AccessToken))
	p.TokenParam = strings.TrimSpace(os.ExpandEnv(p.TokenParam))
	p.TokenHeader = strings.TrimSpace(os.ExpandEnv(p.TokenHeader))
	p.CallMaxAgeRaw = strings.TrimSpace(os.ExpandEnv(p.CallMaxAgeRaw))
	p.HTTPTimeoutRaw = strings.TrimSpace(os.ExpandEnv(p.HTTPTimeoutRaw))
}

func (p *ProviderConfig) parseDurations(name string) error {
	if p.CallMaxAgeRaw != "" {
		d, err := time.ParseDuration(p.CallMaxAgeRaw)
		if err != nil {
			return fmt.Errorf("provider %s: invalid call_max_age %q: %w", name, p.CallMaxAgeRaw, err)
		}
		if d < 0 {
			return fmt.Errorf("provider %s: call_max_age must not be negative, got %s", name, d)
		}
		p.CallMaxAge = d
	}
	if p.HTTPTimeoutRaw != "" {
		d, err := time.ParseDuration(p.HTTPTimeoutRaw)
		if err != nil {
			return fmt.Errorf("provider %s: invalid http_timeout %q: %w", name, p.HTTPTimeoutRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("provider %s: http_timeout must be positive, got %s", name, d)
		}
		p.HTTPTimeout = d
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("provider config: providers cannot be empty")
	}
	for name, p := range c.Providers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("provider config: provider name cannot be empty")
		}
		if err := p.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProviderConfig) validate(name string) error {
	if p == nil {
		return fmt.Errorf("provider config: provider %s is nil", name)
	}
	if p.BaseURL == "" {
		return fmt.Errorf("provider config: provider %s must specify base_url", name)
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("provider config: provider %s has invalid base_url %q", name, p.BaseURL)
	}
	if p.RateLimit < 0 {
		return fmt.Errorf("provider config: provider %s rate_limit must not be negative", name)
	}
	return nil
}

// Get returns the named provider.
func (c *Config) Get(name string) (*ProviderConfig, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.Providers[name]
	return p, ok && p != nil
}

// Names returns provider names in sorted order.
func (c *Config) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary renders the provider without its credential.
func (p *ProviderConfig) Summary() string {
	auth := "none"
	switch {
	case p.AccessToken != "" && p.TokenHeader != "":
		auth = "header " + p.TokenHeader
	case p.AccessToken != "" && p.TokenParam != "":
		auth = "param " + p.TokenParam
	case p.AccessToken != "":
		auth = "token (unused)"
	}
	return fmt.Sprintf("%s auth=%s call_max_age=%s http_timeout=%s rate=%g/s",
		p.BaseURL, auth, p.CallMaxAge, p.HTTPTimeout, p.RateLimit)
}
