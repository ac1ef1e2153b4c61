package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/config"
	"refcache-api/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
// Credentials are never included.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Postgres: %s", storeLine(cfg)),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		sectionLine("Providers config", cfg.Providers),
	}
	if path := cfg.MainPath(); path != "" {
		lines = append([]string{fmt.Sprintf("Config file: %s", path)}, lines...)
	}
	if providers := cfg.Providers.Value; providers != nil {
		for _, name := range providers.Names() {
			p, _ := providers.Get(name)
			lines = append(lines, fmt.Sprintf("Provider %s: %s", name, p.Summary()))
		}
	}
	lines = append(lines,
		fmt.Sprintf("Resolver: provider=%s path=%s mapping_max_age=%ds",
			cfg.Resolver.Provider, cfg.Resolver.Path, cfg.Resolver.MappingMaxAge),
		fmt.Sprintf("Series: provider=%s coverage=%.2f max_staleness=%ds",
			cfg.Series.Provider, cfg.Series.CoverageRatio, cfg.Series.MaxStaleness),
		fmt.Sprintf("Catalog: provider=%s lists=%d concurrency=%d",
			cfg.Catalog.Provider, len(cfg.Catalog.Lists), cfg.Catalog.Concurrency),
		fmt.Sprintf("Crossref: provider=%s batch=%d watchlist=%d",
			cfg.Crossref.Provider, cfg.Crossref.BatchSize, len(cfg.Crossref.Isins)),
	)
	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func storeLine(cfg *config.Config) string {
	if cfg.Postgres.DSN == "" {
		return "not configured (in-memory store)"
	}
	if cfg.Postgres.AutoMigrate {
		return "configured, auto-migrate"
	}
	return "configured"
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
