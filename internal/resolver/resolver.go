// Package resolver maps ISINs to catalog symbols, refreshing the cached mapping
// from the provider when it is missing or older than the configured max age.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/apperr"
	"refcache-api/internal/executor"
	"refcache-api/internal/model"
)

var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// NormalizeISIN trims and upper-cases an ISIN candidate.
func NormalizeISIN(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidISIN reports whether s, already normalized, has the ISIN shape.
// The check digit is not verified.
func ValidISIN(s string) bool {
	return isinPattern.MatchString(s)
}

type caller interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Response, error)
}

type Config struct {
	Provider string
	Path     string
	MaxAge   time.Duration
}

type Resolver struct {
	exec     caller
	mappings model.IsinMappingsModel
	symbols  model.SymbolsModel
	cfg      Config
	now      func() time.Time
}

type Option func(*Resolver)

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func New(exec caller, mappings model.IsinMappingsModel, symbols model.SymbolsModel, cfg Config, opts ...Option) *Resolver {
	r := &Resolver{exec: exec, mappings: mappings, symbols: symbols, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// isinRecord is the only field read from a lookup result.
type isinRecord struct {
	IexID string `json:"iexId"`
}

// Resolve returns the catalog symbols an ISIN maps to, possibly none.
// Provider failures degrade to the previously stored mapping.
func (r *Resolver) Resolve(ctx context.Context, isin string) ([]*model.Symbols, error) {
	norm := NormalizeISIN(isin)
	if !ValidISIN(norm) {
		return nil, fmt.Errorf("%w: isin %q", apperr.ErrInvalidFormat, isin)
	}

	stale, err := r.stale(ctx, norm)
	if err != nil {
		return nil, err
	}
	if stale {
		if err := r.refresh(ctx, norm); err != nil {
			return nil, err
		}
	}

	symbols, err := r.symbols.FindByIsin(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("resolver: read symbols for %s: %w", norm, err)
	}
	return symbols, nil
}

func (r *Resolver) stale(ctx context.Context, isin string) (bool, error) {
	oldest, ok, err := r.mappings.OldestRefresh(ctx, isin)
	if err != nil {
		return false, fmt.Errorf("resolver: read mapping age for %s: %w", isin, err)
	}
	if !ok {
		return true, nil
	}
	return oldest.Before(r.now().Add(-r.cfg.MaxAge)), nil
}

func (r *Resolver) refresh(ctx context.Context, isin string) error {
	resp, err := r.exec.Execute(ctx, executor.Request{
		Provider: r.cfg.Provider,
		Method:   http.MethodPost,
		Path:     r.cfg.Path,
		Params:   map[string]any{"isin": []string{isin}},
		Expect:   executor.ShapeSequence,
	})
	if err != nil {
		if executor.IsUpstreamError(err) {
			logx.WithContext(ctx).Errorf("resolver: refresh isin=%s failed, serving stored mapping: %v", isin, err)
			return nil
		}
		return fmt.Errorf("resolver: refresh %s: %w", isin, err)
	}
	if resp.Skipped {
		return nil
	}

	ids := make([]string, 0, len(resp.Body.Records()))
	for i, raw := range resp.Body.Records() {
		var rec isinRecord
		if err := json.Unmarshal(raw, &rec); err != nil || strings.TrimSpace(rec.IexID) == "" {
			logx.WithContext(ctx).Infof("resolver: isin=%s skipping record %d without iexId", isin, i)
			continue
		}
		ids = append(ids, rec.IexID)
	}
	if len(ids) == 0 && len(resp.Body.Records()) > 0 {
		logx.WithContext(ctx).Errorf("resolver: isin=%s reply has %d records but none carry an iexId, keeping stored group",
			isin, len(resp.Body.Records()))
		return nil
	}

	if err := r.mappings.ReplaceGroup(ctx, isin, ids, r.now()); err != nil {
		return fmt.Errorf("resolver: store mapping for %s: %w", isin, err)
	}
	if len(ids) == 0 {
		logx.WithContext(ctx).Infof("resolver: isin=%s has no provider match, stored tombstone", isin)
	}
	return nil
}
