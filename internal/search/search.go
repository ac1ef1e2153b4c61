// Package search answers free-text lookups over the symbol catalog, putting
// symbols an ISIN resolves to ahead of local name and ticker matches.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/apperr"
	cachekeys "refcache-api/internal/cache"
	"refcache-api/internal/model"
	"refcache-api/internal/resolver"
)

type isinResolver interface {
	Resolve(ctx context.Context, isin string) ([]*model.Symbols, error)
}

// ResultCache is the subset of go-zero's cache.Cache used for local matches.
type ResultCache interface {
	GetCtx(ctx context.Context, key string, val any) error
	SetCtx(ctx context.Context, key string, val any) error
	SetWithExpireCtx(ctx context.Context, key string, val any, expire time.Duration) error
	IsNotFound(err error) bool
}

type Service struct {
	resolver isinResolver
	symbols  model.SymbolsModel
	cache    ResultCache
	ttl      time.Duration
	limit    int
	now      func() time.Time
}

type Option func(*Service)

// WithCache caches local matches for ttl. A zero ttl disables caching.
func WithCache(c ResultCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

func New(r isinResolver, symbols model.SymbolsModel, limit int, opts ...Option) *Service {
	if limit <= 0 {
		limit = 25
	}
	s := &Service{resolver: r, symbols: symbols, limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns identifier matches followed by local matches, each symbol once.
func (s *Service) Search(ctx context.Context, term string) ([]*model.Symbols, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", apperr.ErrDomain)
	}

	var byID []*model.Symbols
	if isin := resolver.NormalizeISIN(term); resolver.ValidISIN(isin) {
		found, err := s.resolver.Resolve(ctx, isin)
		if err != nil {
			return nil, err
		}
		byID = found
	}

	local, err := s.local(ctx, term)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(byID)+len(local))
	out := make([]*model.Symbols, 0, len(byID)+len(local))
	for _, group := range [][]*model.Symbols{byID, local} {
		for _, sym := range group {
			if _, dup := seen[sym.IexId]; dup {
				continue
			}
			seen[sym.IexId] = struct{}{}
			out = append(out, sym)
		}
	}
	return out, nil
}

func (s *Service) local(ctx context.Context, term string) ([]*model.Symbols, error) {
	if s.cache == nil || s.ttl <= 0 {
		return s.query(ctx, term)
	}
	gen, ok := s.generation(ctx)
	if !ok {
		return s.query(ctx, term)
	}

	key := cachekeys.SearchKey(term, s.limit, gen)
	var cached []*model.Symbols
	err := s.cache.GetCtx(ctx, key, &cached)
	switch {
	case err == nil:
		return cached, nil
	case !s.cache.IsNotFound(err):
		logx.WithContext(ctx).Errorf("search: cache get %s: %v", key, err)
	}

	found, err := s.query(ctx, term)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, found, s.ttl); err != nil {
		logx.WithContext(ctx).Errorf("search: cache set %s: %v", key, err)
	}
	return found, nil
}

// generation returns the catalog generation cached entries are keyed under.
// ok is false when it cannot be read, and the caller then bypasses the cache.
func (s *Service) generation(ctx context.Context) (int64, bool) {
	var gen int64
	err := s.cache.GetCtx(ctx, cachekeys.SearchGenerationKey(), &gen)
	switch {
	case err == nil:
		return gen, true
	case s.cache.IsNotFound(err):
		return 0, true
	default:
		logx.WithContext(ctx).Errorf("search: read cache generation: %v", err)
		return 0, false
	}
}

// Invalidate drops every cached local match by moving to a new generation.
// It is shared through the cache, so other processes see it too.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetCtx(ctx, cachekeys.SearchGenerationKey(), s.now().UnixNano()); err != nil {
		logx.WithContext(ctx).Errorf("search: bump cache generation: %v", err)
		return
	}
	logx.WithContext(ctx).Info("search: cached matches invalidated")
}

func (s *Service) query(ctx context.Context, term string) ([]*model.Symbols, error) {
	found, err := s.symbols.Search(ctx, term, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search: query %q: %w", term, err)
	}
	return found, nil
}
