// Package timeseries serves daily chart points from local storage, backfilling
// from the provider when coverage of the requested period is thin or stale.
package timeseries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/apperr"
	"refcache-api/internal/executor"
	"refcache-api/internal/model"
)

type caller interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Response, error)
}

type Config struct {
	Provider string
	// PathFormat receives the escaped symbol and the period.
	PathFormat    string
	CoverageRatio float64
	MaxStaleness  time.Duration
}

// Series is the answer for one symbol and period.
type Series struct {
	Symbol *model.Symbols
	Period Period
	Points []*model.ChartEntries
}

type Cache struct {
	exec    caller
	symbols model.SymbolsModel
	entries model.ChartEntriesModel
	cfg     Config
	now     func() time.Time
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(exec caller, symbols model.SymbolsModel, entries model.ChartEntriesModel, cfg Config, opts ...Option) *Cache {
	c := &Cache{exec: exec, symbols: symbols, entries: entries, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Series returns the stored points of symbol within period, ascending by date.
// A backfill is attempted first when fewer than the expected number of points
// are stored or the newest one is older than MaxStaleness.
func (c *Cache) Series(ctx context.Context, symbol, period string) (*Series, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", apperr.ErrDomain)
	}
	sym, err := c.symbols.FindOneBySymbol(ctx, symbol)
	if errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown symbol %q", apperr.ErrDomain, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("timeseries: find symbol %s: %w", symbol, err)
	}

	now := c.now()
	start, _ := Window(p, now)
	points, err := c.entries.FindRange(ctx, symbol, start)
	if err != nil {
		return nil, fmt.Errorf("timeseries: read %s: %w", symbol, err)
	}

	if c.needsBackfill(points, p, now) {
		if err := c.backfill(ctx, symbol, p); err != nil {
			return nil, err
		}
		if points, err = c.entries.FindRange(ctx, symbol, start); err != nil {
			return nil, fmt.Errorf("timeseries: read %s: %w", symbol, err)
		}
	}
	return &Series{Symbol: sym, Period: p, Points: points}, nil
}

func (c *Cache) needsBackfill(points []*model.ChartEntries, p Period, now time.Time) bool {
	if len(points) < ExpectedPoints(p, now, c.cfg.CoverageRatio) {
		return true
	}
	if len(points) == 0 {
		return true
	}
	latest := points[len(points)-1].Date
	return latest.Before(truncateDay(now).Add(-c.cfg.MaxStaleness))
}

// chartRecord maps the provider's chart fields; anything else is ignored.
type chartRecord struct {
	Date           string           `json:"date"`
	Close          *decimal.Decimal `json:"close"`
	Volume         *decimal.Decimal `json:"volume"`
	Change         *decimal.Decimal `json:"change"`
	ChangePercent  *decimal.Decimal `json:"changePercent"`
	ChangeOverTime *decimal.Decimal `json:"changeOverTime"`
}

func (r chartRecord) entry(symbol string) (*model.ChartEntries, error) {
	day, err := time.Parse(time.DateOnly, r.Date)
	if err != nil {
		return nil, fmt.Errorf("date %q: %w", r.Date, err)
	}
	if r.Close == nil || r.Volume == nil || r.Change == nil || r.ChangePercent == nil || r.ChangeOverTime == nil {
		return nil, errors.New("missing numeric field")
	}
	return &model.ChartEntries{
		Symbol:         symbol,
		Date:           day,
		Close:          *r.Close,
		Volume:         *r.Volume,
		Change:         *r.Change,
		ChangePercent:  *r.ChangePercent,
		ChangeOverTime: *r.ChangeOverTime,
	}, nil
}

func (c *Cache) backfill(ctx context.Context, symbol string, p Period) error {
	resp, err := c.exec.Execute(ctx, executor.Request{
		Provider: c.cfg.Provider,
		Method:   http.MethodGet,
		Path:     fmt.Sprintf(c.cfg.PathFormat, url.PathEscape(symbol), p),
		Expect:   executor.ShapeSequence,
	})
	if err != nil {
		if executor.IsUpstreamError(err) {
			logx.WithContext(ctx).Errorf("timeseries: backfill symbol=%s period=%s failed, serving stored points: %v", symbol, p, err)
			return nil
		}
		return fmt.Errorf("timeseries: backfill %s: %w", symbol, err)
	}
	if resp.Skipped {
		return nil
	}

	entries := make([]*model.ChartEntries, 0, len(resp.Body.Records()))
	skipped := 0
	for _, raw := range resp.Body.Records() {
		var rec chartRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			continue
		}
		e, err := rec.entry(symbol)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}

	inserted, err := c.entries.InsertIgnore(ctx, entries)
	if err != nil {
		return fmt.Errorf("timeseries: store %s: %w", symbol, err)
	}
	logx.WithContext(ctx).Infof("timeseries: backfill symbol=%s period=%s received=%d inserted=%d skipped=%d",
		symbol, p, len(resp.Body.Records()), inserted, skipped)
	return nil
}
