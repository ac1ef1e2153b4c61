// Package catalog bulk-imports provider symbol lists into the local catalog and
// maintains the ISIN -> FIGI cross-reference.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"refcache-api/internal/executor"
	"refcache-api/internal/model"
)

type caller interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Response, error)
}

type Config struct {
	Provider    string
	Lists       []string
	Concurrency int

	CrossrefProvider  string
	CrossrefPath      string
	CrossrefMaxAge    time.Duration
	CrossrefBatchSize int
}

type Loader struct {
	exec    caller
	symbols model.SymbolsModel
	figis   model.FigisModel
	cfg     Config
	now     func() time.Time
	changed func(context.Context)
}

type Option func(*Loader)

func WithClock(now func() time.Time) Option {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// OnChange registers fn to run after a load stored symbols or a reset removed some.
func OnChange(fn func(context.Context)) Option {
	return func(l *Loader) {
		l.changed = fn
	}
}

func New(exec caller, symbols model.SymbolsModel, figis model.FigisModel, cfg Config, opts ...Option) *Loader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.CrossrefBatchSize <= 0 {
		cfg.CrossrefBatchSize = 10
	}
	l := &Loader{exec: exec, symbols: symbols, figis: figis, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListReport summarises one symbol list.
type ListReport struct {
	List     string `json:"list"`
	Skipped  bool   `json:"skipped"` // fetched recently, nothing requested
	Received int    `json:"received"`
	Stored   int    `json:"stored"`
	Invalid  int    `json:"invalid"`
	Error    string `json:"error,omitempty"`
}

type LoadReport struct {
	RunID    string       `json:"runId"`
	Lists    []ListReport `json:"lists"`
	Received int          `json:"received"`
	Stored   int          `json:"stored"`
	Invalid  int          `json:"invalid"`
	Failed   int          `json:"failed"`
}

// LoadCatalog fetches every configured list and upserts its symbols. Provider
// failures are reported per list; configuration and storage errors abort the run.
func (l *Loader) LoadCatalog(ctx context.Context) (*LoadReport, error) {
	report := &LoadReport{RunID: uuid.NewString(), Lists: make([]ListReport, len(l.cfg.Lists))}
	logger := logx.WithContext(ctx).WithFields(logx.Field("run", report.RunID))
	logger.Infof("catalog: loading %d lists", len(l.cfg.Lists))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, list := range l.cfg.Lists {
		g.Go(func() error {
			rep, err := l.loadList(gctx, logger, list)
			report.Lists[i] = rep
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, rep := range report.Lists {
		report.Received += rep.Received
		report.Stored += rep.Stored
		report.Invalid += rep.Invalid
		if rep.Error != "" {
			report.Failed++
		}
	}
	logger.Infof("catalog: done received=%d stored=%d invalid=%d failed_lists=%d",
		report.Received, report.Stored, report.Invalid, report.Failed)
	if report.Stored > 0 {
		l.notifyChange(ctx)
	}
	return report, nil
}

func (l *Loader) loadList(ctx context.Context, logger logx.Logger, list string) (ListReport, error) {
	rep := ListReport{List: list}
	resp, err := l.exec.Execute(ctx, executor.Request{
		Provider: l.cfg.Provider,
		Method:   http.MethodGet,
		Path:     list,
		Expect:   executor.ShapeSequence,
	})
	if err != nil {
		if executor.IsUpstreamError(err) {
			logger.Errorf("catalog: list=%s failed: %v", list, err)
			rep.Error = err.Error()
			return rep, nil
		}
		return rep, fmt.Errorf("catalog: list %s: %w", list, err)
	}
	if resp.Skipped {
		rep.Skipped = true
		return rep, nil
	}

	records := resp.Body.Records()
	rep.Received = len(records)
	for i, raw := range records {
		var rec symbolRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			rep.Invalid++
			continue
		}
		sym, err := rec.toModel()
		if err != nil {
			logger.Debugf("catalog: list=%s record=%d skipped: %v", list, i, err)
			rep.Invalid++
			continue
		}
		if err := l.symbols.Upsert(ctx, sym); err != nil {
			return rep, fmt.Errorf("catalog: store %s: %w", sym.IexId, err)
		}
		rep.Stored++
	}
	logger.Infof("catalog: list=%s received=%d stored=%d invalid=%d", list, rep.Received, rep.Stored, rep.Invalid)
	return rep, nil
}

// DeleteSymbols removes the whole catalog.
func (l *Loader) DeleteSymbols(ctx context.Context) (int64, error) {
	n, err := l.symbols.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog: delete symbols: %w", err)
	}
	logx.WithContext(ctx).Infof("catalog: deleted %d symbols", n)
	if n > 0 {
		l.notifyChange(ctx)
	}
	return n, nil
}

func (l *Loader) notifyChange(ctx context.Context) {
	if l.changed != nil {
		l.changed(ctx)
	}
}
