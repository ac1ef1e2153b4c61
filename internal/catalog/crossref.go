package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/apperr"
	"refcache-api/internal/executor"
	"refcache-api/internal/model"
	"refcache-api/internal/resolver"
)

type mappingJob struct {
	IDType  string `json:"idType"`
	IDValue string `json:"idValue"`
}

type mappingResult struct {
	Data    []map[string]any `json:"data"`
	Error   string           `json:"error"`
	Warning string           `json:"warning"`
}

// ItemReport is the outcome for one ISIN.
type ItemReport struct {
	Isin    string `json:"isin"`
	Status  string `json:"status"`
	Stored  int    `json:"stored"`
	Invalid int    `json:"invalid,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	StatusFresh    = "fresh"    // group younger than the max age, not requested
	StatusSkipped  = "skipped"  // identical request made recently
	StatusUpdated  = "updated"
	StatusEmpty    = "empty"    // provider knows no instrument; group cleared
	StatusRejected = "rejected" // provider error or warning; group untouched
	StatusFailed   = "failed"   // transport, parse or shape failure; group untouched
)

type CrossrefReport struct {
	RunID string       `json:"runId"`
	Items []ItemReport `json:"items"`
}

// Count returns how many items ended with status.
func (r *CrossrefReport) Count(status string) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == status {
			n++
		}
	}
	return n
}

// RefreshCrossref refreshes the FIGI groups of isins that are missing or stale,
// or all of them when force is set. Provider failures are reported per item.
func (l *Loader) RefreshCrossref(ctx context.Context, isins []string, force bool) (*CrossrefReport, error) {
	ids, err := normalizeIsins(isins)
	if err != nil {
		return nil, err
	}
	report := &CrossrefReport{RunID: uuid.NewString()}
	logger := logx.WithContext(ctx).WithFields(logx.Field("run", report.RunID))

	due := ids
	if !force {
		oldest, err := l.figis.OldestByIsin(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("crossref: read ages: %w", err)
		}
		cutoff := l.now().Add(-l.cfg.CrossrefMaxAge)
		due = make([]string, 0, len(ids))
		for _, isin := range ids {
			if at, ok := oldest[isin]; ok && !at.Before(cutoff) {
				report.Items = append(report.Items, ItemReport{Isin: isin, Status: StatusFresh})
				continue
			}
			due = append(due, isin)
		}
	}

	for start := 0; start < len(due); start += l.cfg.CrossrefBatchSize {
		end := min(start+l.cfg.CrossrefBatchSize, len(due))
		items, err := l.refreshBatch(ctx, logger, due[start:end])
		if err != nil {
			return nil, err
		}
		report.Items = append(report.Items, items...)
	}

	sort.Slice(report.Items, func(i, j int) bool { return report.Items[i].Isin < report.Items[j].Isin })
	logger.Infof("crossref: %d isins, updated=%d empty=%d rejected=%d failed=%d",
		len(ids), report.Count(StatusUpdated), report.Count(StatusEmpty),
		report.Count(StatusRejected), report.Count(StatusFailed))
	return report, nil
}

func (l *Loader) refreshBatch(ctx context.Context, logger logx.Logger, isins []string) ([]ItemReport, error) {
	jobs := make([]mappingJob, len(isins))
	for i, isin := range isins {
		jobs[i] = mappingJob{IDType: "ID_ISIN", IDValue: isin}
	}
	items := make([]ItemReport, len(isins))
	for i, isin := range isins {
		items[i].Isin = isin
	}

	resp, err := l.exec.Execute(ctx, executor.Request{
		Provider: l.cfg.CrossrefProvider,
		Method:   http.MethodPost,
		Path:     l.cfg.CrossrefPath,
		Params:   jobs,
		Expect:   executor.ShapeSequence,
	})
	if err != nil {
		if !executor.IsUpstreamError(err) {
			return nil, fmt.Errorf("crossref: %w", err)
		}
		logger.Errorf("crossref: batch of %d failed: %v", len(isins), err)
		for i := range items {
			items[i].Status = StatusFailed
			items[i].Message = err.Error()
		}
		return items, nil
	}
	if resp.Skipped {
		for i := range items {
			items[i].Status = StatusSkipped
		}
		return items, nil
	}

	records := resp.Body.Records()
	now := l.now()
	for i := range items {
		it := &items[i]
		if i >= len(records) {
			it.Status = StatusFailed
			it.Message = "no result for job"
			continue
		}
		var res mappingResult
		if err := json.Unmarshal(records[i], &res); err != nil {
			it.Status = StatusFailed
			it.Message = err.Error()
			continue
		}
		if res.Error != "" || res.Warning != "" {
			it.Status = StatusRejected
			it.Message = res.Error
			if it.Message == "" {
				it.Message = res.Warning
			}
			logger.Infof("crossref: isin=%s rejected: %s", it.Isin, it.Message)
			continue
		}

		figis := make([]*model.Figis, 0, len(res.Data))
		for _, rec := range res.Data {
			f, err := figiFromRecord(rec)
			if err != nil {
				logger.Debugf("crossref: isin=%s record skipped: %v", it.Isin, err)
				it.Invalid++
				continue
			}
			figis = append(figis, f)
		}
		if err := l.figis.ReplaceGroup(ctx, it.Isin, figis, now); err != nil {
			return nil, fmt.Errorf("crossref: store %s: %w", it.Isin, err)
		}
		it.Stored = len(figis)
		if len(figis) == 0 {
			it.Status = StatusEmpty
		} else {
			it.Status = StatusUpdated
		}
	}
	return items, nil
}

// IndexByIsin refreshes isins as RefreshCrossref does and returns the stored
// groups alongside the report. Every requested ISIN is a key, possibly with no rows.
func (l *Loader) IndexByIsin(ctx context.Context, isins []string, force bool) (*CrossrefReport, map[string][]*model.Figis, error) {
	report, err := l.RefreshCrossref(ctx, isins, force)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(report.Items))
	out := make(map[string][]*model.Figis, len(report.Items))
	for _, it := range report.Items {
		ids = append(ids, it.Isin)
		out[it.Isin] = nil
	}
	rows, err := l.figis.FindByIsins(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("crossref: read groups: %w", err)
	}
	for _, f := range rows {
		out[f.Isin] = append(out[f.Isin], f)
	}
	return report, out, nil
}

func (l *Loader) DeleteCrossrefByIsin(ctx context.Context, isins []string) (int64, error) {
	ids, err := normalizeIsins(isins)
	if err != nil {
		return 0, err
	}
	n, err := l.figis.DeleteByIsins(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("crossref: delete: %w", err)
	}
	return n, nil
}

func (l *Loader) DeleteAllCrossref(ctx context.Context) (int64, error) {
	n, err := l.figis.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("crossref: delete all: %w", err)
	}
	logx.WithContext(ctx).Infof("crossref: deleted %d rows", n)
	return n, nil
}

// normalizeIsins deduplicates and validates ids, keeping first-seen order.
func normalizeIsins(isins []string) ([]string, error) {
	if len(isins) == 0 {
		return nil, fmt.Errorf("%w: no isins given", apperr.ErrDomain)
	}
	seen := make(map[string]struct{}, len(isins))
	out := make([]string, 0, len(isins))
	for _, raw := range isins {
		isin := resolver.NormalizeISIN(raw)
		if !resolver.ValidISIN(isin) {
			return nil, fmt.Errorf("%w: isin %q", apperr.ErrInvalidFormat, raw)
		}
		if _, dup := seen[isin]; dup {
			continue
		}
		seen[isin] = struct{}{}
		out = append(out, isin)
	}
	return out, nil
}
