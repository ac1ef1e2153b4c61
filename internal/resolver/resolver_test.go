package resolver

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refcache-api/internal/apperr"
	"refcache-api/internal/executor/executortest"
	"refcache-api/internal/model"
	"refcache-api/internal/model/memmodel"
)

const isinPath = "ref-data/isin"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	server   *executortest.Server
	store    *memmodel.Store
	clock    *clock
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := memmodel.New().WithClock(c.Now)
	server := executortest.NewServer(t)
	exec := executortest.NewExecutor(t, server, store.ApiCallsModel(), time.Hour, c.Now)

	ctx := context.Background()
	for _, s := range []*model.Symbols{
		{IexId: "IEX_AAPL", Symbol: "AAPL", Name: "Apple Inc.", Region: "US", Currency: "USD"},
		{IexId: "IEX_AAPL_MX", Symbol: "AAPL-MM", Name: "Apple Inc.", Region: "MX", Currency: "MXN"},
		{IexId: "IEX_MSFT", Symbol: "MSFT", Name: "Microsoft Corp.", Region: "US", Currency: "USD"},
	} {
		require.NoError(t, store.SymbolsModel().Upsert(ctx, s))
	}

	r := New(exec, store.IsinMappingsModel(), store.SymbolsModel(),
		Config{Provider: "iex", Path: isinPath, MaxAge: 24 * time.Hour}, WithClock(c.Now))
	return &fixture{server: server, store: store, clock: c, resolver: r}
}

func tickers(symbols []*model.Symbols) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, s.Symbol)
	}
	return out
}

func TestResolve_InvalidFormat(t *testing.T) {
	f := newFixture(t)
	for _, isin := range []string{"", "US037833100", "US03783310055", "U10378331005", "US037833100X", "US-378331005"} {
		_, err := f.resolver.Resolve(context.Background(), isin)
		assert.ErrorIs(t, err, apperr.ErrInvalidFormat, isin)
	}
	assert.Zero(t, f.server.Hits(isinPath))
}

func TestResolve_NormalizesInput(t *testing.T) {
	f := newFixture(t)
	f.server.Reply(isinPath, http.StatusOK, `[{"symbol":"AAPL","iexId":"IEX_AAPL"}]`)

	got, err := f.resolver.Resolve(context.Background(), "  us0378331005 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, tickers(got))
	assert.Contains(t, f.server.Bodies(isinPath)[0], `"US0378331005"`)
}

func TestResolve_TombstoneSuppressesRepeatLookups(t *testing.T) {
	f := newFixture(t)
	f.server.Reply(isinPath, http.StatusOK, `[]`)
	ctx := context.Background()

	got, err := f.resolver.Resolve(ctx, "US0000000002")
	require.NoError(t, err)
	assert.Empty(t, got)

	rows, err := f.store.IsinMappingsModel().FindByIsin(ctx, "US0000000002")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsTombstone())

	f.clock.Advance(2 * time.Hour)
	got, err = f.resolver.Resolve(ctx, "US0000000002")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, f.server.Hits(isinPath))
}

func TestResolve_JoinsCatalogAndSkipsUnknownIds(t *testing.T) {
	f := newFixture(t)
	f.server.Reply(isinPath, http.StatusOK, `[
		{"symbol":"AAPL","iexId":"IEX_AAPL"},
		{"symbol":"AAPL-MM","iexId":"IEX_AAPL_MX"},
		{"symbol":"APC-GY","iexId":"IEX_NOT_IN_CATALOG"},
		{"symbol":"BROKEN"}
	]`)

	got, err := f.resolver.Resolve(context.Background(), "US0378331005")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "AAPL-MM"}, tickers(got))

	rows, err := f.store.IsinMappingsModel().FindByIsin(context.Background(), "US0378331005")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestResolve_StaleGroupIsReplaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.server.Reply(isinPath, http.StatusOK, `[{"iexId":"IEX_AAPL"},{"iexId":"IEX_AAPL_MX"}]`)

	got, err := f.resolver.Resolve(ctx, "US0378331005")
	require.NoError(t, err)
	require.Len(t, got, 2)

	f.clock.Advance(25 * time.Hour)
	f.server.Reply(isinPath, http.StatusOK, `[{"iexId":"IEX_MSFT"}]`)

	got, err = f.resolver.Resolve(ctx, "US0378331005")
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT"}, tickers(got))
	assert.Equal(t, 2, f.server.Hits(isinPath))
}

func TestResolve_UpstreamFailureKeepsStoredGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.server.Reply(isinPath, http.StatusOK, `[{"iexId":"IEX_AAPL"}]`)

	_, err := f.resolver.Resolve(ctx, "US0378331005")
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	for _, reply := range []executortest.Reply{
		{Status: http.StatusServiceUnavailable, Body: `{"error":"maintenance"}`},
		{Status: http.StatusOK, Body: `[{"iexId":`},
		{Status: http.StatusOK, Body: `{"iexId":"IEX_MSFT"}`},
	} {
		f.server.Reply(isinPath, reply.Status, reply.Body)
		got, err := f.resolver.Resolve(ctx, "US0378331005")
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL"}, tickers(got))
	}

	rows, err := f.store.IsinMappingsModel().FindByIsin(ctx, "US0378331005")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "IEX_AAPL", rows[0].IexId.String)
}

func TestResolve_UnreadableRecordsKeepStoredGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.server.Reply(isinPath, http.StatusOK, `[{"iexId":"IEX_AAPL"}]`)

	_, err := f.resolver.Resolve(ctx, "US0378331005")
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	f.server.Reply(isinPath, http.StatusOK, `[{"symbol":"AAPL"},{"iexId":42}]`)

	got, err := f.resolver.Resolve(ctx, "US0378331005")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, tickers(got))
	assert.Equal(t, 2, f.server.Hits(isinPath))

	rows, err := f.store.IsinMappingsModel().FindByIsin(ctx, "US0378331005")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsTombstone())
	assert.Equal(t, "IEX_AAPL", rows[0].IexId.String)
}

func TestValidISIN(t *testing.T) {
	assert.True(t, ValidISIN("US0378331005"))
	assert.True(t, ValidISIN("GB00B03MLX29"))
	assert.False(t, ValidISIN("us0378331005"))
	assert.Equal(t, "US0378331005", NormalizeISIN("\tus0378331005\n"))
}
