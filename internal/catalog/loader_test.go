package catalog

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refcache-api/internal/executor"
	"refcache-api/internal/model"
)

const usSymbols = `[
  {"symbol":"AAPL","exchange":"NAS","name":"Apple Inc.","date":"2024-04-30","type":"cs","iexId":"IEX_4D48","region":"US","currency":"USD","isEnabled":true},
  {"symbol":"msft","exchange":"NAS","name":"Microsoft Corp.","date":"2024-04-30","type":"cs","iexId":"IEX_5038","region":"us","currency":"usd"},
  {"symbol":"BAD","name":"No id","date":"2024-04-30","type":"cs","region":"US","currency":"USD"},
  {"symbol":"BADDATE","name":"Bad date","date":"30/04/2024","type":"cs","iexId":"IEX_X","region":"US","currency":"USD"},
  "not an object"
]`

const mxSymbols = `[
  {"symbol":"AAPL-MM","exchange":"","name":"Apple Inc.","date":"2024-04-30","type":"cs","iexId":"IEX_4D48_MX","region":"MX","currency":"MXN"}
]`

func TestLoadCatalog_StoresValidRecords(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Reply("ref-data/symbols", http.StatusOK, usSymbols)
	f.server.Reply("ref-data/region/mx/symbols", http.StatusOK, mxSymbols)

	report, err := f.loader.LoadCatalog(ctxT())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Lists, 2)
	assert.Equal(t, ListReport{List: "ref-data/symbols", Received: 5, Stored: 2, Invalid: 3}, report.Lists[0])
	assert.Equal(t, ListReport{List: "ref-data/region/mx/symbols", Received: 1, Stored: 1}, report.Lists[1])
	assert.Equal(t, 3, report.Stored)
	assert.Equal(t, 3, report.Invalid)
	assert.Zero(t, report.Failed)

	msft, err := f.store.SymbolsModel().FindOneByIexId(ctxT(), "IEX_5038")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", msft.Symbol)
	assert.Equal(t, "US", msft.Region)
	assert.Equal(t, "USD", msft.Currency)
	assert.Equal(t, "NAS", msft.Exchange.String)
	assert.Equal(t, "2024-04-30", msft.Date.Format("2006-01-02"))

	mx, err := f.store.SymbolsModel().FindOneByIexId(ctxT(), "IEX_4D48_MX")
	require.NoError(t, err)
	assert.False(t, mx.Exchange.Valid)
}

func TestLoadCatalog_SecondRunWithinMaxAgeIsSkipped(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Lists = c.Lists[:1] })
	f.server.Reply("ref-data/symbols", http.StatusOK, usSymbols)

	_, err := f.loader.LoadCatalog(ctxT())
	require.NoError(t, err)
	report, err := f.loader.LoadCatalog(ctxT())
	require.NoError(t, err)
	assert.True(t, report.Lists[0].Skipped)
	assert.Equal(t, 1, f.server.Hits("ref-data/symbols"))
}

func TestLoadCatalog_UpstreamFailureIsPerList(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Reply("ref-data/symbols", http.StatusOK, usSymbols)
	f.server.Reply("ref-data/region/mx/symbols", http.StatusBadGateway, `{"error":"down"}`)

	report, err := f.loader.LoadCatalog(ctxT())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Stored)
	assert.NotEmpty(t, report.Lists[1].Error)
}

func TestLoadCatalog_UnexpectedShapeIsPerList(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Lists = c.Lists[:1] })
	f.server.Reply("ref-data/symbols", http.StatusOK, `{"symbol":"AAPL"}`)

	report, err := f.loader.LoadCatalog(ctxT())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Lists[0].Error, "sequence")
}

func TestLoadCatalog_ConfigErrorPropagates(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Provider = "nope" })

	_, err := f.loader.LoadCatalog(ctxT())
	require.ErrorIs(t, err, executor.ErrUnknownProvider)
}

func TestDeleteSymbols(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.SymbolsModel().Upsert(ctxT(), &model.Symbols{IexId: "IEX_1", Symbol: "A"}))
	require.NoError(t, f.store.SymbolsModel().Upsert(ctxT(), &model.Symbols{IexId: "IEX_2", Symbol: "B"}))

	n, err := f.loader.DeleteSymbols(ctxT())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	_, err = f.store.SymbolsModel().FindOneByIexId(ctxT(), "IEX_1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestOnChange_FiresWhenCatalogChanges(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Lists = c.Lists[:1] })
	var changes int
	OnChange(func(context.Context) { changes++ })(f.loader)

	f.server.Reply("ref-data/symbols", http.StatusOK, usSymbols)
	_, err := f.loader.LoadCatalog(ctxT())
	require.NoError(t, err)
	assert.Equal(t, 1, changes)

	// Skipped run stores nothing.
	_, err = f.loader.LoadCatalog(ctxT())
	require.NoError(t, err)
	assert.Equal(t, 1, changes)

	_, err = f.loader.DeleteSymbols(ctxT())
	require.NoError(t, err)
	assert.Equal(t, 2, changes)

	_, err = f.loader.DeleteSymbols(ctxT())
	require.NoError(t, err)
	assert.Equal(t, 2, changes, "empty catalog")
}
