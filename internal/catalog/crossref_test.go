package catalog

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refcache-api/internal/apperr"
	"refcache-api/internal/model"
)

const (
	isinApple = "US0378331005"
	isinMsft  = "US5949181045"
	isinNone  = "US0000000001"
)

const appleAndMsft = `[
  {"data":[
    {"figi":"BBG000B9XRY4","name":"APPLE INC","ticker":"AAPL","exchCode":"US","uniqueID":"EQ0010169500001000","marketSector":"Equity"},
    {"figi":"BBG000B9Y5X2","name":"APPLE INC","ticker":"AAPL","exchCode":"UW","uniqueID":"EQ0010169500001000"},
    {"figi":"","name":"broken","ticker":"X","uniqueID":"Y"}
  ]},
  {"data":[
    {"figi":"BBG000BPH459","name":"MICROSOFT CORP","ticker":"MSFT","exchCode":"US","uniqueID":"EQ0010174300001000"}
  ]}
]`

func TestRefreshCrossref_BatchesAndStores(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Reply("mapping", http.StatusOK, appleAndMsft)

	report, err := f.loader.RefreshCrossref(ctxT(), []string{" us0378331005", isinMsft, isinApple}, false)
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	assert.Equal(t, ItemReport{Isin: isinApple, Status: StatusUpdated, Stored: 2, Invalid: 1}, report.Items[0])
	assert.Equal(t, ItemReport{Isin: isinMsft, Status: StatusUpdated, Stored: 1}, report.Items[1])

	bodies := f.server.Bodies("mapping")
	require.Len(t, bodies, 1)
	var jobs []mappingJob
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &jobs))
	assert.Equal(t, []mappingJob{{"ID_ISIN", isinApple}, {"ID_ISIN", isinMsft}}, jobs)

	rows, err := f.store.FigisModel().FindByIsins(ctxT(), []string{isinApple})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "UW", rows[1].ExchCode.String)
}

func TestRefreshCrossref_FreshGroupsAreNotRequested(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Reply("mapping", http.StatusOK, appleAndMsft)
	_, err := f.loader.RefreshCrossref(ctxT(), []string{isinApple, isinMsft}, false)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	report, err := f.loader.RefreshCrossref(ctxT(), []string{isinApple, isinMsft}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusFresh))
	assert.Equal(t, 1, f.server.Hits("mapping"))
}

func TestRefreshCrossref_ForceBypassesStaleness(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Reply("mapping", http.StatusOK, appleAndMsft)
	_, err := f.loader.RefreshCrossref(ctxT(), []string{isinApple, isinMsft}, false)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour) // past the call max age, within the mapping max age
	report, err := f.loader.RefreshCrossref(ctxT(), []string{isinApple, isinMsft}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusUpdated))
	assert.Equal(t, 2, f.server.Hits("mapping"))
}

func TestRefreshCrossref_ForceWithinCallMaxAgeIsSkipped(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Reply("mapping", http.StatusOK, appleAndMsft)
	_, err := f.loader.RefreshCrossref(ctxT(), []string{isinApple, isinMsft}, false)
	require.NoError(t, err)

	report, err := f.loader.RefreshCrossref(ctxT(), []string{isinApple, isinMsft}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusSkipped))
	assert.Equal(t, 1, f.server.Hits("mapping"))
}

func TestRefreshCrossref_PerItemErrorsLeaveGroupUntouched(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.FigisModel().ReplaceGroup(ctxT(), isinMsft,
		[]*model.Figis{{Figi: "BBG_OLD", Name: "MICROSOFT", Ticker: "MSFT", UniqueId: "U"}},
		f.clock.Now().Add(-48*time.Hour)))
	f.server.Reply("mapping", http.StatusOK, `[
	  {"data":[]},
	  {"warning":"No identifier found."}
	]`)

	report, err := f.loader.RefreshCrossref(ctxT(), []string{isinNone, isinMsft}, false)
	require.NoError(t, err)
	assert.Equal(t, ItemReport{Isin: isinNone, Status: StatusEmpty}, report.Items[0])
	assert.Equal(t, StatusRejected, report.Items[1].Status)
	assert.Equal(t, "No identifier found.", report.Items[1].Message)

	rows, err := f.store.FigisModel().FindByIsins(ctxT(), []string{isinMsft})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "BBG_OLD", rows[0].Figi)
}

func TestRefreshCrossref_TransportFailureMarksBatch(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Reply("mapping", http.StatusTooManyRequests, `{"error":"Too many requests"}`)

	report, err := f.loader.RefreshCrossref(ctxT(), []string{isinApple, isinMsft, isinNone}, false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(StatusFailed))
	assert.Equal(t, 2, f.server.Hits("mapping"), "batch size 2 yields two jobs")
}

func TestRefreshCrossref_ShortResponse(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Reply("mapping", http.StatusOK, `[{"data":[]}]`)

	report, err := f.loader.RefreshCrossref(ctxT(), []string{isinApple, isinMsft}, false)
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, report.Items[0].Status)
	assert.Equal(t, StatusFailed, report.Items[1].Status)
}

func TestRefreshCrossref_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.loader.RefreshCrossref(ctxT(), nil, false)
	assert.ErrorIs(t, err, apperr.ErrDomain)
	_, err = f.loader.RefreshCrossref(ctxT(), []string{isinApple, "nope"}, false)
	assert.ErrorIs(t, err, apperr.ErrInvalidFormat)
	assert.Zero(t, f.server.Hits("mapping"))
}

func TestIndexByIsin(t *testing.T) {
	f := newFixture(t, nil)
	f.server.Reply("mapping", http.StatusOK, `[{"data":[]},{"data":[
	  {"figi":"BBG000BPH459","name":"MICROSOFT CORP","ticker":"MSFT","exchCode":"US","uniqueID":"EQ0010174300001000"}
	]}]`)

	report, idx, err := f.loader.IndexByIsin(ctxT(), []string{isinNone, isinMsft}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(StatusUpdated))
	require.Contains(t, idx, isinNone)
	assert.Empty(t, idx[isinNone])
	require.Len(t, idx[isinMsft], 1)
	assert.Equal(t, "BBG000BPH459", idx[isinMsft][0].Figi)
}

func TestDeleteCrossref(t *testing.T) {
	f := newFixture(t, nil)
	figis := f.store.FigisModel()
	now := f.clock.Now()
	require.NoError(t, figis.ReplaceGroup(ctxT(), isinApple, []*model.Figis{{Figi: "F1"}, {Figi: "F2"}}, now))
	require.NoError(t, figis.ReplaceGroup(ctxT(), isinMsft, []*model.Figis{{Figi: "F3"}}, now))

	n, err := f.loader.DeleteCrossrefByIsin(ctxT(), []string{"us0378331005"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = f.loader.DeleteAllCrossref(ctxT())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
