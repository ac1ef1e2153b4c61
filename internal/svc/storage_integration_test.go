//go:build integration
// +build integration

package svc_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"refcache-api/internal/config"
	"refcache-api/internal/model"
	"refcache-api/internal/svc"
	"refcache-api/pkg/confkit"
	"refcache-api/pkg/provider"
)

// newIntegrationServiceContext needs REFCACHE_TEST_DSN; REFCACHE_TEST_REDIS is optional.
func newIntegrationServiceContext(t *testing.T) *svc.ServiceContext {
	t.Helper()
	dsn := os.Getenv("REFCACHE_TEST_DSN")
	if dsn == "" {
		t.Skip("REFCACHE_TEST_DSN not set")
	}
	cfg := config.Config{
		Env:       "test",
		Postgres:  config.PostgresConf{DSN: dsn, MaxOpen: 8, MaxIdle: 2, AutoMigrate: true},
		Providers: confkit.Section[provider.Config]{Value: provider.MustLoad()},
		Resolver:  config.ResolverConf{Provider: "iex", Path: "ref-data/isin", MappingMaxAge: 86400},
		Series:    config.SeriesConf{Provider: "iex", PathFormat: "stock/%s/chart/%s", CoverageRatio: 0.6, MaxStaleness: 259200},
		Catalog:   config.CatalogConf{Provider: "iex", Concurrency: 1},
		Crossref:  config.CrossrefConf{Provider: "figi", Path: "mapping", MappingMaxAge: 86400, BatchSize: 10},
		Search:    config.SearchConf{Limit: 10},
	}
	if addr := os.Getenv("REFCACHE_TEST_REDIS"); addr != "" {
		cfg.Redis = redis.RedisConf{Host: addr, Type: redis.NodeType}
	}
	svcCtx, err := svc.NewServiceContext(cfg)
	require.NoError(t, err)
	require.NotNil(t, svcCtx.DBConn)
	return svcCtx
}

func TestPostgresConnectivity(t *testing.T) {
	svcCtx := newIntegrationServiceContext(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var one int
	require.NoError(t, svcCtx.DBConn.QueryRowCtx(ctx, &one, "SELECT 1"))
	assert.Equal(t, 1, one)
}

func TestLedger_ConcurrentCallersRunOnce(t *testing.T) {
	svcCtx := newIntegrationServiceContext(t)
	fp := fmt.Sprintf("it-%d", time.Now().UnixNano())

	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svcCtx.Ledger.Do(context.Background(), "iex", fp, time.Hour, func(context.Context) error {
				calls.Add(1)
				time.Sleep(50 * time.Millisecond)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, calls.Load())

	recent, err := svcCtx.Ledger.RecentlyCalled(context.Background(), "iex", fp, time.Hour)
	require.NoError(t, err)
	assert.True(t, recent)
}

func TestIsinMappings_ReplaceGroup(t *testing.T) {
	svcCtx := newIntegrationServiceContext(t)
	ctx := context.Background()
	isin := "XS" + fmt.Sprintf("%010d", time.Now().UnixNano()%1e10)
	at := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, svcCtx.IsinMappingsModel.ReplaceGroup(ctx, isin, []string{"IEX_A", "IEX_B"}, at))
	rows, err := svcCtx.IsinMappingsModel.FindByIsin(ctx, isin)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, svcCtx.IsinMappingsModel.ReplaceGroup(ctx, isin, nil, at.Add(time.Minute)))
	rows, err = svcCtx.IsinMappingsModel.FindByIsin(ctx, isin)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsTombstone())

	oldest, ok, err := svcCtx.IsinMappingsModel.OldestRefresh(ctx, isin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, at.Add(time.Minute), oldest, time.Second)
}

func TestIsinMappings_ReplaceGroupNeverExposesEmptyGroup(t *testing.T) {
	svcCtx := newIntegrationServiceContext(t)
	ctx := context.Background()
	mappings := svcCtx.IsinMappingsModel
	isin := "XS" + fmt.Sprintf("%010d", time.Now().UnixNano()%1e10)
	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, mappings.ReplaceGroup(ctx, isin, []string{"IEX_A"}, at))

	var (
		done    atomic.Bool
		reads   atomic.Int64
		empties atomic.Int64
		wg      sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !done.Load() {
				rows, err := mappings.FindByIsin(ctx, isin)
				if assert.NoError(t, err) && len(rows) == 0 {
					empties.Add(1)
				}
				reads.Add(1)
			}
		}()
	}

	groups := [][]string{{"IEX_B"}, {"IEX_A", "IEX_B"}, {"IEX_A"}}
	for i := 0; i < 100; i++ {
		require.NoError(t, mappings.ReplaceGroup(ctx, isin, groups[i%len(groups)], at.Add(time.Duration(i)*time.Second)))
	}
	done.Store(true)
	wg.Wait()

	assert.Positive(t, reads.Load())
	assert.Zero(t, empties.Load(), "reader saw an empty group during %d reads", reads.Load())
}

func TestSymbols_SearchEscapesWildcards(t *testing.T) {
	svcCtx := newIntegrationServiceContext(t)
	ctx := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	require.NoError(t, svcCtx.SymbolsModel.Upsert(ctx, &model.Symbols{
		IexId: "IEX_PCT_" + suffix, Symbol: "PCT" + suffix, Name: "100% Fund " + suffix,
		Type: "cs", Region: "US", Currency: "USD", Date: time.Now().UTC(),
	}))

	got, err := svcCtx.SymbolsModel.Search(ctx, "100% Fund "+suffix, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = svcCtx.SymbolsModel.Search(ctx, "1_0% Fund "+suffix, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisConnectivity(t *testing.T) {
	svcCtx := newIntegrationServiceContext(t)
	if svcCtx.Cache == nil {
		t.Skip("REFCACHE_TEST_REDIS not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := fmt.Sprintf("refcache:integration:%d", time.Now().UnixNano())
	require.NoError(t, svcCtx.Cache.SetWithExpireCtx(ctx, key, "ok", 10*time.Second))
	defer svcCtx.Cache.DelCtx(context.Background(), key)

	var value string
	require.NoError(t, svcCtx.Cache.GetCtx(ctx, key, &value))
	assert.Equal(t, "ok", value)
}
