package svc

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "refcache-api/internal/cache"
	"refcache-api/internal/catalog"
	"refcache-api/internal/config"
	"refcache-api/internal/executor"
	"refcache-api/internal/ledger"
	"refcache-api/internal/model"
	"refcache-api/internal/model/memmodel"
	"refcache-api/internal/resolver"
	"refcache-api/internal/search"
	"refcache-api/internal/timeseries"
)

type ServiceContext struct {
	Config config.Config

	// DBConn is nil when the service runs on the in-memory store.
	DBConn sqlx.SqlConn
	Cache  cache.Cache
	TTL    cachekeys.TTLSet

	ApiCallsModel     model.ApiCallsModel
	IsinMappingsModel model.IsinMappingsModel
	SymbolsModel      model.SymbolsModel
	ChartEntriesModel model.ChartEntriesModel
	FigisModel        model.FigisModel

	Ledger   *ledger.Ledger
	Executor *executor.Executor
	Resolver *resolver.Resolver
	Series   *timeseries.Cache
	Catalog  *catalog.Loader
	Search   *search.Service
}

func MustNewServiceContext(c config.Config) *ServiceContext {
	svc, err := NewServiceContext(c)
	logx.Must(err)
	return svc
}

// NewServiceContext wires the models, the call ledger and the domain services.
// Postgres models are used when a DSN is configured, the in-memory store otherwise.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	svc := &ServiceContext{
		Config: c,
		TTL:    cachekeys.NewTTLSet(c.TTL),
	}

	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		raw, err := conn.RawDB()
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		raw.SetMaxOpenConns(c.Postgres.MaxOpen)
		raw.SetMaxIdleConns(c.Postgres.MaxIdle)
		if c.Postgres.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := model.EnsureSchema(ctx, conn)
			cancel()
			if err != nil {
				return nil, fmt.Errorf("apply schema: %w", err)
			}
		}
		svc.DBConn = conn
		svc.ApiCallsModel = model.NewApiCallsModel(conn)
		svc.IsinMappingsModel = model.NewIsinMappingsModel(conn)
		svc.SymbolsModel = model.NewSymbolsModel(conn)
		svc.ChartEntriesModel = model.NewChartEntriesModel(conn)
		svc.FigisModel = model.NewFigisModel(conn)
	} else {
		logx.Info("postgres not configured, using in-memory store")
		store := memmodel.New()
		svc.ApiCallsModel = store.ApiCallsModel()
		svc.IsinMappingsModel = store.IsinMappingsModel()
		svc.SymbolsModel = store.SymbolsModel()
		svc.ChartEntriesModel = store.ChartEntriesModel()
		svc.FigisModel = store.FigisModel()
	}

	if c.Redis.Host != "" {
		svc.Cache = cache.New(cache.ClusterConf{{RedisConf: c.Redis, Weight: 100}},
			syncx.NewSingleFlight(), cache.NewStat(cachekeys.Namespace), model.ErrNotFound)
	}

	providers := c.ProvidersOrDefault()
	svc.Ledger = ledger.New(svc.ApiCallsModel)
	exec, err := executor.New(providers, svc.Ledger)
	if err != nil {
		return nil, err
	}
	svc.Executor = exec

	svc.Resolver = resolver.New(exec, svc.IsinMappingsModel, svc.SymbolsModel, resolver.Config{
		Provider: c.Resolver.Provider,
		Path:     c.Resolver.Path,
		MaxAge:   c.Resolver.MappingMaxAgeDuration(),
	})
	svc.Series = timeseries.New(exec, svc.SymbolsModel, svc.ChartEntriesModel, timeseries.Config{
		Provider:      c.Series.Provider,
		PathFormat:    c.Series.PathFormat,
		CoverageRatio: c.Series.CoverageRatio,
		MaxStaleness:  c.Series.MaxStalenessDuration(),
	})

	var searchOpts []search.Option
	if svc.Cache != nil {
		searchOpts = append(searchOpts, search.WithCache(svc.Cache, cachekeys.SearchTTL(svc.TTL)))
	}
	svc.Search = search.New(svc.Resolver, svc.SymbolsModel, c.Search.Limit, searchOpts...)

	svc.Catalog = catalog.New(exec, svc.SymbolsModel, svc.FigisModel, catalog.Config{
		Provider:          c.Catalog.Provider,
		Lists:             c.Catalog.Lists,
		Concurrency:       c.Catalog.Concurrency,
		CrossrefProvider:  c.Crossref.Provider,
		CrossrefPath:      c.Crossref.Path,
		CrossrefMaxAge:    c.Crossref.MappingMaxAgeDuration(),
		CrossrefBatchSize: c.Crossref.BatchSize,
	}, catalog.OnChange(svc.Search.Invalidate))
	return svc, nil
}
