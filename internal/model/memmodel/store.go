// Package memmodel implements the model interfaces in process memory. It backs the
// service when no Postgres DSN is configured and is the store used by service tests.
package memmodel

import (
	"sync"
	"time"

	"refcache-api/internal/model"
)

type callKey struct {
	api    string
	digest string
}

// Store holds every table. Each model returned by the accessors shares it.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	calls    map[callKey]*model.ApiCalls
	mappings map[string][]*model.IsinMappings
	symbols  map[string]*model.Symbols // by iex_id
	chart    map[string]map[string]*model.ChartEntries
	figis    map[string]*model.Figis // by figi

	lockMu    sync.Mutex
	callLocks map[callKey]*rowLock

	now func() time.Time
}

func New() *Store {
	return &Store{
		calls:     make(map[callKey]*model.ApiCalls),
		mappings:  make(map[string][]*model.IsinMappings),
		symbols:   make(map[string]*model.Symbols),
		chart:     make(map[string]map[string]*model.ChartEntries),
		figis:     make(map[string]*model.Figis),
		callLocks: make(map[callKey]*rowLock),
		now:       time.Now,
	}
}

// WithClock overrides the clock used for created_at/updated_at columns.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) ApiCallsModel() model.ApiCallsModel         { return &apiCallsModel{s: s} }
func (s *Store) IsinMappingsModel() model.IsinMappingsModel { return &isinMappingsModel{s: s} }
func (s *Store) SymbolsModel() model.SymbolsModel           { return &symbolsModel{s: s} }
func (s *Store) ChartEntriesModel() model.ChartEntriesModel { return &chartEntriesModel{s: s} }
func (s *Store) FigisModel() model.FigisModel               { return &figisModel{s: s} }

// id must be called with mu held.
func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}
