// Package executortest provides a scripted provider server and an executor
// wired to it for tests of the services built on the executor.
package executortest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"refcache-api/internal/executor"
	"refcache-api/internal/ledger"
	"refcache-api/internal/model"
	"refcache-api/pkg/provider"
)

// Reply is a canned response.
type Reply struct {
	Status int
	Body   string
}

// Server answers by request path (without the leading slash). Unknown paths get 404.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]Reply
	bodies map[string][]string
	hits   map[string]*atomic.Int32
}

func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{routes: map[string]Reply{}, bodies: map[string][]string{}, hits: map[string]*atomic.Int32{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Reply sets the response for path.
func (s *Server) Reply(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = Reply{Status: status, Body: body}
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.hits[path]; ok {
		return int(c.Load())
	}
	return 0
}

// Bodies returns the request bodies received on path, in arrival order.
func (s *Server) Bodies(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies[path]...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	c, ok := s.hits[path]
	if !ok {
		c = &atomic.Int32{}
		s.hits[path] = c
	}
	c.Add(1)
	s.bodies[path] = append(s.bodies[path], string(body))
	reply, ok := s.routes[path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	_, _ = io.WriteString(w, reply.Body)
}

// ProviderConfig points the "iex" and "figi" providers at the server, deduplicating
// calls made within callMaxAge.
func ProviderConfig(t *testing.T, s *Server, callMaxAge time.Duration) *provider.Config {
	t.Helper()
	doc := fmt.Sprintf(`
providers:
  iex:
    base_url: %[1]s
    access_token: pk_test
    token_param: token
    call_max_age: %[2]s
  figi:
    base_url: %[1]s
    call_max_age: %[2]s
`, s.URL, callMaxAge)
	cfg, err := provider.LoadConfigFromReader(strings.NewReader(doc))
	require.NoError(t, err)
	return cfg
}

// NewExecutor builds an executor over ProviderConfig whose ledger uses calls and now.
func NewExecutor(t *testing.T, s *Server, calls model.ApiCallsModel, callMaxAge time.Duration, now func() time.Time) *executor.Executor {
	t.Helper()
	var opts []ledger.Option
	if now != nil {
		opts = append(opts, ledger.WithClock(now))
	}
	exec, err := executor.New(ProviderConfig(t, s, callMaxAge), ledger.New(calls, opts...))
	require.NoError(t, err)
	return exec
}
