// Package executor performs provider HTTP calls through the call ledger, so an
// identical call made within the provider's max-age window is skipped.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/time/rate"

	"refcache-api/internal/ledger"
	"refcache-api/pkg/provider"
)

const maxErrorBody = 512

// Request describes one provider call. For GET, Params become the query string
// and must be a string map, url.Values or nil. For POST, Params are the JSON body.
type Request struct {
	Provider string
	Method   string
	Path     string
	Params   any
	Expect   Shape
}

// Response is the outcome of Execute. Skipped means the call was made recently
// and nothing was sent; Body is empty in that case.
type Response struct {
	Skipped     bool
	Fingerprint string
	Body        Body
}

type endpoint struct {
	name    string
	cfg     *provider.ProviderConfig
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

// Executor routes requests to configured providers.
type Executor struct {
	ledger     *ledger.Ledger
	endpoints  map[string]*endpoint
	httpClient *http.Client
}

type Option func(*Executor)

// WithHTTPClient makes every provider share hc instead of a per-provider client.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Executor) {
		if hc != nil {
			e.httpClient = hc
		}
	}
}

func New(cfg *provider.Config, l *ledger.Ledger, opts ...Option) (*Executor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("executor: provider config is required")
	}
	if l == nil {
		return nil, fmt.Errorf("executor: ledger is required")
	}
	e := &Executor{ledger: l, endpoints: make(map[string]*endpoint, len(cfg.Providers))}
	for _, opt := range opts {
		opt(e)
	}
	for _, name := range cfg.Names() {
		pc, _ := cfg.Get(name)
		base, err := url.Parse(pc.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("executor: provider %s base url: %w", name, err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		ep := &endpoint{name: name, cfg: pc, baseURL: base, client: e.httpClient}
		if ep.client == nil {
			ep.client = &http.Client{Timeout: pc.HTTPTimeout}
		}
		if pc.RateLimit > 0 {
			ep.limiter = rate.NewLimiter(rate.Limit(pc.RateLimit), pc.RateBurst)
		}
		e.endpoints[name] = ep
	}
	return e, nil
}

// Execute performs req unless the ledger saw the same call within the provider's
// call_max_age. The ledger records the call only after a response of the expected
// shape was received.
func (e *Executor) Execute(ctx context.Context, req Request) (*Response, error) {
	ep, ok := e.endpoints[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("%w, was passed %q", ErrUnsupportedMethod, req.Method)
	}
	fp, err := Fingerprint(req.Path, req.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	var body Body
	executed, err := e.ledger.Do(ctx, ep.name, fp, ep.cfg.CallMaxAge, func(ctx context.Context) error {
		b, err := e.call(ctx, ep, method, req)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !executed {
		logx.WithContext(ctx).Infof("executor: skipped %s %s %s, called within %s fingerprint=%s",
			ep.name, method, req.Path, ep.cfg.CallMaxAge, fp)
		return &Response{Skipped: true, Fingerprint: fp}, nil
	}
	return &Response{Fingerprint: fp, Body: body}, nil
}

func (e *Executor) call(ctx context.Context, ep *endpoint, method string, req Request) (Body, error) {
	httpReq, err := e.buildRequest(ctx, ep, method, req)
	if err != nil {
		return Body{}, err
	}
	if ep.limiter != nil {
		if err := ep.limiter.Wait(ctx); err != nil {
			return Body{}, &TransportError{Provider: ep.name, Method: method, Path: req.Path, Err: err}
		}
	}

	start := time.Now()
	resp, err := ep.client.Do(httpReq)
	if err != nil {
		terr := &TransportError{Provider: ep.name, Method: method, Path: req.Path, Err: stripQuery(err)}
		logx.WithContext(ctx).Errorf("%v", terr)
		return Body{}, terr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		terr := &TransportError{Provider: ep.name, Method: method, Path: req.Path, Status: resp.StatusCode, Err: err}
		logx.WithContext(ctx).Errorf("%v", terr)
		return Body{}, terr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		terr := &TransportError{Provider: ep.name, Method: method, Path: req.Path, Status: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
		logx.WithContext(ctx).Errorf("%v", terr)
		return Body{}, terr
	}

	body, err := ParseBody(data)
	if err != nil {
		merr := &MalformedResponseError{Provider: ep.name, Path: req.Path, Err: err}
		logx.WithContext(ctx).Errorf("%v", merr)
		return Body{}, merr
	}
	if req.Expect != 0 && body.Shape() != req.Expect {
		serr := &UnexpectedShapeError{Provider: ep.name, Path: req.Path, Received: body.Shape(), Expected: req.Expect}
		logx.WithContext(ctx).Errorf("%v", serr)
		return Body{}, serr
	}
	logx.WithContext(ctx).Debugf("executor: %s %s %s status=%d elapsed=%s", ep.name, method, req.Path, resp.StatusCode, time.Since(start))
	return body, nil
}

func (e *Executor) buildRequest(ctx context.Context, ep *endpoint, method string, req Request) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: path %q: %v", ErrInvalidParams, req.Path, err)
	}
	target := ep.baseURL.ResolveReference(ref)
	token := ep.cfg.AccessToken

	var body io.Reader
	switch method {
	case http.MethodGet:
		query, err := queryValues(req.Params)
		if err != nil {
			return nil, err
		}
		if token != "" && ep.cfg.TokenParam != "" {
			query.Set(ep.cfg.TokenParam, token)
		}
		target.RawQuery = query.Encode()
	case http.MethodPost:
		payload := req.Params
		if token != "" && ep.cfg.TokenParam != "" {
			payload = withBodyToken(payload, ep.cfg.TokenParam, token)
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("executor: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" && ep.cfg.TokenHeader != "" {
		value := token
		if strings.EqualFold(ep.cfg.TokenHeader, "Authorization") {
			value = "Bearer " + token
		}
		httpReq.Header.Set(ep.cfg.TokenHeader, value)
	}
	return httpReq, nil
}

func queryValues(params any) (url.Values, error) {
	out := url.Values{}
	switch p := params.(type) {
	case nil:
	case url.Values:
		for k, vs := range p {
			for _, v := range vs {
				out.Add(k, v)
			}
		}
	case map[string]string:
		for k, v := range p {
			out.Set(k, v)
		}
	case map[string]any:
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out.Set(k, fmt.Sprint(p[k]))
		}
	default:
		return nil, fmt.Errorf("%w: GET params must be a string map, got %T", ErrInvalidParams, params)
	}
	return out, nil
}

// withBodyToken copies a map body and adds the credential. Non-map bodies are
// sent unchanged since there is no field to carry it.
func withBodyToken(params any, key, token string) any {
	switch p := params.(type) {
	case nil:
		return map[string]any{key: token}
	case map[string]any:
		cp := make(map[string]any, len(p)+1)
		for k, v := range p {
			cp[k] = v
		}
		cp[key] = token
		return cp
	case map[string]string:
		cp := make(map[string]string, len(p)+1)
		for k, v := range p {
			cp[k] = v
		}
		cp[key] = token
		return cp
	default:
		return params
	}
}

// stripQuery drops the query string from url errors so credentials carried as
// parameters never reach logs.
func stripQuery(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			uerr.URL = u.String()
		}
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
