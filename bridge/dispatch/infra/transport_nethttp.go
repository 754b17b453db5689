package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"http-bridge/bridge/dispatch/domain"
)

// HTTPTransport é o transporte padrão, sobre net/http.
//
// Dois clientes compartilham o mesmo *http.Transport (e o pool de conexões):
// um segue redirecionamentos, o outro devolve a primeira resposta 3xx.
type HTTPTransport struct {
	follow   *http.Client
	noFollow *http.Client

	maxBody int64
}

type HTTPTransportOption func(*httpTransportConfig)

type httpTransportConfig struct {
	timeout      time.Duration
	maxRedirects int
	maxBody      int64
	rt           http.RoundTripper
}

// WithRequestTimeout limita a duração total da requisição (inclui leitura do corpo).
func WithRequestTimeout(d time.Duration) HTTPTransportOption {
	return func(c *httpTransportConfig) { c.timeout = d }
}

func WithMaxRedirects(n int) HTTPTransportOption {
	return func(c *httpTransportConfig) { c.maxRedirects = n }
}

// WithMaxResponseBody limita o corpo lido; 0 = sem limite.
func WithMaxResponseBody(n int64) HTTPTransportOption {
	return func(c *httpTransportConfig) { c.maxBody = n }
}

func WithRoundTripper(rt http.RoundTripper) HTTPTransportOption {
	return func(c *httpTransportConfig) { c.rt = rt }
}

func NewHTTPTransport(opts ...HTTPTransportOption) *HTTPTransport {
	cfg := httpTransportConfig{
		timeout:      30 * time.Second,
		maxRedirects: 10,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	rt := cfg.rt
	if rt == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConnsPerHost = 16
		rt = t
	}

	maxRedirects := cfg.maxRedirects
	return &HTTPTransport{
		follow: &http.Client{
			Transport: rt,
			Timeout:   cfg.timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		noFollow: &http.Client{
			Transport: rt,
			Timeout:   cfg.timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxBody: cfg.maxBody,
	}
}

func (t *HTTPTransport) Do(ctx context.Context, r *domain.Request) (*domain.Response, error) {
	var body io.Reader
	if r.Method == domain.MethodPost {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, string(r.Method), r.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range r.Header {
		// Host não é header em net/http
		if http.CanonicalHeaderKey(k) == "Host" {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	client := t.noFollow
	if r.FollowRedirects {
		client = t.follow
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rd io.Reader = resp.Body
	if t.maxBody > 0 {
		rd = io.LimitReader(resp.Body, t.maxBody+1)
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	if t.maxBody > 0 && int64(len(data)) > t.maxBody {
		return nil, errors.New("response body too large")
	}
	return &domain.Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       data,
	}, nil
}
