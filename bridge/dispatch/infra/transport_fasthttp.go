package infra

import (
	"context"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"http-bridge/bridge/dispatch/domain"
)

// FastHTTPTransport usa fasthttp.Client.
//
// fasthttp não aceita context: o cancelamento abandona a chamada (a goroutine
// interna termina no deadline). É o cancelamento "best-effort" do contrato.
type FastHTTPTransport struct {
	client       *fasthttp.Client
	timeout      time.Duration
	maxRedirects int
}

func NewFastHTTPTransport(timeout time.Duration, maxRedirects int) *FastHTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	return &FastHTTPTransport{
		client: &fasthttp.Client{
			Name:                "http-bridge",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
		timeout:      timeout,
		maxRedirects: maxRedirects,
	}
}

type fastResult struct {
	resp *domain.Response
	err  error
}

func (t *FastHTTPTransport) Do(ctx context.Context, r *domain.Request) (*domain.Response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.SetRequestURI(r.URL)
	req.Header.SetMethod(string(r.Method))
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}
	if r.Method == domain.MethodPost {
		req.SetBody(r.Body)
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	done := make(chan fastResult, 1)
	go func() {
		// req/resp só voltam ao pool depois que o client terminou com eles.
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		var err error
		if r.FollowRedirects {
			// sem deadline próprio: limitado por ReadTimeout/WriteTimeout do client
			err = t.client.DoRedirects(req, resp, t.maxRedirects)
		} else {
			err = t.client.DoDeadline(req, resp, deadline)
		}
		if err != nil {
			done <- fastResult{err: err}
			return
		}
		code := resp.StatusCode()
		done <- fastResult{resp: &domain.Response{
			StatusCode: code,
			Status:     strconv.Itoa(code) + " " + fasthttp.StatusMessage(code),
			Body:       append([]byte(nil), resp.Body()...),
		}}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.resp, res.err
	}
}
