package infra

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"http-bridge/bridge/dispatch/domain"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Echo", r.Header.Get("X-Token"))
		_, _ = io.WriteString(w, "ok")
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Content-Type", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, r.Method+":"+r.Header.Get("Content-Type")+":"+string(b))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func transports() map[string]domain.Transport {
	return map[string]domain.Transport{
		"nethttp":  NewHTTPTransport(WithRequestTimeout(5 * time.Second)),
		"fasthttp": NewFastHTTPTransport(5*time.Second, 5),
	}
}

func TestTransports_GetWithHeaders(t *testing.T) {
	srv := newUpstream(t)
	for name, tr := range transports() {
		resp, err := tr.Do(context.Background(), &domain.Request{
			URL:    srv.URL + "/ok",
			Method: domain.MethodGet,
			Header: map[string]string{"X-Token": "abc"},
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if resp.StatusCode != http.StatusOK || string(resp.Body) != "ok" {
			t.Fatalf("%s: expected 200 ok, got %d %q", name, resp.StatusCode, resp.Body)
		}
	}
}

func TestTransports_PostBodyAndContentType(t *testing.T) {
	srv := newUpstream(t)
	for name, tr := range transports() {
		resp, err := tr.Do(context.Background(), &domain.Request{
			URL:    srv.URL + "/echo",
			Method: domain.MethodPost,
			Body:   []byte(`{"a":1}`),
			Header: map[string]string{"Content-Type": "application/json"},
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		want := `POST:application/json:{"a":1}`
		if string(resp.Body) != want {
			t.Fatalf("%s: expected %q, got %q", name, want, resp.Body)
		}
	}
}

func TestTransports_RedirectPolicy(t *testing.T) {
	srv := newUpstream(t)
	for name, tr := range transports() {
		resp, err := tr.Do(context.Background(), &domain.Request{
			URL:    srv.URL + "/redirect",
			Method: domain.MethodGet,
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("%s: expected 302 without follow, got %d", name, resp.StatusCode)
		}

		resp, err = tr.Do(context.Background(), &domain.Request{
			URL:             srv.URL + "/redirect",
			Method:          domain.MethodGet,
			FollowRedirects: true,
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if resp.StatusCode != http.StatusOK || string(resp.Body) != "ok" {
			t.Fatalf("%s: expected redirect to be followed, got %d %q", name, resp.StatusCode, resp.Body)
		}
	}
}

func TestTransports_CancelReturnsPromptly(t *testing.T) {
	srv := newUpstream(t)
	for name, tr := range transports() {
		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error, 1)
		go func() {
			_, err := tr.Do(ctx, &domain.Request{URL: srv.URL + "/slow", Method: domain.MethodGet})
			errc <- err
		}()
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-errc:
			if err == nil {
				t.Fatalf("%s: expected error after cancel", name)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: transport did not return after cancel", name)
		}
	}
}

func TestHTTPTransport_MaxResponseBody(t *testing.T) {
	srv := newUpstream(t)
	tr := NewHTTPTransport(WithMaxResponseBody(1))

	_, err := tr.Do(context.Background(), &domain.Request{URL: srv.URL + "/ok", Method: domain.MethodGet})
	if err == nil {
		t.Fatalf("expected body too large error")
	}
}
