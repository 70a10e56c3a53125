package resolver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "https://www.tiktok.com/@shop/video/1", body["url"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"tunnel","url":"http://tunnel/abc","filename":"tiktok_1.mp4"}`)
	}))
	defer srv.Close()

	out := New(srv.URL, time.Second, quietLogger()).Resolve(context.Background(), "https://www.tiktok.com/@shop/video/1")
	require.Equal(t, Resolved, out.Kind)
	require.Equal(t, "http://tunnel/abc", out.Link)
	require.Equal(t, "tiktok_1.mp4", out.Filename)
}

func TestResolveRateLimited(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"http 429":         {http.StatusTooManyRequests, `{}`},
		"code in 200 body": {http.StatusOK, `{"status":"error","error":{"code":"error.api.rate_exceeded"}}`},
		"code in 400 body": {http.StatusBadRequest, `{"status":"error","error":{"code":"error.api.rate_exceeded"}}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			out := New(srv.URL, time.Second, quietLogger()).Resolve(context.Background(), "vid")
			require.Equal(t, RateLimited, out.Kind)
		})
	}
}

func TestResolveFailedCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status":"error","error":{"code":"error.api.link.invalid"}}`)
	}))
	defer srv.Close()

	out := New(srv.URL, time.Second, quietLogger()).Resolve(context.Background(), "vid")
	require.Equal(t, Failed, out.Kind)
	require.Contains(t, out.Diagnostic, "error.api.link.invalid")
	require.Contains(t, out.Diagnostic, "400")
}

func TestResolveMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"picker"}`)
	}))
	defer srv.Close()

	out := New(srv.URL, time.Second, quietLogger()).Resolve(context.Background(), "vid")
	require.Equal(t, Failed, out.Kind)
}

func TestResolveTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	out := New(endpoint, time.Second, quietLogger()).Resolve(context.Background(), "vid")
	require.Equal(t, Failed, out.Kind)
	require.NotEmpty(t, out.Diagnostic)
}
