package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/models"
)

func TestFetchSendsConfiguredHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	config := DefaultConfig()
	config.Headers.Set("X-Test", "yes")
	client := New(config)

	resp, err := client.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	assert.Equal(t, "<html></html>", string(resp.Body))
	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	assert.Contains(t, got.Get("Accept"), "text/html")
	assert.Equal(t, "yes", got.Get("X-Test"))
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New(nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fetchErr *models.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.ErrorIs(t, err, models.ErrUnexpectedStatus)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	config := DefaultConfig()
	config.Timeout = 50 * time.Millisecond

	_, err := New(config).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchMaxBodySize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "0123456789")
	}))
	defer srv.Close()

	config := DefaultConfig()
	config.MaxBodySize = 4

	resp, err := New(config).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(resp.Body))
}

func TestFetchTextAbsorbsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/readme.txt":
			fmt.Fprint(w, "Stable tag: 1.0.4")
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	client := New(nil)

	text, ok := client.FetchText(context.Background(), srv.URL+"/readme.txt")
	assert.True(t, ok)
	assert.Equal(t, "Stable tag: 1.0.4", text)

	text, ok = client.FetchText(context.Background(), srv.URL+"/broken")
	assert.False(t, ok)
	assert.Empty(t, text)

	srv.Close()
	text, ok = client.FetchText(context.Background(), srv.URL+"/readme.txt")
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "http://example.com", NormalizeURL("example.com"))
	assert.Equal(t, "https://example.com", NormalizeURL(" https://example.com "))
	assert.Equal(t, "http://example.com/blog", NormalizeURL("http://example.com/blog"))
	assert.Equal(t, "HTTPS://example.com", NormalizeURL("HTTPS://example.com"))
	assert.Equal(t, "Http://example.com", NormalizeURL("Http://example.com"))
}

func TestPluginResourceURL(t *testing.T) {
	tests := []struct {
		base, slug, path string
		want             string
	}{
		{"http://example.com", "acme", "readme.txt", "http://example.com/wp-content/plugins/acme/readme.txt"},
		{"http://example.com/", "acme", "/readme.txt", "http://example.com/wp-content/plugins/acme/readme.txt"},
		{"http://example.com/blog", "seo-helper", "docs/README.md", "http://example.com/blog/wp-content/plugins/seo-helper/docs/README.md"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PluginResourceURL(tt.base, tt.slug, tt.path))
	}
}
