package downloader

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/models"
)

const (
	// DefaultTimeout bounds every request made by the client
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is a desktop browser user agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"
)

// DefaultHeaders returns the browser-like header set sent with every request
func DefaultHeaders() http.Header {
	return http.Header{
		"User-Agent": {DefaultUserAgent},
		"Accept":     {"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"},
		"Connection": {"keep-alive"},
	}
}

// Config contains configuration for the content fetcher
type Config struct {
	// Headers are added to every request
	Headers http.Header

	// Timeout bounds a single request, including reading the body
	Timeout time.Duration

	// MaxBodySize limits how much of a response is read (0 = no limit)
	MaxBodySize int64

	// InsecureSkipVerify disables TLS certificate verification
	InsecureSkipVerify bool

	// Client is the HTTP client to use; built from the fields above when nil
	Client *http.Client

	// Logger receives debug output for absorbed failures
	Logger *slog.Logger
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Headers: DefaultHeaders(),
		Timeout: DefaultTimeout,
	}
}

// Response is a fetched resource
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client fetches pages and auxiliary resources with a fixed header set.
// It is safe for concurrent use.
type Client struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a client from config; a nil config uses DefaultConfig
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	httpClient := config.Client
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: config.InsecureSkipVerify,
				},
			},
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{config: config, http: httpClient, logger: logger}
}

// Fetch performs a single GET of url. Transport failures and non-2xx
// responses are returned as *models.FetchError.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}
	for name, values := range c.config.Headers {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &models.FetchError{URL: url, StatusCode: resp.StatusCode, Err: models.ErrUnexpectedStatus}
	}

	var reader io.Reader = resp.Body
	if c.config.MaxBodySize > 0 {
		reader = io.LimitReader(resp.Body, c.config.MaxBodySize)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &models.FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return &Response{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// FetchText fetches url and returns its body as text. Any failure is
// absorbed and reported as ok == false; there are no retries.
func (c *Client) FetchText(ctx context.Context, url string) (string, bool) {
	resp, err := c.Fetch(ctx, url)
	if err != nil {
		c.logger.Debug("auxiliary fetch failed", "url", url, "error", err)
		return "", false
	}
	return string(resp.Body), true
}

// NormalizeURL adds an http scheme to bare hosts
func NormalizeURL(url string) string {
	url = strings.TrimSpace(url)
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		url = "http://" + url
	}
	return url
}

// PluginResourceURL joins the site base, the plugin directory for slug and
// a path inside it.
func PluginResourceURL(base, slug, path string) string {
	return strings.TrimRight(base, "/") + "/wp-content/plugins/" + slug + "/" + strings.TrimLeft(path, "/")
}
