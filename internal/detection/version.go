package detection

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/downloader"
	"github.com/mamamialezatoz/go-wpscan-plugins/internal/models"
)

var (
	// stableTagRegex finds "Stable tag: x" and "Version: x" lines in a readme.
	// Tokens starting with "trunk" are skipped by StableTag since RE2 has no
	// negative lookahead.
	stableTagRegex = regexp.MustCompile(`(?i)\b(?:stable tag|version):\s*([0-9a-z.-]+)`)

	digitRegex = regexp.MustCompile(`[0-9]`)
)

// ContentFetcher retrieves auxiliary resources. Implementations absorb
// every failure and report it as ok == false.
type ContentFetcher interface {
	FetchText(ctx context.Context, url string) (string, bool)
}

// StableTag extracts the stable tag or version number from a readme body.
// The first candidate not starting with "trunk" is used, and only when it
// contains a digit.
func StableTag(body string) (string, bool) {
	for _, match := range stableTagRegex.FindAllStringSubmatch(body, -1) {
		token := match[1]
		if strings.HasPrefix(strings.ToLower(token), "trunk") {
			continue
		}
		if !digitRegex.MatchString(token) {
			return "", false
		}
		return token, true
	}
	return "", false
}

// DirectCapture returns the first capturing group of pattern in text
func DirectCapture(pattern *regexp.Regexp, text string) (string, bool) {
	if pattern == nil || pattern.NumSubexp() < 1 {
		return "", false
	}

	match := pattern.FindStringSubmatch(text)
	if len(match) < 2 || match[1] == "" {
		return "", false
	}
	return match[1], true
}

// VersionExtractor derives plugin versions using the strategy resolved for
// each rule. Readme lookups go through Fetcher relative to BaseURL.
type VersionExtractor struct {
	Fetcher ContentFetcher
	BaseURL string
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// Extract returns the version for a node of plugin matched by rule, or ""
// when none could be determined. Exactly one strategy is attempted.
func (e *VersionExtractor) Extract(ctx context.Context, plugin *models.Plugin, rule *models.SignalRule, text string) string {
	switch rule.Strategy {
	case models.StrategyDirectCapture:
		version, _ := DirectCapture(rule.Pattern, text)
		return version
	case models.StrategyReadmeStableTag:
		version, _ := e.fromReadme(ctx, plugin)
		return version
	default:
		return ""
	}
}

func (e *VersionExtractor) fromReadme(ctx context.Context, plugin *models.Plugin) (string, bool) {
	if e.Fetcher == nil || e.BaseURL == "" || plugin.ReadmePath == "" {
		return "", false
	}

	url := downloader.PluginResourceURL(e.BaseURL, plugin.Name, plugin.ReadmePath)

	ctx, span := e.tracer().Start(ctx, "detection.readme",
		trace.WithAttributes(
			attribute.String("plugin", plugin.Name),
			attribute.String("url", url),
		))
	defer span.End()

	body, ok := e.Fetcher.FetchText(ctx, url)
	if !ok {
		e.logger().Debug("readme not available", "plugin", plugin.Name, "url", url)
		span.SetAttributes(attribute.Bool("fetched", false))
		return "", false
	}

	version, ok := StableTag(body)
	span.SetAttributes(attribute.Bool("fetched", true), attribute.String("version", version))
	return version, ok
}

func (e *VersionExtractor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

func (e *VersionExtractor) tracer() trace.Tracer {
	if e.Tracer == nil {
		return noop.NewTracerProvider().Tracer("detection")
	}
	return e.Tracer
}
