// Package pluginscan detects third-party plugins and their versions from
// the markup of a web page, driven by a YAML ruleset.
package pluginscan

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/detection"
	"github.com/mamamialezatoz/go-wpscan-plugins/internal/downloader"
	"github.com/mamamialezatoz/go-wpscan-plugins/internal/models"
	"github.com/mamamialezatoz/go-wpscan-plugins/internal/parser"
)

type (
	// Finding is one detection of a plugin on the scanned page
	Finding = models.Finding
	// Ruleset is a loaded plugin ruleset
	Ruleset = models.Ruleset
	// Plugin is the rule set for a single plugin
	Plugin = models.Plugin
	// Document is a parsed page
	Document = parser.Document
	// SignalType is a category of document location scanned for evidence
	SignalType = detection.SignalType

	// ConfigError reports a ruleset that could not be loaded
	ConfigError = models.ConfigError
	// PatternError reports an invalid regular expression in a rule
	PatternError = models.PatternError
	// FetchError reports a failed retrieval of the target page
	FetchError = models.FetchError
)

var (
	// ErrInvalidRuleset is matched by every ConfigError
	ErrInvalidRuleset = models.ErrInvalidRuleset
	// ErrDisallowedTag indicates a YAML tag other than plain data or a regexp
	ErrDisallowedTag = models.ErrDisallowedTag
)

// LoadRuleset reads and compiles the ruleset at path
func LoadRuleset(path string) (*Ruleset, error) {
	return parser.LoadRulesetFile(path)
}

// ParseRuleset compiles ruleset data
func ParseRuleset(data []byte) (*Ruleset, error) {
	return parser.LoadRuleset(data, "")
}

// ParseDocument parses an HTML body; contentType may be empty
func ParseDocument(body []byte, contentType string) (*Document, error) {
	return parser.ParseDocument(body, contentType)
}

// Scanner evaluates a ruleset against pages. It is safe for concurrent use.
type Scanner struct {
	config   *Config
	ruleset  *models.Ruleset
	registry *detection.Registry
	client   *downloader.Client
	fetcher  detection.ContentFetcher
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates a scanner for ruleset
func New(ruleset *Ruleset, options ...Option) (*Scanner, error) {
	if ruleset == nil {
		return nil, &models.ConfigError{Op: "new scanner", Err: fmt.Errorf("nil ruleset")}
	}

	config := &Config{}
	for _, option := range options {
		option(config)
	}

	registry := detection.DefaultRegistry()
	for _, st := range config.SignalTypes {
		if err := registry.Register(st); err != nil {
			return nil, fmt.Errorf("could not register signal type: %w", err)
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("pluginscan")
	}

	dlConfig := downloader.DefaultConfig()
	if config.Headers != nil {
		dlConfig.Headers = config.Headers
	}
	if config.Timeout > 0 {
		dlConfig.Timeout = config.Timeout
	}
	dlConfig.MaxBodySize = config.MaxBodySize
	dlConfig.InsecureSkipVerify = config.InsecureSkipVerify
	dlConfig.Client = config.HTTPClient
	dlConfig.Logger = logger
	client := downloader.New(dlConfig)

	var fetcher detection.ContentFetcher = client
	if config.Fetcher != nil {
		fetcher = config.Fetcher
	}

	s := &Scanner{
		config:   config,
		ruleset:  ruleset,
		registry: registry,
		client:   client,
		fetcher:  fetcher,
		logger:   logger,
		tracer:   tracer,
	}
	s.warnUnregistered()

	return s, nil
}

// NewFromFile loads the ruleset at path and creates a scanner for it
func NewFromFile(path string, options ...Option) (*Scanner, error) {
	ruleset, err := LoadRuleset(path)
	if err != nil {
		return nil, err
	}
	return New(ruleset, options...)
}

// Ruleset returns the scanner's ruleset
func (s *Scanner) Ruleset() *Ruleset {
	return s.ruleset
}

// SignalTypes returns the signal types evaluated for every plugin, in order
func (s *Scanner) SignalTypes() []SignalType {
	return s.registry.Types()
}

// Scan evaluates every plugin against doc and returns the findings in
// plugin-then-signal-type order. baseURL locates readme resources.
// The only error is the context's.
func (s *Scanner) Scan(ctx context.Context, baseURL string, doc *Document) ([]Finding, error) {
	var findings []Finding
	err := s.ScanFunc(ctx, baseURL, doc, func(f Finding) {
		findings = append(findings, f)
	})
	return findings, err
}

// ScanFunc is like Scan but passes each finding to fn as soon as it is
// available in report order. fn is never called concurrently.
func (s *Scanner) ScanFunc(ctx context.Context, baseURL string, doc *Document, fn func(Finding)) error {
	start := time.Now()
	logger := s.logger.With("scan_id", uuid.NewString())
	plugins := s.ruleset.Plugins()
	types := s.registry.Types()

	ctx, span := s.tracer.Start(ctx, "pluginscan.Scan",
		trace.WithAttributes(
			attribute.String("target", baseURL),
			attribute.Int("plugins", len(plugins)),
		))
	defer span.End()

	logger.Info("scan started", "target", baseURL, "plugins", len(plugins), "signals", len(types))

	matcher := &detection.Matcher{
		Registry: s.registry,
		Logger:   logger,
		Versions: &detection.VersionExtractor{
			Fetcher: s.fetcher,
			BaseURL: baseURL,
			Logger:  logger,
			Tracer:  s.tracer,
		},
	}

	count := 0
	emit := func(f Finding) {
		count++
		logger.Debug("plugin found", "plugin", f.Plugin, "signal", f.SignalType, "version", f.VersionOrUnknown())
		fn(f)
	}

	if s.config.Concurrency <= 1 {
		for _, plugin := range plugins {
			for f := range s.pluginFindings(ctx, matcher, doc, plugin, types) {
				emit(f)
			}
		}
	} else {
		// each plugin fills its own slot so the output order is unchanged
		results := make([][]Finding, len(plugins))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.config.Concurrency)
		for i, plugin := range plugins {
			g.Go(func() error {
				results[i] = slices.Collect(s.pluginFindings(gctx, matcher, doc, plugin, types))
				return nil
			})
		}
		_ = g.Wait()

		for _, findings := range results {
			for _, f := range findings {
				emit(f)
			}
		}
	}

	span.SetAttributes(attribute.Int("findings", count))
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("scan interrupted", "error", err, "findings", count)
		return err
	}

	logger.Info("scan finished", "findings", count, "duration", time.Since(start))
	return nil
}

// ScanURL fetches and parses target, then scans it. Failing to retrieve
// the page is fatal and returned as *FetchError.
func (s *Scanner) ScanURL(ctx context.Context, target string) ([]Finding, error) {
	var findings []Finding
	err := s.ScanURLFunc(ctx, target, func(f Finding) {
		findings = append(findings, f)
	})
	return findings, err
}

// ScanURLFunc is like ScanURL but streams findings to fn
func (s *Scanner) ScanURLFunc(ctx context.Context, target string, fn func(Finding)) error {
	doc, target, err := s.FetchDocument(ctx, target)
	if err != nil {
		return err
	}
	return s.ScanFunc(ctx, target, doc, fn)
}

// FetchDocument retrieves and parses target. It also returns the
// normalized URL used as the readme base.
func (s *Scanner) FetchDocument(ctx context.Context, target string) (*Document, string, error) {
	target = downloader.NormalizeURL(target)

	ctx, span := s.tracer.Start(ctx, "pluginscan.FetchDocument", trace.WithAttributes(attribute.String("url", target)))
	defer span.End()

	resp, err := s.client.Fetch(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, target, err
	}

	doc, err := parser.ParseDocument(resp.Body, resp.ContentType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, target, &models.FetchError{URL: target, StatusCode: resp.StatusCode, Err: err}
	}

	s.logger.Debug("document fetched", "url", target, "status", resp.StatusCode, "bytes", len(resp.Body))
	return doc, target, nil
}

// pluginFindings runs every signal type for one plugin
func (s *Scanner) pluginFindings(ctx context.Context, matcher *detection.Matcher, doc *Document, plugin *models.Plugin, types []detection.SignalType) iter.Seq[Finding] {
	return func(yield func(Finding) bool) {
		ctx, span := s.tracer.Start(ctx, "pluginscan.plugin", trace.WithAttributes(attribute.String("plugin", plugin.Name)))
		defer span.End()

		n := 0
		for _, st := range types {
			for f := range matcher.Match(ctx, doc, plugin, st.Name) {
				n++
				if !yield(f) {
					return
				}
			}
		}
		span.SetAttributes(attribute.Int("findings", n))
	}
}

// warnUnregistered logs rules whose signal type will never be evaluated
func (s *Scanner) warnUnregistered() {
	for _, plugin := range s.ruleset.Plugins() {
		for _, name := range plugin.SignalOrder {
			if _, ok := s.registry.Lookup(name); !ok {
				s.logger.Warn("signal type not enabled, rule ignored", "plugin", plugin.Name, "signal", name)
			}
		}
	}
}
