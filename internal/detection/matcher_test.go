package detection

import (
	"context"
	"regexp"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/models"
	"github.com/mamamialezatoz/go-wpscan-plugins/internal/parser"
)

const matcherPage = `<html><head>
<meta name="generator" content="Acme Gallery 4.2.1">
<meta name="robots" content="index">
<!-- Acme Gallery v4.2.1 — build 99 -->
</head><body>
<!-- Acme Gallery v4.3.0 -->
<!-- unrelated -->
<script src="/wp-content/plugins/acme-gallery/js/app.js?ver=4.2.1"></script>
</body></html>`

func newTestMatcher(fetcher ContentFetcher) *Matcher {
	return &Matcher{
		Registry: DefaultRegistry(),
		Versions: &VersionExtractor{Fetcher: fetcher, BaseURL: "http://example.com"},
	}
}

func mustDocument(t *testing.T, page string) *parser.Document {
	t.Helper()
	doc, err := parser.ParseDocumentString(page)
	require.NoError(t, err)
	return doc
}

func directRule(pattern string) *models.SignalRule {
	return &models.SignalRule{
		Pattern:         regexp.MustCompile(pattern),
		HasVersionField: true,
		Strategy:        models.StrategyDirectCapture,
	}
}

func TestMatchCommentsInDocumentOrder(t *testing.T) {
	doc := mustDocument(t, matcherPage)
	plugin := &models.Plugin{
		Name:    "acme-gallery",
		Section: "Plugins",
		Signals: map[string]*models.SignalRule{"Comment": directRule(`Acme Gallery v([\d.]+)`)},
	}

	findings := slices.Collect(newTestMatcher(nil).Match(context.Background(), doc, plugin, "Comment"))

	assert.Equal(t, []models.Finding{
		{Plugin: "acme-gallery", Section: "Plugins", SignalType: "Comment", Version: "4.2.1"},
		{Plugin: "acme-gallery", Section: "Plugins", SignalType: "Comment", Version: "4.3.0"},
	}, findings)
}

func TestMatchWithoutRuleSkipsQuery(t *testing.T) {
	plugin := &models.Plugin{
		Name:    "acme-gallery",
		Signals: map[string]*models.SignalRule{"Comment": directRule(`Acme`)},
	}

	// a nil document would make any query return nothing; the point is
	// that no rule means no work at all
	findings := slices.Collect(newTestMatcher(nil).Match(context.Background(), nil, plugin, "MetaTag"))
	assert.Empty(t, findings)
}

func TestMatchWithoutPatternReportsEveryNode(t *testing.T) {
	doc := mustDocument(t, matcherPage)
	plugin := &models.Plugin{
		Name:    "any-comment",
		Signals: map[string]*models.SignalRule{"Comment": {}},
	}

	findings := slices.Collect(newTestMatcher(nil).Match(context.Background(), doc, plugin, "Comment"))
	require.Len(t, findings, 3)
	for _, f := range findings {
		assert.Equal(t, "unknown", f.VersionOrUnknown())
	}
}

func TestMatchMetaTagDefaultAndCustomXPath(t *testing.T) {
	doc := mustDocument(t, matcherPage)

	byDefault := &models.Plugin{
		Name:    "acme-gallery",
		Signals: map[string]*models.SignalRule{"MetaTag": directRule(`Acme Gallery ([\d.]+)`)},
	}
	findings := slices.Collect(newTestMatcher(nil).Match(context.Background(), doc, byDefault, "MetaTag"))
	require.Len(t, findings, 1)
	assert.Equal(t, "4.2.1", findings[0].Version)

	custom := &models.Plugin{
		Name: "robots",
		Signals: map[string]*models.SignalRule{"MetaTag": {
			XPath:    `//meta[@name="robots"]/@content`,
			Strategy: models.StrategyNone,
		}},
	}
	findings = slices.Collect(newTestMatcher(nil).Match(context.Background(), doc, custom, "MetaTag"))
	require.Len(t, findings, 1)
	assert.Equal(t, "robots", findings[0].Plugin)
	assert.Empty(t, findings[0].Version)
}

func TestMatchNoNodesYieldsNothing(t *testing.T) {
	doc := mustDocument(t, `<html><body><p>no comments here</p></body></html>`)
	plugin := &models.Plugin{
		Name:       "acme-gallery",
		ReadmePath: "readme.txt",
		Signals: map[string]*models.SignalRule{"Comment": {
			Strategy: models.StrategyReadmeStableTag,
		}},
	}
	fetcher := &fakeFetcher{}

	findings := slices.Collect(newTestMatcher(fetcher).Match(context.Background(), doc, plugin, "Comment"))
	assert.Empty(t, findings)
	assert.Empty(t, fetcher.Calls())
}

func TestMatchReadmeFallbackPerNode(t *testing.T) {
	doc := mustDocument(t, matcherPage)
	fetcher := &fakeFetcher{bodies: map[string]string{
		"http://example.com/wp-content/plugins/acme-gallery/readme.txt": "Contributors: acme\nStable tag: 1.0.4\n",
	}}
	plugin := &models.Plugin{
		Name:       "acme-gallery",
		ReadmePath: "readme.txt",
		Signals: map[string]*models.SignalRule{"Comment": {
			Pattern:  regexp.MustCompile(`Acme Gallery`),
			Strategy: models.StrategyReadmeStableTag,
		}},
	}

	findings := slices.Collect(newTestMatcher(fetcher).Match(context.Background(), doc, plugin, "Comment"))
	require.Len(t, findings, 2)
	assert.Equal(t, "1.0.4", findings[0].Version)
	assert.Equal(t, "1.0.4", findings[1].Version)
	assert.Len(t, fetcher.Calls(), 2)
}

func TestMatchIsRestartable(t *testing.T) {
	doc := mustDocument(t, matcherPage)
	plugin := &models.Plugin{
		Name:    "acme-gallery",
		Signals: map[string]*models.SignalRule{"Comment": directRule(`Acme Gallery v([\d.]+)`)},
	}

	seq := newTestMatcher(nil).Match(context.Background(), doc, plugin, "Comment")
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	// stopping early is honoured
	var taken []models.Finding
	for f := range seq {
		taken = append(taken, f)
		break
	}
	assert.Len(t, taken, 1)
}

func TestMatchUnregisteredSignalType(t *testing.T) {
	doc := mustDocument(t, matcherPage)
	plugin := &models.Plugin{
		Name:    "acme-gallery",
		Signals: map[string]*models.SignalRule{"ScriptTag": directRule(`ver=([\d.]+)`)},
	}

	matcher := newTestMatcher(nil)
	assert.Empty(t, slices.Collect(matcher.Match(context.Background(), doc, plugin, "ScriptTag")))

	require.NoError(t, matcher.Registry.Register(ScriptTag))
	findings := slices.Collect(matcher.Match(context.Background(), doc, plugin, "ScriptTag"))
	require.Len(t, findings, 1)
	assert.Equal(t, "4.2.1", findings[0].Version)
}

func TestMatchStopsOnCancelledContext(t *testing.T) {
	doc := mustDocument(t, matcherPage)
	plugin := &models.Plugin{
		Name:    "any-comment",
		Signals: map[string]*models.SignalRule{"Comment": {}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, slices.Collect(newTestMatcher(nil).Match(ctx, doc, plugin, "Comment")))
}

func TestMatchAnchoredPatternInMultilineComment(t *testing.T) {
	doc := mustDocument(t, "<html><head><!-- Acme v1.2\nbuilt by x --></head></html>")

	pattern, err := parser.CompileRegexLiteral(`/^Acme v([\d.]+)$/`)
	require.NoError(t, err)
	plugin := &models.Plugin{
		Name:    "acme",
		Section: "Plugins",
		Signals: map[string]*models.SignalRule{"Comment": {
			Pattern:         pattern,
			HasVersionField: true,
			Strategy:        models.StrategyDirectCapture,
		}},
	}

	findings := slices.Collect(newTestMatcher(nil).Match(context.Background(), doc, plugin, "Comment"))

	assert.Equal(t, []models.Finding{
		{Plugin: "acme", Section: "Plugins", SignalType: "Comment", Version: "1.2"},
	}, findings)
}
