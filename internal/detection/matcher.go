package detection

import (
	"context"
	"iter"
	"log/slog"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/models"
	"github.com/mamamialezatoz/go-wpscan-plugins/internal/parser"
)

// Matcher evaluates plugin rules of one signal type against a document
type Matcher struct {
	Registry *Registry
	Versions *VersionExtractor
	Logger   *slog.Logger
}

// Match yields one Finding per node that satisfies the plugin's rule for
// signalType, in document order. Plugins without a rule for the type yield
// nothing and cost no document query. The sequence may be iterated again
// and produces the same findings for the same document.
func (m *Matcher) Match(ctx context.Context, doc *parser.Document, plugin *models.Plugin, signalType string) iter.Seq[models.Finding] {
	return func(yield func(models.Finding) bool) {
		rule := plugin.Rule(signalType)
		if rule == nil {
			return
		}

		expr := rule.XPath
		if expr == "" {
			st, ok := m.registry().Lookup(signalType)
			if !ok {
				m.logger().Warn("no default xpath for signal type", "plugin", plugin.Name, "signal", signalType)
				return
			}
			expr = st.DefaultXPath
		}

		nodes, err := doc.Select(expr)
		if err != nil {
			m.logger().Warn("xpath query failed", "plugin", plugin.Name, "signal", signalType, "error", err)
			return
		}

		for _, node := range nodes {
			if ctx.Err() != nil {
				return
			}

			text := parser.NodeText(node)
			if rule.Pattern != nil && !rule.Pattern.MatchString(text) {
				continue
			}

			finding := models.Finding{
				Plugin:     plugin.Name,
				Section:    plugin.Section,
				SignalType: signalType,
			}
			if m.Versions != nil {
				finding.Version = m.Versions.Extract(ctx, plugin, rule, text)
			}

			if !yield(finding) {
				return
			}
		}
	}
}

func (m *Matcher) registry() *Registry {
	if m.Registry == nil {
		return DefaultRegistry()
	}
	return m.Registry
}

func (m *Matcher) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return m.Logger
}
