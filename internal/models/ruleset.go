package models

import "regexp"

// Ruleset is the loaded plugin configuration, in file order.
type Ruleset struct {
	// Source is the path or name the ruleset was loaded from
	Source   string
	Sections []*Section
}

// Section groups plugin rules under an informational heading
type Section struct {
	Name    string
	Plugins []*Plugin
}

// Plugin is the rule set for a single plugin
type Plugin struct {
	// Name is also the plugin slug used to build readme URLs
	Name    string
	Section string
	// Signals is organized as <signal type, rule>
	Signals map[string]*SignalRule
	// SignalOrder holds the signal type names as they appear in the file
	SignalOrder []string
	// ReadmePath is the readme location relative to the plugin directory
	ReadmePath string
}

// SignalRule describes how one signal type reveals a plugin
type SignalRule struct {
	// Pattern must match the node text for the node to count as a hit
	Pattern *regexp.Regexp
	// PatternSource is the pattern as written in the ruleset
	PatternSource string
	// XPath overrides the signal type's default path expression
	XPath string
	// HasVersionField reports whether the rule declares a version field
	HasVersionField bool
	// Strategy is resolved once when the ruleset is loaded
	Strategy VersionStrategy
}

// VersionStrategy selects how a version is derived for a matched node
type VersionStrategy int

const (
	// StrategyNone never yields a version
	StrategyNone VersionStrategy = iota
	// StrategyDirectCapture takes the first capturing group of the pattern
	StrategyDirectCapture
	// StrategyReadmeStableTag reads the stable tag from the plugin readme
	StrategyReadmeStableTag
)

// String returns the strategy name
func (s VersionStrategy) String() string {
	switch s {
	case StrategyDirectCapture:
		return "direct-capture"
	case StrategyReadmeStableTag:
		return "readme-stable-tag"
	default:
		return "none"
	}
}

// ResolveStrategy picks the version strategy for a signal rule of plugin.
// Only one strategy is ever attempted: a declared version field with a
// pattern wins over the readme even when the capture finds nothing.
func ResolveStrategy(plugin *Plugin, rule *SignalRule) VersionStrategy {
	if rule.HasVersionField && rule.Pattern != nil {
		return StrategyDirectCapture
	}
	if plugin.ReadmePath != "" {
		return StrategyReadmeStableTag
	}
	return StrategyNone
}

// Rule returns the rule for signalType, or nil if the plugin has none
func (p *Plugin) Rule(signalType string) *SignalRule {
	if p == nil || p.Signals == nil {
		return nil
	}
	return p.Signals[signalType]
}

// Plugins returns every plugin in section-then-plugin order
func (r *Ruleset) Plugins() []*Plugin {
	if r == nil {
		return nil
	}

	var plugins []*Plugin
	for _, section := range r.Sections {
		plugins = append(plugins, section.Plugins...)
	}
	return plugins
}

// Len returns the number of plugins in the ruleset
func (r *Ruleset) Len() int {
	n := 0
	if r == nil {
		return n
	}
	for _, section := range r.Sections {
		n += len(section.Plugins)
	}
	return n
}
