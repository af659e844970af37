package parser

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/models"
)

const (
	// ReadmeKey is the plugin entry holding the readme location
	ReadmeKey = "Readme"

	fieldPattern = "pattern"
	fieldXPath   = "xpath"
	fieldVersion = "version"
	fieldPath    = "path"
)

// plainTags are the only YAML tags a ruleset may carry besides regexp tags
var plainTags = map[string]struct{}{
	"!!str":    {},
	"!!int":    {},
	"!!float":  {},
	"!!bool":   {},
	"!!null":   {},
	"!!binary": {},
	"!!map":    {},
	"!!seq":    {},
}

// regexpTags mark a pattern scalar as a regexp literal
var regexpTags = map[string]struct{}{
	"!ruby/regexp": {},
	"!regexp":      {},
}

// LoadRulesetFile reads and compiles the ruleset at path
func LoadRulesetFile(path string) (*models.Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ConfigError{Path: path, Op: "read", Err: err}
	}
	return LoadRuleset(data, path)
}

// LoadRuleset compiles YAML ruleset data. source names the data in errors.
//
// The document is a mapping of sections to plugins to signal types. Only
// plain data is accepted, plus regexp tags on pattern fields; patterns and
// XPath expressions are compiled here so a bad rule fails before any scan.
func LoadRuleset(data []byte, source string) (*models.Ruleset, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &models.ConfigError{Path: source, Op: "decode", Err: err}
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &models.ConfigError{Path: source, Op: "decode", Err: errors.New("empty document")}
	}
	root := doc.Content[0]

	if err := checkTags(root, ""); err != nil {
		return nil, &models.ConfigError{Path: source, Op: "validate", Err: err}
	}

	ruleset, err := compileRuleset(root)
	if err != nil {
		return nil, &models.ConfigError{Path: source, Op: "compile", Err: err}
	}
	ruleset.Source = source

	return ruleset, nil
}

// checkTags rejects aliases and any tag that is not plain data. Regexp
// tags are allowed on scalar values of pattern keys only.
func checkTags(n *yaml.Node, key string) error {
	if n.Kind == yaml.AliasNode {
		return fmt.Errorf("line %d: aliases are not allowed", n.Line)
	}

	tag := n.ShortTag()
	if _, ok := regexpTags[tag]; ok {
		if n.Kind != yaml.ScalarNode || key != fieldPattern {
			return fmt.Errorf("line %d: %w: %s outside a pattern field", n.Line, models.ErrDisallowedTag, tag)
		}
	} else if _, ok := plainTags[tag]; !ok {
		return fmt.Errorf("line %d: %w: %s", n.Line, models.ErrDisallowedTag, tag)
	}

	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if err := checkTags(n.Content[i], ""); err != nil {
				return err
			}
			if err := checkTags(n.Content[i+1], n.Content[i].Value); err != nil {
				return err
			}
		}
		return nil
	}

	for _, child := range n.Content {
		if err := checkTags(child, ""); err != nil {
			return err
		}
	}
	return nil
}

// compileRuleset walks sections and plugins in file order
func compileRuleset(root *yaml.Node) (*models.Ruleset, error) {
	if isNull(root) {
		return &models.Ruleset{}, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: top level must be a mapping of sections", root.Line)
	}

	ruleset := &models.Ruleset{}
	err := eachPair(root, func(sectionKey, sectionNode *yaml.Node) error {
		section := &models.Section{Name: sectionKey.Value}
		ruleset.Sections = append(ruleset.Sections, section)

		if isNull(sectionNode) {
			return nil
		}
		if sectionNode.Kind != yaml.MappingNode {
			return fmt.Errorf("%s: line %d: section must be a mapping of plugins", section.Name, sectionNode.Line)
		}

		return eachPair(sectionNode, func(pluginKey, pluginNode *yaml.Node) error {
			plugin, err := compilePlugin(section.Name, pluginKey.Value, pluginNode)
			if err != nil {
				return err
			}
			section.Plugins = append(section.Plugins, plugin)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return ruleset, nil
}

// compilePlugin builds one plugin entry and resolves its version strategies
func compilePlugin(section, name string, n *yaml.Node) (*models.Plugin, error) {
	where := section + "." + name
	plugin := &models.Plugin{
		Name:    name,
		Section: section,
		Signals: make(map[string]*models.SignalRule),
	}

	if isNull(n) {
		return plugin, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: line %d: plugin must be a mapping of signal types", where, n.Line)
	}

	// The readme is read first so strategies can be resolved in one pass
	if readme := lookup(n, ReadmeKey); readme != nil {
		path, err := compileReadme(readme)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", where, ReadmeKey, err)
		}
		plugin.ReadmePath = path
	}

	err := eachPair(n, func(key, value *yaml.Node) error {
		signalType := key.Value
		if signalType == ReadmeKey {
			return nil
		}

		rule, err := compileSignalRule(section, name, signalType, value)
		if err != nil {
			return err
		}
		rule.Strategy = models.ResolveStrategy(plugin, rule)

		plugin.Signals[signalType] = rule
		plugin.SignalOrder = append(plugin.SignalOrder, signalType)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return plugin, nil
}

func compileReadme(n *yaml.Node) (string, error) {
	if isNull(n) {
		return "", nil
	}
	if n.Kind != yaml.MappingNode {
		return "", fmt.Errorf("line %d: must be a mapping", n.Line)
	}

	path := lookup(n, fieldPath)
	if path == nil {
		return "", nil
	}
	if path.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("line %d: path must be a string", path.Line)
	}
	value := strings.TrimSpace(path.Value)
	if isNull(path) || value == "" {
		return "", fmt.Errorf("line %d: path must not be empty", path.Line)
	}
	return value, nil
}

func compileSignalRule(section, plugin, signalType string, n *yaml.Node) (*models.SignalRule, error) {
	where := section + "." + plugin + "." + signalType
	rule := &models.SignalRule{}

	if isNull(n) {
		return rule, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: line %d: rule must be a mapping", where, n.Line)
	}

	err := eachPair(n, func(key, value *yaml.Node) error {
		switch key.Value {
		case fieldPattern:
			if isNull(value) {
				return nil
			}
			if value.Kind != yaml.ScalarNode {
				return fmt.Errorf("%s: line %d: pattern must be a scalar", where, value.Line)
			}

			pattern, err := compilePattern(value)
			if err != nil {
				return &models.PatternError{
					Section:    section,
					Plugin:     plugin,
					SignalType: signalType,
					Pattern:    value.Value,
					Err:        err,
				}
			}
			rule.Pattern = pattern
			rule.PatternSource = value.Value

		case fieldXPath:
			if isNull(value) {
				return nil
			}
			if value.Kind != yaml.ScalarNode {
				return fmt.Errorf("%s: line %d: xpath must be a string", where, value.Line)
			}
			if err := ValidateXPath(value.Value); err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
			rule.XPath = value.Value

		case fieldVersion:
			// presence alone declares the field, whatever its value
			rule.HasVersionField = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rule, nil
}

func compilePattern(n *yaml.Node) (*regexp.Regexp, error) {
	if _, ok := regexpTags[n.ShortTag()]; ok {
		return CompileRegexLiteral(n.Value)
	}
	return CompileRegex(n.Value)
}

// eachPair calls fn for every key/value of a mapping, rejecting duplicate keys
func eachPair(n *yaml.Node, fn func(key, value *yaml.Node) error) error {
	seen := make(map[string]int, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
		}
		if line, dup := seen[key.Value]; dup {
			return fmt.Errorf("line %d: duplicate key %q (first defined on line %d)", key.Line, key.Value, line)
		}
		seen[key.Value] = key.Line

		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}

// lookup returns the value for key in a mapping node, or nil
func lookup(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}
