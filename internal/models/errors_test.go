package models

import (
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "path and op",
			err:  &ConfigError{Path: "rules.yml", Op: "decode", Err: errors.New("boom")},
			want: "ruleset rules.yml: decode: boom",
		},
		{
			name: "op only",
			err:  &ConfigError{Op: "Plugins", Err: ErrDisallowedTag},
			want: "ruleset: Plugins: disallowed yaml tag",
		},
		{
			name: "bare",
			err:  &ConfigError{},
			want: "ruleset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestConfigErrorIsAndUnwrap(t *testing.T) {
	inner := &PatternError{Section: "Plugins", Plugin: "acme", SignalType: "Comment", Pattern: "(", Err: errors.New("missing )")}
	err := fmt.Errorf("loading: %w", &ConfigError{Path: "rules.yml", Err: inner})

	assert.True(t, errors.Is(err, ErrInvalidRuleset))

	var patternErr *PatternError
	require.True(t, errors.As(err, &patternErr))
	assert.Equal(t, "acme", patternErr.Plugin)
	assert.Contains(t, patternErr.Error(), `invalid pattern "(" for Plugins/acme (Comment)`)
}

func TestFetchErrorMessage(t *testing.T) {
	withStatus := &FetchError{URL: "http://example.com", StatusCode: 404, Err: ErrUnexpectedStatus}
	assert.Equal(t, "fetch http://example.com: status 404: unexpected status code", withStatus.Error())
	assert.True(t, errors.Is(withStatus, ErrUnexpectedStatus))

	noResponse := &FetchError{URL: "http://example.com", Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "fetch http://example.com: dial tcp: refused", noResponse.Error())
}

func TestResolveStrategy(t *testing.T) {
	pattern := regexp.MustCompile(`v([\d.]+)`)

	tests := []struct {
		name   string
		plugin *Plugin
		rule   *SignalRule
		want   VersionStrategy
	}{
		{
			name:   "version field with pattern",
			plugin: &Plugin{},
			rule:   &SignalRule{Pattern: pattern, HasVersionField: true},
			want:   StrategyDirectCapture,
		},
		{
			name:   "direct capture wins over readme",
			plugin: &Plugin{ReadmePath: "readme.txt"},
			rule:   &SignalRule{Pattern: pattern, HasVersionField: true},
			want:   StrategyDirectCapture,
		},
		{
			name:   "version field without pattern falls to readme",
			plugin: &Plugin{ReadmePath: "readme.txt"},
			rule:   &SignalRule{HasVersionField: true},
			want:   StrategyReadmeStableTag,
		},
		{
			name:   "pattern without version field uses readme",
			plugin: &Plugin{ReadmePath: "readme.txt"},
			rule:   &SignalRule{Pattern: pattern},
			want:   StrategyReadmeStableTag,
		},
		{
			name:   "nothing declared",
			plugin: &Plugin{},
			rule:   &SignalRule{Pattern: pattern},
			want:   StrategyNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStrategy(tt.plugin, tt.rule))
		})
	}
}

func TestRulesetPluginsOrder(t *testing.T) {
	a := &Plugin{Name: "a"}
	b := &Plugin{Name: "b"}
	c := &Plugin{Name: "c"}
	rs := &Ruleset{Sections: []*Section{
		{Name: "one", Plugins: []*Plugin{a, b}},
		{Name: "two", Plugins: []*Plugin{c}},
	}}

	assert.Equal(t, []*Plugin{a, b, c}, rs.Plugins())
	assert.Equal(t, 3, rs.Len())
	assert.Nil(t, a.Rule("Comment"))

	var nilSet *Ruleset
	assert.Empty(t, nilSet.Plugins())
	assert.Zero(t, nilSet.Len())
}

func TestFindingVersionOrUnknown(t *testing.T) {
	assert.Equal(t, "unknown", Finding{Plugin: "a"}.VersionOrUnknown())
	assert.Equal(t, "1.2", Finding{Plugin: "a", Version: "1.2"}.VersionOrUnknown())
	assert.Equal(t, "readme-stable-tag", StrategyReadmeStableTag.String())
	assert.Equal(t, "none", StrategyNone.String())
}
