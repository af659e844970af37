package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRuleset is matched by every ConfigError
	ErrInvalidRuleset = errors.New("invalid ruleset")

	// ErrDisallowedTag indicates a YAML tag other than plain data or a regexp
	ErrDisallowedTag = errors.New("disallowed yaml tag")

	// ErrUnexpectedStatus indicates a non-2xx HTTP response
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// ConfigError reports a ruleset that could not be loaded
type ConfigError struct {
	// Path of the ruleset file, if known
	Path string
	// Op describes where loading failed (e.g., "decode", "Plugins.acme.Comment")
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	msg := "ruleset"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidRuleset) hold for every ConfigError
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidRuleset
}

// PatternError reports a rule whose regular expression does not compile
type PatternError struct {
	Section    string
	Plugin     string
	SignalType string
	Pattern    string
	Err        error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q for %s/%s (%s): %v",
		e.Pattern, e.Section, e.Plugin, e.SignalType, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// FetchError reports a failed HTTP retrieval
type FetchError struct {
	URL string
	// StatusCode is zero when no response was received
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
