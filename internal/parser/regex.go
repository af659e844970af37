package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	// Cache of compiled regular expressions, keyed by the literal as written
	regexCache sync.Map

	errExtendedFlag = errors.New("extended (x) flag is not supported")
)

// CompileRegex compiles pattern as Go regexp syntax. Compiled values are
// shared through a process-wide cache keyed by the pattern text.
func CompileRegex(pattern string) (*regexp.Regexp, error) {
	if compiled, ok := regexCache.Load(pattern); ok {
		return compiled.(*regexp.Regexp), nil
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile regex '%s': %w", pattern, err)
	}

	regexCache.Store(pattern, compiled)
	return compiled, nil
}

// CompileRegexLiteral compiles a tagged regexp literal such as
// "/Acme v([\d.]+)/i". Values without a leading slash are compiled verbatim.
func CompileRegexLiteral(literal string) (*regexp.Regexp, error) {
	normalized, err := normalizePattern(literal)
	if err != nil {
		return nil, err
	}
	return CompileRegex(normalized)
}

// normalizePattern turns a /body/flags literal into Go syntax. Anchors
// always match at line boundaries in literals, so (?m) is always set.
func normalizePattern(literal string) (string, error) {
	if len(literal) < 2 || literal[0] != '/' {
		return literal, nil
	}

	end := strings.LastIndexByte(literal, '/')
	if end == 0 {
		return literal, nil
	}

	body, err := translateEscapes(literal[1:end])
	if err != nil {
		return "", err
	}

	var caseless, dotAll bool
	for _, flag := range literal[end+1:] {
		switch flag {
		case 'i':
			caseless = true
		case 'm':
			// dot matches newline
			dotAll = true
		case 'x':
			return "", errExtendedFlag
		case 'n', 'u', 'e', 's':
			// encoding flags, meaningless for Go strings
		default:
			return "", fmt.Errorf("unknown regexp flag %q", flag)
		}
	}

	flags := "m"
	if caseless {
		flags = "i" + flags
	}
	if dotAll {
		flags += "s"
	}
	return "(?" + flags + ")" + body, nil
}

// translateEscapes rewrites literal escapes that have no RE2 equivalent
func translateEscapes(body string) (string, error) {
	var b strings.Builder
	inClass := false

	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			i++
			switch next := body[i]; next {
			case '/':
				b.WriteByte('/')
			case 'h':
				if inClass {
					b.WriteString("0-9a-fA-F")
				} else {
					b.WriteString("[0-9a-fA-F]")
				}
			case 'H':
				if inClass {
					return "", errors.New(`\H is not supported inside a character class`)
				}
				b.WriteString("[^0-9a-fA-F]")
			case 'Z':
				if inClass {
					return "", errors.New(`\Z is not supported inside a character class`)
				}
				b.WriteString(`(?:\n?\z)`)
			case 'G', 'K', 'R', 'X':
				return "", fmt.Errorf(`escape \%c is not supported`, next)
			default:
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			continue
		}

		switch {
		case c == '[' && !inClass:
			inClass = true
		case c == ']' && inClass:
			inClass = false
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}
