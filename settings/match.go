package settings

import (
	"regexp"
	"strings"

	"github.com/c360/brokerkit/errors"
)

const (
	// AnyWords matches any run of characters, dots included; the
	// delimiters written around it must still be present in the key
	AnyWords = "#"
	// SingleWord matches exactly one token
	SingleWord = "*"
	// Delimiter separates tokens in a pattern or address
	Delimiter = "."
)

// match is one registered pattern together with its compiled form and value.
type match[T any] struct {
	pattern string
	regex   *regexp.Regexp
	value   T
}

func newMatch[T any](pattern string, value T) (*match[T], error) {
	regex, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return &match[T]{
		pattern: pattern,
		regex:   regex,
		value:   value,
	}, nil
}

func (m *match[T]) matches(key string) bool {
	return m.regex.MatchString(key)
}

// verifyPattern checks the dotted-token grammar: every token is '*', '#', or
// one or more non-delimiter characters.
func verifyPattern(pattern string) error {
	if pattern == "" {
		return errors.WrapInvalid(errors.ErrInvalidPattern,
			"Repository", "verifyPattern", "empty pattern")
	}
	for _, token := range strings.Split(pattern, Delimiter) {
		if token == "" {
			return errors.WrapInvalid(errors.ErrInvalidPattern,
				"Repository", "verifyPattern", "empty token in pattern "+pattern)
		}
	}
	return nil
}

// compilePattern converts a verified pattern into an anchored regexp:
// literal tokens are quoted, '*' becomes [^.]+ and '#' becomes .*
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if err := verifyPattern(pattern); err != nil {
		return nil, err
	}

	tokens := strings.Split(pattern, Delimiter)
	parts := make([]string, len(tokens))
	for i, token := range tokens {
		switch token {
		case SingleWord:
			parts[i] = "[^.]+"
		case AnyWords:
			parts[i] = ".*"
		default:
			parts[i] = regexp.QuoteMeta(token)
		}
	}

	regex, err := regexp.Compile("^" + strings.Join(parts, "\\.") + "$")
	if err != nil {
		return nil, errors.WrapInvalid(err, "Repository", "compilePattern", "regex compilation")
	}
	return regex, nil
}
