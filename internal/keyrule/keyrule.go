package keyrule

import (
	"fmt"
	"net/url"
	"regexp"
)

type Rules []Rule

// Rule narrows query stripping for URLs matching a pattern: only the listed
// parameters are removed from the stable key, the rest are kept.
type Rule struct {
	re               *regexp.Regexp
	ignoreParameters []string
}

func New(pattern string, ignoreParameters []string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to parse regular expression for URL pattern %s: %w",
			pattern, err)
	}

	return Rule{
		re:               re,
		ignoreParameters: ignoreParameters,
	}, nil
}

func (rules Rules) Get(rawURL string) *Rule {
	for _, rule := range rules {
		if rule.re.MatchString(rawURL) {
			return &rule
		}
	}

	return nil
}

func (rule *Rule) IgnoredParameters() []string {
	return rule.ignoreParameters
}

// StableKey derives the cache key for rawURL. Without a matching rule the
// whole query string is dropped, so re-signed variants of the same object
// share one cache slot. The fragment is always dropped.
func (rules Rules) StableKey(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsedURL.Fragment = ""
	parsedURL.RawFragment = ""

	rule := rules.Get(rawURL)
	if rule == nil {
		parsedURL.RawQuery = ""
		parsedURL.ForceQuery = false

		return parsedURL.String()
	}

	query := parsedURL.Query()

	for _, ignoredParameter := range rule.IgnoredParameters() {
		query.Del(ignoredParameter)
	}

	parsedURL.RawQuery = query.Encode()

	return parsedURL.String()
}
