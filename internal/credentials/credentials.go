// Package credentials discovers a Tiingo access token from environment
// configuration. Historical deployments configured the token under many
// names (including front-end build prefixes), and some misconfigured
// environments exported the token itself as a variable name, so resolution
// is a bounded chain of heuristics rather than a single lookup. Absence is
// a valid outcome that drives fallback data, never an error.
package credentials

import (
	"os"
	"strings"
)

// CredentialSource identifies which stage of the chain found the token.
type CredentialSource string

const (
	SourcePreferred   CredentialSource = "preferred"     // exact canonical name
	SourceLowercase   CredentialSource = "lowercase"     // lower-cased canonical name
	SourceScan        CredentialSource = "scan"          // token-shaped value of any var
	SourceNameAsToken CredentialSource = "name-as-token" // var name itself looks like a token
	SourceNone        CredentialSource = "none"
)

// Credential is a discovered provider token. The zero value means "none".
type Credential struct {
	Key    string // environment variable name the token came from
	Token  string
	Source CredentialSource
}

// Found reports whether a token was discovered.
func (c Credential) Found() bool { return c.Token != "" }

// Preview returns a redacted form of the token safe for logs and response
// metadata: a 4-char prefix and suffix around an ellipsis.
func (c Credential) Preview() string {
	if c.Token == "" {
		return ""
	}
	if len(c.Token) <= 8 {
		return c.Token[:1] + "..."
	}
	return c.Token[:4] + "..." + c.Token[len(c.Token)-4:]
}

// preferredNames is the ordered list of recognized variable names, highest
// priority first. The prefixed variants cover tokens leaked into front-end
// build environments.
var preferredNames = []string{
	"TIINGO_KEY",
	"TIINGO_API_KEY",
	"TIINGO_API_TOKEN",
	"TIINGO_TOKEN",
	"TIINGO_ACCESS_TOKEN",
	"TIINGO_ACCESS_KEY",
	"TIINGO_AUTH_TOKEN",
	"TIINGO_SECRET",
	"TIINGO_API_SECRET",
	"VITE_TIINGO_API_KEY",
	"VITE_TIINGO_TOKEN",
	"REACT_APP_TIINGO_API_KEY",
	"REACT_APP_TIINGO_TOKEN",
	"NEXT_PUBLIC_TIINGO_API_KEY",
	"VUE_APP_TIINGO_API_KEY",
}

// rejectedLiterals are values that match the token shape grammar but are
// obviously configuration noise.
var rejectedLiterals = map[string]bool{
	"true": true, "false": true, "null": true, "nil": true,
	"none": true, "undefined": true, "0": true, "1": true,
}

const (
	minTokenLen = 24
	maxTokenLen = 128
)

// Resolver discovers a credential from the process environment. The
// environment accessor is injectable for tests.
type Resolver struct {
	environ func() []string
	getenv  func(string) string
}

// NewResolver creates a resolver over the real process environment.
func NewResolver() *Resolver {
	return &Resolver{environ: os.Environ, getenv: os.Getenv}
}

// NewResolverFromEnv creates a resolver over a fixed environment map.
func NewResolverFromEnv(env map[string]string) *Resolver {
	return &Resolver{
		environ: func() []string {
			pairs := make([]string, 0, len(env))
			for k, v := range env {
				pairs = append(pairs, k+"="+v)
			}
			return pairs
		},
		getenv: func(k string) string { return env[k] },
	}
}

// Resolve runs the lookup chain and returns the first match, or a zero
// Credential when nothing is configured. It never fails.
func (r *Resolver) Resolve() Credential {
	// Stage 1: canonical names, in priority order.
	for _, name := range preferredNames {
		if v := strings.TrimSpace(r.getenv(name)); v != "" {
			return Credential{Key: name, Token: v, Source: SourcePreferred}
		}
	}

	// Stage 2: the same names lower-cased.
	for _, name := range preferredNames {
		lower := strings.ToLower(name)
		if v := strings.TrimSpace(r.getenv(lower)); v != "" {
			return Credential{Key: lower, Token: v, Source: SourceLowercase}
		}
	}

	// Stage 3: any variable whose value looks like a token.
	for _, pair := range r.environ() {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if tok := extractToken(value); tok != "" {
			return Credential{Key: name, Token: tok, Source: SourceScan}
		}
	}

	// Stage 4: misconfiguration recovery, where a variable *name* is
	// itself token-shaped (e.g. `export <token>=` in a startup script).
	for _, pair := range r.environ() {
		name, _, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if tok := extractToken(name); tok == name {
			return Credential{Key: name, Token: name, Source: SourceNameAsToken}
		}
	}

	return Credential{Source: SourceNone}
}

// extractToken returns the longest token-shaped run in s, or "" when none
// qualifies. Token shape: alphanumeric plus '-' and '_', 24-128 chars,
// excluding rejected literals.
func extractToken(s string) string {
	s = strings.TrimSpace(s)
	best := ""
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		run := s[start:end]
		if isTokenShaped(run) && len(run) > len(best) {
			best = run
		}
		start = -1
	}
	for i, r := range s {
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(s))
	return best
}

func isTokenShaped(s string) bool {
	if len(s) < minTokenLen || len(s) > maxTokenLen {
		return false
	}
	return !rejectedLiterals[strings.ToLower(s)]
}

func isTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}
