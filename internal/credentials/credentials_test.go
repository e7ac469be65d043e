package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleToken = "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6" // 32 chars

func resolve(env map[string]string) Credential {
	return NewResolverFromEnv(env).Resolve()
}

func TestResolvePreferredName(t *testing.T) {
	cred := resolve(map[string]string{
		"TIINGO_KEY": sampleToken,
		"PATH":       "/usr/bin",
	})
	assert.Equal(t, "TIINGO_KEY", cred.Key)
	assert.Equal(t, sampleToken, cred.Token)
	assert.Equal(t, SourcePreferred, cred.Source)
	assert.True(t, cred.Found())
}

func TestResolvePreferredOrder(t *testing.T) {
	// TIINGO_KEY outranks every other canonical name.
	cred := resolve(map[string]string{
		"TIINGO_API_KEY": "second-choice-token-abcdef123456",
		"TIINGO_KEY":     sampleToken,
	})
	assert.Equal(t, "TIINGO_KEY", cred.Key)
	assert.Equal(t, sampleToken, cred.Token)
}

func TestResolvePrefixedFrameworkNames(t *testing.T) {
	cred := resolve(map[string]string{"VITE_TIINGO_API_KEY": sampleToken})
	assert.Equal(t, "VITE_TIINGO_API_KEY", cred.Key)
	assert.Equal(t, SourcePreferred, cred.Source)
}

func TestResolveLowercaseName(t *testing.T) {
	cred := resolve(map[string]string{"tiingo_api_key": sampleToken})
	assert.Equal(t, "tiingo_api_key", cred.Key)
	assert.Equal(t, SourceLowercase, cred.Source)
}

func TestResolveScanTokenShapedValue(t *testing.T) {
	cred := resolve(map[string]string{"MY_SECRET": sampleToken})
	assert.Equal(t, "MY_SECRET", cred.Key)
	assert.Equal(t, sampleToken, cred.Token)
	assert.Equal(t, SourceScan, cred.Source)
}

func TestResolveScanExtractsEmbeddedToken(t *testing.T) {
	// A token inside a URL-ish value is still recoverable.
	cred := resolve(map[string]string{
		"API_URL": "https://api.example.com/?token=" + sampleToken,
	})
	assert.Equal(t, SourceScan, cred.Source)
	assert.Equal(t, sampleToken, cred.Token)
}

func TestResolveNameAsToken(t *testing.T) {
	// A startup script did `export <token>=` and the token became a name.
	cred := resolve(map[string]string{sampleToken: ""})
	assert.Equal(t, SourceNameAsToken, cred.Source)
	assert.Equal(t, sampleToken, cred.Token)
	assert.Equal(t, sampleToken, cred.Key)
}

func TestResolveNone(t *testing.T) {
	cred := resolve(map[string]string{
		"PATH":  "/usr/bin:/bin",
		"SHELL": "/bin/bash",
		"DEBUG": "true",
	})
	assert.False(t, cred.Found())
	assert.Equal(t, SourceNone, cred.Source)
	assert.Empty(t, cred.Key)
}

func TestResolveTrimsWhitespace(t *testing.T) {
	cred := resolve(map[string]string{"TIINGO_KEY": "  " + sampleToken + "  "})
	assert.Equal(t, sampleToken, cred.Token)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare token", sampleToken, sampleToken},
		{"too short", "abc123", ""},
		{"too long", strings.Repeat("a", 129), ""},
		{"max length ok", strings.Repeat("a", 128), strings.Repeat("a", 128)},
		{"embedded in url", "https://x.com/?t=" + sampleToken + "&a=1", sampleToken},
		{"longest run wins", "short_prefix_here " + sampleToken + "extra12345678", sampleToken + "extra12345678"},
		{"path not a token", "/usr/local/bin:/usr/bin:/bin", ""},
		{"rejected literal shape", "", ""},
		{"underscores and dashes", "tok-en_" + sampleToken, "tok-en_" + sampleToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractToken(tt.input))
		})
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", ""},
		{"short", "s..."},
		{"12345678", "1..."},
		{"123456789", "1234...6789"},
		{sampleToken, "a1b2...c5d6"},
	}
	for _, tt := range tests {
		c := Credential{Token: tt.token}
		assert.Equal(t, tt.want, c.Preview(), "token %q", tt.token)
	}
}
