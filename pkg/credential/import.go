package credential

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ImportResult reports how many new entries an import added per pool.
type ImportResult struct {
	TokensAdded  int `json:"tokens_added"`
	CookiesAdded int `json:"cookies_added"`
}

// ParseCookieHeader extracts credential material from a raw cookie
// header string. It returns the bearer token from a `token=` field and
// the session cookie from an `ssxmod_itna=` field; either may be empty
// when absent or implausible.
//
// A token value is accepted only if it plausibly is a credential:
// prefixed "sk-", or JWT-shaped (two dots and longer than 50
// characters), or otherwise longer than 20 characters. This filters out
// placeholder and tracking values that share the cookie name.
func ParseCookieHeader(raw string) (token, cookie string) {
	for _, field := range strings.Split(raw, ";") {
		field = strings.TrimSpace(field)

		name, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(name) {
		case "token":
			if plausibleToken(value) {
				token = value
			}
		case "ssxmod_itna":
			if value != "" {
				cookie = value
			}
		}
	}
	return token, cookie
}

// plausibleToken reports whether a value looks like a usable bearer
// credential rather than a placeholder.
func plausibleToken(value string) bool {
	if value == "" {
		return false
	}
	if strings.HasPrefix(value, "sk-") {
		return true
	}
	if strings.Count(value, ".") == 2 && len(value) > 50 {
		return true
	}
	return len(value) > 20
}

// ImportCookies parses a batch of raw cookie-header lines and inserts
// the extracted credentials into their pools. Duplicate values are
// skipped silently by Insert; the result counts only new entries.
func (m *Manager) ImportCookies(ctx context.Context, lines []string) (*ImportResult, error) {
	result := &ImportResult{}

	for _, line := range lines {
		token, cookie := ParseCookieHeader(line)

		if token != "" {
			added, err := m.Insert(ctx, KindToken, token)
			if err != nil {
				return nil, fmt.Errorf("failed to import token: %w", err)
			}
			if added {
				result.TokensAdded++
			}
		}

		if cookie != "" {
			added, err := m.Insert(ctx, KindCookie, cookie)
			if err != nil {
				return nil, fmt.Errorf("failed to import cookie: %w", err)
			}
			if added {
				result.CookiesAdded++
			}
		}
	}

	return result, nil
}

// ImportSeedFile reads a file of raw cookie-header lines and imports
// them. Blank lines and lines starting with "#" are skipped.
func (m *Manager) ImportSeedFile(ctx context.Context, path string) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	return m.ImportCookies(ctx, lines)
}
