package redact

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// defaultDenyGlobs are always excluded regardless of user configuration.
var defaultDenyGlobs = []string{
	"**/.env",
	"**/.env.*",
	"**/*.pem",
	"**/*.key",
	"**/id_rsa",
	"**/id_ed25519",
	"**/*.p12",
	"**/*.pfx",
	"**/secrets/**",
	"**/.secrets",
}

// Policy decides whether a repository-relative path may contribute context.
// Deny globs always win; when allow directories are configured, paths outside
// every allowed prefix are excluded too.
type Policy struct {
	deny      []glob.Glob
	allowDirs []string
}

// NewPolicy compiles the built-in and configured deny globs. Each pattern is
// compiled twice, once as given and once with any leading "**/" stripped, so
// patterns like "**/.env" also match at the repository root.
func NewPolicy(denyGlobs, allowDirs []string) (*Policy, error) {
	patterns := make([]string, 0, len(defaultDenyGlobs)+len(denyGlobs))
	patterns = append(patterns, defaultDenyGlobs...)
	patterns = append(patterns, denyGlobs...)

	p := &Policy{allowDirs: allowDirs}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling deny glob %q: %w", pattern, err)
		}
		p.deny = append(p.deny, g)

		stripped := pattern
		for strings.HasPrefix(stripped, "**/") {
			stripped = strings.TrimPrefix(stripped, "**/")
		}
		if stripped != pattern {
			g, err := glob.Compile(stripped, '/')
			if err != nil {
				return nil, fmt.Errorf("compiling deny glob %q: %w", stripped, err)
			}
			p.deny = append(p.deny, g)
		}
	}
	return p, nil
}

// ShouldExclude reports whether path must not be used as context.
func (p *Policy) ShouldExclude(path string) bool {
	path = strings.TrimPrefix(path, "/")

	for _, g := range p.deny {
		if g.Match(path) {
			return true
		}
	}

	if len(p.allowDirs) > 0 {
		for _, dir := range p.allowDirs {
			dir = strings.TrimSuffix(dir, "/")
			if path == dir || strings.HasPrefix(path, dir+"/") {
				return false
			}
		}
		return true
	}

	return false
}
