// Package ignore implements the glob-based path admission test (spec §4.B).
package ignore

import (
	"bufio"
	"os"
	"path"
	"strings"
)

// Matcher holds an ordered, immutable list of glob patterns loaded from an
// ignore file. Patterns are matched against normalized paths; a match on
// any pattern admits the path as ignored.
type Matcher struct {
	patterns []string
}

// New builds a Matcher from an explicit pattern list.
func New(patterns []string) *Matcher {
	cp := make([]string, len(patterns))
	copy(cp, patterns)
	return &Matcher{patterns: cp}
}

// Load reads newline-separated glob patterns from file, skipping blank
// lines and lines starting with '#'.
func Load(file string) (*Matcher, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(patterns), nil
}

// IsIgnored reports whether the normalized path matches any loaded pattern.
// A pattern matches either the full path or any path component, so that a
// pattern like "tmp_*" matches both "tmp_dir" and "tmp_dir/file.txt".
func (m *Matcher) IsIgnored(normalizedPath string) bool {
	for _, pat := range m.patterns {
		if ok, _ := path.Match(pat, normalizedPath); ok {
			return true
		}
		for _, seg := range strings.Split(normalizedPath, "/") {
			if ok, _ := path.Match(pat, seg); ok {
				return true
			}
		}
	}
	return false
}
