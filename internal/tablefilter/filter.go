// Package tablefilter expands table name patterns against a live table
// list. Patterns support a single wildcard character '*' that matches any
// run of characters; everything else is matched literally.
package tablefilter

import (
	"regexp"
	"sort"
	"strings"
)

// Expand resolves patterns against the given table names. Literal
// patterns match exactly; patterns containing '*' match as a wildcard.
// A pattern matching nothing contributes nothing. The result preserves
// the order of tables and contains no duplicates.
func Expand(patterns []string, tables []string) []string {
	if len(patterns) == 0 {
		return nil
	}

	matched := make(map[string]bool, len(tables))
	for _, pattern := range patterns {
		if !strings.Contains(pattern, "*") {
			for _, table := range tables {
				if table == pattern {
					matched[table] = true
				}
			}
			continue
		}
		re, err := compilePattern(pattern)
		if err != nil {
			continue
		}
		for _, table := range tables {
			if re.MatchString(table) {
				matched[table] = true
			}
		}
	}

	result := make([]string, 0, len(matched))
	for _, table := range tables {
		if matched[table] {
			result = append(result, table)
		}
	}
	return result
}

// HasWildcard reports whether any pattern requires a live table list to
// resolve.
func HasWildcard(patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(p, "*") {
			return true
		}
	}
	return false
}

// compilePattern turns a wildcard pattern into an anchored regular
// expression. All characters except '*' are treated literally.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

// Sorted returns a sorted copy of the given table names. Used to keep
// ignore-table arguments deterministic across runs.
func Sorted(tables []string) []string {
	out := make([]string, len(tables))
	copy(out, tables)
	sort.Strings(out)
	return out
}
