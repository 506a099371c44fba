// Package reference parses order-group references out of free-text
// bank-transfer descriptions.
package reference

import (
	"regexp"
	"sort"
	"strings"
)

// tokenPattern matches ORDER followed by an optional single underscore or
// hyphen and exactly 24 hex characters. Matching is case-insensitive and a
// trailing 25th hex character disqualifies the token.
var tokenPattern = regexp.MustCompile(`(?i)ORDER[_-]?([0-9a-f]{24})([0-9a-f])?`)

// ExtractGroupIDs scans a transfer description and returns the order-group
// ids referenced in it, lowercased, deduplicated, in order of first
// appearance. An empty slice means the description carried no usable
// reference; callers decide whether that is an error.
func ExtractGroupIDs(description string) []string {
	if description == "" {
		return nil
	}

	matches := tokenPattern.FindAllStringSubmatch(description, -1)
	if len(matches) == 0 {
		return nil
	}

	ids := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if m[2] != "" {
			// 25+ hex chars after the prefix: not a valid reference
			continue
		}
		id := strings.ToLower(m[1])
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// GroupSetKey normalizes a set of group ids into the canonical ledger key:
// lowercased, deduplicated, sorted ascending, joined with ",". Two transfers
// settling the same set of groups always produce the same key regardless of
// the order the ids appeared in the memo.
func GroupSetKey(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	normalized := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}
	sort.Strings(normalized)
	return strings.Join(normalized, ",")
}
