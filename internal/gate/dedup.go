// Package gate holds the filters that decide which items and facts move on
// to the next pipeline stage.
package gate

import "strings"

// Dedup returns items in first-seen order with at most one item per key.
// Items whose key is empty after trimming are dropped.
func Dedup[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := strings.TrimSpace(key(it))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
