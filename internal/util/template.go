package util

import (
	"sort"
	"strings"
)

// RenderTemplate does a plain {var} replacement in a single pass, so values
// are never re-scanned for placeholders. Unknown placeholders are left as-is.
func RenderTemplate(body string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(body)
}
