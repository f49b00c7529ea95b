package cache

import (
	"sort"
	"strings"
)

// credentialParams are never part of a cache key
var credentialParams = map[string]bool{
	"apikey":      true,
	"api_key":     true,
	"app_token":   true,
	"$$app_token": true,
	"token":       true,
	"access_key":  true,
}

// Key derives a deterministic cache key from an endpoint and its query params.
// Params are sorted by name and credentials are excluded, so the same logical
// request maps to the same key regardless of map order or API key.
func Key(endpoint string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for k := range params {
		if credentialParams[strings.ToLower(k)] {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, k := range names {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
