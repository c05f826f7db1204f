package fetch

import (
	"maps"
	"net/url"
	"sort"
	"strings"
)

// Endpoint is one logical GET request. Its identity for caching is the
// materialized URL plus headers, never the dataset it belongs to.
type Endpoint struct {
	URL    string
	Params map[string]string
	Header map[string]string

	// Session names a cookie session shared by every request carrying the
	// same name. Empty means a stateless request.
	Session string
}

// WithParams returns a copy of the endpoint with extra parameters merged
// over the existing ones
func (e Endpoint) WithParams(params map[string]string) Endpoint {
	merged := make(map[string]string, len(e.Params)+len(params))
	maps.Copy(merged, e.Params)
	maps.Copy(merged, params)

	return Endpoint{URL: e.URL, Params: merged, Header: e.Header, Session: e.Session}
}

// Materialize builds the full request URL. Parameters are sorted by key so
// identical logical requests always produce the same string. Slashes in
// parameter values are kept as-is because some upstream APIs reject %2F.
func (e Endpoint) Materialize() string {
	if len(e.Params) == 0 {
		return e.URL
	}

	keys := make([]string, 0, len(e.Params))
	for k := range e.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(e.URL)
	if strings.Contains(e.URL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}

	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(k))
		b.WriteByte('=')
		b.WriteString(escape(e.Params[k]))
	}

	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "%2F", "/")
}

// JoinURL joins a base URL and an endpoint path with exactly one slash
func JoinURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return base
	}

	return base + "/" + path
}
