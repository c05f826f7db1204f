package fetch

import (
	"encoding/json"
	"mime"
	"strings"
)

// Result is a successful response. It is never mutated after Fetch returns it.
type Result struct {
	Body        []byte
	ContentType string
	FinalURL    string
	Status      int
	Cached      bool
}

// Decode unmarshals the body as JSON into v
func (r *Result) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// IsJSON reports whether a Content-Type header names a JSON payload
func IsJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}

	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
