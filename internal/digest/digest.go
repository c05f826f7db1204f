// Package digest is the content addresser used for change detection.
//
// Every "did this change" question in lakefetch is answered by comparing
// SHA-256 digests: response cache keys, build input fingerprints and
// output dedup all go through this package. The digest is an integrity
// check, not a security boundary.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Size is the length of a hex encoded digest
const Size = sha256.Size * 2

// Sum returns the hex encoded SHA-256 of b
func Sum(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// JSON encodes v with the stable encoding and returns its digest together
// with the encoded bytes. Map keys are sorted by encoding/json, slices keep
// their order, so two payloads that differ only in element order hash
// differently.
func JSON(v any) (string, []byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	return Sum(b), b, nil
}

// Request creates the identity of a fully materialized GET request.
// Header names are case-insensitive and sorted for consistency.
func Request(url string, header map[string]string) string {
	names := make([]string, 0, len(header))
	lower := make(map[string]string, len(header))
	for k, v := range header {
		name := strings.ToLower(k)
		lower[name] = v
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(url))
	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{':'})
		h.Write([]byte(lower[name]))
	}

	return hex.EncodeToString(h.Sum(nil))
}
