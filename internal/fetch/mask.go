package fetch

import (
	"fmt"
	"strings"
)

// MaskSecret hides a credential while keeping enough of it to tell keys apart
func MaskSecret(v string) string {
	if len(v) > 10 {
		return fmt.Sprintf("%s...%s (len=%d)", v[:6], v[len(v)-4:], len(v))
	}
	if v != "" {
		return "***"
	}

	return ""
}

// MaskHeaders returns a copy of header safe to log. The named secret
// headers and any Authorization header are masked unless unsafe is set.
func MaskHeaders(header map[string]string, secrets []string, unsafe bool) map[string]string {
	out := make(map[string]string, len(header))
	for k, v := range header {
		out[k] = v
	}
	if unsafe {
		return out
	}

	for k, v := range out {
		switch {
		case strings.EqualFold(k, "Authorization"):
			if token, ok := strings.CutPrefix(v, "Bearer "); ok {
				out[k] = "Bearer " + MaskSecret(token)
			} else if v != "" {
				out[k] = "***"
			}
		case isSecret(k, secrets):
			out[k] = MaskSecret(v)
		}
	}

	return out
}

func isSecret(name string, secrets []string) bool {
	for _, s := range secrets {
		if strings.EqualFold(name, s) {
			return true
		}
	}

	return false
}
