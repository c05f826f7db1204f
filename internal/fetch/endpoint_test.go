package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpoint_Materialize(t *testing.T) {
	tests := []struct {
		name     string
		endpoint Endpoint
		expected string
	}{
		{
			name:     "no params",
			endpoint: Endpoint{URL: "https://api.example.com/v1/ceis"},
			expected: "https://api.example.com/v1/ceis",
		},
		{
			name: "params sorted by key",
			endpoint: Endpoint{
				URL:    "https://api.example.com/v1/ceis",
				Params: map[string]string{"pagina": "3", "codigoIBGE": "3550308", "ano": "2024"},
			},
			expected: "https://api.example.com/v1/ceis?ano=2024&codigoIBGE=3550308&pagina=3",
		},
		{
			name: "slashes kept, spaces escaped",
			endpoint: Endpoint{
				URL:    "https://api.example.com/v1/transferencias",
				Params: map[string]string{"mesAnoInicio": "01/2024", "nome": "sao paulo"},
			},
			expected: "https://api.example.com/v1/transferencias?mesAnoInicio=01/2024&nome=sao+paulo",
		},
		{
			name: "existing query string",
			endpoint: Endpoint{
				URL:    "https://apisidra.ibge.gov.br/values/t/4714?formato=json",
				Params: map[string]string{"x": "1"},
			},
			expected: "https://apisidra.ibge.gov.br/values/t/4714?formato=json&x=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.endpoint.Materialize())
		})
	}
}

func TestEndpoint_WithParams(t *testing.T) {
	base := Endpoint{URL: "https://x", Params: map[string]string{"a": "1", "b": "2"}, Session: "transparency"}

	next := base.WithParams(map[string]string{"b": "3", "c": "4"})

	assert.Equal(t, map[string]string{"a": "1", "b": "3", "c": "4"}, next.Params)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, base.Params, "original must be unchanged")
	assert.Equal(t, "transparency", next.Session)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://x/api/ceis", JoinURL("https://x/api/", "/ceis"))
	assert.Equal(t, "https://x/api/ceis", JoinURL("https://x/api", "ceis"))
	assert.Equal(t, "https://x/api", JoinURL("https://x/api/", ""))
}
