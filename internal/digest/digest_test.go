package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	// Known SHA-256 of "abc"
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Sum([]byte("abc")))
	assert.Len(t, Sum(nil), Size)
	assert.NotEqual(t, Sum([]byte("a")), Sum([]byte("b")))
}

func TestJSON(t *testing.T) {
	// Map key order does not matter
	h1, b1, err := JSON(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	h2, b2, err := JSON(map[string]int{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, `{"a":1,"b":2}`, string(b1))
	assert.Equal(t, b1, b2)

	// Element order does
	h3, _, err := JSON([]int{1, 2})
	require.NoError(t, err)
	h4, _, err := JSON([]int{2, 1})
	require.NoError(t, err)
	assert.NotEqual(t, h3, h4, "reordered arrays are treated as changed")

	_, _, err = JSON(make(chan int))
	assert.Error(t, err)
}

func TestRequest(t *testing.T) {
	url := "https://example.test/api?pagina=1"

	k1 := Request(url, map[string]string{"Accept": "*/*", "User-Agent": "x"})
	k2 := Request(url, map[string]string{"user-agent": "x", "accept": "*/*"})
	assert.Equal(t, k1, k2, "header name case and order should not matter")

	k3 := Request(url, map[string]string{"Accept": "*/*", "User-Agent": "y"})
	assert.NotEqual(t, k1, k3)

	k4 := Request("https://example.test/api?pagina=2", map[string]string{"Accept": "*/*", "User-Agent": "x"})
	assert.NotEqual(t, k1, k4)
}
