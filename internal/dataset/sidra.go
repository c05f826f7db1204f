package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrHeaderOnly means a SIDRA response had no data rows
var ErrHeaderOnly = errors.New("sidra response has only the header row")

// SidraRow is one row of a SIDRA /values response. The first row of
// every response is a header that names the columns.
type SidraRow struct {
	NC  string `json:"NC"`
	NN  string `json:"NN"`
	MC  string `json:"MC"`
	MN  string `json:"MN"`
	V   string `json:"V"`
	D1C string `json:"D1C"`
	D1N string `json:"D1N"`
	D2C string `json:"D2C"`
	D2N string `json:"D2N"`
	D3C string `json:"D3C"`
	D3N string `json:"D3N"`
	D4C string `json:"D4C,omitempty"`
	D4N string `json:"D4N,omitempty"`
}

// ParseSidra decodes a SIDRA response and drops the header row
func ParseSidra(body []byte) ([]SidraRow, error) {
	var rows []SidraRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode sidra response: %w", err)
	}

	if len(rows) < 2 {
		return nil, ErrHeaderOnly
	}

	return rows[1:], nil
}

// SidraPath builds /t/<table>/n6/all/v/<var>/p/<period>[/<classif>]?formato=json.
// n6/all selects every municipality. Spaces in the period are encoded.
func SidraPath(table, variable, period, classifications string) string {
	p := fmt.Sprintf("/t/%s/n6/all/v/%s/p/%s",
		table, variable, strings.ReplaceAll(period, " ", "%20"))

	if c := strings.Trim(classifications, "/"); c != "" {
		p += "/" + c
	}

	return p + "?formato=json"
}

// ParseSidraValue returns nil for the placeholders SIDRA uses for
// suppressed or missing values
func ParseSidraValue(v string) *float64 {
	v = strings.TrimSpace(v)
	switch v {
	case "", "-", "..", "...", "X":
		return nil
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return nil
	}

	return &f
}
