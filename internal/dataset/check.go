package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Check validates a bronze payload and returns how many records it holds
type Check func(body []byte) (int, error)

var checks = map[string]Check{
	"":          CountRecords,
	"sidra":     CountSidra,
	"sanctions": CountSanctions,
}

// LookupCheck returns the check registered under name. The empty name is
// the generic JSON check.
func LookupCheck(name string) (Check, error) {
	c, ok := checks[name]
	if !ok {
		return nil, fmt.Errorf("unknown payload check %q", name)
	}
	return c, nil
}

// CountRecords accepts any JSON document. An array counts its elements,
// anything else counts as one record.
func CountRecords(body []byte) (int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err == nil {
		return len(items), nil
	}

	if !json.Valid(body) {
		return 0, errors.New("payload is not valid JSON")
	}

	return 1, nil
}

// CountSidra requires a SIDRA values array. A header-only response is
// valid and holds zero records.
func CountSidra(body []byte) (int, error) {
	rows, err := ParseSidra(body)
	if errors.Is(err, ErrHeaderOnly) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// CountSanctions requires an array of sanction records
func CountSanctions(body []byte) (int, error) {
	raw, err := ParseSanctions(body)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}
