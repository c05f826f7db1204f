// Package dataset holds the typed boundary records of the upstream APIs
// and the builders that turn bronze payloads into silver and gold tables.
//
// Every builder is a pure function of its inputs and always emits records
// in a stable order, so identical inputs give byte-identical outputs.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Norgate-AV/lakefetch/internal/digest"
)

// Input is one declared input of a transform, already read from storage
type Input struct {
	Key  string
	Name string
	Body []byte
}

// Output is the encoded result of a transform
type Output struct {
	Body    []byte
	Records int
	// Hash is the digest of Body
	Hash string
}

// Builder turns inputs into one output artifact
type Builder func(inputs []Input, opts map[string]string) (Output, error)

var builders = map[string]Builder{
	"census":    BuildCensus,
	"sanctions": BuildSanctions,
	"count_by":  BuildCountBy,
}

// Lookup returns the builder registered under kind
func Lookup(kind string) (Builder, error) {
	b, ok := builders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown transform kind %q", kind)
	}
	return b, nil
}

// Kinds lists the registered builder names
func Kinds() []string {
	kinds := make([]string, 0, len(builders))
	for k := range builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// CensusRecord is one silver census fact
type CensusRecord struct {
	MunicipalityCode string   `json:"municipality_code"`
	MunicipalityName string   `json:"municipality_name"`
	StateCode        string   `json:"state_code"`
	Region           string   `json:"region_name"`
	Indicator        string   `json:"indicator"`
	VariableCode     string   `json:"variable_code,omitempty"`
	VariableName     string   `json:"variable_name,omitempty"`
	Year             string   `json:"year,omitempty"`
	Category         string   `json:"category,omitempty"`
	Value            *float64 `json:"value"`
	Unit             string   `json:"unit,omitempty"`
}

// BuildCensus flattens SIDRA responses into census facts. The input name
// becomes the indicator. Rows without a valid municipality code are dropped.
func BuildCensus(inputs []Input, _ map[string]string) (Output, error) {
	var records []CensusRecord

	for _, in := range inputs {
		rows, err := ParseSidra(in.Body)
		if errors.Is(err, ErrHeaderOnly) {
			continue
		}
		if err != nil {
			return Output{}, fmt.Errorf("%s: %w", in.Key, err)
		}

		for _, row := range rows {
			code, ok := MunicipalityCode(row.D1C)
			if !ok {
				continue
			}

			year := row.D3N
			if year == "" {
				year = row.D3C
			}

			records = append(records, CensusRecord{
				MunicipalityCode: code,
				MunicipalityName: row.D1N,
				StateCode:        code[:2],
				Region:           RegionName(code[:2]),
				Indicator:        in.Name,
				VariableCode:     row.D2C,
				VariableName:     row.D2N,
				Year:             year,
				Category:         row.D4N,
				Value:            ParseSidraValue(row.V),
				Unit:             row.MN,
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.MunicipalityCode != b.MunicipalityCode {
			return a.MunicipalityCode < b.MunicipalityCode
		}
		if a.Indicator != b.Indicator {
			return a.Indicator < b.Indicator
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Category < b.Category
	})

	return encode(records)
}

// BuildSanctions cleans CEIS/CNEP style registries. The input name,
// upper-cased, is the registry type.
func BuildSanctions(inputs []Input, _ map[string]string) (Output, error) {
	var records []Sanction

	for _, in := range inputs {
		raw, err := ParseSanctions(in.Body)
		if err != nil {
			return Output{}, fmt.Errorf("%s: %w", in.Key, err)
		}

		registry := strings.ToUpper(in.Name)
		for idx, r := range raw {
			records = append(records, CleanSanction(registry, idx, r))
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return encode(records)
}

// CountRow is one gold aggregate row
type CountRow struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// BuildCountBy counts the records of every input grouped by the "field"
// option. Records missing the field are counted under "unknown".
func BuildCountBy(inputs []Input, opts map[string]string) (Output, error) {
	field := opts["field"]
	if field == "" {
		return Output{}, errors.New("count_by requires a field option")
	}

	counts := map[string]int{}
	for _, in := range inputs {
		var rows []map[string]any
		if err := json.Unmarshal(in.Body, &rows); err != nil {
			return Output{}, fmt.Errorf("%s: %w", in.Key, err)
		}

		for _, row := range rows {
			key := "unknown"
			if v, ok := row[field]; ok && v != nil {
				key = fmt.Sprint(v)
			}
			counts[key]++
		}
	}

	out := make([]CountRow, 0, len(counts))
	for k, n := range counts {
		out = append(out, CountRow{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return encode(out)
}

func encode[T any](records []T) (Output, error) {
	if records == nil {
		records = []T{}
	}

	hash, body, err := digest.JSON(records)
	if err != nil {
		return Output{}, err
	}

	return Output{Body: body, Records: len(records), Hash: hash}, nil
}
