package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Norgate-AV/lakefetch/internal/digest"
)

// Named is a field the Transparency Portal returns either as a plain
// string or as an object with a name or description
type Named struct {
	Nome              string `json:"nome,omitempty"`
	RazaoSocial       string `json:"razaoSocial,omitempty"`
	Descricao         string `json:"descricao,omitempty"`
	DescricaoResumida string `json:"descricaoResumida,omitempty"`
	Sigla             string `json:"sigla,omitempty"`
	CodigoFormatado   string `json:"codigoFormatado,omitempty"`
}

func (n *Named) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &n.Nome)
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	type plain Named
	return json.Unmarshal(data, (*plain)(n))
}

// Label returns the most descriptive non-empty field
func (n Named) Label() string {
	for _, s := range []string{n.Nome, n.RazaoSocial, n.DescricaoResumida, n.Descricao, n.Sigla} {
		if s != "" {
			return s
		}
	}
	return ""
}

// RawSanction is one CEIS/CNEP record as returned by the API
type RawSanction struct {
	Sancionado        Named  `json:"sancionado"`
	CpfCnpjSancionado string `json:"cpfCnpjSancionado"`
	TipoSancao        Named  `json:"tipoSancao"`
	DataInicioSancao  string `json:"dataInicioSancao"`
	DataFimSancao     string `json:"dataFimSancao"`
	OrgaoSancionador  Named  `json:"orgaoSancionador"`
	UfSancionado      string `json:"ufSancionado"`
}

// Document returns the sanctioned party's CPF/CNPJ from whichever field holds it
func (r RawSanction) Document() string {
	if r.CpfCnpjSancionado != "" {
		return r.CpfCnpjSancionado
	}
	return r.Sancionado.CodigoFormatado
}

// Sanction is the cleaned silver record
type Sanction struct {
	ID         string `json:"sanction_id"`
	Registry   string `json:"registry_type"`
	Entity     string `json:"sanctioned_entity,omitempty"`
	EntityType string `json:"entity_type"`
	Document   string `json:"cpf_cnpj,omitempty"`
	Type       string `json:"sanction_type,omitempty"`
	StartDate  string `json:"sanction_start_date,omitempty"`
	EndDate    string `json:"sanction_end_date,omitempty"`
	Agency     string `json:"sanctioning_agency,omitempty"`
	StateCode  string `json:"state_code,omitempty"`
}

// ParseSanctions decodes a bronze sanctions array
func ParseSanctions(body []byte) ([]RawSanction, error) {
	var raw []RawSanction
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode sanctions: %w", err)
	}
	return raw, nil
}

// CleanSanction converts a raw record. idx is its position in the
// registry's bronze file and keeps IDs unique for repeated documents.
func CleanSanction(registry string, idx int, r RawSanction) Sanction {
	doc := digitsOnly(r.Document())
	entityType := EntityType(doc)

	id := fmt.Sprintf("%s_%08d", registry, idx)
	if doc != "" {
		id = fmt.Sprintf("%s_%s_%05d", registry, digest.Sum([]byte(doc))[:7], idx)
	}

	s := Sanction{
		ID:         id,
		Registry:   registry,
		Entity:     truncate(r.Sancionado.Label(), 500),
		EntityType: entityType,
		Document:   MaskDocument(doc, entityType),
		Type:       truncate(r.TipoSancao.Label(), 200),
		StartDate:  NormalizeDate(r.DataInicioSancao),
		EndDate:    NormalizeDate(r.DataFimSancao),
		Agency:     truncate(r.OrgaoSancionador.Label(), 200),
	}

	if code, ok := StateCodeForUF(r.UfSancionado); ok {
		s.StateCode = code
	}

	return s
}

// EntityType is PF for an 11 digit CPF, PJ for a 14 digit CNPJ
func EntityType(doc string) string {
	switch len(digitsOnly(doc)) {
	case 11:
		return "PF"
	case 14:
		return "PJ"
	default:
		return "UNKNOWN"
	}
}

// MaskDocument hides most of a CPF/CNPJ
func MaskDocument(doc, entityType string) string {
	doc = digitsOnly(doc)

	switch {
	case doc == "":
		return ""
	case entityType == "PF" && len(doc) == 11:
		return fmt.Sprintf("***.***%s-%s", doc[6:9], doc[9:])
	case entityType == "PJ" && len(doc) == 14:
		return fmt.Sprintf("**.***.***/%s-%s", doc[8:12], doc[12:])
	case len(doc) > 4:
		return strings.Repeat("*", len(doc)-4) + doc[len(doc)-4:]
	default:
		return doc
	}
}

var dateLayouts = []string{"02/01/2006", "2006-01-02", "2006-01-02T15:04:05", time.RFC3339, "02-01-2006"}

// NormalizeDate returns a YYYY-MM-DD date, or "" if s is not a known format
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}

	return ""
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
