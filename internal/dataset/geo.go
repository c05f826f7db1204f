package dataset

import "strings"

type state struct {
	UF     string
	Name   string
	Region string
}

var states = map[string]state{
	"11": {"RO", "Rondônia", "1"},
	"12": {"AC", "Acre", "1"},
	"13": {"AM", "Amazonas", "1"},
	"14": {"RR", "Roraima", "1"},
	"15": {"PA", "Pará", "1"},
	"16": {"AP", "Amapá", "1"},
	"17": {"TO", "Tocantins", "1"},
	"21": {"MA", "Maranhão", "2"},
	"22": {"PI", "Piauí", "2"},
	"23": {"CE", "Ceará", "2"},
	"24": {"RN", "Rio Grande do Norte", "2"},
	"25": {"PB", "Paraíba", "2"},
	"26": {"PE", "Pernambuco", "2"},
	"27": {"AL", "Alagoas", "2"},
	"28": {"SE", "Sergipe", "2"},
	"29": {"BA", "Bahia", "2"},
	"31": {"MG", "Minas Gerais", "3"},
	"32": {"ES", "Espírito Santo", "3"},
	"33": {"RJ", "Rio de Janeiro", "3"},
	"35": {"SP", "São Paulo", "3"},
	"41": {"PR", "Paraná", "4"},
	"42": {"SC", "Santa Catarina", "4"},
	"43": {"RS", "Rio Grande do Sul", "4"},
	"50": {"MS", "Mato Grosso do Sul", "5"},
	"51": {"MT", "Mato Grosso", "5"},
	"52": {"GO", "Goiás", "5"},
	"53": {"DF", "Distrito Federal", "5"},
}

var regionNames = map[string]string{
	"1": "Norte",
	"2": "Nordeste",
	"3": "Sudeste",
	"4": "Sul",
	"5": "Centro-Oeste",
}

// MunicipalityCode validates a 7 digit IBGE municipality code. Float
// renderings such as "1100015.0" are accepted.
func MunicipalityCode(raw string) (string, bool) {
	code := strings.TrimSpace(raw)
	if i := strings.IndexByte(code, '.'); i >= 0 {
		code = code[:i]
	}

	if len(code) != 7 {
		return "", false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	if _, ok := states[code[:2]]; !ok {
		return "", false
	}

	return code, true
}

// StateCodeForUF maps a UF abbreviation, or an existing state code, to
// the two digit IBGE state code
func StateCodeForUF(uf string) (string, bool) {
	uf = strings.ToUpper(strings.TrimSpace(uf))
	if _, ok := states[uf]; ok {
		return uf, true
	}

	for code, st := range states {
		if st.UF == uf {
			return code, true
		}
	}

	return "", false
}

// RegionName returns the macro region of a state code
func RegionName(stateCode string) string {
	if st, ok := states[stateCode]; ok {
		return regionNames[st.Region]
	}
	return "Unknown"
}
