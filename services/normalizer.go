package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// connectives stay lowercase unless they open the name.
var connectives = map[string]struct{}{
	"a": {}, "à": {}, "ao": {}, "aos": {}, "as": {}, "com": {},
	"da": {}, "das": {}, "de": {}, "do": {}, "dos": {}, "e": {},
	"em": {}, "na": {}, "nas": {}, "no": {}, "nos": {}, "o": {},
	"os": {}, "para": {}, "por": {},
}

// corrections is keyed by the uppercase form of a word. Values must
// normalise to themselves.
var corrections = map[string]string{
	// acronyms
	"CAIC": "CAIC", "CE": "CE", "CED": "CED", "CEF": "CEF", "CEI": "CEI",
	"CEM": "CEM", "CEMEI": "CEMEI", "CIEP": "CIEP", "CMEI": "CMEI",
	"E.E.": "E.E.", "E.M.": "E.M.", "EE": "EE", "EEEF": "EEEF", "EEEM": "EEEM",
	"EEF": "EEF", "EEM": "EEM", "EMEB": "EMEB", "EMEF": "EMEF",
	"EMEI": "EMEI", "EMEIEF": "EMEIEF", "ETEC": "ETEC", "APAE": "APAE",
	"SESI": "SESI", "SENAI": "SENAI", "SESC": "SESC", "IFPE": "IFPE",
	"II": "II", "III": "III", "IV": "IV", "VI": "VI", "VII": "VII",
	"VIII": "VIII", "IX": "IX", "XI": "XI", "XII": "XII",

	// missing diacritics
	"SAO": "São", "JOSE": "José", "JOAO": "João", "CONCEICAO": "Conceição",
	"EDUCACAO": "Educação", "ANTONIO": "Antônio", "SEBASTIAO": "Sebastião",
	"ESTEVAO": "Estevão", "INES": "Inês",
	"CANDIDO": "Cândido", "PLACIDO": "Plácido", "VITORIA": "Vitória",
	"GLORIA": "Glória", "ASSUNCAO": "Assunção", "ANUNCIACAO": "Anunciação",
	"NAZARE": "Nazaré", "CORACAO": "Coração",
	"ESPIRITO": "Espírito", "INFANCIA": "Infância", "FUNDACAO": "Fundação",
	"PROFISSIONALIZACAO": "Profissionalização", "TECNICA": "Técnica",
	"TECNICO": "Técnico", "BASICA": "Básica", "BASICO": "Básico",
	"MEDIO": "Médio", "INDIGENA": "Indígena",
	"PUBLICA": "Pública", "ACAO": "Ação",
	"UNIAO": "União", "ESPERANCA": "Esperança", "CRIANCA": "Criança",
	"CRIANCAS": "Crianças", "GRACA": "Graça",
	"GRACAS": "Graças", "FATIMA": "Fátima", "LUCIA": "Lúcia",
	"LUIS": "Luís", "MARCIA": "Márcia", "PATRICIA": "Patrícia",
	"BRAS": "Brás", "TOMAS": "Tomás", "ANDRE": "André", "VINICIUS": "Vinícius",
	"CESAR": "César", "HELIO": "Hélio", "IRMA": "Irmã", "IRMAO": "Irmão",
	"CORREGO": "Córrego", "RIBEIRAO": "Ribeirão", "SITIO": "Sítio",
	"AGRICOLA": "Agrícola", "PARAISO": "Paraíso",
	"TUPA": "Tupã", "PIAUI": "Piauí",
	"AMAPA": "Amapá", "GOIAS": "Goiás", "MARANHAO": "Maranhão",
	"PARANA": "Paraná", "CEARA": "Ceará", "RONDONIA": "Rondônia",
}

// NormalizeName title-cases a census name for Brazilian Portuguese, keeping
// connectives lowercase, fixing known misspellings and collapsing
// immediately repeated words. NormalizeName(NormalizeName(s)) == NormalizeName(s).
func NormalizeName(raw string) string {
	caser := cases.Title(language.BrazilianPortuguese)
	words := strings.FieldsFunc(norm.NFC.String(raw), unicode.IsSpace)

	out := make([]string, 0, len(words))
	for i, w := range words {
		word := normalizeWord(caser, w, i == 0)
		if n := len(out); n > 0 && strings.EqualFold(out[n-1], word) {
			continue
		}
		out = append(out, word)
	}
	return strings.Join(out, " ")
}

func normalizeWord(caser cases.Caser, w string, first bool) string {
	if fixed, ok := corrections[strings.ToUpper(w)]; ok {
		return fixed
	}

	lower := strings.ToLower(w)
	if !first {
		if _, ok := connectives[lower]; ok {
			return lower
		}
	}
	caser.Reset()
	return caser.String(lower)
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
