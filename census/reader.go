package census

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"escolas-wikidata/models"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("census: missing required column")

// Column names of the Censo Escolar microdata file.
const (
	ColName              = "NO_ENTIDADE"
	ColINEPCode          = "CO_ENTIDADE"
	ColMunicipalityName  = "NO_MUNICIPIO"
	ColMunicipalityCode  = "CO_MUNICIPIO"
	ColState             = "SG_UF"
	ColStudents          = "QT_MAT_BAS"
	ColTeachers          = "QT_DOC_BAS"
	ColLocation          = "TP_LOCALIZACAO"
	ColDifferentiated    = "TP_LOCALIZACAO_DIFERENCIADA"
	ColOperatingStatus   = "TP_SITUACAO_FUNCIONAMENTO"
	ColPublicWater       = "IN_AGUA_REDE_PUBLICA"
	ColPublicSewerage    = "IN_ESGOTO_REDE_PUBLICA"
	ColPublicElectricity = "IN_ENERGIA_REDE_PUBLICA"
	ColLatitude          = "LATITUDE"
	ColLongitude         = "LONGITUDE"
)

var requiredColumns = []string{ColName, ColINEPCode}

// Reader streams census rows as RawSchools.
type Reader struct {
	csv    *csv.Reader
	closer io.Closer
	index  map[string]int
}

// Open opens the census file at path. encoding is "latin1" or "utf8".
func Open(path, encoding string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("census: open %q: %w", path, err)
	}

	r, err := NewReader(f, encoding)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header from src and prepares row decoding.
func NewReader(src io.Reader, encoding string) (*Reader, error) {
	if encoding == "latin1" {
		src = charmap.ISO8859_1.NewDecoder().Reader(src)
	}

	cr := csv.NewReader(src)
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("census: read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[h] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	return &Reader{csv: cr, index: index}, nil
}

// Next returns the next row, or io.EOF after the last one. A malformed
// row yields a non-EOF error; the caller may keep reading.
func (r *Reader) Next() (*models.RawSchool, error) {
	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("census: read row: %w", err)
	}

	line, _ := r.csv.FieldPos(0)
	get := func(col string) string {
		i, ok := r.index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	return &models.RawSchool{
		Line:              line,
		Name:              get(ColName),
		INEPCode:          get(ColINEPCode),
		MunicipalityName:  get(ColMunicipalityName),
		MunicipalityCode:  get(ColMunicipalityCode),
		State:             get(ColState),
		Students:          get(ColStudents),
		Teachers:          get(ColTeachers),
		Location:          get(ColLocation),
		Differentiated:    get(ColDifferentiated),
		OperatingStatus:   get(ColOperatingStatus),
		PublicWater:       get(ColPublicWater),
		PublicSewerage:    get(ColPublicSewerage),
		PublicElectricity: get(ColPublicElectricity),
		Latitude:          get(ColLatitude),
		Longitude:         get(ColLongitude),
	}, nil
}

// Close closes the underlying file when the Reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
