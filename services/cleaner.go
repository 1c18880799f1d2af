package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"escolas-wikidata/models"
	"escolas-wikidata/utils"
)

var (
	// inepCodeRegexp matches the 8-digit INEP school code
	inepCodeRegexp = regexp.MustCompile(`^\d{8}$`)
	// ibgeCodeRegexp matches the 7-digit IBGE municipality code
	ibgeCodeRegexp = regexp.MustCompile(`^\d{7}$`)
)

// ErrInvalidCode is returned for rows whose INEP code is missing or malformed.
var ErrInvalidCode = errors.New("invalid INEP code")

// ErrMissingName is returned for rows without a school name.
var ErrMissingName = errors.New("missing school name")

// Brazil's bounding box, used to reject swapped or zeroed coordinates.
const (
	minLatitude  = -34.0
	maxLatitude  = 5.5
	minLongitude = -74.0
	maxLongitude = -28.5
)

// statusActive is TP_SITUACAO_FUNCIONAMENTO for a school in operation.
const statusActive = "1"

// Cleaner transforms RawSchool rows into clean, validated Schools.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean validates one raw row and returns the typed record.
func (c *Cleaner) Clean(r *models.RawSchool) (*models.School, error) {
	code := strings.TrimSpace(r.INEPCode)
	if !inepCodeRegexp.MatchString(code) {
		return nil, fmt.Errorf("line %d: %w: %q", r.Line, ErrInvalidCode, r.INEPCode)
	}

	name := NormalizeName(r.Name)
	if name == "" {
		return nil, fmt.Errorf("line %d: %w", r.Line, ErrMissingName)
	}

	school := &models.School{
		Line:              r.Line,
		Name:              name,
		INEPCode:          code,
		MunicipalityName:  NormalizeName(r.MunicipalityName),
		State:             strings.ToUpper(normaliseText(r.State)),
		Students:          parseCount(r.Students),
		Teachers:          parseCount(r.Teachers),
		Active:            isActive(r.OperatingStatus),
		PublicWater:       parseFlag(r.PublicWater),
		PublicSewerage:    parseFlag(r.PublicSewerage),
		PublicElectricity: parseFlag(r.PublicElectricity),
		Coordinate:        c.parseCoordinate(r),
	}

	if mc := strings.TrimSpace(r.MunicipalityCode); ibgeCodeRegexp.MatchString(mc) {
		school.MunicipalityCode = mc
	} else if mc != "" {
		c.logger.Debug("[cleaner] Line %d: ignoring municipality code %q", r.Line, mc)
	}

	school.Category, school.Classified = Classify(
		strings.TrimSpace(r.Location), strings.TrimSpace(r.Differentiated))
	if !school.Classified {
		c.logger.Debug("[cleaner] Line %d: no category for location=%q differentiated=%q",
			r.Line, r.Location, r.Differentiated)
	}

	return school, nil
}

// parseCoordinate accepts "." or "," as decimal separator and drops points
// outside Brazil.
func (c *Cleaner) parseCoordinate(r *models.RawSchool) *models.Coordinate {
	latRaw := strings.ReplaceAll(strings.TrimSpace(r.Latitude), ",", ".")
	lonRaw := strings.ReplaceAll(strings.TrimSpace(r.Longitude), ",", ".")
	if latRaw == "" || lonRaw == "" {
		return nil
	}

	lat, errLat := strconv.ParseFloat(latRaw, 64)
	lon, errLon := strconv.ParseFloat(lonRaw, 64)
	if errLat != nil || errLon != nil {
		c.logger.Debug("[cleaner] Line %d: unparsable coordinate %q,%q", r.Line, r.Latitude, r.Longitude)
		return nil
	}
	if lat < minLatitude || lat > maxLatitude || lon < minLongitude || lon > maxLongitude {
		c.logger.Debug("[cleaner] Line %d: coordinate %.5f,%.5f outside Brazil", r.Line, lat, lon)
		return nil
	}
	return &models.Coordinate{Latitude: lat, Longitude: lon}
}

func parseCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseFlag(raw string) bool {
	return strings.TrimSpace(raw) == "1"
}

// isActive treats a missing status column as active.
func isActive(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || raw == statusActive
}
