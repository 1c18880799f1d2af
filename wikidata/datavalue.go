package wikidata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"escolas-wikidata/models"
)

// ErrUnsupportedValue is returned for statement values with no Wikibase encoding.
var ErrUnsupportedValue = errors.New("unsupported value kind")

// Time precisions used by the Wikibase time datatype.
const (
	precisionYear = 9
	precisionDay  = 11
)

// coordinatePrecision is roughly 10 m, enough for a school building.
const coordinatePrecision = 0.0001

// dataValue is the typed value of a snak as sent to the API.
type dataValue struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// snak is a property/value pair in the Wikibase JSON model.
type snak struct {
	SnakType  string    `json:"snaktype"`
	Property  string    `json:"property"`
	DataValue dataValue `json:"datavalue"`
}

type entityIDValue struct {
	EntityType string `json:"entity-type"`
	NumericID  int64  `json:"numeric-id"`
	ID         string `json:"id"`
}

type quantityValue struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

type timeValue struct {
	Time          string `json:"time"`
	Timezone      int    `json:"timezone"`
	Before        int    `json:"before"`
	After         int    `json:"after"`
	Precision     int    `json:"precision"`
	CalendarModel string `json:"calendarmodel"`
}

type coordinateValue struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Precision float64 `json:"precision"`
	Globe     string  `json:"globe"`
}

// encodeValue converts a statement value into its Wikibase data value.
func encodeValue(v any) (dataValue, error) {
	switch val := v.(type) {
	case models.ItemRef:
		id, err := numericID(string(val))
		if err != nil {
			return dataValue{}, err
		}
		return dataValue{Type: "wikibase-entityid", Value: entityIDValue{
			EntityType: "item",
			NumericID:  id,
			ID:         string(val),
		}}, nil
	case models.ExternalID:
		return dataValue{Type: "string", Value: string(val)}, nil
	case models.URL:
		return dataValue{Type: "string", Value: string(val)}, nil
	case string:
		return dataValue{Type: "string", Value: val}, nil
	case models.Quantity:
		return dataValue{Type: "quantity", Value: quantityValue{
			Amount: fmt.Sprintf("%+d", int64(val)),
			Unit:   "1",
		}}, nil
	case models.Date:
		return dataValue{Type: "time", Value: encodeDate(val)}, nil
	case models.Coordinate:
		return dataValue{Type: "globecoordinate", Value: coordinateValue{
			Latitude:  val.Latitude,
			Longitude: val.Longitude,
			Precision: coordinatePrecision,
			Globe:     EntityPrefix + ItemEarth,
		}}, nil
	case *models.Coordinate:
		if val == nil {
			return dataValue{}, fmt.Errorf("%w: nil coordinate", ErrUnsupportedValue)
		}
		return encodeValue(*val)
	default:
		return dataValue{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func encodeDate(d models.Date) timeValue {
	t := d.Time.UTC()
	tv := timeValue{
		Precision:     precisionDay,
		CalendarModel: EntityPrefix + ItemGregorianCalendar,
		Time:          fmt.Sprintf("+%04d-%02d-%02dT00:00:00Z", t.Year(), int(t.Month()), t.Day()),
	}
	if d.YearsOnly {
		tv.Precision = precisionYear
		tv.Time = fmt.Sprintf("+%04d-00-00T00:00:00Z", t.Year())
	}
	return tv
}

// encodeSnak builds a value snak for a qualifier or reference.
func encodeSnak(s models.Snak) (snak, error) {
	dv, err := encodeValue(s.Value)
	if err != nil {
		return snak{}, fmt.Errorf("%s: %w", s.Property, err)
	}
	return snak{SnakType: "value", Property: s.Property, DataValue: dv}, nil
}

func numericID(qid string) (int64, error) {
	if !strings.HasPrefix(qid, "Q") {
		return 0, fmt.Errorf("%w: item id %q", ErrUnsupportedValue, qid)
	}
	n, err := strconv.ParseInt(qid[1:], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: item id %q", ErrUnsupportedValue, qid)
	}
	return n, nil
}
