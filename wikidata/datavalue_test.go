package wikidata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escolas-wikidata/models"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		wantType string
		wantJSON string
	}{
		{
			name:     "item",
			value:    models.ItemRef("Q155"),
			wantType: "wikibase-entityid",
			wantJSON: `{"entity-type":"item","numeric-id":155,"id":"Q155"}`,
		},
		{
			name:     "external id",
			value:    models.ExternalID("35000012"),
			wantType: "string",
			wantJSON: `"35000012"`,
		},
		{
			name:     "url",
			value:    models.URL("https://inep.gov.br"),
			wantType: "string",
			wantJSON: `"https://inep.gov.br"`,
		},
		{
			name:     "quantity",
			value:    models.Quantity(312),
			wantType: "quantity",
			wantJSON: `{"amount":"+312","unit":"1"}`,
		},
		{
			name:     "year",
			value:    models.Date{Time: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), YearsOnly: true},
			wantType: "time",
			wantJSON: `{"time":"+2022-00-00T00:00:00Z","timezone":0,"before":0,"after":0,"precision":9,"calendarmodel":"http://www.wikidata.org/entity/Q1985727"}`,
		},
		{
			name:     "day",
			value:    models.Date{Time: time.Date(2023, 2, 8, 0, 0, 0, 0, time.UTC)},
			wantType: "time",
			wantJSON: `{"time":"+2023-02-08T00:00:00Z","timezone":0,"before":0,"after":0,"precision":11,"calendarmodel":"http://www.wikidata.org/entity/Q1985727"}`,
		},
		{
			name:     "coordinate",
			value:    &models.Coordinate{Latitude: -3.5, Longitude: -38.25},
			wantType: "globecoordinate",
			wantJSON: `{"latitude":-3.5,"longitude":-38.25,"precision":0.0001,"globe":"http://www.wikidata.org/entity/Q2"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dv, err := encodeValue(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, dv.Type)
			assert.JSONEq(t, tt.wantJSON, mustJSON(t, dv.Value))
		})
	}
}

func TestEncodeValueUnsupported(t *testing.T) {
	for _, v := range []any{3.14, true, nil, (*models.Coordinate)(nil), models.ItemRef("P31"), models.ItemRef("Qx")} {
		_, err := encodeValue(v)
		assert.ErrorIs(t, err, ErrUnsupportedValue, "value %#v", v)
	}
}

func TestEncodeReference(t *testing.T) {
	ref := models.Reference{
		Source:     models.Snak{Property: PropReferenceURL, Value: models.URL("https://inep.gov.br")},
		AccessDate: models.Snak{Property: PropRetrieved, Value: models.Date{Time: time.Date(2023, 2, 8, 0, 0, 0, 0, time.UTC)}},
	}

	snaks, order, err := encodeReference(ref)
	require.NoError(t, err)
	assert.JSONEq(t, `["P854","P813"]`, order)

	var decoded map[string][]snak
	require.NoError(t, json.Unmarshal([]byte(snaks), &decoded))
	require.Len(t, decoded["P854"], 1)
	require.Len(t, decoded["P813"], 1)
	assert.Equal(t, "value", decoded["P854"][0].SnakType)
	assert.Equal(t, "time", decoded["P813"][0].DataValue.Type)
}
