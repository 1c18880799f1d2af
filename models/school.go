package models

import "time"

// RawSchool holds one unprocessed census row exactly as read from the file.
type RawSchool struct {
	Line              int
	Name              string
	INEPCode          string
	MunicipalityName  string
	MunicipalityCode  string
	State             string
	Students          string
	Teachers          string
	Location          string
	Differentiated    string
	OperatingStatus   string
	PublicWater       string
	PublicSewerage    string
	PublicElectricity string
	Latitude          string
	Longitude         string
}

// Category is the school-type classification derived from the census
// location codes.
type Category string

const (
	CategoryUrban      Category = "urban"
	CategoryRural      Category = "rural"
	CategorySettlement Category = "settlement"
	CategoryIndigenous Category = "indigenous"
	CategoryQuilombola Category = "quilombola"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// School is the cleaned, validated record ready to be turned into an item.
type School struct {
	Line             int
	Name             string
	INEPCode         string
	MunicipalityName string
	MunicipalityCode string
	State            string
	Students         int
	Teachers         int
	Category         Category
	Classified       bool
	Active           bool

	PublicWater       bool
	PublicSewerage    bool
	PublicElectricity bool

	Coordinate *Coordinate
}

// Status is the outcome of processing one school.
type Status string

const (
	StatusCreated Status = "created"
	StatusExists  Status = "exists"
	StatusPartial Status = "partial"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusPlanned Status = "planned"
)

// ImportResult records what happened to a single census row.
type ImportResult struct {
	RunID        string
	Line         int
	INEPCode     string
	Name         string
	Municipality string
	Category     Category
	QID          string
	Status       Status
	Error        string
	CreatedAt    time.Time
}

// ImportReport holds the totals computed over a run's results.
type ImportReport struct {
	TotalRows      int
	ByStatus       map[Status]int
	ByCategory     map[Category]int
	ByMunicipality map[string]int
	Created        []*ImportResult
	Failures       []*ImportResult
}
