package services

import "escolas-wikidata/models"

// Census codes for TP_LOCALIZACAO and TP_LOCALIZACAO_DIFERENCIADA.
const (
	locationUrban = "1"
	locationRural = "2"

	differentiatedNone       = "0"
	differentiatedSettlement = "1"
	differentiatedIndigenous = "2"
	differentiatedQuilombola = "3"
)

type classKey struct {
	differentiated string
	location       string
}

// anyLocation matches every TP_LOCALIZACAO when the differentiated type
// already decides the category.
const anyLocation = "*"

var classification = map[classKey]models.Category{
	{differentiatedNone, locationUrban}:     models.CategoryUrban,
	{differentiatedNone, locationRural}:     models.CategoryRural,
	{differentiatedSettlement, anyLocation}: models.CategorySettlement,
	{differentiatedIndigenous, anyLocation}: models.CategoryIndigenous,
	{differentiatedQuilombola, anyLocation}: models.CategoryQuilombola,
}

// Classify resolves the school category from the census location codes.
// The plain location type only matters when there is no differentiated
// location. ok is false for unknown combinations.
func Classify(location, differentiated string) (category models.Category, ok bool) {
	if c, found := classification[classKey{differentiated, anyLocation}]; found {
		return c, true
	}
	c, found := classification[classKey{differentiated, location}]
	return c, found
}
