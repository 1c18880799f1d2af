package wikidata

// Properties used on school items.
const (
	PropInstanceOf       = "P31"
	PropCountry          = "P17"
	PropLocatedIn        = "P131"
	PropHasFacility      = "P912"
	PropStudentsCount    = "P2196"
	PropCoordinate       = "P625"
	PropPointInTime      = "P585"
	PropStatedIn         = "P248"
	PropReferenceURL     = "P854"
	PropRetrieved        = "P813"
	PropSubclassOf       = "P279"
	PropIBGEMunicipality = "P1585"
)

// Items used as statement values.
const (
	ItemSchool            = "Q3914"
	ItemBrazil            = "Q155"
	ItemWaterSupply       = "Q1434117"
	ItemSewerage          = "Q1058928"
	ItemElectricalGrid    = "Q200928"
	ItemGregorianCalendar = "Q1985727"
	ItemEarth             = "Q2"
)

// EntityPrefix is the IRI prefix of Wikidata entities in query results.
const EntityPrefix = "http://www.wikidata.org/entity/"
