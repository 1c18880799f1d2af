package services

import (
	"fmt"
	"strings"
	"time"

	"escolas-wikidata/config"
	"escolas-wikidata/models"
	"escolas-wikidata/wikidata"
)

// ItemBuilder turns a cleaned School into the item draft that gets written.
type ItemBuilder struct {
	inepProperty string
	categories   map[models.Category]models.ItemRef
	pointInTime  models.Date
	reference    models.Reference
}

// NewItemBuilder creates an ItemBuilder from configuration.
func NewItemBuilder(cfg *config.Config) *ItemBuilder {
	source := models.Snak{Property: wikidata.PropReferenceURL, Value: models.URL(cfg.ReferenceURL)}
	if cfg.ReferenceStatedIn != "" {
		source = models.Snak{Property: wikidata.PropStatedIn, Value: models.ItemRef(cfg.ReferenceStatedIn)}
	}

	return &ItemBuilder{
		inepProperty: cfg.INEPProperty,
		categories: map[models.Category]models.ItemRef{
			models.CategoryUrban:      models.ItemRef(cfg.CategoryItems.Urban),
			models.CategoryRural:      models.ItemRef(cfg.CategoryItems.Rural),
			models.CategorySettlement: models.ItemRef(cfg.CategoryItems.Settlement),
			models.CategoryIndigenous: models.ItemRef(cfg.CategoryItems.Indigenous),
			models.CategoryQuilombola: models.ItemRef(cfg.CategoryItems.Quilombola),
		},
		pointInTime: models.Date{
			Time:      time.Date(cfg.CensusYear, time.January, 1, 0, 0, 0, 0, time.UTC),
			YearsOnly: true,
		},
		reference: models.Reference{
			Source: source,
			AccessDate: models.Snak{
				Property: wikidata.PropRetrieved,
				Value:    models.Date{Time: cfg.ReferenceAccessDate},
			},
		},
	}
}

// Build assembles labels, descriptions and the ordered statement list.
// municipalityQID may be empty, in which case "located in" is omitted.
func (b *ItemBuilder) Build(s *models.School, municipalityQID string) models.ItemDraft {
	draft := models.ItemDraft{
		Labels: map[string]string{
			"pt": s.Name,
			"en": s.Name,
		},
		Descriptions: descriptions(s),
		Reference:    b.reference,
	}

	category := models.ItemRef(wikidata.ItemSchool)
	if qid, ok := b.categories[s.Category]; ok && s.Classified {
		category = qid
	}

	draft.Statements = append(draft.Statements,
		models.Statement{Property: wikidata.PropInstanceOf, Value: category},
		models.Statement{Property: wikidata.PropCountry, Value: models.ItemRef(wikidata.ItemBrazil)},
	)
	if municipalityQID != "" {
		draft.Statements = append(draft.Statements,
			models.Statement{Property: wikidata.PropLocatedIn, Value: models.ItemRef(municipalityQID)})
	}
	draft.Statements = append(draft.Statements,
		models.Statement{Property: b.inepProperty, Value: models.ExternalID(s.INEPCode)})

	for _, f := range []struct {
		present bool
		item    string
	}{
		{s.PublicWater, wikidata.ItemWaterSupply},
		{s.PublicSewerage, wikidata.ItemSewerage},
		{s.PublicElectricity, wikidata.ItemElectricalGrid},
	} {
		if f.present {
			draft.Statements = append(draft.Statements, models.Statement{
				Property:   wikidata.PropHasFacility,
				Value:      models.ItemRef(f.item),
				Qualifiers: []models.Snak{b.pointInTimeSnak()},
			})
		}
	}

	if s.Students > 0 {
		draft.Statements = append(draft.Statements, models.Statement{
			Property:   wikidata.PropStudentsCount,
			Value:      models.Quantity(s.Students),
			Qualifiers: []models.Snak{b.pointInTimeSnak()},
		})
	}

	if s.Coordinate != nil {
		draft.Statements = append(draft.Statements, models.Statement{
			Property: wikidata.PropCoordinate,
			Value:    *s.Coordinate,
		})
	}

	return draft
}

// Disambiguate appends the INEP code to every description so that the
// label/description pair becomes unique.
func (b *ItemBuilder) Disambiguate(draft models.ItemDraft, inepCode string) models.ItemDraft {
	out := draft
	out.Descriptions = make(map[string]string, len(draft.Descriptions))
	for lang, d := range draft.Descriptions {
		suffix := fmt.Sprintf(" (INEP %s)", inepCode)
		if lang == "pt" {
			suffix = fmt.Sprintf(" (código INEP %s)", inepCode)
		}
		out.Descriptions[lang] = d + suffix
	}
	return out
}

func (b *ItemBuilder) pointInTimeSnak() models.Snak {
	return models.Snak{Property: wikidata.PropPointInTime, Value: b.pointInTime}
}

func descriptions(s *models.School) map[string]string {
	if s.MunicipalityName == "" {
		return map[string]string{
			"pt": "escola no Brasil",
			"en": "school in Brazil",
		}
	}

	place := s.MunicipalityName
	if s.State != "" {
		place += ", " + s.State
	}
	return map[string]string{
		"pt": strings.Join([]string{"escola em", place + ",", "Brasil"}, " "),
		"en": strings.Join([]string{"school in", place + ",", "Brazil"}, " "),
	}
}
