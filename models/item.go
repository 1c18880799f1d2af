package models

import "time"

// ItemRef is a Wikidata item identifier such as "Q155".
type ItemRef string

// ExternalID is an external-identifier value such as an INEP code.
type ExternalID string

// URL is a url-typed value.
type URL string

// Quantity is a unitless integer amount.
type Quantity int64

// Date is a time value at day or year precision.
type Date struct {
	Time      time.Time
	YearsOnly bool
}

// Snak is a property/value pair used as a qualifier or reference part.
type Snak struct {
	Property string
	Value    any
}

// Statement is a main snak plus its qualifiers.
type Statement struct {
	Property   string
	Value      any
	Qualifiers []Snak
}

// Reference is the evidence attached to every statement of a new item:
// where the fact comes from and when it was accessed.
type Reference struct {
	Source     Snak
	AccessDate Snak
}

// ItemDraft is everything needed to create one item.
type ItemDraft struct {
	Labels       map[string]string
	Descriptions map[string]string
	Statements   []Statement
	Reference    Reference
}
