package wikidata

import (
	"fmt"
	"strings"
)

const labelConflictMessage = "wikibase-validator-label-with-description-conflict"

// APIError is an error object returned by the MediaWiki Action API.
type APIError struct {
	Code     string       `json:"code"`
	Info     string       `json:"info"`
	Messages []apiMessage `json:"messages,omitempty"`
}

type apiMessage struct {
	Name string `json:"name"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wikidata: api error %s: %s", e.Code, e.Info)
}

// IsLabelConflict reports whether another item already uses the same
// label and description in some language.
func (e *APIError) IsLabelConflict() bool {
	for _, m := range e.Messages {
		if m.Name == labelConflictMessage {
			return true
		}
	}
	return strings.Contains(e.Info, "already has label") && strings.Contains(e.Info, "description")
}

// Temporary reports whether the same request may succeed later.
func (e *APIError) Temporary() bool {
	switch e.Code {
	case "maxlag", "ratelimited", "readonly", "badtoken":
		return true
	}
	return false
}
