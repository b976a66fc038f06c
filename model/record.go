// model/record.go
package model

// ResourceRecord is one normalized result row from a backend endpoint.
// Records are never mutated after creation; policy filtering builds a new
// collection instead of editing in place.
type ResourceRecord struct {
	// EntityID is the record's IRI at its home site
	EntityID string `json:"entity"`
	// Attributes are the study memberships the record belongs to
	Attributes []string `json:"attributes"`
	// Site names the endpoint the record came from
	Site string `json:"site"`
	// Display holds presentation fields (age, image reference, ...)
	Display map[string]string `json:"display,omitempty"`
}

// Endpoint is a backend's address, fixed at configuration time
type Endpoint struct {
	Name string
	URL  string
}
