package types

// Event is the generic payload shape shared by every module. Attributes hold
// string-encoded fields so downstream consumers never depend on module types.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
