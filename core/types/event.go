package types

// Event is a structured record of a state change applied by the module.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
