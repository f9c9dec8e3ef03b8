package datamodel

// OperationResult is the outcome of a remediation action. Partial is set when
// the action only went part of the way, which is not an error.
type OperationResult struct {
	Message string `json:"message"`
	Partial bool   `json:"partial,omitempty"`
}
