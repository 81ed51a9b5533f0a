package arenadto

// Error codes returned by the control API.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeMissingCredential = "MISSING_CREDENTIAL"
	CodeMissingModel      = "MISSING_MODEL"
	CodeConflict          = "CONFLICT"
	CodeNotFound          = "NOT_FOUND"
	CodeUnavailable       = "UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
