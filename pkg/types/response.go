package types

// SuccessEnvelope wraps every 2xx API response body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape. Details carries field-level
// validation output and is omitted for internal errors.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx API response body.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
