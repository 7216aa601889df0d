package server

// Response is the JSON body of /sumsquares and /fibmod.
type Response struct {
	// Operation is "sumsquares" or "fibmod".
	Operation string `json:"operation"`
	// Index is the requested n or k, as given (it may exceed uint64).
	Index string `json:"index"`
	// Modulus is the modulus m.
	Modulus uint64 `json:"modulus"`
	// Result is the residue. It is omitted if an error occurred.
	Result *uint64 `json:"result,omitempty"`
	// Algorithm is the registry name of the strategy used.
	Algorithm string `json:"algorithm"`
	// Duration is the formatted execution time string.
	Duration string `json:"duration"`
	// Error contains the error message if the calculation failed.
	Error string `json:"error,omitempty"`
}

// PeriodResponse is the JSON body of /period.
type PeriodResponse struct {
	Modulus uint64 `json:"modulus"`
	Period  uint64 `json:"period"`
}

// ErrorResponse represents the standardized JSON response for an API error.
type ErrorResponse struct {
	// Error is the short error code or status text.
	Error string `json:"error"`
	// Message is a descriptive error message.
	Message string `json:"message,omitempty"`
	// Field names the offending query parameter for validation errors.
	Field string `json:"field,omitempty"`
	// RequestID echoes the X-Request-ID header.
	RequestID string `json:"request_id,omitempty"`
}
