package oauth2client

import "encoding/json"

// AuthError is returned when the token endpoint answers without a usable token.
//
// Reason is the endpoint's "error" value, or "failed" when the body was not a JSON object or
// carried no access token. Data holds the decoded response for diagnostics.
type AuthError struct {
	Reason string
	Status int
	Data   any
}

func (e *AuthError) Error() string {
	return e.Reason
}

// MarshalJSON renders the error for structured logs.
func (e *AuthError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		Status  int    `json:"status"`
		Data    any    `json:"data"`
	}{
		Name:    "AuthError",
		Message: e.Reason,
		Status:  e.Status,
		Data:    e.Data,
	})
}
