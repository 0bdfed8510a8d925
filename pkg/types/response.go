// Package types holds the JSON envelopes shared by every API response.
package types

// SuccessEnvelope wraps a single resource or view.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// PageEnvelope carries one page of a cursor-paged list; NextCursor is empty
// on the last page.
type PageEnvelope struct {
	Data       any    `json:"data"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ErrorEnvelope is the body of every non-2xx response.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
