package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Response struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON writes v as the response body.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func JSONMessage(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Response{Message: message})
}

func JSONError(w http.ResponseWriter, status int, err error) {
	JSON(w, status, Response{Error: err.Error()})
}

func JSONErrorMessage(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Response{Error: message})
}

// MaxJSONBody caps JSON request bodies. It is the only size bound on persona
// fields and chat messages.
const MaxJSONBody = 1 << 20

// DecodeJSON decodes the request body into v, returning a 400 AppError on
// malformed input and a 413 when the body exceeds MaxJSONBody.
func DecodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return NewTooLargeError("request body too large")
		}
		return NewBadRequestError("invalid request body")
	}
	return nil
}
