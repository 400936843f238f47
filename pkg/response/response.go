package response

import (
	"encoding/json"
	"errors"
	"net/http"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes err as a JSON error response. HTTPError values map to their
// status code and key; anything else becomes a 500 with the error text as
// message.
func Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	detail := errorDetail{
		Code:    ErrInternalServerError.Key,
		Message: err.Error(),
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		detail.Code = httpErr.Key
		detail.Message = http.StatusText(httpErr.Code)
	}

	JSON(w, status, errorBody{Error: detail})
}
