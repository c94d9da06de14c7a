package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"villa/internal/apperr"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps err through the apperr taxonomy. Internal details stay in
// the logs.
func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, apperr.HTTPStatus(err), err)
}

func writeErrorStatus(w http.ResponseWriter, statusCode int, err error) {
	e := apperr.As(err)
	writeJSON(w, statusCode, errorBody{Error: e.Message, Code: e.Code})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid JSON body: " + err.Error())
	}
	return nil
}
