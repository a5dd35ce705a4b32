package utils

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/filmzi/filelink/shared/errors"
	"github.com/filmzi/filelink/shared/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// StatusOf returns the status carried by err, 500 when it carries none.
func StatusOf(err error) int {
	var e *errors.ErrorWithStatusCode
	if stderrors.As(err, &e) {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// PublicMessage is what a client may see about err. Errors without a status
// get a generic message and a fresh id that is logged with the full error, so
// wrapped details such as upstream URLs never reach the client.
func PublicMessage(err error) string {
	var e *errors.ErrorWithStatusCode
	if stderrors.As(err, &e) {
		return e.Message
	}
	errorId := uuid.NewString()
	logger.Log.Error("internal error", "error_id", errorId, "error", err)
	return "Internal error (id " + errorId + ")"
}

func WriteErrorAndStatusCode(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	http.Error(w, PublicMessage(err), status)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warn("failed to write json response", "error", err)
	}
}

func DecodeValidate(r io.ReadCloser, body any) error {
	if err := Decode(r, body); err != nil {
		return err
	}
	if err := validate.Struct(body); err != nil {
		logger.Log.Debug("request validation failed", "error", err)
		return &errors.ErrorWithStatusCode{Message: "Required fields missing", StatusCode: http.StatusBadRequest}
	}
	return nil
}

func Decode(r io.ReadCloser, body any) error {
	if err := json.NewDecoder(r).Decode(body); err != nil {
		logger.Log.Debug("request body is not valid json", "error", err)
		return &errors.ErrorWithStatusCode{Message: "Body is invalid json", StatusCode: http.StatusBadRequest}
	}
	return nil
}
