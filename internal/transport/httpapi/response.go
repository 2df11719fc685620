package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

const internalErrorMessage = "internal server error"

// validationError собирает все нарушения входных данных одного запроса.
type validationError struct {
	problems []string
}

func (e *validationError) Error() string {
	if len(e.problems) == 0 {
		return "validation failed"
	}
	return e.problems[0]
}

func (e *validationError) Unwrap() error { return domain.ErrInvalidArgument }

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// failureBody — тело ответа writeFailure без заголовков, для сохранения в записи идемпотентности.
func failureBody(message string) []byte {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(envelope{Success: false, Message: message})
	return buf.Bytes()
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string, problems ...string) {
	writeJSON(w, status, envelope{Success: false, Message: message, Errors: problems})
}

// writeError переводит ошибку движка в HTTP-статус. Детали инфраструктурных ошибок наружу не отдаются.
func writeError(w http.ResponseWriter, logger *log.Entry, err error) {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		writeFailure(w, http.StatusBadRequest, "validation failed", verr.problems...)
	case domain.IsInvalidArgument(err):
		writeFailure(w, http.StatusBadRequest, "validation failed", err.Error())
	case domain.IsNotFound(err):
		writeFailure(w, http.StatusNotFound, err.Error())
	case domain.IsInvalidOperation(err):
		writeFailure(w, http.StatusBadRequest, err.Error())
	default:
		logger.WithError(err).Error("request failed")
		writeFailure(w, http.StatusInternalServerError, internalErrorMessage)
	}
}
