package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/auth"
	"github.com/vladislavdragonenkov/orderapi/internal/domain"
	"github.com/vladislavdragonenkov/orderapi/internal/metrics"
)

const (
	// IdempotencyKeyHeader — заголовок клиента с ключом идемпотентности.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader выставляется, когда ответ взят из сохранённой записи.
	IdempotentReplayHeader = "Idempotent-Replay"

	maxRequestBodyBytes = 1 << 20
)

// accessLog пишет одну строку на запрос и учитывает его в метриках по шаблону маршрута.
func accessLog(logger *log.Entry, m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			m.RequestStarted()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			took := time.Since(started)
			m.ObserveRequest(r.Method, routePattern(r), status, took)

			entry := logger.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"took":       took.String(),
				"request_id": middleware.GetReqID(r.Context()),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("request served")
				return
			}
			entry.Info("request served")
		})
	}
}

// routePattern возвращает шаблон маршрута chi, чтобы метки метрик не зависели от ID в пути.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// requireBearer пропускает только запросы с действующим JWT. nil authenticator отключает проверку.
func requireBearer(authenticator *auth.Authenticator, logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if authenticator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeFailure(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			subject, err := authenticator.Validate(raw)
			if err != nil {
				logger.WithError(err).Debug("bearer token rejected")
				writeFailure(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSubject(r.Context(), subject)))
		})
	}
}

// idempotent сохраняет ответ POST-запроса с заголовком Idempotency-Key и отдаёт его на повторы.
func idempotent(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if repo == nil {
			return next
		}
		if ttl <= 0 {
			ttl = domain.DefaultIdempotencyTTL
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeFailure(w, http.StatusBadRequest, "validation failed", "request body is too large or unreadable")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			record, err := repo.CreateProcessing(r.Context(), key, requestHash(r, body), time.Now().UTC().Add(ttl))
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrIdempotencyHashMismatch):
				writeFailure(w, http.StatusUnprocessableEntity, "idempotency key was used with a different request")
				return
			case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
				if !record.Completed() {
					writeFailure(w, http.StatusConflict, "request with this idempotency key is still processing")
					return
				}
				replay(w, r, record)
				return
			default:
				logger.WithError(err).WithField("idempotency_key", key).Error("idempotency lookup failed")
				writeFailure(w, http.StatusInternalServerError, internalErrorMessage)
				return
			}

			var captured bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)

			// Запрос мог быть отменён клиентом, а результат всё равно нужно сохранить.
			ctx := context.WithoutCancel(r.Context())
			entry := logger.WithField("idempotency_key", key)
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				// Паника обработчика завершает ключ ответом 500.
				if err := repo.MarkFailed(ctx, key, failureBody(internalErrorMessage), http.StatusInternalServerError); err != nil {
					entry.WithError(err).Warn("idempotency record not completed after panic")
				}
				panic(rvr)
			}()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			complete := repo.MarkDone
			if status >= http.StatusBadRequest {
				complete = repo.MarkFailed
			}
			if err := complete(ctx, key, captured.Bytes(), status); err != nil {
				entry.WithError(err).Warn("idempotency record not completed")
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, record domain.IdempotencyRecord) {
	if record.HTTPStatus == http.StatusCreated {
		if location, ok := createdLocation(r.URL.Path, record.ResponseBody); ok {
			w.Header().Set("Location", location)
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set(IdempotentReplayHeader, "true")
	w.WriteHeader(record.HTTPStatus)
	_, _ = w.Write(record.ResponseBody)
}

// createdLocation восстанавливает Location созданного ресурса: путь коллекции плюс data.id из ответа.
func createdLocation(collection string, body []byte) (string, bool) {
	var created struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.Data.ID <= 0 {
		return "", false
	}
	return strings.TrimSuffix(collection, "/") + "/" + strconv.FormatInt(created.Data.ID, 10), true
}

// recoverPanic отвечает на панику обработчика конвертом 500 и пишет стек в лог.
func recoverPanic(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.WithFields(log.Fields{
					"panic":      fmt.Sprint(rvr),
					"path":       r.URL.Path,
					"request_id": middleware.GetReqID(r.Context()),
					"stack":      string(debug.Stack()),
				}).Error("handler panicked")
				writeFailure(w, http.StatusInternalServerError, internalErrorMessage)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestHash — sha256 от метода, пути и тела запроса.
func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{'\n'})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
