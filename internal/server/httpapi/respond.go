package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

// result — ответ обработчика до сериализации.
type result struct {
	status  int
	data    any
	message string
}

func ok(data any) result { return result{status: http.StatusOK, data: data} }

func created(data any) result { return result{status: http.StatusCreated, data: data} }

func done(message string) result { return result{status: http.StatusOK, message: message} }

type handlerFunc func(r *http.Request) (result, error)

// errBadRequest означает, что тело или параметры запроса не разобраны.
var errBadRequest = errors.New("malformed request")

func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := fn(r)
		var cached *replayed
		if errors.As(err, &cached) {
			writeRaw(w, cached.status, cached.body)
			return
		}
		status, body := s.render(r, res, err)
		writeRaw(w, status, body)
	}
}

// render сериализует ответ или ошибку в конверт.
func (s *Server) render(r *http.Request, res result, err error) (int, []byte) {
	envelope := api.Envelope{Timestamp: s.now()}
	status := res.status

	if err != nil {
		var details *api.ErrorDetails
		status, envelope.Message, details = s.classify(err)
		envelope.Errors = details
		if status >= http.StatusInternalServerError {
			s.logger.WithError(err).WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": middleware.GetReqID(r.Context()),
			}).Error("request failed")
		}
	} else {
		envelope.Message = res.message
		if res.data != nil {
			data, marshalErr := json.Marshal(res.data)
			if marshalErr != nil {
				s.logger.WithError(marshalErr).Error("failed to encode response data")
				status = http.StatusInternalServerError
				envelope.Message = "failed to encode response"
			} else {
				envelope.Data = data
			}
		}
	}

	body, marshalErr := json.Marshal(envelope)
	if marshalErr != nil {
		return http.StatusInternalServerError, []byte(`{"message":"failed to encode response"}`)
	}
	return status, body
}

// classify сопоставляет доменную ошибку с HTTP-статусом.
func (s *Server) classify(err error) (int, string, *api.ErrorDetails) {
	if shortage, isShortage := domain.AsShortage(err); isShortage {
		return http.StatusUnprocessableEntity, shortage.Error(), &api.ErrorDetails{
			Shortages: api.ShortagesFromDomain(shortage.Shortages),
		}
	}

	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrOrderIDRequired),
		errors.Is(err, domain.ErrEntityKindInvalid),
		errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusUnprocessableEntity, "validation failed", &api.ErrorDetails{
			Validation: validationMessages(err),
		}
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, err.Error(), nil
	case domain.IsNotFound(err), errors.Is(err, domain.ErrEntityPurged):
		return http.StatusNotFound, err.Error(), nil
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrEntityNotTrashed),
		errors.Is(err, domain.ErrEntityAlreadyTrashed),
		errors.Is(err, domain.ErrOrderVersionConflict),
		errors.Is(err, domain.ErrMutationInFlight),
		errors.Is(err, inventory.ErrReservationSettled),
		domain.IsIdempotencyConflict(err):
		return http.StatusConflict, err.Error(), nil
	default:
		return http.StatusInternalServerError, "internal error", nil
	}
}

// validationMessages раскрывает склеенные ошибки валидации в список строк.
func validationMessages(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if e == nil || errors.Is(domain.ErrValidation, e) {
			return
		}
		if multi, isMulti := e.(interface{ Unwrap() []error }); isMulti {
			for _, inner := range multi.Unwrap() {
				walk(inner)
			}
			return
		}
		out = append(out, e.Error())
	}
	walk(err)
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

const maxBodyBytes = 1 << 20

// pathID достаёт {id} из маршрута. При экранированном пути chi отдаёт сырой сегмент.
func pathID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}
