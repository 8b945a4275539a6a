package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const idempotencyTTL = 24 * time.Hour

// replayed — готовый ответ из кэша идемпотентности.
type replayed struct {
	status int
	body   []byte
}

func (r *replayed) Error() string { return fmt.Sprintf("replayed response %d", r.status) }

// withIdempotency выполняет обработчик не более одного раза на ключ.
// Повтор с тем же ключом и телом получает сохранённый ответ; с другим телом получает 409.
func (s *Server) withIdempotency(handler handlerFunc) handlerFunc {
	return func(r *http.Request) (result, error) {
		if s.idemRepo == nil {
			return handler(r)
		}

		key := strings.TrimSpace(r.Header.Get(api.HeaderIdempotencyKey))
		if key == "" {
			return result{}, domain.ErrIdempotencyKeyRequired
		}

		body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
		if err != nil {
			return result{}, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		record, err := s.idemRepo.CreateProcessing(key, requestHash(r, body), s.now().Add(idempotencyTTL))
		if err != nil {
			return result{}, s.replay(err, record)
		}

		res, runErr := handler(r)
		status, payload := s.render(r, res, runErr)
		if status >= http.StatusBadRequest {
			if markErr := s.idemRepo.MarkFailed(key, payload, status); markErr != nil {
				s.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
			}
		} else if markErr := s.idemRepo.MarkDone(key, payload, status); markErr != nil {
			s.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
		}
		return result{}, &replayed{status: status, body: payload}
	}
}

func (s *Server) replay(createErr error, record domain.IdempotencyRecord) error {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return fmt.Errorf("idempotency key is already used with different request payload: %w", createErr)
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			if len(record.ResponseBody) == 0 || record.HTTPStatus == 0 {
				return errors.New("idempotency cache is empty")
			}
			return &replayed{status: record.HTTPStatus, body: record.ResponseBody}
		case domain.IdempotencyStatusProcessing:
			return fmt.Errorf("request with the same idempotency key is already processing: %w", domain.ErrMutationInFlight)
		default:
			return fmt.Errorf("unknown idempotency record status %q", record.Status)
		}
	default:
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		return fmt.Errorf("initialize idempotency request: %w", createErr)
	}
}

func requestHash(r *http.Request, body []byte) string {
	payload := make([]byte, 0, len(r.Method)+len(r.URL.Path)+2+len(body))
	payload = append(payload, r.Method...)
	payload = append(payload, ' ')
	payload = append(payload, r.URL.Path...)
	payload = append(payload, ':')
	payload = append(payload, body...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
