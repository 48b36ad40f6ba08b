package grpcsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	idempotencyKeyHeader = "idempotency-key"
	idempotencyTTL       = 24 * time.Hour

	msgPreviousFailure = "previous request with the same idempotency key failed"
)

var errNilRequest = errors.New("request is nil")

// cachedFailure — ошибка, сохранённая под ключом идемпотентности.
type cachedFailure struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

// idempotent выполняет call не более одного раза на ключ. Повтор с тем же телом
// получает сохранённый ответ или ошибку, с другим телом отклоняется.
func idempotent[T any](
	ctx context.Context,
	s *PosService,
	method string,
	req any,
	empty func() T,
	call func(context.Context) (T, error),
) (T, error) {
	var zero T
	if s.idemRepo == nil {
		return call(ctx)
	}

	key, err := idempotencyKeyFrom(ctx)
	if err != nil {
		return zero, err
	}
	fingerprint, err := requestFingerprint(method, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("idempotency fingerprint failed")
		return zero, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, err := s.idemRepo.CreateProcessing(ctx, key, fingerprint, time.Now().UTC().Add(idempotencyTTL))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return zero, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		return replay(s, record, empty)
	default:
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("idempotency record not created")
		return zero, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	resp, callErr := call(ctx)
	if callErr != nil {
		s.rememberFailure(ctx, key, callErr)
		return resp, callErr
	}
	if err := s.rememberSuccess(ctx, key, resp); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("idempotent response not stored")
	}
	return resp, nil
}

// replay отвечает на повтор по уже занятому ключу.
func replay[T any](s *PosService, record domain.IdempotencyRecord, empty func() T) (T, error) {
	var zero T
	switch record.Status {
	case domain.IdempotencyStatusProcessing:
		return zero, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
	case domain.IdempotencyStatusFailed:
		return zero, failureFromRecord(record)
	case domain.IdempotencyStatusDone:
	default:
		return zero, status.Error(codes.Internal, "unknown idempotency record status")
	}

	if len(record.ResponseBody) == 0 {
		return zero, status.Error(codes.Internal, "idempotency cache is empty")
	}
	resp := empty()
	if err := json.Unmarshal(record.ResponseBody, resp); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("cached idempotency response is corrupt")
		return zero, status.Error(codes.Internal, "failed to decode cached idempotency response")
	}
	return resp, nil
}

func (s *PosService) rememberSuccess(ctx context.Context, key string, resp any) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.idemRepo.MarkDone(ctx, key, body, int(codes.OK))
}

// rememberFailure сохраняет код и текст ошибки. Ошибка без кода хранится как Internal.
func (s *PosService) rememberFailure(ctx context.Context, key string, callErr error) {
	st := status.Convert(callErr)
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}

	body, err := json.Marshal(cachedFailure{Code: int32(code), Message: st.Message()}) //nolint:gosec // codes.Code is a bounded enum value.
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("idempotency failure not encoded")
		body = nil
	}
	if err := s.idemRepo.MarkFailed(ctx, key, body, int(code)); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("idempotency failure not stored")
	}
}

// failureFromRecord восстанавливает ошибку из тела записи, затем из её статуса.
func failureFromRecord(record domain.IdempotencyRecord) error {
	var cached cachedFailure
	if len(record.ResponseBody) > 0 && json.Unmarshal(record.ResponseBody, &cached) == nil {
		if code, ok := grpcCode(int64(cached.Code)); ok {
			if code == codes.OK {
				code = codes.Internal
			}
			msg := cached.Message
			if msg == "" {
				msg = msgPreviousFailure
			}
			return status.Error(code, msg)
		}
	}

	if code, ok := grpcCode(int64(record.HTTPStatus)); ok && code != codes.OK {
		return status.Error(code, msgPreviousFailure)
	}
	return status.Error(codes.Internal, msgPreviousFailure)
}

func grpcCode(value int64) (codes.Code, bool) {
	if value < int64(codes.OK) || value > int64(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true //nolint:gosec // range checked above.
}

// idempotencyKeyFrom ищет ключ сначала во входящих метаданных, потом в исходящих.
func idempotencyKeyFrom(ctx context.Context) (string, error) {
	sources := []func(context.Context) (metadata.MD, bool){
		metadata.FromIncomingContext,
		metadata.FromOutgoingContext,
	}
	for _, from := range sources {
		md, ok := from(ctx)
		if !ok {
			continue
		}
		if values := md.Get(idempotencyKeyHeader); len(values) > 0 {
			if key := strings.TrimSpace(values[0]); key != "" {
				return key, nil
			}
		}
	}
	return "", status.Error(codes.InvalidArgument, "idempotency-key metadata is required")
}

// requestFingerprint — sha256 от "метод:JSON запроса". Поля сериализуются
// в порядке объявления, поэтому отпечаток стабилен.
func requestFingerprint(method string, req any) (string, error) {
	if req == nil {
		return "", errNilRequest
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{':'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}
