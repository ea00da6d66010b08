package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
	"github.com/skshopping/shop-backend/pkg/logger"
	"github.com/skshopping/shop-backend/pkg/types"
)

// RequestIDHeader is echoed on every response and copied into metadata.
const RequestIDHeader = "X-Request-Id"

type sourceKey struct{}

// WithSource records the request path reported as error.source.
func WithSource(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, sourceKey{}, path)
}

func sourceFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	path, _ := ctx.Value(sourceKey{}).(string)
	return path
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data, Metadata: metadata(w)})
}

// WriteError renders err as the error envelope. Typed domain errors keep their
// message for client-facing codes; everything else is reduced to the public
// message of its code and logged with the full chain.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	detail := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeForbidden,
		pkgerrors.CodeUnauthorized,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeStateConflict,
		pkgerrors.CodeIdempotency,
		pkgerrors.CodeShopMismatch,
		pkgerrors.CodeInsufficientStock:
		if m := typed.Message(); m != "" {
			detail = m
		}
	}

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			ID:        uuid.NewString(),
			Code:      meta.HTTPStatus,
			Detail:    detail,
			ErrorType: typed.Code().Slug(),
			Source:    sourceFrom(ctx),
		},
		Metadata: metadata(w),
	}
	if meta.DetailsAllowed {
		payload.Error.Meta = typed.Details()
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		logCtx := logg.WithFields(ctx, map[string]any{
			"error_id":      payload.Error.ID,
			"error_code":    dump.Code,
			"error_chain":   dump.Chain,
			"pg_code":       dump.PGCode,
			"pg_constraint": dump.PGConstraint,
			"pg_detail":     dump.PGDetail,
		})
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(logCtx, "request.error", err)
		} else {
			logg.Warn(logCtx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func metadata(w http.ResponseWriter) types.Metadata {
	return types.Metadata{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: w.Header().Get(RequestIDHeader),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
