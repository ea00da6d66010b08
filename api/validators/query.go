package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skshopping/shop-backend/pkg/enums"
	pkgerrors "github.com/skshopping/shop-backend/pkg/errors"
)

// ParseUUIDParam reads a chi URL parameter as a uuid.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// ParseFetchLevel reads a fetch level query parameter, falling back when absent.
func ParseFetchLevel(r *http.Request, key string, fallback enums.FetchLevel) (enums.FetchLevel, error) {
	level, err := enums.ParseFetchLevel(strings.TrimSpace(r.URL.Query().Get(key)), fallback)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()).WithDetails(map[string]any{"field": key})
	}
	return level, nil
}
