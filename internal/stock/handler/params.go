package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
)

// pathID returns the {id} URL parameter. Ids are UUIDs, so any other value
// names no record and answers NotFound for resource.
func pathID(r *http.Request, resource string) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.NotFound(resource)
	}
	return id, nil
}
