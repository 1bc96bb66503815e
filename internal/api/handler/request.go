package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/jobtracker/internal/api/middleware"
	"github.com/kiranshivaraju/jobtracker/internal/api/response"
	"github.com/kiranshivaraju/jobtracker/internal/workflow"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// actor builds the caller identity from the worker Identity resolved.
// It writes a 401 and returns false when none is present.
func actor(w http.ResponseWriter, r *http.Request) (workflow.Actor, bool) {
	worker, ok := mw.GetWorker(r)
	if !ok {
		response.Fail(w, response.CodeUnauthenticated, "Missing caller identity", nil)
		return workflow.Actor{}, false
	}
	return workflow.Actor{
		WorkspaceID: worker.WorkspaceID,
		WorkerID:    worker.ID,
		Role:        worker.Role,
	}, true
}

// pathID parses the chi URL param name as a UUID, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Fail(w, response.CodeInvalidRequest, name+" must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody decodes a JSON body into v. An empty body is allowed when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	response.Fail(w, response.CodeInvalidRequest, "Invalid JSON body", nil)
	return false
}

type page struct {
	page  int
	limit int
}

func parsePage(r *http.Request) (page, error) {
	p := page{page: 1, limit: defaultPageLimit}
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, errors.New("page must be a positive integer")
		}
		p.page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, errors.New("limit must be a positive integer")
		}
		p.limit = min(n, maxPageLimit)
	}
	return p, nil
}

// paginate returns the window of items for p and the pagination meta.
func paginate[T any](items []T, p page) ([]T, response.PaginationMeta) {
	total := len(items)
	start := total
	// Compared by division so a huge page cannot overflow the offset.
	if p.page-1 < (total+p.limit-1)/p.limit {
		start = (p.page - 1) * p.limit
	}
	end := min(start+p.limit, total)
	return items[start:end], response.Page(p.page, p.limit, total, end)
}
