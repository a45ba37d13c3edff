package api

import (
	"context"
	"net/http"

	"cafeplease/internal/auth"
	"cafeplease/internal/lifecycle"
	"cafeplease/internal/model"
	"cafeplease/internal/schema"

	"github.com/go-chi/chi/v5"
)

type SubmitRequestBody struct {
	// UserID lets a manager file on behalf of an assistant. Assistants always submit for themselves.
	UserID   string         `json:"userId,omitempty"`
	CodeType model.CodeType `json:"codeType"`
	Duration int            `json:"duration"`
}

func (d Dependencies) submitRequest(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.GetPrincipal(r.Context())

	var body SubmitRequestBody
	if err := d.decodeValidated(r, schema.SubmitRequest, &body); err != nil {
		writeServiceError(w, err, d.Log)
		return
	}

	userID := p.UserID
	if body.UserID != "" && body.UserID != p.UserID {
		if !p.Role.CanManage() {
			WriteError(w, http.StatusForbidden, "forbidden", "cannot submit for another user", d.Log)
			return
		}
		userID = body.UserID
	}

	req, err := d.Desk.SubmitRequest(r.Context(), userID, body.CodeType, body.Duration)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// loadVisible fetches the request and checks the caller may see it.
func (d Dependencies) loadVisible(w http.ResponseWriter, r *http.Request) (model.Request, bool) {
	req, err := d.Desk.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return model.Request{}, false
	}
	p, _ := auth.GetPrincipal(r.Context())
	if req.UserID != p.UserID && !p.Role.CanManage() {
		WriteError(w, http.StatusForbidden, "forbidden", "request belongs to another user", d.Log)
		return model.Request{}, false
	}
	return req, true
}

func (d Dependencies) getRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := d.loadVisible(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (d Dependencies) requestPosition(w http.ResponseWriter, r *http.Request) {
	req, ok := d.loadVisible(w, r)
	if !ok {
		return
	}
	pos, err := d.Desk.Position(r.Context(), req.ID)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requestId": req.ID,
		"status":    req.Status,
		"position":  pos,
	})
}

type transitionFunc func(ctx context.Context, id string) (model.Request, error)

// ownTransition wraps an assistant-side action; managers may act on anyone's request.
func (d Dependencies) ownTransition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := d.loadVisible(w, r)
		if !ok {
			return
		}
		next, err := fn(r.Context(), req.ID)
		if err != nil {
			writeServiceError(w, err, d.Log)
			return
		}
		writeJSON(w, http.StatusOK, next)
	}
}

func (d Dependencies) approveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := d.Desk.ApproveRequest(r.Context(), chi.URLParam(r, "id"), lifecycle.ActorManager)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (d Dependencies) rejectRequest(w http.ResponseWriter, r *http.Request) {
	req, err := d.Desk.RejectRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
