package api

import (
	"net/http"

	"cafeplease/internal/auth"
	"cafeplease/internal/model"
	"cafeplease/internal/schema"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := d.Desk.Settings(r.Context())
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (d Dependencies) updateSettings(w http.ResponseWriter, r *http.Request) {
	var s model.Settings
	if err := d.decodeValidated(r, schema.Settings, &s); err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	saved, err := d.Desk.UpdateSettings(r.Context(), s)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (d Dependencies) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := d.Desk.Users(r.Context())
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": users})
}

func (d Dependencies) saveUser(w http.ResponseWriter, r *http.Request) {
	var u model.User
	if err := d.decodeValidated(r, schema.User, &u); err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	saved, err := d.Desk.SaveUser(r.Context(), u)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (d Dependencies) deleteUser(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.GetPrincipal(r.Context())
	if err := d.Desk.DeleteUser(r.Context(), p.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ReportSaleBody struct {
	UserID    string `json:"userId,omitempty"`
	SaleCount int    `json:"saleCount"`
}

func (d Dependencies) reportSale(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.GetPrincipal(r.Context())

	var body ReportSaleBody
	if err := d.decodeValidated(r, schema.Sale, &body); err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	userID := p.UserID
	if body.UserID != "" && body.UserID != p.UserID {
		if !p.Role.CanManage() {
			WriteError(w, http.StatusForbidden, "forbidden", "cannot report sales for another user", d.Log)
			return
		}
		userID = body.UserID
	}

	sale, err := d.Desk.ReportSale(r.Context(), userID, body.SaleCount)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}
