package api

import (
	"net/http"

	"github.com/CMZCoder/CommerzioS-sub000/internal/service"

	"github.com/gorilla/mux"
)

type serviceRequest struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	Price           int64  `json:"price"` // rappen
	DurationMinutes int    `json:"duration_minutes"`
}

func (req serviceRequest) toInput() service.ServiceInput {
	return service.ServiceInput{
		Name:            req.Name,
		Category:        req.Category,
		Description:     req.Description,
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
	}
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.catalog.ListActive(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	svc, err := s.catalog.Create(r.Context(), userFrom(r).ID, req.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	svc, err := s.catalog.Update(r.Context(), userFrom(r).ID, mux.Vars(r)["id"], req.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleDeactivateService(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Deactivate(r.Context(), userFrom(r).ID, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
