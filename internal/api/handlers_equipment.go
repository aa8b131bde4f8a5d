package api

import (
	"net/http"

	"rentalhub/internal/models"
	"rentalhub/internal/service"

	"github.com/gorilla/mux"
)

func (s *HTTPServer) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	items, err := s.services.Equipment.List(r.Context(), actorOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", items)
}

func (s *HTTPServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.services.Equipment.Categories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", categories)
}

func (s *HTTPServer) handleEquipmentByCategory(w http.ResponseWriter, r *http.Request) {
	items, err := s.services.Equipment.ListByCategory(r.Context(), actorOf(r), mux.Vars(r)["category"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", items)
}

func (s *HTTPServer) handleGetEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := s.services.Equipment.Get(r.Context(), actorOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", item)
}

func (s *HTTPServer) handleCreateEquipment(w http.ResponseWriter, r *http.Request) {
	var in service.EquipmentInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := s.services.Equipment.Create(r.Context(), actorOf(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Equipment created successfully", item)
}

func (s *HTTPServer) handleUpdateEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in service.EquipmentUpdate
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := s.services.Equipment.Update(r.Context(), actorOf(r), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Equipment updated successfully", item)
}

func (s *HTTPServer) handleApproveEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in service.ApprovalInput
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	item, err := s.services.Equipment.Approve(r.Context(), actorOf(r), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Equipment approval updated", item)
}

// handleAvailability sets the counter with {"available": n} or moves it with {"delta": n}.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Available *int64 `json:"available"`
		Delta     *int64 `json:"delta"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if (body.Available == nil) == (body.Delta == nil) {
		s.writeError(w, r, badRequest("exactly one of available or delta is required"))
		return
	}

	actor := actorOf(r)
	var updated *models.Equipment
	if body.Available != nil {
		updated, err = s.services.Equipment.SetAvailability(r.Context(), actor, id, *body.Available)
	} else {
		updated, err = s.services.Equipment.AdjustAvailability(r.Context(), actor, id, *body.Delta)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Availability updated", updated)
}

func (s *HTTPServer) handleDeleteEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.services.Equipment.Delete(r.Context(), actorOf(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Equipment deleted successfully", nil)
}
