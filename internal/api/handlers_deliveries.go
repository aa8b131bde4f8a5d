package api

import (
	"net/http"

	"rentalhub/internal/service"
)

func (s *HTTPServer) handleCreateDelivery(w http.ResponseWriter, r *http.Request) {
	var in service.DeliveryInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	delivery, err := s.services.Deliveries.Create(r.Context(), actorOf(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Delivery created successfully", delivery)
}

func (s *HTTPServer) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := s.services.Deliveries.ListAll(r.Context(), actorOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", deliveries)
}

func (s *HTTPServer) handleAssignedDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := s.services.Deliveries.ListAssigned(r.Context(), actorOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", deliveries)
}

func (s *HTTPServer) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	delivery, err := s.services.Deliveries.MarkDelivered(r.Context(), actorOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Delivery marked as delivered", delivery)
}

func (s *HTTPServer) handleMarkReturned(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	delivery, err := s.services.Deliveries.MarkReturned(r.Context(), actorOf(r), id, body.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Delivery marked as returned", delivery)
}
