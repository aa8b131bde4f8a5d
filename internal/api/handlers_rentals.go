package api

import (
	"net/http"

	"rentalhub/internal/models"
	"rentalhub/internal/service"
)

// checkoutRequest accepts return_date as an alias of end_date.
type checkoutRequest struct {
	EquipmentID int64     `json:"equipment_id"`
	StartDate   *flexTime `json:"start_date"`
	EndDate     *flexTime `json:"end_date"`
	ReturnDate  *flexTime `json:"return_date"`
	Quantity    int64     `json:"quantity"`
	Notes       string    `json:"notes"`
}

func (c checkoutRequest) input() service.CheckoutInput {
	in := service.CheckoutInput{
		EquipmentID: c.EquipmentID,
		StartDate:   c.StartDate.ptr(),
		Quantity:    c.Quantity,
		Notes:       c.Notes,
	}
	if end := c.EndDate.ptr(); end != nil {
		in.EndDate = *end
	} else if end := c.ReturnDate.ptr(); end != nil {
		in.EndDate = *end
	}
	return in
}

func (s *HTTPServer) writeRentals(w http.ResponseWriter, r *http.Request, rentals []*models.Rental, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", rentals)
}

func (s *HTTPServer) handleListRentals(w http.ResponseWriter, r *http.Request) {
	rentals, err := s.services.Rentals.ListAll(r.Context(), actorOf(r))
	s.writeRentals(w, r, rentals, err)
}

func (s *HTTPServer) handleMyRentals(w http.ResponseWriter, r *http.Request) {
	rentals, err := s.services.Rentals.ListMine(r.Context(), actorOf(r))
	s.writeRentals(w, r, rentals, err)
}

func (s *HTTPServer) handleActiveRentals(w http.ResponseWriter, r *http.Request) {
	rentals, err := s.services.Rentals.ListActive(r.Context(), actorOf(r))
	s.writeRentals(w, r, rentals, err)
}

func (s *HTTPServer) handleOverdueRentals(w http.ResponseWriter, r *http.Request) {
	rentals, err := s.services.Rentals.ListOverdue(r.Context(), actorOf(r))
	s.writeRentals(w, r, rentals, err)
}

func (s *HTTPServer) handleRentalsByEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "equipmentId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rentals, err := s.services.Rentals.ListByEquipment(r.Context(), actorOf(r), id)
	s.writeRentals(w, r, rentals, err)
}

func (s *HTTPServer) handleRentalsByUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rentals, err := s.services.Rentals.ListByUser(r.Context(), actorOf(r), id)
	s.writeRentals(w, r, rentals, err)
}

func (s *HTTPServer) handleGetRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rental, err := s.services.Rentals.Get(r.Context(), actorOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", rental)
}

func (s *HTTPServer) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var body checkoutRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.checkout(w, r, body.input())
}

// handleCreateRental is checkout with the equipment id in the path.
func (s *HTTPServer) handleCreateRental(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "equipmentId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body checkoutRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	body.EquipmentID = id
	s.checkout(w, r, body.input())
}

func (s *HTTPServer) checkout(w http.ResponseWriter, r *http.Request, in service.CheckoutInput) {
	rental, err := s.services.Rentals.Checkout(r.Context(), actorOf(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Equipment checked out successfully", rental)
}

func (s *HTTPServer) handleReturnByBody(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RentalID int64 `json:"rental_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.RentalID <= 0 {
		s.writeError(w, r, badRequest("rental_id is required"))
		return
	}
	s.returnRental(w, r, body.RentalID)
}

func (s *HTTPServer) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.returnRental(w, r, id)
}

func (s *HTTPServer) returnRental(w http.ResponseWriter, r *http.Request, id int64) {
	res, err := s.services.Rentals.Return(r.Context(), actorOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Equipment returned successfully", res)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rental, err := s.services.Rentals.Cancel(r.Context(), actorOf(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Rental cancelled successfully", rental)
}

func (s *HTTPServer) handleRentalStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	rental, err := s.services.Rentals.UpdateStatus(r.Context(), actorOf(r), id, body.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Rental status updated successfully", rental)
}
