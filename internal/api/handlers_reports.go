package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// period passes ?type= through; the report service rejects unknown values.
func period(r *http.Request) string {
	return r.URL.Query().Get("type")
}

func (s *HTTPServer) writeReport(w http.ResponseWriter, r *http.Request, report interface{}, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", report)
}

func (s *HTTPServer) handleAdminReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.Reports.AdminReport(r.Context(), actorOf(r), period(r))
	s.writeReport(w, r, report, err)
}

func (s *HTTPServer) handleUserReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.Reports.UserReport(r.Context(), actorOf(r), period(r))
	s.writeReport(w, r, report, err)
}

func (s *HTTPServer) handleEquipmentReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.Reports.EquipmentReport(r.Context(), actorOf(r))
	s.writeReport(w, r, report, err)
}

func (s *HTTPServer) handleDeliveryReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.Reports.DeliveryReport(r.Context(), actorOf(r), period(r))
	s.writeReport(w, r, report, err)
}

func (s *HTTPServer) handlePaymentReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.Reports.PaymentReport(r.Context(), actorOf(r), period(r))
	s.writeReport(w, r, report, err)
}

// exportHandler serves a report of the given kind as a file download.
func (s *HTTPServer) exportHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := s.services.Reports.Export(r.Context(), actorOf(r), kind, period(r), mux.Vars(r)["format"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", file.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
		w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(file.Data)
	}
}

func (s *HTTPServer) handleActivityLogs(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt(r, "user_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logs, err := s.services.Reports.ActivityLogs(r.Context(), actorOf(r), userID, int(limit))
	s.writeReport(w, r, logs, err)
}

func (s *HTTPServer) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.services.Reports.AdminDashboard(r.Context(), actorOf(r))
	s.writeReport(w, r, dashboard, err)
}

func (s *HTTPServer) handleUserDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.services.Reports.UserDashboard(r.Context(), actorOf(r))
	s.writeReport(w, r, dashboard, err)
}

func (s *HTTPServer) handleDeliveryDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.services.Reports.DeliveryDashboard(r.Context(), actorOf(r))
	s.writeReport(w, r, dashboard, err)
}
