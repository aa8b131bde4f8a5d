package service

import (
	"context"
	"strings"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/domain"
	"rentalhub/internal/export"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

// Report kinds accepted by Export.
const (
	ReportRentals    = "rentals"
	ReportMyRentals  = "my_rentals"
	ReportEquipment  = "equipment"
	ReportDeliveries = "deliveries"
	ReportPayments   = "payments"
)

// ReportService builds read-only projections. Nothing here writes to storage.
type ReportService struct {
	repo   domain.Repository
	cfg    config.ExportConfig
	now    func() time.Time
	logger *zerolog.Logger
}

func NewReportService(repo domain.Repository, cfg config.ExportConfig, logger *zerolog.Logger) *ReportService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReportService{repo: repo, cfg: cfg, now: time.Now, logger: logger}
}

func requireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return forbiddenError("Admin access required")
	}
	return nil
}

// AdminReport covers rentals of every user created in the period window.
func (s *ReportService) AdminReport(ctx context.Context, actor models.Actor, period string) (*models.RentalReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.rentalReport(ctx, 0, period)
}

// UserReport is the same projection restricted to the caller's rentals.
func (s *ReportService) UserReport(ctx context.Context, actor models.Actor, period string) (*models.RentalReport, error) {
	return s.rentalReport(ctx, actor.UserID, period)
}

func (s *ReportService) rentalReport(ctx context.Context, userID int64, period string) (*models.RentalReport, error) {
	period, start, end, err := reportWindow(period, s.now())
	if err != nil {
		return nil, err
	}
	rentals, err := s.repo.ListRentalsCreatedBetween(ctx, userID, start, end)
	if err != nil {
		return nil, storeError(err, "", "list rentals for report")
	}

	report := &models.RentalReport{
		Period:       period,
		StartDate:    start,
		EndDate:      end,
		TotalRentals: len(rentals),
		ByStatus:     make(map[string]int),
		ByCategory:   make(map[string]int),
		Rentals:      rentals,
	}
	for _, r := range rentals {
		report.TotalAmount += r.TotalCost
		report.ByStatus[r.Status]++
		category := r.EquipmentCategory
		if category == "" {
			category = "N/A"
		}
		report.ByCategory[category]++
	}
	if len(rentals) > 0 {
		report.AverageAmount = report.TotalAmount / float64(len(rentals))
	}
	return report, nil
}

func (s *ReportService) EquipmentReport(ctx context.Context, actor models.Actor) (*models.EquipmentReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	items, err := s.repo.ListEquipment(ctx, models.EquipmentFilter{})
	if err != nil {
		return nil, storeError(err, "", "list equipment for report")
	}

	report := &models.EquipmentReport{
		TotalEquipment: len(items),
		ByStatus:       make(map[string]int),
		ByCategory:     make(map[string]int),
		Equipment:      items,
	}
	for _, e := range items {
		report.TotalUnits += e.TotalQuantity
		report.AvailableUnits += e.AvailableQuantity
		report.ByStatus[e.Status]++
		report.ByCategory[e.Category]++
		if !e.Approved {
			report.PendingApproval++
		}
	}
	report.RentedUnits = report.TotalUnits - report.AvailableUnits
	return report, nil
}

func (s *ReportService) DeliveryReport(ctx context.Context, actor models.Actor, period string) (*models.DeliveryReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	period, start, end, err := reportWindow(period, s.now())
	if err != nil {
		return nil, err
	}
	deliveries, err := s.repo.ListDeliveriesCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, storeError(err, "", "list deliveries for report")
	}

	report := &models.DeliveryReport{
		Period:          period,
		StartDate:       start,
		EndDate:         end,
		TotalDeliveries: len(deliveries),
		ByStatus:        make(map[string]int),
		Deliveries:      deliveries,
	}
	for _, d := range deliveries {
		report.ByStatus[d.Status]++
	}
	return report, nil
}

func (s *ReportService) PaymentReport(ctx context.Context, actor models.Actor, period string) (*models.PaymentReport, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	period, start, end, err := reportWindow(period, s.now())
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPaymentsCreatedBetween(ctx, start, end)
	if err != nil {
		return nil, storeError(err, "", "list payments for report")
	}

	report := &models.PaymentReport{
		Period:        period,
		StartDate:     start,
		EndDate:       end,
		TotalPayments: len(payments),
		ByStatus:      make(map[string]int),
		ByMethod:      make(map[string]models.MethodSummary),
		Payments:      payments,
	}
	for _, p := range payments {
		report.TotalAmount += p.Amount
		if p.Status == models.PaymentCompleted {
			report.CompletedAmount += p.Amount
		}
		report.ByStatus[p.Status]++
		m := report.ByMethod[p.Method]
		m.Count++
		m.Amount += p.Amount
		report.ByMethod[p.Method] = m
	}
	return report, nil
}

// ActivityLogs returns the journal: admins may read anyone's, others only their own.
func (s *ReportService) ActivityLogs(ctx context.Context, actor models.Actor, userID int64, limit int) ([]*models.ActivityLog, error) {
	if !actor.IsAdmin() {
		if userID != 0 && userID != actor.UserID {
			return nil, forbiddenError("Not authorized to view these logs")
		}
		userID = actor.UserID
	}
	logs, err := s.repo.ListActivityLogs(ctx, userID, limit)
	return logs, storeError(err, "", "list activity logs")
}

func (s *ReportService) AdminDashboard(ctx context.Context, actor models.Actor) (*models.AdminDashboard, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	users, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, storeError(err, "", "count users")
	}
	equipment, err := s.repo.CountEquipment(ctx, models.EquipmentFilter{})
	if err != nil {
		return nil, storeError(err, "", "count equipment")
	}
	notApproved := false
	pendingEquipment, err := s.repo.CountEquipment(ctx, models.EquipmentFilter{Approved: &notApproved})
	if err != nil {
		return nil, storeError(err, "", "count equipment")
	}
	counts, err := s.repo.RentalCountsByStatus(ctx, 0)
	if err != nil {
		return nil, storeError(err, "", "count rentals")
	}
	overdue, err := s.repo.CountOverdueRentals(ctx, s.now())
	if err != nil {
		return nil, storeError(err, "", "count overdue rentals")
	}
	revenue, err := s.repo.RentalRevenue(ctx, 0, models.RentalCompleted)
	if err != nil {
		return nil, storeError(err, "", "sum revenue")
	}
	recent, err := s.repo.ListRentals(ctx, models.RentalFilter{Limit: models.RecentItemsLimit})
	if err != nil {
		return nil, storeError(err, "", "list recent rentals")
	}

	return &models.AdminDashboard{
		Stats: models.AdminStats{
			TotalUsers:       int(users),
			TotalEquipment:   equipment,
			TotalRentals:     sumCounts(counts),
			ActiveRentals:    counts[models.RentalActive],
			PendingRentals:   counts[models.RentalPending],
			OverdueRentals:   overdue,
			PendingEquipment: pendingEquipment,
			TotalRevenue:     revenue,
		},
		RecentRentals: recent,
	}, nil
}

func (s *ReportService) UserDashboard(ctx context.Context, actor models.Actor) (*models.UserDashboard, error) {
	counts, err := s.repo.RentalCountsByStatus(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, "", "count rentals")
	}
	spent, err := s.repo.RentalRevenue(ctx, actor.UserID, models.RentalCompleted)
	if err != nil {
		return nil, storeError(err, "", "sum spent")
	}
	approved, status := true, models.EquipmentAvailable
	available, err := s.repo.CountEquipment(ctx, models.EquipmentFilter{Approved: &approved, Status: &status})
	if err != nil {
		return nil, storeError(err, "", "count equipment")
	}
	recent, err := s.repo.ListRentals(ctx, models.RentalFilter{UserID: actor.UserID, Limit: models.RecentItemsLimit})
	if err != nil {
		return nil, storeError(err, "", "list recent rentals")
	}

	return &models.UserDashboard{
		Stats: models.UserStats{
			TotalRentals:       sumCounts(counts),
			ActiveRentals:      counts[models.RentalActive],
			CompletedRentals:   counts[models.RentalCompleted],
			PendingRentals:     counts[models.RentalPending],
			TotalSpent:         spent,
			AvailableEquipment: available,
		},
		RecentRentals: recent,
	}, nil
}

func (s *ReportService) DeliveryDashboard(ctx context.Context, actor models.Actor) (*models.DeliveryDashboard, error) {
	if !actor.IsDelivery() {
		return nil, forbiddenError("Delivery access required")
	}
	counts, err := s.repo.DeliveryCountsByStatus(ctx, actor.UserID)
	if err != nil {
		return nil, storeError(err, "", "count deliveries")
	}
	pending, err := s.repo.ListDeliveries(ctx, actor.UserID, models.DeliveryAssigned, models.DeliveryDelivered)
	if err != nil {
		return nil, storeError(err, "", "list pending deliveries")
	}

	return &models.DeliveryDashboard{
		Stats: models.DeliveryStats{
			TotalDeliveries:     sumCounts(counts),
			AssignedDeliveries:  counts[models.DeliveryAssigned],
			DeliveredDeliveries: counts[models.DeliveryDelivered],
			ReturnedDeliveries:  counts[models.DeliveryReturned],
		},
		PendingDeliveries: pending,
	}, nil
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// Export renders a report as a csv or xlsx download.
func (s *ReportService) Export(ctx context.Context, actor models.Actor, kind, period, format string) (*export.File, error) {
	if format != export.FormatCSV && format != export.FormatXLSX {
		return nil, validationError("Unsupported format. Use 'csv' or 'xlsx'")
	}

	var table *export.Table
	switch kind {
	case ReportRentals, ReportMyRentals:
		var (
			report *models.RentalReport
			err    error
		)
		if kind == ReportRentals {
			report, err = s.AdminReport(ctx, actor, period)
		} else {
			report, err = s.UserReport(ctx, actor, period)
		}
		if err != nil {
			return nil, err
		}
		period = report.Period
		table = export.RentalsTable(report.Rentals)
	case ReportEquipment:
		report, err := s.EquipmentReport(ctx, actor)
		if err != nil {
			return nil, err
		}
		table = export.EquipmentTable(report.Equipment)
	case ReportDeliveries:
		report, err := s.DeliveryReport(ctx, actor, period)
		if err != nil {
			return nil, err
		}
		period = report.Period
		table = export.DeliveriesTable(report.Deliveries)
	case ReportPayments:
		report, err := s.PaymentReport(ctx, actor, period)
		if err != nil {
			return nil, err
		}
		period = report.Period
		table = export.PaymentsTable(report.Payments)
	default:
		return nil, validationError("Unknown report")
	}
	if period == "" {
		period = models.PeriodDaily
	}

	file, err := export.Render(table, format, export.FileName(kind, period, s.now()), s.cfg.CSVBOM)
	if err != nil {
		return nil, err
	}

	if s.cfg.Archive {
		path, err := export.Save(s.cfg.Path, file)
		if err != nil {
			s.logger.Error().Err(err).Str("file", file.Name).Msg("Error archiving export")
		} else {
			s.logger.Info().Str("file_path", path).Msg("Export archived")
		}
	}
	return file, nil
}

func reportWindow(period string, now time.Time) (string, time.Time, time.Time, error) {
	period, start, end, err := models.ReportWindow(strings.ToLower(strings.TrimSpace(period)), now)
	if err != nil {
		return "", time.Time{}, time.Time{}, validationError("Report type must be daily or monthly")
	}
	return period, start, end, nil
}
