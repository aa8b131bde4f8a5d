package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rentalhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRentals() []*models.Rental {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []*models.Rental{
		{
			ID: 1, EquipmentName: "Concrete Mixer", EquipmentCategory: "Power Tools",
			UserName: "Анна", UserEmail: "anna@example.com", Status: models.RentalActive,
			StartDate: start, EndDate: start.AddDate(0, 0, 3), Quantity: 2, TotalCost: 60, CreatedAt: start,
		},
		{ID: 2, Status: models.RentalPending, StartDate: start, EndDate: start.AddDate(0, 0, 1), Quantity: 1},
	}
}

func TestRenderCSV(t *testing.T) {
	file, err := Render(RentalsTable(sampleRentals()), FormatCSV, "daily_rentals_2026-03-01", true)
	require.NoError(t, err)

	assert.Equal(t, "daily_rentals_2026-03-01.csv", file.Name)
	assert.Contains(t, file.ContentType, "text/csv")
	require.True(t, bytes.HasPrefix(file.Data, []byte{0xEF, 0xBB, 0xBF}))

	records, err := csv.NewReader(bytes.NewReader(file.Data[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Equipment", records[0][1])
	assert.Equal(t, []string{
		"1", "Concrete Mixer", "Power Tools", "Анна", "anna@example.com", "active",
		"2026-03-01", "2026-03-04", "2", "60.00", "2026-03-01",
	}, records[1])
	assert.Equal(t, "N/A", records[2][1])
	assert.Equal(t, "", records[2][10])
}

func TestRenderCSV_NoBOM(t *testing.T) {
	file, err := Render(PaymentsTable(nil), FormatCSV, "payments", false)
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(file.Data, []byte{0xEF, 0xBB, 0xBF}))
	assert.True(t, bytes.HasPrefix(file.Data, []byte("ID,Rental ID")))
}

func TestRenderXLSX(t *testing.T) {
	processed := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	payments := []*models.Payment{
		{ID: 7, RentalID: 1, UserName: "Bob", Amount: 42.5, Method: models.MethodCard, Status: models.PaymentCompleted, ProcessedAt: &processed},
		{ID: 8, RentalID: 2, Amount: 10, Method: models.MethodCash, Status: models.PaymentPending},
	}

	file, err := Render(PaymentsTable(payments), FormatXLSX, "monthly_payments_2026-03", true)
	require.NoError(t, err)
	assert.Equal(t, "monthly_payments_2026-03.xlsx", file.Name)

	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Payments"}, f.GetSheetList())
	rows, err := f.GetRows("Payments")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Transaction ID", rows[0][7])
	assert.Equal(t, "Bob", rows[1][2])
	assert.Equal(t, "42.5", rows[1][4])
	assert.Equal(t, "2026-03-02", rows[1][8])
	assert.Equal(t, "N/A", rows[2][2])
}

func TestRenderUnsupported(t *testing.T) {
	_, err := Render(EquipmentTable(nil), "pdf", "equipment", false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestEquipmentTable(t *testing.T) {
	table := EquipmentTable([]*models.Equipment{
		{ID: 1, Name: "Laser level", Category: models.CategoryOthers, CustomCategory: "Surveying", Approved: true, TotalQuantity: 3, AvailableQuantity: 1},
	})
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Surveying", table.Rows[0][2])
	assert.Equal(t, "Yes", table.Rows[0][5])
}

func TestFileName(t *testing.T) {
	now := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "daily_rentals_2026-03-09", FileName("rentals", models.PeriodDaily, now))
	assert.Equal(t, "monthly_rentals_2026-03", FileName("rentals", models.PeriodMonthly, now))
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	path, err := Save(dir, &File{Name: "a.csv", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}
