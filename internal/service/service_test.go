package service

import (
	"context"
	"testing"
	"time"

	"rentalhub/internal/auth"
	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/models"
	"rentalhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Enqueue(ctx context.Context, entry *models.ActivityLog) error {
	return m.Called(ctx, entry).Error(0)
}

// actions returns the audit actions recorded so far, in order.
func (m *mockAudit) actions() []string {
	var out []string
	for _, call := range m.Calls {
		out = append(out, call.Arguments.Get(1).(*models.ActivityLog).Action)
	}
	return out
}

type testEnv struct {
	db     *database.DB
	events *mockPublisher
	audit  *mockAudit
	cache  *repository.MemoryCacheStore

	auth       *AuthService
	equipment  *EquipmentService
	rentals    *RentalService
	deliveries *DeliveryService
	payments   *PaymentService
	reports    *ReportService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewDB(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events := &mockPublisher{}
	events.On("PublishJSON", mock.Anything, mock.Anything).Return(nil).Maybe()
	audit := &mockAudit{}
	audit.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Maybe()

	store := repository.NewMemoryCacheStore()
	catalog := NewCatalogCache(store, time.Minute, nil)
	authCfg := config.APIAuthConfig{LoginAttempts: 3, LoginWindow: time.Minute, TokenTTL: time.Hour}

	env := &testEnv{
		db:         db,
		events:     events,
		audit:      audit,
		cache:      store,
		auth:       NewAuthService(db, auth.NewTokenManager("test-secret", time.Hour, "test"), auth.NewHasher(bcrypt.MinCost), store, authCfg, events, audit, nil),
		equipment:  NewEquipmentService(db, catalog, events, audit, nil),
		rentals:    NewRentalService(db, catalog, models.RentalPending, events, audit, nil),
		deliveries: NewDeliveryService(db, db, db, catalog, events, audit, nil),
		payments:   NewPaymentService(db, db, events, audit, nil),
		reports:    NewReportService(db, config.ExportConfig{CSVBOM: true}, nil),
	}
	env.rentals.now = func() time.Time { return fixedNow }
	env.payments.now = func() time.Time { return fixedNow }
	return env
}

// user stores an account directly and returns its actor.
func (e *testEnv) user(t *testing.T, email, role string) models.Actor {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Name: email, Email: email, PasswordHash: string(hash), Role: role, Phone: "+1 555 0100"}
	require.NoError(t, e.db.CreateUser(context.Background(), u))
	return models.Actor{UserID: u.ID, Email: u.Email, Role: u.Role, IP: "10.0.0.1"}
}

func (e *testEnv) admin(t *testing.T) models.Actor {
	return e.user(t, "admin@example.com", models.RoleAdmin)
}

func (e *testEnv) item(t *testing.T, admin models.Actor, qty int64, rate float64) *models.Equipment {
	t.Helper()
	item, err := e.equipment.Create(context.Background(), admin, EquipmentInput{
		Name: "Concrete Mixer", Category: "Power Tools", Quantity: qty, DailyRate: rate,
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) checkout(t *testing.T, actor models.Actor, equipmentID, qty int64) *models.Rental {
	t.Helper()
	r, err := e.rentals.Checkout(context.Background(), actor, CheckoutInput{
		EquipmentID: equipmentID, EndDate: fixedNow.AddDate(0, 0, 3), Quantity: qty,
	})
	require.NoError(t, err)
	return r
}

func (e *testEnv) available(t *testing.T, equipmentID int64) int64 {
	t.Helper()
	item, err := e.db.GetEquipment(context.Background(), equipmentID)
	require.NoError(t, err)
	return item.AvailableQuantity
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	svcErr, ok := AsError(err)
	require.True(t, ok, "expected service error, got %v", err)
	assert.Equal(t, kind, svcErr.Kind, svcErr.Message)
}

func TestStoreError(t *testing.T) {
	assert.NoError(t, storeError(nil, "", "op"))
	assertKind(t, storeError(database.ErrNotFound, "Thing not found", "op"), KindNotFound)
	assertKind(t, storeError(database.ErrDuplicateEmail, "", "op"), KindConflict)
	assertKind(t, storeError(database.ErrInsufficientQuantity, "", "op"), KindValidation)

	err := storeError(assert.AnError, "", "list things")
	_, ok := AsError(err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "list things")
}

func TestInternalErrorsStayInternal(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin(t)
	require.NoError(t, env.db.Close())

	_, err := env.payments.List(context.Background(), admin)
	require.Error(t, err)
	_, ok := AsError(err)
	assert.False(t, ok)
}
