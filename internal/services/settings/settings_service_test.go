package settings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"hubon-pickup/internal/models"
	"hubon-pickup/internal/services/account"
	"hubon-pickup/internal/services/availability"
	"hubon-pickup/internal/services/tracing"
	"hubon-pickup/pkg/errors"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockSessionResolver struct {
	mock.Mock
}

func (m *MockSessionResolver) FindByShop(ctx context.Context, shopOrID string) (string, error) {
	args := m.Called(ctx, shopOrID)
	return args.String(0), args.Error(1)
}

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, sessionID string) (*account.Account, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

type MockHubClient struct {
	mock.Mock
}

func (m *MockHubClient) GetHub(ctx context.Context, hubID string) (*models.Hub, error) {
	args := m.Called(ctx, hubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Hub), args.Error(1)
}

func (m *MockHubClient) ListHubs(ctx context.Context, search models.HubSearch) ([]models.Hub, error) {
	args := m.Called(ctx, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Hub), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordDisabledDatesComputed(outcome string) {
	m.Called(outcome)
}

type memoryCache struct {
	entries map[string][]byte
}

func (c *memoryCache) Key(parts ...string) string {
	return "hub:" + parts[0]
}

func (c *memoryCache) Fetch(ctx context.Context, key string, dest interface{}, load func(context.Context) error) error {
	if raw, ok := c.entries[key]; ok {
		return json.Unmarshal(raw, dest)
	}
	if err := load(ctx); err != nil {
		return err
	}
	raw, _ := json.Marshal(dest)
	c.entries[key] = raw
	return nil
}

type fixture struct {
	svc      *Service
	sessions *MockSessionResolver
	accounts *MockAuthenticator
	hubs     *MockHubClient
	metrics  *MockRecorder
}

func newFixture() *fixture {
	f := &fixture{
		sessions: new(MockSessionResolver),
		accounts: new(MockAuthenticator),
		hubs:     new(MockHubClient),
		metrics:  new(MockRecorder),
	}
	clock := availability.ClockFunc(func() time.Time {
		return time.Date(2024, 10, 1, 10, 0, 0, 0, time.UTC)
	})
	f.svc = NewService(
		f.sessions,
		f.accounts,
		f.hubs,
		&memoryCache{entries: map[string][]byte{}},
		availability.NewCalculator(clock, time.UTC),
		f.metrics,
		tracing.NewService("test", false),
		zap.NewNop(),
	)
	return f
}

func hoursPtr(s string) *string { return &s }

func linkedAccount(cutoff int, pickupDays ...int) *account.Account {
	return &account.Account{
		Link: &models.MerchantLink{SessionID: "sess", APIKey: "abcd-1"},
		Customer: &models.RegisteredCustomer{
			ID: 1,
			Setting: models.Setting{
				CutoffDate:         &cutoff,
				PickupDays:         models.Weekdays(pickupDays),
				DefaultCategory:    &models.Category{ID: 3},
				DefaultStorageType: &models.StorageType{ID: 4},
			},
		},
	}
}

func downtownHub() *models.Hub {
	open, close := hoursPtr("09:00"), hoursPtr("17:00")
	return &models.Hub{
		ID:   42,
		Name: "Downtown",
		HubHours: []models.HubHour{
			{Day: "monday", OpenHour: open, CloseHour: close},
			{Day: "tuesday", OpenHour: open, CloseHour: close},
			{Day: "wednesday", OpenHour: open, CloseHour: close},
			{Day: "thursday", OpenHour: open, CloseHour: close},
			{Day: "friday", OpenHour: nil, CloseHour: nil},
			{Day: "saturday", OpenHour: open, CloseHour: nil},
			{Day: "funday", OpenHour: open, CloseHour: close},
		},
		HolidayInfos: []models.HolidayInfo{{Date: "2024-10-14"}},
	}
}

func TestService_HubSettings(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.sessions.On("FindByShop", ctx, "demo.myshopify.com").Return("sess", nil)
	f.accounts.On("Authenticate", ctx, "sess").Return(linkedAccount(2, 1, 2, 3), nil)
	f.hubs.On("GetHub", mock.Anything, "42").Return(downtownHub(), nil).Once()

	hub, err := f.svc.HubSettings(ctx, "demo.myshopify.com", "42")
	require.NoError(t, err)

	assert.Equal(t, &availability.HubAvailability{
		CutoffDays: 2,
		PickupDays: []int{1, 2, 3},
		Holidays:   []string{"2024-10-14"},
		HubHours:   []int{1, 2, 3, 4},
	}, hub)

	_, err = f.svc.HubSettings(ctx, "demo.myshopify.com", "42")
	require.NoError(t, err)
	f.hubs.AssertExpectations(t)
}

func TestService_HubSettings_NoHub(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.sessions.On("FindByShop", ctx, "demo.myshopify.com").Return("sess", nil)
	f.accounts.On("Authenticate", ctx, "sess").Return(linkedAccount(0), nil)

	hub, err := f.svc.HubSettings(ctx, "demo.myshopify.com", "")
	require.NoError(t, err)
	assert.Equal(t, []int{}, hub.PickupDays)
	assert.Equal(t, []string{}, hub.Holidays)
	assert.Equal(t, []int{}, hub.HubHours)
	f.hubs.AssertNotCalled(t, "GetHub", mock.Anything, mock.Anything)
}

func TestService_HubSettings_NilCutoff(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acct := linkedAccount(0, 1)
	acct.Customer.Setting.CutoffDate = nil

	f.sessions.On("FindByShop", ctx, "shop").Return("sess", nil)
	f.accounts.On("Authenticate", ctx, "sess").Return(acct, nil)

	hub, err := f.svc.HubSettings(ctx, "shop", "")
	require.NoError(t, err)
	assert.Equal(t, 0, hub.CutoffDays)
}

func TestService_HubSettings_UnknownShop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.sessions.On("FindByShop", ctx, "nope").
		Return("", errors.NewDomainError(errors.CodeNotFound, "not found", ""))

	_, err := f.svc.HubSettings(ctx, "nope", "42")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestService_HubSettings_NotLinkedIsNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.sessions.On("FindByShop", ctx, "shop").Return("sess", nil)
	f.accounts.On("Authenticate", ctx, "sess").
		Return(nil, errors.NewDomainError(errors.CodeNotRegistered, "hubon account not linked", ""))

	_, err := f.svc.HubSettings(ctx, "shop", "42")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestService_HubSettings_CarrierFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.sessions.On("FindByShop", ctx, "shop").Return("sess", nil)
	f.accounts.On("Authenticate", ctx, "sess").Return(linkedAccount(1, 1), nil)
	f.hubs.On("GetHub", mock.Anything, "42").
		Return(nil, errors.NewDomainError(errors.CodeCarrierFailure, "carrier request failed", ""))

	_, err := f.svc.HubSettings(ctx, "shop", "42")
	assert.True(t, errors.HasCode(err, errors.CodeCarrierFailure))
}

func TestService_DisabledDates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.sessions.On("FindByShop", mock.Anything, "shop").Return("sess", nil)
	f.accounts.On("Authenticate", mock.Anything, "sess").Return(linkedAccount(2, 1, 2, 3, 4, 5), nil)
	f.hubs.On("GetHub", mock.Anything, "42").Return(downtownHub(), nil)
	f.metrics.On("RecordDisabledDatesComputed", "success").Once()

	dates, err := f.svc.DisabledDates(ctx, "shop", "42", 10, 2024)
	require.NoError(t, err)

	// Cutoff covers Oct 2-3; pickup days Mon-Fri intersect hub hours Mon-Thu,
	// so Fri/Sat/Sun are disabled; Oct 14 is a holiday.
	expected := []string{
		"2024-10-02", "2024-10-03", "2024-10-04", "2024-10-05", "2024-10-06",
		"2024-10-11", "2024-10-12", "2024-10-13", "2024-10-14",
		"2024-10-18", "2024-10-19", "2024-10-20",
		"2024-10-25", "2024-10-26", "2024-10-27",
	}
	if diff := cmp.Diff(expected, availability.FormatDates(dates)); diff != "" {
		t.Errorf("disabled dates mismatch (-want +got):\n%s", diff)
	}
	f.metrics.AssertExpectations(t)
}

func TestService_DisabledDates_RecordsErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.sessions.On("FindByShop", mock.Anything, "shop").
		Return("", errors.NewDomainError(errors.CodeNotFound, "not found", ""))
	f.metrics.On("RecordDisabledDatesComputed", "error").Once()

	_, err := f.svc.DisabledDates(ctx, "shop", "42", 10, 2024)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
	f.metrics.AssertExpectations(t)
}

func TestService_SearchHubs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.sessions.On("FindByShop", ctx, "shop").Return("sess", nil)
	f.accounts.On("Authenticate", ctx, "sess").Return(linkedAccount(1), nil)
	f.hubs.On("ListHubs", ctx, models.HubSearch{
		Search:       "down",
		CategoryID:   "3",
		StorageTypes: []string{"4"},
	}).Return([]models.Hub{{ID: 42, Name: "Downtown"}}, nil)

	hubs, err := f.svc.SearchHubs(ctx, "shop", "down")
	require.NoError(t, err)
	require.Len(t, hubs, 1)
	assert.Equal(t, "Downtown", hubs[0].Name)
}

func TestService_SearchHubs_NoDefaults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	acct := linkedAccount(1)
	acct.Customer.Setting.DefaultCategory = nil
	acct.Customer.Setting.DefaultStorageType = nil

	f.sessions.On("FindByShop", ctx, "shop").Return("sess", nil)
	f.accounts.On("Authenticate", ctx, "sess").Return(acct, nil)
	f.hubs.On("ListHubs", ctx, models.HubSearch{Search: ""}).Return([]models.Hub{}, nil)

	hubs, err := f.svc.SearchHubs(ctx, "shop", "")
	require.NoError(t, err)
	assert.Empty(t, hubs)
}
