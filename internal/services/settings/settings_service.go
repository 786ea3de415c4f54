package settings

import (
	"context"
	"strconv"
	"time"

	"hubon-pickup/internal/models"
	"hubon-pickup/internal/services/account"
	"hubon-pickup/internal/services/availability"
	"hubon-pickup/pkg/errors"

	"go.uber.org/zap"
)

// SessionResolver maps a storefront's myshopify domain to its session id.
type SessionResolver interface {
	FindByShop(ctx context.Context, shopOrID string) (string, error)
}

// Authenticator resolves a session to its linked carrier account.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionID string) (*account.Account, error)
}

// HubClient reads the carrier's public hub endpoints.
type HubClient interface {
	GetHub(ctx context.Context, hubID string) (*models.Hub, error)
	ListHubs(ctx context.Context, search models.HubSearch) ([]models.Hub, error)
}

// HubCache holds hub details keyed by hub id.
type HubCache interface {
	Key(parts ...string) string
	Fetch(ctx context.Context, key string, dest interface{}, load func(context.Context) error) error
}

type Calculator interface {
	DisabledDates(hub *availability.HubAvailability, month, year int) ([]time.Time, error)
}

type Recorder interface {
	RecordDisabledDatesComputed(outcome string)
}

type Tracer interface {
	Trace(ctx context.Context, name string, attrs map[string]string, fn func(context.Context) error) error
}

// Service answers the storefront widget's questions about a shop's hubs.
type Service struct {
	sessions   SessionResolver
	accounts   Authenticator
	hubs       HubClient
	cache      HubCache
	calculator Calculator
	metrics    Recorder
	tracer     Tracer
	logger     *zap.Logger
}

func NewService(
	sessions SessionResolver,
	accounts Authenticator,
	hubs HubClient,
	cache HubCache,
	calculator Calculator,
	metrics Recorder,
	tracer Tracer,
	logger *zap.Logger,
) *Service {
	return &Service{
		sessions:   sessions,
		accounts:   accounts,
		hubs:       hubs,
		cache:      cache,
		calculator: calculator,
		metrics:    metrics,
		tracer:     tracer,
		logger:     logger,
	}
}

// HubSettings assembles the scheduling snapshot for hubID from the merchant's
// carrier settings and the hub detail. An empty hubID yields no holidays and
// no opening hours.
func (s *Service) HubSettings(ctx context.Context, shop, hubID string) (*availability.HubAvailability, error) {
	acct, err := s.resolve(ctx, shop)
	if err != nil {
		return nil, err
	}

	setting := acct.Customer.Setting
	result := &availability.HubAvailability{
		PickupDays: append([]int{}, setting.PickupDays...),
		Holidays:   []string{},
		HubHours:   []int{},
	}
	if setting.CutoffDate != nil {
		result.CutoffDays = *setting.CutoffDate
	}

	if hubID == "" {
		return result, nil
	}

	var hub models.Hub
	err = s.cache.Fetch(ctx, s.cache.Key(hubID), &hub, func(ctx context.Context) error {
		fetched, err := s.hubs.GetHub(ctx, hubID)
		if err != nil {
			return err
		}
		hub = *fetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, holiday := range hub.HolidayInfos {
		result.Holidays = append(result.Holidays, holiday.Date)
	}
	result.HubHours = s.openWeekdays(hub)
	return result, nil
}

// DisabledDates returns the dates the storefront date picker must disable
// for hubID in the given month (0 means current).
func (s *Service) DisabledDates(ctx context.Context, shop, hubID string, month, year int) ([]time.Time, error) {
	var dates []time.Time
	err := s.tracer.Trace(ctx, "availability.disabled_dates", map[string]string{
		"shop":   shop,
		"hub_id": hubID,
		"month":  strconv.Itoa(month),
		"year":   strconv.Itoa(year),
	}, func(ctx context.Context) error {
		hub, err := s.HubSettings(ctx, shop, hubID)
		if err != nil {
			return err
		}
		dates, err = s.calculator.DisabledDates(hub, month, year)
		return err
	})

	if err != nil {
		s.metrics.RecordDisabledDatesComputed("error")
		return nil, err
	}
	s.metrics.RecordDisabledDatesComputed("success")
	return dates, nil
}

// SearchHubs lists hubs matching search, filtered by the merchant's default
// category and storage type.
func (s *Service) SearchHubs(ctx context.Context, shop, search string) ([]models.Hub, error) {
	acct, err := s.resolve(ctx, shop)
	if err != nil {
		return nil, err
	}

	params := models.HubSearch{Search: search}
	setting := acct.Customer.Setting
	if setting.DefaultCategory != nil {
		params.CategoryID = strconv.FormatInt(setting.DefaultCategory.ID, 10)
	}
	if setting.DefaultStorageType != nil {
		params.StorageTypes = []string{strconv.FormatInt(setting.DefaultStorageType.ID, 10)}
	}

	return s.hubs.ListHubs(ctx, params)
}

// resolve maps shop to its authenticated account. Anything that prevents it,
// short of an infrastructure failure, is reported as not found.
func (s *Service) resolve(ctx context.Context, shop string) (*account.Account, error) {
	sessionID, err := s.sessions.FindByShop(ctx, shop)
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.Authenticate(ctx, sessionID)
	if errors.HasCode(err, errors.CodeNotRegistered) {
		return nil, errors.WrapDomainError(err, errors.CodeNotFound, "not found", "shop has no hubon account")
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// openWeekdays returns the weekday indices on which the hub has both an
// opening and a closing hour.
func (s *Service) openWeekdays(hub models.Hub) []int {
	days := []int{}
	for _, hours := range hub.HubHours {
		if hours.OpenHour == nil || hours.CloseHour == nil {
			continue
		}
		idx, err := availability.WeekdayIndex(hours.Day)
		if err != nil {
			s.logger.Warn("skipping hub hours with unknown day",
				zap.Int64("hub_id", hub.ID),
				zap.String("day", hours.Day),
			)
			continue
		}
		days = append(days, idx)
	}
	return days
}
