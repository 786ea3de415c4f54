package account

import (
	"context"
	"strings"

	"hubon-pickup/internal/models"
	"hubon-pickup/pkg/errors"

	"go.uber.org/zap"
)

// MerchantStore persists merchant links.
type MerchantStore interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.MerchantLink, error)
	Upsert(ctx context.Context, link *models.MerchantLink) (*models.MerchantLink, error)
}

// CustomerClient looks up the carrier customer behind an API key.
type CustomerClient interface {
	GetCustomerInfo(ctx context.Context, apiKey string) (*models.RegisteredCustomerResponse, error)
}

// Cache holds carrier customers keyed by session.
type Cache interface {
	Key(parts ...string) string
	Fetch(ctx context.Context, key string, dest interface{}, load func(context.Context) error) error
	Delete(ctx context.Context, key string) error
}

// Account is a merchant whose HubOn key resolved to a registered customer.
type Account struct {
	Link     *models.MerchantLink
	Customer *models.RegisteredCustomer
}

// Service links Shopify sessions to HubOn accounts and authenticates them.
type Service struct {
	merchants MerchantStore
	carrier   CustomerClient
	cache     Cache
	logger    *zap.Logger
}

func NewService(merchants MerchantStore, carrier CustomerClient, cache Cache, logger *zap.Logger) *Service {
	return &Service{
		merchants: merchants,
		carrier:   carrier,
		cache:     cache,
		logger:    logger,
	}
}

// Link verifies apiKey with the carrier and stores it for sessionID. The
// returned link has its key obfuscated.
func (s *Service) Link(ctx context.Context, sessionID, apiKey string) (*models.MerchantLink, error) {
	sessionID = strings.TrimSpace(sessionID)
	apiKey = strings.TrimSpace(apiKey)
	if err := validateLink(sessionID, apiKey); err != nil {
		return nil, err
	}

	if _, err := s.registeredCustomer(ctx, apiKey); err != nil {
		s.logger.Warn("hubon key rejected", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	stored, err := s.merchants.Upsert(ctx, &models.MerchantLink{SessionID: sessionID, APIKey: apiKey})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, s.cache.Key(sessionID)); err != nil {
		s.logger.Warn("failed to invalidate cached customer", zap.String("session_id", sessionID), zap.Error(err))
	}

	s.logger.Info("hubon account linked", zap.String("session_id", sessionID), zap.Int64("id", stored.ID))
	redacted := stored.Redacted()
	return &redacted, nil
}

// Authenticate resolves sessionID to its merchant link and carrier customer.
// A session with no link, or whose key the carrier does not recognise, gets
// a CodeNotRegistered error.
func (s *Service) Authenticate(ctx context.Context, sessionID string) (*Account, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.NewDomainError(errors.CodeSessionMissing, "session missing", "session id is required")
	}

	link, err := s.merchants.GetBySessionID(ctx, sessionID)
	if errors.HasCode(err, errors.CodeNotFound) {
		return nil, errors.WrapDomainError(err, errors.CodeNotRegistered, "hubon account not linked", "no api key stored for this shop")
	}
	if err != nil {
		return nil, err
	}

	var customer models.RegisteredCustomer
	err = s.cache.Fetch(ctx, s.cache.Key(sessionID), &customer, func(ctx context.Context) error {
		registered, err := s.registeredCustomer(ctx, link.APIKey)
		if err != nil {
			return err
		}
		customer = *registered
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Account{Link: link, Customer: &customer}, nil
}

// Settings returns the stored link for display with the key obfuscated.
func (s *Service) Settings(ctx context.Context, sessionID string) (*models.MerchantLink, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.NewDomainError(errors.CodeSessionMissing, "session missing", "session id is required")
	}

	link, err := s.merchants.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	redacted := link.Redacted()
	return &redacted, nil
}

func (s *Service) registeredCustomer(ctx context.Context, apiKey string) (*models.RegisteredCustomer, error) {
	resp, err := s.carrier.GetCustomerInfo(ctx, apiKey)
	if errors.HasCode(err, errors.CodeCarrierAuth) {
		return nil, errors.WrapDomainError(err, errors.CodeNotRegistered, "api key is not valid", "carrier rejected the key")
	}
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.RegisteredCustomer == nil {
		return nil, errors.NewDomainError(errors.CodeNotRegistered, "api key is not valid", "no registered customer for this key")
	}
	return resp.RegisteredCustomer, nil
}

func validateLink(sessionID, apiKey string) error {
	fields := map[string]string{}
	if sessionID == "" {
		fields["session_id"] = "Session is required"
	}
	if apiKey == "" {
		fields["api_key"] = "API Key is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return errors.NewDomainError(errors.CodeValidation, "validation failed", "missing required fields").WithFields(fields)
}
