package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hubon-pickup/internal/models"
	"hubon-pickup/internal/services/account"
	"hubon-pickup/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PageSize is the number of rows per page on the paid and failed lists.
	PageSize = 5

	EventTransportCreated = "transport.created"

	statePaid    = "paid"
	sortByLatest = "latest"
)

// Authenticator resolves a session to its linked HubOn account.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionID string) (*account.Account, error)
}

// CarrierClient is the subset of the HubOn API used for transports.
type CarrierClient interface {
	ListTransports(ctx context.Context, apiKey string, filter models.TransportFilter) (*models.TransportsResponse, error)
	CreateTransport(ctx context.Context, apiKey string, params models.CreateTransportParams) (*models.Transport, error)
}

// OrderStore persists orders whose transport creation was attempted.
type OrderStore interface {
	GetPaginated(ctx context.Context, sessionID string, status models.OrderStatus, page, pageSize int) (*models.PaginatedOrders, error)
	GetByID(ctx context.Context, sessionID string, id int64) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
}

// Locker serializes retries of the same order.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, stream, eventType string, event interface{}) (string, error)
}

type Recorder interface {
	RecordTransportCreated()
	RecordOrderFailed()
	RecordEventPublished(eventType, outcome string)
}

// FailedOrderDetail is a failed order with its stored documents decoded and
// the merchant's carrier defaults for prefilling the retry form.
type FailedOrderDetail struct {
	Order    *models.Order   `json:"order"`
	Payload  json.RawMessage `json:"payload"`
	Response json.RawMessage `json:"response"`
	Setting  models.Setting  `json:"setting"`
}

type Service struct {
	accounts Authenticator
	carrier  CarrierClient
	orders   OrderStore
	locks    Locker
	events   EventPublisher
	stream   string
	metrics  Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(
	accounts Authenticator,
	carrier CarrierClient,
	orders OrderStore,
	locks Locker,
	events EventPublisher,
	stream string,
	metrics Recorder,
	logger *zap.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		carrier:  carrier,
		orders:   orders,
		locks:    locks,
		events:   events,
		stream:   stream,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// ListPaid returns the merchant's paid transports, newest first.
func (s *Service) ListPaid(ctx context.Context, sessionID string, page int) (*models.TransportsResponse, error) {
	acct, err := s.accounts.Authenticate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return s.carrier.ListTransports(ctx, acct.Link.APIKey, models.TransportFilter{
		Page:     normalizePage(page),
		PageSize: PageSize,
		States:   []string{statePaid},
		SortBy:   sortByLatest,
	})
}

// ListFailed returns the stored orders whose transport could not be created.
func (s *Service) ListFailed(ctx context.Context, sessionID string, page int) (*models.PaginatedOrders, error) {
	if _, err := s.accounts.Authenticate(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.orders.GetPaginated(ctx, sessionID, models.OrderStatusFailed, normalizePage(page), PageSize)
}

func (s *Service) FailedDetail(ctx context.Context, sessionID string, id int64) (*FailedOrderDetail, error) {
	acct, err := s.accounts.Authenticate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, sessionID, id)
	if err != nil {
		return nil, err
	}

	payload, err := decodeStored(order.Payload)
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeInternal, "stored order is unreadable", "payload is not valid JSON")
	}
	response, err := decodeStored(order.Response)
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeInternal, "stored order is unreadable", "response is not valid JSON")
	}

	return &FailedOrderDetail{
		Order:    order,
		Payload:  payload,
		Response: response,
		Setting:  acct.Customer.Setting,
	}, nil
}

// RetryFailed resubmits a failed order to the carrier. On success the order is
// marked SUCCESS, soft-deleted, and a transport.created event is published.
func (s *Service) RetryFailed(ctx context.Context, sessionID string, id int64, params models.CreateTransportParams) (*models.Order, error) {
	if err := ValidateTransport(params); err != nil {
		return nil, err
	}

	acct, err := s.accounts.Authenticate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, fmt.Sprintf("retry:%s:%d", sessionID, id))
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.orders.GetByID(ctx, sessionID, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusFailed {
		return nil, errors.NewDomainError(errors.CodeConflict, "order already fulfilled", "order is "+string(order.Status))
	}

	created, err := s.carrier.CreateTransport(ctx, acct.Link.APIKey, params)
	if err != nil {
		s.logger.Warn("transport retry rejected",
			zap.String("session_id", sessionID),
			zap.Int64("order_id", id),
			zap.Error(err))
		return nil, err
	}
	transportID := rawID(created)
	if transportID == "" || order.OrderID == "" {
		return nil, errors.NewDomainError(errors.CodeCarrierFailure, "An error occurred while updating the order", "carrier returned no transport id")
	}
	s.metrics.RecordTransportCreated()

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeInternal, "failed to encode transport", err.Error())
	}

	now := s.now().UTC()
	order.Status = models.OrderStatusSuccess
	order.Payload = string(payload)
	order.Response = "{}"
	order.UpdatedAt = now
	order.DeletedAt = &now
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("transport created for failed order",
		zap.String("session_id", sessionID),
		zap.Int64("order_id", id),
		zap.String("transport_id", transportID))

	s.publishCreated(ctx, order, transportID, now)
	return order, nil
}

// RecordFailure stores an order whose transport creation failed so the
// merchant can retry it from the admin.
func (s *Service) RecordFailure(ctx context.Context, sessionID, orderID string, payload, response json.RawMessage) (*models.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	orderID = strings.TrimSpace(orderID)

	fields := map[string]string{}
	if sessionID == "" {
		fields["session_id"] = "This field is required."
	}
	if orderID == "" {
		fields["order_id"] = "This field is required."
	}
	if len(fields) > 0 {
		return nil, errors.NewDomainError(errors.CodeValidation, "validation failed", "missing required fields").WithFields(fields)
	}

	order := &models.Order{
		SessionID: sessionID,
		Status:    models.OrderStatusFailed,
		OrderID:   orderID,
		Payload:   documentOrEmpty(payload),
		Response:  documentOrEmpty(response),
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	s.metrics.RecordOrderFailed()
	s.logger.Warn("order recorded as failed",
		zap.String("session_id", sessionID),
		zap.String("shopify_order_id", orderID),
		zap.Int64("id", order.ID))
	return order, nil
}

// ValidateTransport checks the fields the carrier requires to create a
// transport and reports each missing one.
func ValidateTransport(params models.CreateTransportParams) error {
	required := []struct {
		name  string
		value string
	}{
		{"recipient_name", params.RecipientName},
		{"recipient_phone_number", params.RecipientPhoneNumber},
		{"destination_hub_id", params.DestinationHubID},
		{"pickup_date", params.PickupDate},
		{"payer_type", params.PayerType},
	}

	fields := map[string]string{}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			fields[f.name] = "This field is required."
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return errors.NewDomainError(errors.CodeValidation, "validation failed", "transport is missing required fields").WithFields(fields)
}

// publishCreated never fails the retry: the transport already exists.
func (s *Service) publishCreated(ctx context.Context, order *models.Order, transportID string, at time.Time) {
	event := models.TransportEvent{
		EventID:     uuid.NewString(),
		EventType:   EventTransportCreated,
		SessionID:   order.SessionID,
		OrderID:     order.OrderID,
		TransportID: transportID,
		OccurredAt:  at,
	}

	if _, err := s.events.PublishEvent(ctx, s.stream, EventTransportCreated, event); err != nil {
		s.metrics.RecordEventPublished(EventTransportCreated, "error")
		s.logger.Error("failed to publish transport event",
			zap.String("event_id", event.EventID),
			zap.String("transport_id", transportID),
			zap.Error(err))
		return
	}
	s.metrics.RecordEventPublished(EventTransportCreated, "success")
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func decodeStored(doc string) (json.RawMessage, error) {
	if strings.TrimSpace(doc) == "" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(doc)) {
		return nil, errors.NewDomainError(errors.CodeInternal, "invalid stored document", "not valid JSON")
	}
	return json.RawMessage(doc), nil
}

func documentOrEmpty(doc json.RawMessage) string {
	if len(doc) == 0 {
		return "{}"
	}
	if !json.Valid(doc) {
		quoted, _ := json.Marshal(string(doc))
		return string(quoted)
	}
	return string(doc)
}

// rawID renders the carrier's transport id, which may be a number or a string.
func rawID(t *models.Transport) string {
	if t == nil || len(t.ID) == 0 {
		return ""
	}
	id := strings.TrimSpace(string(t.ID))
	if id == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(t.ID, &s); err == nil {
		return s
	}
	return id
}
