package admin

import (
	"context"
	"encoding/json"

	"hubon-pickup/internal/models"
	"hubon-pickup/internal/services/shipping"
	"hubon-pickup/internal/services/transport"
)

// AccountService links the shop to a HubOn account.
type AccountService interface {
	Link(ctx context.Context, sessionID, apiKey string) (*models.MerchantLink, error)
	Settings(ctx context.Context, sessionID string) (*models.MerchantLink, error)
}

// ShippingService saves pickup pricing and provisions the shipping products.
type ShippingService interface {
	Save(ctx context.Context, sessionID string, in shipping.Settings) (*models.MerchantLink, error)
}

// TransportService lists transports and manages failed orders.
type TransportService interface {
	ListPaid(ctx context.Context, sessionID string, page int) (*models.TransportsResponse, error)
	ListFailed(ctx context.Context, sessionID string, page int) (*models.PaginatedOrders, error)
	FailedDetail(ctx context.Context, sessionID string, id int64) (*transport.FailedOrderDetail, error)
	RetryFailed(ctx context.Context, sessionID string, id int64, params models.CreateTransportParams) (*models.Order, error)
	RecordFailure(ctx context.Context, sessionID, orderID string, payload, response json.RawMessage) (*models.Order, error)
}

// GuideStore persists onboarding guide progress.
type GuideStore interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.Guide, error)
	Upsert(ctx context.Context, sessionID string, update models.GuideUpdate) (*models.Guide, error)
}
