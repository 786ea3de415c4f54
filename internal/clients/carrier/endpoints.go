package carrier

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"hubon-pickup/internal/models"
	"hubon-pickup/pkg/errors"
)

const (
	pathCustomerInfo = "/external/v1/customers/info"
	pathTransports   = "/external/v1/transports"
	pathHubs         = "/external/v1/hubs"
)

// GetCustomerInfo returns the registered customer owning apiKey. The
// RegisteredCustomer field is nil when the key is not registered.
func (c *Client) GetCustomerInfo(ctx context.Context, apiKey string) (*models.RegisteredCustomerResponse, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.NewDomainError(errors.CodeValidation, "validation failed", "api key is required")
	}

	var resp models.RegisteredCustomerResponse
	err := c.do(ctx, call{
		operation: "get_customer_info",
		method:    http.MethodGet,
		path:      pathCustomerInfo,
		apiKey:    apiKey,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTransports pages through the merchant's transports.
func (c *Client) ListTransports(ctx context.Context, apiKey string, filter models.TransportFilter) (*models.TransportsResponse, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.NewDomainError(errors.CodeValidation, "validation failed", "api key is required")
	}

	var q query
	q.addInt("page", filter.Page)
	q.addInt("page_size", filter.PageSize)
	q.addList("filter[states]", filter.States)
	q.addNonEmpty("sort_by", filter.SortBy)

	var resp models.TransportsResponse
	err := c.do(ctx, call{
		operation: "list_transports",
		method:    http.MethodGet,
		path:      pathTransports,
		query:     q.encode(),
		apiKey:    apiKey,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Transports == nil {
		resp.Transports = []models.Transport{}
	}
	return &resp, nil
}

// GetHub fetches a public hub detail. The call is not signed.
func (c *Client) GetHub(ctx context.Context, hubID string) (*models.Hub, error) {
	hubID = strings.TrimSpace(hubID)
	if hubID == "" {
		return nil, errors.NewDomainError(errors.CodeValidation, "validation failed", "hub id is required")
	}

	var resp models.HubResponse
	err := c.do(ctx, call{
		operation: "get_hub",
		method:    http.MethodGet,
		path:      pathHubs + "/" + url.PathEscape(hubID),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Hub == nil {
		return nil, errors.NewDomainError(errors.CodeNotFound, "not found", "hub "+hubID)
	}
	return resp.Hub, nil
}

// ListHubs searches the public hub listing. The call is not signed.
func (c *Client) ListHubs(ctx context.Context, search models.HubSearch) ([]models.Hub, error) {
	var q query
	q.add("search", search.Search)
	q.addNonEmpty("filter[category]", search.CategoryID)
	q.addList("filter[storage_types]", search.StorageTypes)

	var resp models.HubsResponse
	err := c.do(ctx, call{
		operation: "list_hubs",
		method:    http.MethodGet,
		path:      pathHubs,
		query:     q.encode(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Hubs == nil {
		return []models.Hub{}, nil
	}
	return resp.Hubs, nil
}

// CreateTransport books a transport for the merchant owning apiKey.
func (c *Client) CreateTransport(ctx context.Context, apiKey string, params models.CreateTransportParams) (*models.Transport, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.NewDomainError(errors.CodeValidation, "validation failed", "api key is required")
	}

	var resp models.TransportResponse
	err := c.do(ctx, call{
		operation: "create_transport",
		method:    http.MethodPost,
		path:      pathTransports,
		apiKey:    apiKey,
		body:      params,
		single:    true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Transport == nil {
		return nil, errors.NewDomainError(errors.CodeCarrierFailure, "carrier response invalid", "transport missing from response")
	}
	return resp.Transport, nil
}
