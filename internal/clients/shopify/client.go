package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hubon-pickup/internal/config"
	"hubon-pickup/internal/models"
	"hubon-pickup/pkg/errors"

	"go.uber.org/zap"
)

const (
	maxResponseBytes  = 4 << 20
	accessTokenHeader = "X-Shopify-Access-Token"
)

// Recorder receives per-operation call metrics.
type Recorder interface {
	RecordShopifyCall(operation, outcome string, duration time.Duration)
}

// Tracer wraps a call in a span.
type Tracer interface {
	Trace(ctx context.Context, name string, attrs map[string]string, fn func(context.Context) error) error
}

// Client is a minimal Shopify Admin GraphQL client. Each call is made with
// the offline access token of the shop it acts for.
type Client struct {
	httpClient *http.Client
	apiVersion string
	endpoint   func(shop, version string) string
	metrics    Recorder
	tracer     Tracer
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoint overrides how the GraphQL URL is built for a shop.
func WithEndpoint(endpoint func(shop, version string) string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

func NewClient(cfg config.ShopifyConfig, metrics Recorder, tracer Tracer, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		apiVersion: cfg.APIVersion,
		endpoint:   adminEndpoint,
		metrics:    metrics,
		tracer:     tracer,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func adminEndpoint(shop, version string) string {
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, version)
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type edges[T any] struct {
	Edges []struct {
		Node T `json:"node"`
	} `json:"edges"`
}

func (e edges[T]) nodes() []T {
	out := make([]T, 0, len(e.Edges))
	for _, edge := range e.Edges {
		out = append(out, edge.Node)
	}
	return out
}

// productNode is Product as the API returns it, with variants as a
// connection.
type productNode struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Handle   string          `json:"handle"`
	Options  []ProductOption `json:"options"`
	Variants edges[Variant]  `json:"variants"`
}

func (p *productNode) product() *Product {
	if p == nil {
		return nil
	}
	return &Product{
		ID:       p.ID,
		Title:    p.Title,
		Handle:   p.Handle,
		Options:  p.Options,
		Variants: p.Variants.nodes(),
	}
}

// Publications lists the sales channels a product can be published to.
func (c *Client) Publications(ctx context.Context, shop models.ShopSession, first int) ([]Publication, error) {
	var data struct {
		Publications edges[Publication] `json:"publications"`
	}
	if err := c.execute(ctx, shop, "publications", publicationsQuery, map[string]interface{}{"first": first}, &data); err != nil {
		return nil, err
	}
	return data.Publications.nodes(), nil
}

func (c *Client) Locations(ctx context.Context, shop models.ShopSession, first int) ([]Location, error) {
	var data struct {
		Locations edges[Location] `json:"locations"`
	}
	if err := c.execute(ctx, shop, "locations", locationsQuery, map[string]interface{}{"first": first}, &data); err != nil {
		return nil, err
	}
	return data.Locations.nodes(), nil
}

// Product loads a product by its global id. It returns nil without an error
// when the product no longer exists.
func (c *Client) Product(ctx context.Context, shop models.ShopSession, id string) (*Product, error) {
	var data struct {
		Product *productNode `json:"product"`
	}
	if err := c.execute(ctx, shop, "product", productQuery, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	return data.Product.product(), nil
}

func (c *Client) CreateProduct(ctx context.Context, shop models.ShopSession, product ProductInput, media []MediaInput) (*Product, error) {
	var data struct {
		ProductCreate struct {
			Product    *productNode `json:"product"`
			UserErrors []UserError  `json:"userErrors"`
		} `json:"productCreate"`
	}
	vars := map[string]interface{}{"product": product, "media": media}
	if err := c.execute(ctx, shop, "product_create", productCreateMutation, vars, &data); err != nil {
		return nil, err
	}
	if err := userErrors("productCreate", data.ProductCreate.UserErrors); err != nil {
		return nil, err
	}
	return data.ProductCreate.Product.product(), nil
}

// PublishProduct publishes productID to every publication in
// publicationIDs.
func (c *Client) PublishProduct(ctx context.Context, shop models.ShopSession, productID string, publicationIDs []string) error {
	input := make([]map[string]string, 0, len(publicationIDs))
	for _, id := range publicationIDs {
		input = append(input, map[string]string{"publicationId": id})
	}

	var data struct {
		PublishablePublish struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"publishablePublish"`
	}
	vars := map[string]interface{}{"id": productID, "input": input}
	if err := c.execute(ctx, shop, "publish", publishMutation, vars, &data); err != nil {
		return err
	}
	return userErrors("publishablePublish", data.PublishablePublish.UserErrors)
}

func (c *Client) CreateVariants(ctx context.Context, shop models.ShopSession, productID, strategy string, media []MediaInput, variants []VariantInput) ([]Variant, error) {
	var data struct {
		ProductVariantsBulkCreate struct {
			ProductVariants []Variant   `json:"productVariants"`
			UserErrors      []UserError `json:"userErrors"`
		} `json:"productVariantsBulkCreate"`
	}
	vars := map[string]interface{}{
		"productId": productID,
		"strategy":  strategy,
		"media":     media,
		"variants":  variants,
	}
	if err := c.execute(ctx, shop, "variants_create", variantsBulkCreateMutation, vars, &data); err != nil {
		return nil, err
	}
	if err := userErrors("productVariantsBulkCreate", data.ProductVariantsBulkCreate.UserErrors); err != nil {
		return nil, err
	}
	return data.ProductVariantsBulkCreate.ProductVariants, nil
}

// UpdateOptionValues renames values of an existing product option.
func (c *Client) UpdateOptionValues(ctx context.Context, shop models.ShopSession, productID, optionID string, values []OptionValueUpdate) error {
	var data struct {
		ProductOptionUpdate struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"productOptionUpdate"`
	}
	vars := map[string]interface{}{
		"productId":            productID,
		"option":               map[string]string{"id": optionID},
		"optionValuesToUpdate": values,
	}
	if err := c.execute(ctx, shop, "option_update", optionUpdateMutation, vars, &data); err != nil {
		return err
	}
	return userErrors("productOptionUpdate", data.ProductOptionUpdate.UserErrors)
}

func (c *Client) execute(ctx context.Context, shop models.ShopSession, operation, query string, vars map[string]interface{}, out interface{}) error {
	start := time.Now()
	err := c.trace(ctx, shop, operation, func(ctx context.Context) error {
		return c.post(ctx, shop, query, vars, out)
	})
	if c.metrics != nil {
		c.metrics.RecordShopifyCall(operation, outcome(err), time.Since(start))
	}
	if err != nil {
		c.logger.Error("shopify call failed",
			zap.String("operation", operation),
			zap.String("shop", shop.Shop),
			zap.Error(err))
	}
	return err
}

func (c *Client) trace(ctx context.Context, shop models.ShopSession, operation string, fn func(context.Context) error) error {
	if c.tracer == nil {
		return fn(ctx)
	}
	return c.tracer.Trace(ctx, "shopify."+operation, map[string]string{"shop": shop.Shop}, fn)
}

func (c *Client) post(ctx context.Context, shop models.ShopSession, query string, vars map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return errors.WrapDomainError(err, errors.CodeInternal, "shopify request failed", "failed to marshal request body")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(shop.Shop, c.apiVersion), bytes.NewReader(body))
	if err != nil {
		return errors.WrapDomainError(err, errors.CodeInternal, "shopify request failed", "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(accessTokenHeader, shop.AccessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return errors.WrapDomainError(ctx.Err(), errors.CodeUnavailable, "shopify request cancelled", err.Error())
		}
		return errors.WrapDomainError(err, errors.CodeShopifyFailure, "shopify request failed", "http request failed").WithRetryable(true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.WrapDomainError(err, errors.CodeShopifyFailure, "shopify request failed", "failed to read response").WithRetryable(true)
	}
	if err := statusError(resp.StatusCode, raw); err != nil {
		return err
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errors.WrapDomainError(err, errors.CodeShopifyFailure, "shopify response invalid", "failed to decode response").WithRawBody(raw)
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			messages = append(messages, e.Message)
		}
		return errors.NewDomainError(errors.CodeShopifyFailure, "shopify request failed", strings.Join(messages, "; ")).WithRawBody(raw)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return errors.NewDomainError(errors.CodeShopifyFailure, "shopify response invalid", "response has no data").WithRawBody(raw)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return errors.WrapDomainError(err, errors.CodeShopifyFailure, "shopify response invalid", "failed to decode data").WithRawBody(raw)
	}
	return nil
}

func statusError(status int, raw []byte) error {
	details := fmt.Sprintf("unexpected status: %d", status)
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return errors.NewDomainError(errors.CodeShopifyFailure, "shopify request failed", details).WithRawBody(raw).WithRetryable(true)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.NewDomainError(errors.CodeShopifyFailure, "shopify rejected credentials", details).WithRawBody(raw)
	default:
		return errors.NewDomainError(errors.CodeShopifyFailure, "shopify request failed", details).WithRawBody(raw)
	}
}

// userErrors turns mutation userErrors into a validation error keyed by
// field path.
func userErrors(mutation string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	fields := make(map[string]string, len(errs))
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		key := strings.Join(e.Field, ".")
		if key == "" {
			key = mutation
		}
		fields[key] = e.Message
		messages = append(messages, e.Message)
	}
	return errors.NewDomainError(errors.CodeValidation, "shopify rejected request", mutation+": "+strings.Join(messages, "; ")).WithFields(fields)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if domainErr, ok := errors.As(err); ok {
		switch domainErr.Code {
		case errors.CodeValidation:
			return "rejected"
		case errors.CodeUnavailable:
			return "unavailable"
		}
	}
	return "error"
}
