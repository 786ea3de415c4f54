package models

import (
	"strings"
	"time"
)

// MerchantLink ties a Shopify session to the merchant's HubOn API key and the
// catalog items provisioned for local pickup.
type MerchantLink struct {
	ID                         int64   `json:"id"`
	SessionID                  string  `json:"session_id"`
	APIKey                     string  `json:"api_key"`
	DefaultProductID           *string `json:"default_product_id"`
	DefaultProductVariantID    *string `json:"default_product_variant_id"`
	AdditionalProductID        *string `json:"additional_product_id"`
	AdditionalProductVariantID *string `json:"additional_product_variant_id"`
	ThresholdPrice             *string `json:"threshold_price"`
	ShippingPrice              *string `json:"shipping_price"`
}

// ShopSession is the part of a stored Shopify session needed to call the
// Admin API on the shop's behalf.
type ShopSession struct {
	ID          string
	Shop        string
	AccessToken string
}

// Redacted returns a copy whose API key is obfuscated for display.
func (m MerchantLink) Redacted() MerchantLink {
	m.APIKey = ObfuscateKey(m.APIKey)
	return m
}

// ObfuscateKey keeps the first four characters of key and masks the rest.
// Keys of four characters or fewer are masked entirely.
func ObfuscateKey(key string) string {
	const visible = 4
	r := []rune(key)
	if len(r) <= visible {
		return strings.Repeat("*", len(r))
	}
	return string(r[:visible]) + strings.Repeat("*", len(r)-visible)
}

type OrderStatus string

const (
	OrderStatusFailed  OrderStatus = "FAILED"
	OrderStatusSuccess OrderStatus = "SUCCESS"
)

// Order records a Shopify order whose transport creation was attempted.
// Payload and Response hold JSON documents as text.
type Order struct {
	ID        int64       `json:"id"`
	SessionID string      `json:"session_id"`
	Status    OrderStatus `json:"status"`
	OrderID   string      `json:"order_id"`
	Response  string      `json:"response"`
	Payload   string      `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	DeletedAt *time.Time  `json:"deleted_at"`
}

type PaginatedOrders struct {
	Data []Order  `json:"data"`
	Meta PageMeta `json:"meta"`
}

// NewPageMeta computes pagination links for a 1-based page.
func NewPageMeta(page, pageSize, totalItems int) PageMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (totalItems + pageSize - 1) / pageSize
	}
	meta := PageMeta{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  totalItems,
		PageSize:    pageSize,
	}
	if page < totalPages {
		next := page + 1
		meta.NextPage = &next
	}
	if page > 1 {
		prev := page - 1
		meta.PrevPage = &prev
	}
	return meta
}

// Guide tracks which onboarding steps the merchant has completed.
type Guide struct {
	ID             int64  `json:"id"`
	SessionID      string `json:"session_id"`
	IsCarrier      bool   `json:"is_carrier"`
	IsButtonBuy    bool   `json:"is_button_buy"`
	IsPickupWidget bool   `json:"is_pickup_widget"`
}

// GuideUpdate carries the steps to change; nil leaves a step untouched.
type GuideUpdate struct {
	IsCarrier      *bool `json:"is_carrier"`
	IsButtonBuy    *bool `json:"is_button_buy"`
	IsPickupWidget *bool `json:"is_pickup_widget"`
}

// TransportEvent is published after a transport is created for an order.
type TransportEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	SessionID   string    `json:"session_id"`
	OrderID     string    `json:"order_id"`
	TransportID string    `json:"transport_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}
