package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RegisteredCustomerResponse is the body of GET /external/v1/customers/info.
type RegisteredCustomerResponse struct {
	RegisteredCustomer *RegisteredCustomer `json:"registered_customer"`
}

type RegisteredCustomer struct {
	ID          int64        `json:"id"`
	PhoneNumber string       `json:"phone_number"`
	Type        string       `json:"type"`
	Info        CustomerInfo `json:"info"`
	Setting     Setting      `json:"setting"`
}

type CustomerInfo struct {
	Username            string  `json:"username"`
	FullName            string  `json:"full_name"`
	Email               string  `json:"email"`
	FreeTransportCredit float64 `json:"free_transport_credit"`
	MilesSaved          float64 `json:"miles_saved"`
	Status              string  `json:"status"`
}

// Setting carries the merchant's carrier-side defaults.
type Setting struct {
	DefaultHub         *Hub         `json:"default_hub,omitempty"`
	DefaultCategory    *Category    `json:"default_category,omitempty"`
	DefaultStorageType *StorageType `json:"default_storage_type,omitempty"`
	ExternalUnitPrice  string       `json:"external_unit_price"`
	BusinessAccount    bool         `json:"business_account"`
	CutoffDate         *int         `json:"cutoff_date"`
	PickupDays         Weekdays     `json:"pickup_days"`
}

// Weekdays decodes a list of weekday indices sent either as numbers or as
// numeric strings ("0".."6").
type Weekdays []int

func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Weekdays, 0, len(raw))
	for _, item := range raw {
		var n int
		if err := json.Unmarshal(item, &n); err == nil {
			out = append(out, n)
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return fmt.Errorf("pickup day %s: %w", item, err)
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("pickup day %q: %w", s, err)
		}
		out = append(out, n)
	}
	*w = out
	return nil
}

type Category struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	IconURL           string `json:"icon_url,omitempty"`
	IsTrackingVisible bool   `json:"is_tracking_visible"`
}

type StorageType struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Price   string `json:"price"`
	Note    string `json:"note,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type Address struct {
	ID           int64  `json:"id"`
	City         string `json:"city"`
	ProvinceCode string `json:"province_code"`
	CountryCode  string `json:"country_code"`
	Zipcode      string `json:"zipcode"`
	FullAddress  string `json:"full_address"`
}

type Hub struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Status       string        `json:"status"`
	Contact      string        `json:"contact,omitempty"`
	ImageURL     *string       `json:"image_url"`
	Address      *Address      `json:"address,omitempty"`
	HubHours     []HubHour     `json:"hub_hours,omitempty"`
	HolidayInfos []HolidayInfo `json:"holiday_infos,omitempty"`
}

// HubHour is one weekday's opening window; a nil hour means closed.
type HubHour struct {
	ID        int64   `json:"id"`
	Day       string  `json:"day"`
	OpenHour  *string `json:"open_hour"`
	CloseHour *string `json:"close_hour"`
}

type HolidayInfo struct {
	ID   int64   `json:"id"`
	Date string  `json:"date"`
	Note *string `json:"note"`
}

type HubResponse struct {
	Hub *Hub `json:"hub"`
}

type HubsResponse struct {
	Hubs []Hub `json:"hubs"`
}

// TransportFilter is encoded as a bracket-style query string.
type TransportFilter struct {
	Page     int
	PageSize int
	States   []string
	SortBy   string
}

// HubSearch filters the public hub listing.
type HubSearch struct {
	Search       string
	CategoryID   string
	StorageTypes []string
}

type Transport struct {
	ID            json.RawMessage `json:"id"`
	State         string          `json:"state"`
	PayerType     string          `json:"payer_type"`
	Quantity      int             `json:"quantity"`
	PickupDate    string          `json:"pickup_date"`
	ETA           string          `json:"eta"`
	Fee           string          `json:"fee"`
	MilesSaved    float64         `json:"miles_saved"`
	SenderInfo    *TransportParty `json:"sender_info,omitempty"`
	RecipientInfo *TransportParty `json:"recipient_info,omitempty"`
}

type TransportParty struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Hub  *Hub   `json:"hub,omitempty"`
}

type PageMeta struct {
	CurrentPage int  `json:"current_page"`
	NextPage    *int `json:"next_page"`
	PrevPage    *int `json:"prev_page"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	PageSize    int  `json:"page_size"`
}

type TransportsResponse struct {
	Transports []Transport `json:"transports"`
	Meta       PageMeta    `json:"meta"`
}

type TransportResponse struct {
	Transport *Transport `json:"transport"`
}

// CreateTransportParams is the form a merchant resubmits for a failed order.
type CreateTransportParams struct {
	RecipientName        string `json:"recipient_name"`
	RecipientPhoneNumber string `json:"recipient_phone_number"`
	RecipientEmail       string `json:"recipient_email,omitempty"`
	DestinationHubID     string `json:"destination_hub_id"`
	PickupDate           string `json:"pickup_date"`
	PayerType            string `json:"payer_type"`
	Quantity             int    `json:"quantity,omitempty"`
	CategoryID           string `json:"category_id,omitempty"`
	StorageTypeID        string `json:"hub_storage_type_id,omitempty"`
	Note                 string `json:"note,omitempty"`
}
