package domain

import (
	"strings"
	"time"
)

// UnknownAssociate labels orders that carry no sales associate name.
const UnknownAssociate = "Unknown"

// Order is the normalised view of an upstream commerce order used by the guest-count audit.
// Monetary values are expressed in minor currency units (cents).
type Order struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"orderNumber"`
	PaidAt         *time.Time      `json:"orderPaidDate,omitempty"`
	SubmittedAt    *time.Time      `json:"orderSubmittedDate,omitempty"`
	OrderDate      *time.Time      `json:"orderDate,omitempty"`
	CreatedAt      *time.Time      `json:"createdAt,omitempty"`
	SalesAssociate *SalesAssociate `json:"salesAssociate,omitempty"`
	Subtotal       int64           `json:"subTotal"`
	Tax            int64           `json:"taxTotal"`
	Tip            int64           `json:"tipTotal"`
	Shipping       int64           `json:"shipTotal"`
	Duty           int64           `json:"dutyTotal"`
	Total          int64           `json:"total"`
	GuestCount     *int            `json:"guestCount"`
	Items          []Item          `json:"items"`
	Notes          string          `json:"notes,omitempty"`
	ShipTo         *Address        `json:"shipTo,omitempty"`
}

// SalesAssociate identifies the staff member credited with an order.
type SalesAssociate struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Item is a single order line.
type Item struct {
	ProductID string `json:"productId"`
	Title     string `json:"productTitle"`
	SKU       string `json:"sku,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"price"`
}

// Address is the shipping destination attached to an order.
type Address struct {
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Address    string `json:"address,omitempty"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"stateCode,omitempty"`
	PostalCode string `json:"zipCode,omitempty"`
	Country    string `json:"countryCode,omitempty"`
}

// ReportDate returns the paid date, falling back to the order date. Nil when neither is known.
func (o Order) ReportDate() *time.Time {
	if o.PaidAt != nil {
		return o.PaidAt
	}
	return o.OrderDate
}

// AssociateName returns the associate display name or UnknownAssociate when missing.
func (o Order) AssociateName() string {
	if o.SalesAssociate == nil {
		return UnknownAssociate
	}
	name := strings.TrimSpace(o.SalesAssociate.Name)
	if name == "" {
		return UnknownAssociate
	}
	return name
}

// HasGuestCount reports whether a non-zero guest count is recorded.
func (o Order) HasGuestCount() bool {
	return o.GuestCount != nil && *o.GuestCount != 0
}

// DateRange bounds a report by paid date. Bounds are inclusive canonical YYYY-MM-DD strings;
// at least one of From and To is set.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.From == "" && r.To == ""
}
