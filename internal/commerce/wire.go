package commerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/russellmoss/guest-count-check/internal/domain"
)

// orderListPayload mirrors the upstream list response. Field fallbacks are resolved once in
// toOrder so the rest of the service only sees domain.Order.
type orderListPayload struct {
	Orders []orderPayload `json:"orders"`
	Total  *flexInt       `json:"total"`
}

type orderPayload struct {
	ID                 string            `json:"id"`
	OrderNumber        flexString        `json:"orderNumber"`
	OrderPaidDate      *timestamp        `json:"orderPaidDate"`
	OrderSubmittedDate *timestamp        `json:"orderSubmittedDate"`
	OrderDate          *timestamp        `json:"orderDate"`
	CreatedAt          *timestamp        `json:"createdAt"`
	SalesAssociate     *associatePayload `json:"salesAssociate"`
	SalesAssociateName string            `json:"salesAssociateName"`

	SubTotal    *money `json:"subTotal"`
	Subtotal    *money `json:"subtotal"`
	TaxTotal    *money `json:"taxTotal"`
	Tax         *money `json:"tax"`
	TipTotal    *money `json:"tipTotal"`
	Tip         *money `json:"tip"`
	ShipTotal   *money `json:"shipTotal"`
	Shipping    *money `json:"shipping"`
	DutyTotal   *money `json:"dutyTotal"`
	Duty        *money `json:"duty"`
	Total       *money `json:"total"`
	TotalAmount *money `json:"totalAmount"`

	GuestCount *flexInt        `json:"guestCount"`
	Items      []itemPayload   `json:"items"`
	Notes      string          `json:"notes"`
	OrderNotes string          `json:"orderNotes"`
	ShipTo     *addressPayload `json:"shipTo"`
}

type associatePayload struct {
	ID               string `json:"id"`
	SalesAssociateID string `json:"salesAssociateId"`
	Name             string `json:"name"`
}

type itemPayload struct {
	ProductID    string     `json:"productId"`
	ProductTitle string     `json:"productTitle"`
	Title        string     `json:"title"`
	Name         string     `json:"name"`
	SKU          flexString `json:"sku"`
	Quantity     *flexInt   `json:"quantity"`
	Price        *money     `json:"price"`
	UnitPrice    *money     `json:"unitPrice"`
}

type addressPayload struct {
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Address     string     `json:"address"`
	Address2    string     `json:"address2"`
	City        string     `json:"city"`
	StateCode   string     `json:"stateCode"`
	ZipCode     flexString `json:"zipCode"`
	CountryCode string     `json:"countryCode"`
}

// fieldIssue records an upstream value that could not be read and was replaced.
type fieldIssue struct {
	Field string
	Raw   string
}

func (i fieldIssue) String() string {
	return i.Field + "=" + i.Raw
}

// toPage normalises every order on the page. Unreadable fields never drop an order; they are
// replaced and logged against the order id.
func (p orderListPayload) toPage(logger *zap.Logger) OrderPage {
	page := OrderPage{Orders: make([]domain.Order, 0, len(p.Orders))}
	for _, payload := range p.Orders {
		order, issues := payload.toOrder()
		if len(issues) > 0 {
			fields := make([]string, 0, len(issues))
			for _, issue := range issues {
				fields = append(fields, issue.String())
			}
			logger.Warn("unreadable order fields replaced",
				zap.String("order_id", order.ID),
				zap.String("order_number", order.OrderNumber),
				zap.Strings("fields", fields),
			)
		}
		page.Orders = append(page.Orders, order)
	}
	if p.Total != nil {
		if p.Total.invalid != "" {
			logger.Warn("unreadable order total count", zap.String("raw", p.Total.invalid))
		}
		page.Total = int(p.Total.n)
	}
	return page
}

func (p orderPayload) toOrder() (domain.Order, []fieldIssue) {
	var issues []fieldIssue
	pick := func(name string, primary *money, fallbackName string, fallback *money) int64 {
		if primary == nil {
			name, primary = fallbackName, fallback
		}
		if primary == nil {
			return 0
		}
		if primary.invalid != "" {
			issues = append(issues, fieldIssue{Field: name, Raw: primary.invalid})
		}
		return primary.cents
	}

	order := domain.Order{
		ID:          strings.TrimSpace(p.ID),
		OrderNumber: strings.TrimSpace(string(p.OrderNumber)),
		PaidAt:      p.OrderPaidDate.value(),
		SubmittedAt: p.OrderSubmittedDate.value(),
		OrderDate:   p.OrderDate.value(),
		CreatedAt:   p.CreatedAt.value(),
		Subtotal:    pick("subTotal", p.SubTotal, "subtotal", p.Subtotal),
		Tax:         pick("taxTotal", p.TaxTotal, "tax", p.Tax),
		Tip:         pick("tipTotal", p.TipTotal, "tip", p.Tip),
		Shipping:    pick("shipTotal", p.ShipTotal, "shipping", p.Shipping),
		Duty:        pick("dutyTotal", p.DutyTotal, "duty", p.Duty),
		Total:       pick("total", p.Total, "totalAmount", p.TotalAmount),
		Notes:       firstNonEmpty(p.Notes, p.OrderNotes),
		Items:       make([]domain.Item, 0, len(p.Items)),
	}

	if p.GuestCount != nil {
		count := int(p.GuestCount.n)
		if p.GuestCount.invalid != "" {
			// An unreadable but truthy value still means someone recorded a count.
			count = 0
			if p.GuestCount.truthy {
				count = 1
			}
			issues = append(issues, fieldIssue{Field: "guestCount", Raw: p.GuestCount.invalid})
		}
		order.GuestCount = &count
	}

	if p.SalesAssociate != nil || strings.TrimSpace(p.SalesAssociateName) != "" {
		associate := &domain.SalesAssociate{Name: strings.TrimSpace(p.SalesAssociateName)}
		if p.SalesAssociate != nil {
			associate.ID = firstNonEmpty(p.SalesAssociate.ID, p.SalesAssociate.SalesAssociateID)
			associate.Name = firstNonEmpty(p.SalesAssociate.Name, associate.Name)
		}
		order.SalesAssociate = associate
	}

	for i, payload := range p.Items {
		item, itemIssues := payload.toItem()
		for _, issue := range itemIssues {
			issue.Field = fmt.Sprintf("items[%d].%s", i, issue.Field)
			issues = append(issues, issue)
		}
		order.Items = append(order.Items, item)
	}

	if p.ShipTo != nil {
		order.ShipTo = &domain.Address{
			FirstName:  strings.TrimSpace(p.ShipTo.FirstName),
			LastName:   strings.TrimSpace(p.ShipTo.LastName),
			Address:    strings.TrimSpace(p.ShipTo.Address),
			Address2:   strings.TrimSpace(p.ShipTo.Address2),
			City:       strings.TrimSpace(p.ShipTo.City),
			State:      strings.TrimSpace(p.ShipTo.StateCode),
			PostalCode: strings.TrimSpace(string(p.ShipTo.ZipCode)),
			Country:    strings.TrimSpace(p.ShipTo.CountryCode),
		}
	}
	return order, issues
}

func (p itemPayload) toItem() (domain.Item, []fieldIssue) {
	var issues []fieldIssue
	item := domain.Item{
		ProductID: strings.TrimSpace(p.ProductID),
		Title:     firstNonEmpty(p.ProductTitle, p.Title, p.Name),
		SKU:       strings.TrimSpace(string(p.SKU)),
	}

	price, priceField := p.Price, "price"
	if price == nil {
		price, priceField = p.UnitPrice, "unitPrice"
	}
	if price != nil {
		item.UnitPrice = price.cents
		if price.invalid != "" {
			issues = append(issues, fieldIssue{Field: priceField, Raw: price.invalid})
		}
	}

	if p.Quantity != nil {
		item.Quantity = int(p.Quantity.n)
		if p.Quantity.invalid != "" {
			issues = append(issues, fieldIssue{Field: "quantity", Raw: p.Quantity.invalid})
		}
	}
	return item, issues
}

const maxRawField = 64

func rawField(data []byte) string {
	raw := strings.TrimSpace(string(data))
	if len(raw) > maxRawField {
		raw = raw[:maxRawField]
	}
	return raw
}

// money holds minor units. Integer JSON numbers and digit-only strings are already cents.
// Values with a fractional part or a currency symbol are major units rounded to the nearest
// cent. An unreadable value decodes as zero and keeps its raw text in invalid.
type money struct {
	cents   int64
	invalid string
}

func (m *money) UnmarshalJSON(data []byte) error {
	*m = money{}
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return nil
	}

	major := false
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			m.invalid = rawField(data)
			return nil
		}
		s = strings.TrimSpace(s)
		major = strings.Contains(s, "$")
		raw = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
		if raw == "" {
			return nil
		}
	}

	if !major && !strings.ContainsAny(raw, ".eE") {
		if cents, err := strconv.ParseInt(raw, 10, 64); err == nil {
			m.cents = cents
			return nil
		}
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		m.invalid = rawField(data)
		return nil
	}
	m.cents = amount.Shift(2).Round(0).IntPart()
	return nil
}

// flexInt accepts numbers and numeric strings; fractional values are truncated. Any other
// value decodes as zero, keeps its raw text in invalid, and records whether it was truthy
// (true, a non-empty string, an object or an array).
type flexInt struct {
	n       int64
	invalid string
	truthy  bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = flexInt{}
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "" || raw == "null":
		return nil
	case raw == "true" || raw == "false":
		f.invalid = raw
		f.truthy = raw == "true"
		return nil
	case strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
		f.invalid = rawField(data)
		f.truthy = true
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			f.invalid = rawField(data)
			return nil
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		f.n = n
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		f.invalid = rawField(data)
		f.truthy = true
		return nil
	}
	f.n = d.IntPart()
	return nil
}

// flexString accepts both JSON strings and numbers (order numbers and SKUs arrive as either).
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timestamp tolerates the layouts seen upstream. Unreadable values decode as absent rather than
// failing the whole page.
type timestamp struct {
	t *time.Time
}

func (ts *timestamp) UnmarshalJSON(data []byte) error {
	ts.t = nil
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var millis json.Number
		if numErr := json.Unmarshal(data, &millis); numErr != nil {
			return nil
		}
		if n, convErr := millis.Int64(); convErr == nil && n > 0 {
			parsed := time.UnixMilli(n).UTC()
			ts.t = &parsed
		}
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			parsed = parsed.UTC()
			ts.t = &parsed
			return nil
		}
	}
	return nil
}

func (ts *timestamp) value() *time.Time {
	if ts == nil {
		return nil
	}
	return ts.t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
