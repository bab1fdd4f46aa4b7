package orders

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	phoneRe   = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)
)

// NormalizePhone strips separators and the +91 / 0 prefixes so the same
// mobile number always compares equal.
func NormalizePhone(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "+")
	if len(s) == 12 && strings.HasPrefix(s, "91") {
		s = s[2:]
	}
	if len(s) == 11 && strings.HasPrefix(s, "0") {
		s = s[1:]
	}
	return s
}

type ReserveRequest struct {
	Customer   Customer
	Items      []Item
	Subtotal   decimal.Decimal
	Shipping   decimal.Decimal
	Total      decimal.Decimal
	ProductIDs []string
}

// Normalize trims free-text fields and canonicalises the phone number.
func (r *ReserveRequest) Normalize() {
	r.Customer.Name = strings.TrimSpace(r.Customer.Name)
	r.Customer.Address = strings.TrimSpace(r.Customer.Address)
	r.Customer.Pincode = strings.TrimSpace(r.Customer.Pincode)
	r.Customer.Phone = NormalizePhone(r.Customer.Phone)
	for i := range r.ProductIDs {
		r.ProductIDs[i] = strings.TrimSpace(r.ProductIDs[i])
	}
	for i := range r.Items {
		r.Items[i].ProductID = strings.TrimSpace(r.Items[i].ProductID)
	}
}

func (r ReserveRequest) Validate() error {
	switch {
	case r.Customer.Name == "":
		return &ValidationError{Field: "customer_name", Reason: "required"}
	case !phoneRe.MatchString(r.Customer.Phone):
		return &ValidationError{Field: "customer_phone", Reason: "must be a 10 digit mobile number"}
	case r.Customer.Address == "":
		return &ValidationError{Field: "customer_address", Reason: "required"}
	case !pincodeRe.MatchString(r.Customer.Pincode):
		return &ValidationError{Field: "customer_pincode", Reason: "must be a 6 digit pincode"}
	case len(r.ProductIDs) == 0:
		return &ValidationError{Field: "product_ids", Reason: "required"}
	}

	wanted := make(map[string]bool, len(r.ProductIDs))
	for _, id := range r.ProductIDs {
		if id == "" {
			return &ValidationError{Field: "product_ids", Reason: "empty product id"}
		}
		if wanted[id] {
			return &ValidationError{Field: "product_ids", Reason: "duplicate product " + id}
		}
		wanted[id] = true
	}

	if len(r.Items) != len(r.ProductIDs) {
		return &ValidationError{Field: "items", Reason: "items do not match product_ids"}
	}
	sum := decimal.Zero
	seen := make(map[string]bool, len(r.Items))
	for _, it := range r.Items {
		if !wanted[it.ProductID] || seen[it.ProductID] {
			return &ValidationError{Field: "items", Reason: "items do not match product_ids"}
		}
		seen[it.ProductID] = true
		if it.Quantity != 1 {
			return &ValidationError{Field: "items", Reason: "quantity must be 1 for " + it.ProductID}
		}
		if it.Price.IsNegative() {
			return &ValidationError{Field: "items", Reason: "negative price for " + it.ProductID}
		}
		sum = sum.Add(it.LineTotal())
	}

	if r.Shipping.IsNegative() {
		return &ValidationError{Field: "shipping", Reason: "must not be negative"}
	}
	if !sum.Equal(r.Subtotal) {
		return &ValidationError{Field: "subtotal", Reason: "does not match items"}
	}
	if !r.Subtotal.Add(r.Shipping).Equal(r.Total) {
		return &ValidationError{Field: "total", Reason: "does not equal subtotal + shipping"}
	}
	return nil
}

// ItemName returns the client supplied name of a requested product.
func (r ReserveRequest) ItemName(productID string) string {
	for _, it := range r.Items {
		if it.ProductID == productID {
			return it.Name
		}
	}
	return ""
}

type PaymentRequest struct {
	OrderID   string
	Phone     string
	Reference string
	PayerName string
	ProofURL  string
}

func (r *PaymentRequest) Normalize() {
	r.OrderID = NormalizeOrderID(r.OrderID)
	r.Phone = NormalizePhone(r.Phone)
	r.Reference = strings.TrimSpace(r.Reference)
	r.PayerName = strings.TrimSpace(r.PayerName)
	r.ProofURL = strings.TrimSpace(r.ProofURL)
}

func (r PaymentRequest) Validate() error {
	switch {
	case r.OrderID == "":
		return &ValidationError{Field: "order_id", Reason: "required"}
	case r.Phone == "":
		return &ValidationError{Field: "customer_phone", Reason: "required"}
	case r.Reference == "":
		return &ValidationError{Field: "payment_reference", Reason: "required"}
	case len(r.Reference) > 64:
		return &ValidationError{Field: "payment_reference", Reason: "too long"}
	case r.PayerName == "":
		return &ValidationError{Field: "payer_name", Reason: "required"}
	}
	u, err := url.Parse(r.ProofURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return &ValidationError{Field: "proof_url", Reason: "must be an http(s) url"}
	}
	return nil
}
