package orders

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReserveRequest() ReserveRequest {
	return ReserveRequest{
		Customer: Customer{
			Name:    "Asha K",
			Phone:   "+91 98765-43210",
			Address: "12 MG Road, Bengaluru",
			Pincode: "560001",
		},
		Items: []Item{
			{ProductID: "p1", Name: "Kalamkari saree", Price: decimal.RequireFromString("1499"), Quantity: 1},
		},
		Subtotal:   decimal.RequireFromString("1499"),
		Shipping:   decimal.RequireFromString("200"),
		Total:      decimal.RequireFromString("1699"),
		ProductIDs: []string{"p1"},
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"9876543210":       "9876543210",
		"+91 98765 43210":  "9876543210",
		"919876543210":     "9876543210",
		"098765-43210":     "9876543210",
		" (987) 654.3210 ": "9876543210",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestReserveRequest_Valid(t *testing.T) {
	req := validReserveRequest()
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "9876543210", req.Customer.Phone)
}

func TestReserveRequest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ReserveRequest)
		field  string
	}{
		{"missing name", func(r *ReserveRequest) { r.Customer.Name = " " }, "customer_name"},
		{"landline", func(r *ReserveRequest) { r.Customer.Phone = "0801234567" }, "customer_phone"},
		{"bad pincode", func(r *ReserveRequest) { r.Customer.Pincode = "012345" }, "customer_pincode"},
		{"no products", func(r *ReserveRequest) { r.ProductIDs = nil; r.Items = nil }, "product_ids"},
		{"duplicate product", func(r *ReserveRequest) {
			r.ProductIDs = []string{"p1", "p1"}
			r.Items = append(r.Items, r.Items[0])
		}, "product_ids"},
		{"item for other product", func(r *ReserveRequest) { r.Items[0].ProductID = "p2" }, "items"},
		{"quantity two", func(r *ReserveRequest) { r.Items[0].Quantity = 2 }, "items"},
		{"negative price", func(r *ReserveRequest) {
			r.Items[0].Price = decimal.RequireFromString("-1")
			r.Subtotal = r.Items[0].Price
			r.Total = r.Subtotal.Add(r.Shipping)
		}, "items"},
		{"subtotal mismatch", func(r *ReserveRequest) { r.Subtotal = decimal.RequireFromString("1") }, "subtotal"},
		{"total mismatch", func(r *ReserveRequest) { r.Total = decimal.RequireFromString("1499") }, "total"},
		{"negative shipping", func(r *ReserveRequest) {
			r.Shipping = decimal.RequireFromString("-200")
			r.Total = r.Subtotal.Add(r.Shipping)
		}, "shipping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validReserveRequest()
			tt.mutate(&req)
			req.Normalize()

			err := req.Validate()
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestPaymentRequest_Validate(t *testing.T) {
	req := PaymentRequest{
		OrderID:   " ord-7k2m9qx4tb ",
		Phone:     "+919876543210",
		Reference: " UPI2024XYZ123 ",
		PayerName: "Asha K",
		ProofURL:  "https://cdn.example.com/proof.jpg",
	}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "ORD-7K2M9QX4TB", req.OrderID)
	assert.Equal(t, "UPI2024XYZ123", req.Reference)

	bad := req
	bad.ProofURL = "javascript:alert(1)"
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	bad = req
	bad.Reference = strings.Repeat("X", 65)
	assert.ErrorIs(t, bad.Validate(), ErrValidation)

	bad = req
	bad.PayerName = ""
	assert.ErrorIs(t, bad.Validate(), ErrValidation)
}

func TestNewOrderID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewOrderID()
		require.Len(t, id, 14)
		require.True(t, strings.HasPrefix(id, "ORD-"))
		require.Equal(t, id, NormalizeOrderID(strings.ToLower(id)))
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestConflictError(t *testing.T) {
	err := error(&ConflictError{Unavailable: []UnavailableProduct{{ID: "p2", Name: "Brass lamp"}}})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "p2")
}
