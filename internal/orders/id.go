package orders

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

// Crockford alphabet: no I, L, O, U so codes survive being read out loud.
var orderCode = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// NewOrderID mints a shareable order code like ORD-7K2M9QX4TB. The random
// part comes from a v4 uuid; it deters guessing but is not a secret, the
// phone number check is.
func NewOrderID() string {
	u := uuid.New()
	return "ORD-" + orderCode.EncodeToString(u[:7])[:10]
}

func NormalizeOrderID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
