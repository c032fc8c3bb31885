// Package customer defines the customer aggregate and the idempotent
// find-or-create resolver used during checkout.
package customer

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no customer matches the given identifier.
var ErrNotFound = errors.New("customer not found")

// MaxAddressLen caps the stored delivery address length.
const MaxAddressLen = 255

// Customer is identified by email; the email is stored exactly as submitted
// (trimmed, case-sensitive).
type Customer struct {
	ID              string
	FirstName       string
	LastName        string
	Email           string
	Phone           string // digits only
	DeliveryAddress string
}

// Name returns the customer's display name.
func (c Customer) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Repository defines persistence operations for customers.
type Repository interface {
	// FindByEmail returns the customer with the exact email, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	// Emails returns a page of stored customer emails, for warmup scans.
	Emails(ctx context.Context, limit, offset int) ([]string, error)
}

// NormalizePhone strips everything but ASCII digits.
func NormalizePhone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TruncateAddress caps an address at MaxAddressLen bytes.
func TruncateAddress(s string) string {
	if len(s) > MaxAddressLen {
		return s[:MaxAddressLen]
	}
	return s
}
