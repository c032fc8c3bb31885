// Package order implements checkout composition: turning one submitted
// checkout (customer + STL files + shared details) into a consistent set of
// persisted customer, STL, and order-line records.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/makerforge/print-api/internal/domain/customer"
	"github.com/makerforge/print-api/internal/domain/stl"
)

// SentinelSTLID marks an order line that bills non-printable charges
// (tax/shipping residual) instead of referencing an STL record.
const SentinelSTLID = "tax_and_shipping"

// StatusOrderMade is the initial status of every order line.
const StatusOrderMade = "order_made"

// ErrNoLinesCreated is returned when every line of a checkout failed to
// persist. The resolved customer record may still exist; there is no
// compensating delete.
var ErrNoLinesCreated = errors.New("no order lines were created")

// ErrGroupNotFound is returned when an order group has no lines.
var ErrGroupNotFound = errors.New("order group not found")

// Line is one billable row of an order group. A checkout produces one line
// per STL file plus at most one sentinel line for the residual.
type Line struct {
	ID              string
	GroupID         string
	CustomerID      string
	STLID           string // record id, or SentinelSTLID
	Status          string
	Price           decimal.Decimal // this line's cost only
	DeliveryType    string
	DropOffLocation string
	PlacedAt        time.Time
}

// Repository defines persistence operations for order lines.
type Repository interface {
	Create(ctx context.Context, line *Line) error
	ListByGroup(ctx context.Context, groupID string) ([]Line, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Line, error)
}

// FileInput is one STL entry of a checkout submission.
type FileInput struct {
	FileRef   string // storage file id or URL
	FileName  string
	SizeBytes int64
	Options   stl.PrintOptions
}

// Details carries the checkout-wide order attributes.
type Details struct {
	// Price is the total the client declared for the whole checkout. Any
	// amount above the sum of computed STL-line prices becomes the sentinel
	// residual line.
	Price           decimal.Decimal
	DeliveryType    string
	DropOffLocation string
}

// CheckoutRequest is the input to Service.Checkout.
type CheckoutRequest struct {
	Customer customer.Customer
	Files    []FileInput
	Details  Details
}

// FieldError names one offending request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every violation found in a checkout request, not
// just the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate checks the full request and collects every violation.
func (r *CheckoutRequest) Validate() *ValidationError {
	var fields []FieldError
	add := func(field, message string) {
		fields = append(fields, FieldError{Field: field, Message: message})
	}

	if r.Customer.FirstName == "" {
		add("customer.first_name", "required")
	}
	if r.Customer.LastName == "" {
		add("customer.last_name", "required")
	}
	if strings.TrimSpace(r.Customer.Email) == "" {
		add("customer.email", "required")
	}
	if customer.NormalizePhone(r.Customer.Phone) == "" {
		add("customer.phone", "must contain at least one digit")
	}
	if r.Customer.DeliveryAddress == "" {
		add("customer.delivery_address", "required")
	} else if len(r.Customer.DeliveryAddress) > customer.MaxAddressLen {
		add("customer.delivery_address", fmt.Sprintf("must be at most %d characters", customer.MaxAddressLen))
	}

	if len(r.Files) == 0 {
		add("stl_files", "at least one file is required")
	}
	for i, f := range r.Files {
		prefix := fmt.Sprintf("stl_files[%d].", i)
		if f.FileRef == "" {
			add(prefix+"file_ref", "required")
		}
		if !stl.ValidMaterial(f.Options.Material) {
			add(prefix+"material", fmt.Sprintf("must be one of %s", strings.Join(stl.Materials, ", ")))
		}
		if !stl.ValidColour(f.Options.Colour) {
			add(prefix+"colour", fmt.Sprintf("must be one of %s", strings.Join(stl.Colours, ", ")))
		}
		if f.Options.ScalePercent < 0 {
			add(prefix+"scale", "must not be negative")
		}
		if f.Options.Quantity < 0 {
			add(prefix+"quantity", "must not be negative")
		}
	}

	if r.Details.Price.IsNegative() {
		add("order_details.price", "must not be negative")
	}
	if r.Details.DeliveryType == "" {
		add("order_details.delivery_type", "required")
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// LineFailure records one STL entry that could not be billed. Index is the
// position in the submitted file list, or -1 for the sentinel residual line.
type LineFailure struct {
	Index   int
	FileRef string
	Err     error
}

// Receipt summarizes a completed checkout.
type Receipt struct {
	GroupID       string
	FirstLineID   string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	Total         decimal.Decimal
	Status        string
	DeliveryType  string
	LineCount     int
	LinkedSTLs    []string
	Failures      []LineFailure
	PlacedAt      time.Time
}

// LineDetails is an order line denormalized with customer and STL data for
// the read side.
type LineDetails struct {
	Line
	CustomerName  string
	CustomerEmail string
	// STL is nil for sentinel lines and for records that could not be loaded.
	STL *stl.Record
}
