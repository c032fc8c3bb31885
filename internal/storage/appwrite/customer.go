// Package appwrite implements the domain repositories on top of the
// document service's REST API. Each aggregate maps to one collection.
package appwrite

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/makerforge/print-api/internal/appwrite"
	"github.com/makerforge/print-api/internal/domain/customer"
)

// Collection names inside the configured database.
const (
	customersCollection = "customers"
	stlsCollection      = "stls"
	ordersCollection    = "orders"
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by the customers
// collection.
type CustomerRepository struct {
	client *appwrite.Client
	db     string
}

// NewCustomerRepository returns a CustomerRepository using the given client
// and database.
func NewCustomerRepository(client *appwrite.Client, databaseID string) *CustomerRepository {
	return &CustomerRepository{client: client, db: databaseID}
}

func customerFromDocument(doc *appwrite.Document) *customer.Customer {
	return &customer.Customer{
		ID:              doc.ID,
		FirstName:       doc.String("first_name"),
		LastName:        doc.String("last_name"),
		Email:           doc.String("email"),
		Phone:           doc.String("phone"),
		DeliveryAddress: doc.String("delivery_address"),
	}
}

// FindByEmail returns the customer with the exact email, or
// customer.ErrNotFound when no document matches.
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	list, err := r.client.ListDocuments(ctx, r.db, customersCollection,
		appwrite.QueryEqual("email", email),
		appwrite.QueryLimit(1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	if len(list.Documents) == 0 {
		return nil, customer.ErrNotFound
	}
	return customerFromDocument(&list.Documents[0]), nil
}

// Create persists a new customer and fills in the generated id.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	doc, err := r.client.CreateDocument(ctx, r.db, customersCollection, appwrite.IDUnique, map[string]any{
		"first_name":       c.FirstName,
		"last_name":        c.LastName,
		"email":            c.Email,
		"phone":            c.Phone,
		"delivery_address": c.DeliveryAddress,
	})
	if err != nil {
		return errors.Wrapf(err, "create customer %q", c.Email)
	}
	c.ID = doc.ID
	return nil
}

// Get returns the customer with the given id, or customer.ErrNotFound.
func (r *CustomerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	doc, err := r.client.GetDocument(ctx, r.db, customersCollection, id)
	if err != nil {
		if errors.Is(err, appwrite.ErrNotFound) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get customer %q", id)
	}
	return customerFromDocument(doc), nil
}

// Emails returns one page of stored customer emails.
func (r *CustomerRepository) Emails(ctx context.Context, limit, offset int) ([]string, error) {
	list, err := r.client.ListDocuments(ctx, r.db, customersCollection,
		appwrite.QueryLimit(limit),
		appwrite.QueryOffset(offset),
	)
	if err != nil {
		return nil, errors.Wrap(err, "list customer emails")
	}
	emails := make([]string, 0, len(list.Documents))
	for i := range list.Documents {
		if email := list.Documents[i].String("email"); email != "" {
			emails = append(emails, email)
		}
	}
	return emails, nil
}
