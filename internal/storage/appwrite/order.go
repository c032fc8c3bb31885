package appwrite

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/makerforge/print-api/internal/appwrite"
	"github.com/makerforge/print-api/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by the orders
// collection. One document per order line; the group id is a plain
// attribute, not a document id.
type OrderRepository struct {
	client *appwrite.Client
	db     string
}

// NewOrderRepository returns an OrderRepository using the given client and
// database.
func NewOrderRepository(client *appwrite.Client, databaseID string) *OrderRepository {
	return &OrderRepository{client: client, db: databaseID}
}

func lineFromDocument(doc *appwrite.Document) order.Line {
	price, err := decimal.NewFromString(doc.String("price"))
	if err != nil {
		// Legacy documents stored the price as a JSON number.
		price = decimal.NewFromFloat(doc.Float64("price"))
	}
	return order.Line{
		ID:              doc.ID,
		GroupID:         doc.String("order_id"),
		CustomerID:      doc.String("customer_id"),
		STLID:           doc.String("stl_id"),
		Status:          doc.String("status"),
		Price:           price,
		DeliveryType:    doc.String("delivery_type"),
		DropOffLocation: doc.String("drop_off_location"),
		PlacedAt:        doc.CreatedAt,
	}
}

// Create persists a new order line and fills in the generated id.
func (r *OrderRepository) Create(ctx context.Context, line *order.Line) error {
	doc, err := r.client.CreateDocument(ctx, r.db, ordersCollection, appwrite.IDUnique, map[string]any{
		"order_id":          line.GroupID,
		"customer_id":       line.CustomerID,
		"stl_id":            line.STLID,
		"status":            line.Status,
		"price":             line.Price.String(),
		"delivery_type":     line.DeliveryType,
		"drop_off_location": line.DropOffLocation,
	})
	if err != nil {
		return errors.Wrapf(err, "create order line in group %q", line.GroupID)
	}
	line.ID = doc.ID
	line.PlacedAt = doc.CreatedAt
	return nil
}

// ListByGroup returns every line of the given order group.
func (r *OrderRepository) ListByGroup(ctx context.Context, groupID string) ([]order.Line, error) {
	return r.list(ctx, appwrite.QueryEqual("order_id", groupID))
}

// ListByCustomer returns every line placed by the given customer, newest
// first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Line, error) {
	return r.list(ctx,
		appwrite.QueryEqual("customer_id", customerID),
		appwrite.QueryOrderDesc("$createdAt"),
	)
}

func (r *OrderRepository) list(ctx context.Context, queries ...appwrite.Query) ([]order.Line, error) {
	list, err := r.client.ListDocuments(ctx, r.db, ordersCollection, queries...)
	if err != nil {
		return nil, errors.Wrap(err, "list order lines")
	}
	lines := make([]order.Line, len(list.Documents))
	for i := range list.Documents {
		lines[i] = lineFromDocument(&list.Documents[i])
	}
	return lines, nil
}
