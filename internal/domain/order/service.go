package order

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/makerforge/print-api/internal/domain/customer"
	"github.com/makerforge/print-api/internal/domain/pricing"
	"github.com/makerforge/print-api/internal/domain/stl"
)

var cents = decimal.NewFromInt(100)

// Service composes checkouts and serves the order read side.
type Service struct {
	resolver  *customer.Resolver
	customers customer.Repository
	stls      stl.Repository
	orders    Repository
	pricing   *pricing.Engine

	// test seams
	now        func() time.Time
	newGroupID func() string
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	resolver *customer.Resolver,
	customers customer.Repository,
	stls stl.Repository,
	orders Repository,
	engine *pricing.Engine,
) *Service {
	return &Service{
		resolver:   resolver,
		customers:  customers,
		stls:       stls,
		orders:     orders,
		pricing:    engine,
		now:        time.Now,
		newGroupID: NewGroupID,
	}
}

const groupIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewGroupID generates an order-group identifier of the form
// ORD_<unixMillis>_<6 random base36 chars>.
func NewGroupID() string {
	var b strings.Builder
	b.WriteString("ORD_")
	b.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	b.WriteByte('_')
	for range 6 {
		b.WriteByte(groupIDAlphabet[rand.IntN(len(groupIDAlphabet))])
	}
	return b.String()
}

// Checkout runs the full composition sequence: validate, resolve the
// customer, persist one order line per file (plus the sentinel residual
// line), back-link the created STL records, and build the receipt.
//
// Failure policy: validation errors return before any side effect; a customer
// resolution failure aborts the whole checkout; a per-file failure is logged,
// recorded on the receipt, and skipped; a back-link failure is logged and
// never fatal. If no line at all could be persisted the checkout fails with
// ErrNoLinesCreated.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Receipt, error) {
	if verr := req.Validate(); verr != nil {
		return nil, verr
	}

	cust, err := s.resolver.Resolve(ctx, req.Customer)
	if err != nil {
		return nil, errors.Wrap(err, "resolve customer")
	}

	lg := zctx.From(ctx)
	groupID := s.newGroupID()
	placedAt := s.now()

	var (
		createdLines []Line
		stlIDs       []string
		failures     []LineFailure
		total        decimal.Decimal
	)

	// One STL record and one order line per submitted file, in submission
	// order. Each file is independent: a failure skips that file only.
	for i, f := range req.Files {
		opts := f.Options.WithDefaults()

		priceCents, err := s.pricing.Quote(pricing.Input{
			FileSizeBytes: f.SizeBytes,
			Material:      opts.Material,
			ScalePercent:  opts.ScalePercent,
			Quantity:      opts.Quantity,
			InfillPercent: opts.InfillPercent,
			Quality:       opts.Quality,
			Shipping:      opts.Shipping,
		})
		if err != nil {
			lg.Error("quote failed", zap.Int("file_index", i), zap.Error(err))
			failures = append(failures, LineFailure{Index: i, FileRef: f.FileRef, Err: err})
			continue
		}
		price := decimal.NewFromInt(priceCents).Div(cents)

		rec := &stl.Record{
			FileID:     f.FileRef,
			FileName:   f.FileName,
			FileSize:   f.SizeBytes,
			Options:    opts,
			PriceCents: priceCents,
		}
		if err := s.stls.Create(ctx, rec); err != nil {
			lg.Error("create stl record failed", zap.Int("file_index", i), zap.Error(err))
			failures = append(failures, LineFailure{Index: i, FileRef: f.FileRef, Err: err})
			continue
		}

		line := &Line{
			GroupID:         groupID,
			CustomerID:      cust.ID,
			STLID:           rec.ID,
			Status:          StatusOrderMade,
			Price:           price,
			DeliveryType:    req.Details.DeliveryType,
			DropOffLocation: req.Details.DropOffLocation,
			PlacedAt:        placedAt,
		}
		if err := s.orders.Create(ctx, line); err != nil {
			lg.Error("create order line failed", zap.Int("file_index", i), zap.Error(err))
			failures = append(failures, LineFailure{Index: i, FileRef: f.FileRef, Err: err})
			continue
		}

		createdLines = append(createdLines, *line)
		stlIDs = append(stlIDs, rec.ID)
		total = total.Add(price)
	}

	// Residual above the computed line prices becomes exactly one sentinel
	// line so the group total matches what the client was charged.
	if residual := req.Details.Price.Sub(total); residual.IsPositive() && len(createdLines) > 0 {
		line := &Line{
			GroupID:         groupID,
			CustomerID:      cust.ID,
			STLID:           SentinelSTLID,
			Status:          StatusOrderMade,
			Price:           residual,
			DeliveryType:    req.Details.DeliveryType,
			DropOffLocation: req.Details.DropOffLocation,
			PlacedAt:        placedAt,
		}
		if err := s.orders.Create(ctx, line); err != nil {
			lg.Error("create residual line failed", zap.Error(err))
			failures = append(failures, LineFailure{Index: -1, FileRef: SentinelSTLID, Err: err})
		} else {
			createdLines = append(createdLines, *line)
			total = total.Add(residual)
		}
	}

	if len(createdLines) == 0 {
		return nil, errors.Wrapf(ErrNoLinesCreated, "%d file(s) failed", len(failures))
	}

	// Back-link each STL record to the group. Best effort: the order is
	// valid and retrievable even when a link write fails.
	linked := make([]string, 0, len(stlIDs))
	for _, id := range stlIDs {
		if err := s.stls.LinkOrder(ctx, id, groupID); err != nil {
			lg.Warn("could not link stl record to order",
				zap.String("stl_id", id), zap.String("order_id", groupID), zap.Error(err))
			continue
		}
		linked = append(linked, id)
	}

	lg.Info("checkout composed",
		zap.String("order_id", groupID),
		zap.String("customer_id", cust.ID),
		zap.Int("lines", len(createdLines)),
		zap.Int("failures", len(failures)),
		zap.String("total", total.String()),
	)

	return &Receipt{
		GroupID:       groupID,
		FirstLineID:   createdLines[0].ID,
		CustomerID:    cust.ID,
		CustomerName:  cust.Name(),
		CustomerEmail: cust.Email,
		Total:         total,
		Status:        StatusOrderMade,
		DeliveryType:  req.Details.DeliveryType,
		LineCount:     len(createdLines),
		LinkedSTLs:    linked,
		Failures:      failures,
		PlacedAt:      placedAt,
	}, nil
}

// GetOrderGroup returns every line of the group, denormalized with customer
// and STL details. Reads have no side effects.
func (s *Service) GetOrderGroup(ctx context.Context, groupID string) ([]LineDetails, error) {
	lines, err := s.orders.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "list order lines")
	}
	if len(lines) == 0 {
		return nil, ErrGroupNotFound
	}
	return s.enrich(ctx, lines)
}

// GetCustomerOrders returns every line billed to the customer, denormalized
// the same way as GetOrderGroup.
func (s *Service) GetCustomerOrders(ctx context.Context, customerID string) ([]LineDetails, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, errors.Wrap(err, "get customer")
	}
	lines, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "list order lines")
	}
	return s.enrich(ctx, lines)
}

// enrich joins lines with their customer and STL documents. Lookups are
// cached per call; missing STL records degrade to a nil STL rather than
// failing the whole read.
func (s *Service) enrich(ctx context.Context, lines []Line) ([]LineDetails, error) {
	lg := zctx.From(ctx)

	customers := make(map[string]*customer.Customer)
	records := make(map[string]*stl.Record)

	out := make([]LineDetails, len(lines))
	for i, line := range lines {
		d := LineDetails{Line: line}

		c, ok := customers[line.CustomerID]
		if !ok {
			var err error
			c, err = s.customers.Get(ctx, line.CustomerID)
			if err != nil {
				return nil, errors.Wrapf(err, "get customer %s", line.CustomerID)
			}
			customers[line.CustomerID] = c
		}
		d.CustomerName = c.Name()
		d.CustomerEmail = c.Email

		if line.STLID != "" && line.STLID != SentinelSTLID {
			rec, ok := records[line.STLID]
			if !ok {
				var err error
				rec, err = s.stls.Get(ctx, line.STLID)
				if err != nil {
					lg.Warn("stl record missing for order line",
						zap.String("stl_id", line.STLID), zap.Error(err))
					rec = nil
				}
				records[line.STLID] = rec
			}
			d.STL = rec
		}

		out[i] = d
	}
	return out, nil
}
