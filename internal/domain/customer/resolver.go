package customer

import (
	"context"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	seenCapacity = 1_000_000
	seenFPR      = 0.01
	warmPageSize = 100
)

// Resolver performs idempotent find-or-create of customers keyed by email.
//
// Two layers reduce the check-then-create race and the query cost:
//
//   - a singleflight group keyed by trimmed email collapses concurrent
//     resolutions of the same address into one store round-trip, so a burst
//     of checkouts for a new customer creates exactly one record in this
//     process;
//   - a bloom filter of known emails lets definitely-new addresses skip the
//     lookup query. False positives fall through to the exact query, so the
//     filter never affects correctness; it only saves round-trips.
//
// Cross-process duplicates remain possible: the external store enforces no
// unique index at this layer.
type Resolver struct {
	repo Repository
	lg   *zap.Logger

	flight singleflight.Group

	// mu guards seen; bloom filters are not safe for concurrent mutation.
	mu     sync.Mutex
	seen   *bloom.BloomFilter
	warmed bool
}

// NewResolver creates a Resolver. Until Warm succeeds, every resolution
// performs the exact email lookup.
func NewResolver(repo Repository, lg *zap.Logger) *Resolver {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Resolver{
		repo: repo,
		lg:   lg,
		seen: bloom.NewWithEstimates(seenCapacity, seenFPR),
	}
}

// Warm loads existing customer emails into the bloom filter. A failure leaves
// the resolver in always-query mode and is safe to ignore.
func (r *Resolver) Warm(ctx context.Context) error {
	offset := 0
	for {
		emails, err := r.repo.Emails(ctx, warmPageSize, offset)
		if err != nil {
			return errors.Wrap(err, "list customer emails")
		}
		r.mu.Lock()
		for _, e := range emails {
			r.seen.AddString(e)
		}
		r.mu.Unlock()
		if len(emails) < warmPageSize {
			break
		}
		offset += len(emails)
	}
	r.mu.Lock()
	r.warmed = true
	r.mu.Unlock()
	return nil
}

func (r *Resolver) mightExist(email string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.warmed {
		return true
	}
	return r.seen.TestString(email)
}

func (r *Resolver) remember(email string) {
	r.mu.Lock()
	r.seen.AddString(email)
	r.mu.Unlock()
}

// Resolve returns the existing customer with the submitted email, or creates
// one from the submitted attributes. For an existing customer the stored
// attributes win: caller-supplied names, phone, and address are intentionally
// not written back.
func (r *Resolver) Resolve(ctx context.Context, in Customer) (*Customer, error) {
	email := strings.TrimSpace(in.Email)

	v, err, _ := r.flight.Do(email, func() (any, error) {
		if r.mightExist(email) {
			existing, err := r.repo.FindByEmail(ctx, email)
			switch {
			case err == nil:
				r.remember(email)
				return existing, nil
			case !errors.Is(err, ErrNotFound):
				return nil, errors.Wrap(err, "find customer by email")
			}
		}

		c := &Customer{
			FirstName:       in.FirstName,
			LastName:        in.LastName,
			Email:           email,
			Phone:           NormalizePhone(in.Phone),
			DeliveryAddress: TruncateAddress(in.DeliveryAddress),
		}
		if err := r.repo.Create(ctx, c); err != nil {
			return nil, errors.Wrap(err, "create customer")
		}
		r.remember(email)
		r.lg.Info("created customer", zap.String("customer_id", c.ID))
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Customer), nil
}
