package appwrite

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/makerforge/print-api/internal/appwrite"
	"github.com/makerforge/print-api/internal/domain/stl"
)

var _ stl.Repository = (*STLRepository)(nil)

// STLRepository implements stl.Repository backed by the stls collection.
type STLRepository struct {
	client *appwrite.Client
	db     string
}

// NewSTLRepository returns an STLRepository using the given client and
// database.
func NewSTLRepository(client *appwrite.Client, databaseID string) *STLRepository {
	return &STLRepository{client: client, db: databaseID}
}

func stlFromDocument(doc *appwrite.Document) *stl.Record {
	return &stl.Record{
		ID:       doc.ID,
		FileID:   doc.String("stl_id"),
		FileName: doc.String("file_name"),
		FileURL:  doc.String("file_url"),
		FileSize: doc.Int64("file_size"),
		Options: stl.PrintOptions{
			Material:      doc.String("material"),
			Colour:        doc.String("color"),
			ScalePercent:  doc.Float64("scale"),
			Quantity:      int(doc.Int64("quantity")),
			InfillPercent: int(doc.Int64("infill")),
			Quality:       doc.String("quality"),
			Shipping:      doc.String("shipping"),
		},
		PriceCents:   doc.Int64("price"),
		OrderGroupID: doc.String("stl_order"),
		CreatedAt:    doc.CreatedAt,
	}
}

func optionFields(opts stl.PrintOptions) map[string]any {
	return map[string]any{
		"material": opts.Material,
		"color":    opts.Colour,
		"scale":    opts.ScalePercent,
		"quantity": int64(opts.Quantity),
		"infill":   int64(opts.InfillPercent),
		"quality":  opts.Quality,
		"shipping": opts.Shipping,
	}
}

// Create persists a new record and fills in the generated id.
func (r *STLRepository) Create(ctx context.Context, rec *stl.Record) error {
	fields := optionFields(rec.Options)
	fields["stl_id"] = rec.FileID
	fields["file_name"] = rec.FileName
	fields["file_url"] = rec.FileURL
	fields["file_size"] = rec.FileSize
	fields["price"] = rec.PriceCents
	fields["stl_order"] = nil

	doc, err := r.client.CreateDocument(ctx, r.db, stlsCollection, appwrite.IDUnique, fields)
	if err != nil {
		return errors.Wrapf(err, "create stl record for file %q", rec.FileID)
	}
	rec.ID = doc.ID
	rec.CreatedAt = doc.CreatedAt
	return nil
}

// Get returns the record with the given id, or stl.ErrNotFound.
func (r *STLRepository) Get(ctx context.Context, id string) (*stl.Record, error) {
	doc, err := r.client.GetDocument(ctx, r.db, stlsCollection, id)
	if err != nil {
		if errors.Is(err, appwrite.ErrNotFound) {
			return nil, stl.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get stl record %q", id)
	}
	return stlFromDocument(doc), nil
}

// FindByFileID returns all records referencing the given storage file.
func (r *STLRepository) FindByFileID(ctx context.Context, fileID string) ([]stl.Record, error) {
	list, err := r.client.ListDocuments(ctx, r.db, stlsCollection,
		appwrite.QueryEqual("stl_id", fileID),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "list stl records for file %q", fileID)
	}
	records := make([]stl.Record, len(list.Documents))
	for i := range list.Documents {
		records[i] = *stlFromDocument(&list.Documents[i])
	}
	return records, nil
}

// UpdateOptions replaces the print options and quoted price of a record.
func (r *STLRepository) UpdateOptions(ctx context.Context, id string, opts stl.PrintOptions, priceCents int64) error {
	fields := optionFields(opts)
	fields["price"] = priceCents

	if _, err := r.client.UpdateDocument(ctx, r.db, stlsCollection, id, fields); err != nil {
		if errors.Is(err, appwrite.ErrNotFound) {
			return stl.ErrNotFound
		}
		return errors.Wrapf(err, "update stl record %q", id)
	}
	return nil
}

// LinkOrder writes the order-group back-link onto a record.
func (r *STLRepository) LinkOrder(ctx context.Context, id, groupID string) error {
	_, err := r.client.UpdateDocument(ctx, r.db, stlsCollection, id, map[string]any{
		"stl_order": groupID,
	})
	if err != nil {
		return errors.Wrapf(err, "link stl record %q to %q", id, groupID)
	}
	return nil
}

// Delete removes the record with the given id.
func (r *STLRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.DeleteDocument(ctx, r.db, stlsCollection, id); err != nil {
		if errors.Is(err, appwrite.ErrNotFound) {
			return stl.ErrNotFound
		}
		return errors.Wrapf(err, "delete stl record %q", id)
	}
	return nil
}
