package appwrite

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// IDUnique asks the platform to mint the document identifier server-side.
const IDUnique = "unique()"

func collectionPath(db, collection string) string {
	return fmt.Sprintf("/databases/%s/collections/%s/documents", db, collection)
}

func documentPath(db, collection, id string) string {
	return collectionPath(db, collection) + "/" + id
}

func encodeDocumentBody(docID string, fields map[string]any) []byte {
	e := &jx.Encoder{}
	e.ObjStart()
	if docID != "" {
		e.FieldStart("documentId")
		e.Str(docID)
	}
	e.FieldStart("data")
	encodeValue(e, fields)
	e.ObjEnd()
	return e.Bytes()
}

// CreateDocument inserts a document. Pass IDUnique to let the platform
// generate the identifier.
func (c *Client) CreateDocument(ctx context.Context, db, collection, docID string, fields map[string]any) (*Document, error) {
	data, err := c.do(ctx, http.MethodPost, collectionPath(db, collection), encodeDocumentBody(docID, fields))
	if err != nil {
		return nil, errors.Wrapf(err, "create document in %s", collection)
	}
	doc, err := decodeDocument(jx.DecodeBytes(data))
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocument fetches one document by id. A missing document matches
// ErrNotFound.
func (c *Client) GetDocument(ctx context.Context, db, collection, id string) (*Document, error) {
	data, err := c.do(ctx, http.MethodGet, documentPath(db, collection, id), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "get document %s/%s", collection, id)
	}
	doc, err := decodeDocument(jx.DecodeBytes(data))
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns the documents matching the queries plus the total
// match count.
func (c *Client) ListDocuments(ctx context.Context, db, collection string, queries ...Query) (*DocumentList, error) {
	data, err := c.send(ctx, request{
		method: http.MethodGet,
		path:   collectionPath(db, collection),
		query:  encodeQueries(queries),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list documents in %s", collection)
	}

	list := &DocumentList{}
	d := jx.DecodeBytes(data)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "total":
			n, err := d.Int64()
			if err != nil {
				return err
			}
			list.Total = n
		case "documents":
			return d.Arr(func(d *jx.Decoder) error {
				doc, err := decodeDocument(d)
				if err != nil {
					return err
				}
				list.Documents = append(list.Documents, doc)
				return nil
			})
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode document list")
	}
	return list, nil
}

// UpdateDocument applies a partial field update.
func (c *Client) UpdateDocument(ctx context.Context, db, collection, id string, fields map[string]any) (*Document, error) {
	data, err := c.do(ctx, http.MethodPatch, documentPath(db, collection, id), encodeDocumentBody("", fields))
	if err != nil {
		return nil, errors.Wrapf(err, "update document %s/%s", collection, id)
	}
	doc, err := decodeDocument(jx.DecodeBytes(data))
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document by id.
func (c *Client) DeleteDocument(ctx context.Context, db, collection, id string) error {
	_, err := c.do(ctx, http.MethodDelete, documentPath(db, collection, id), nil)
	if err != nil {
		return errors.Wrapf(err, "delete document %s/%s", collection, id)
	}
	return nil
}
