package appwrite

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Collection is the schema-level description of one collection.
type Collection struct {
	ID   string
	Name string
}

// ListCollections returns every collection of the database.
func (c *Client) ListCollections(ctx context.Context, db string) ([]Collection, error) {
	data, err := c.do(ctx, http.MethodGet, "/databases/"+db+"/collections", nil)
	if err != nil {
		return nil, err
	}

	var out []Collection
	d := jx.DecodeBytes(data)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "collections" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var col Collection
			if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "$id":
					s, err := d.Str()
					col.ID = s
					return err
				case "name":
					s, err := d.Str()
					col.Name = s
					return err
				default:
					return d.Skip()
				}
			}); err != nil {
				return err
			}
			out = append(out, col)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode collections")
	}
	return out, nil
}

// CreateCollection creates a collection with the given id and display name.
func (c *Client) CreateCollection(ctx context.Context, db, collectionID, name string) error {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("collectionId")
	e.Str(collectionID)
	e.FieldStart("name")
	e.Str(name)
	e.ObjEnd()

	_, err := c.do(ctx, http.MethodPost, "/databases/"+db+"/collections", e.Bytes())
	return err
}

func (c *Client) createAttribute(ctx context.Context, db, collection, kind string, body []byte) error {
	path := collectionPath(db, collection) + "/attributes/" + kind
	_, err := c.do(ctx, http.MethodPost, path, body)
	return err
}

// CreateStringAttribute adds a string attribute to a collection.
func (c *Client) CreateStringAttribute(ctx context.Context, db, collection, key string, size int, required bool) error {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("key")
	e.Str(key)
	e.FieldStart("size")
	e.Int(size)
	e.FieldStart("required")
	e.Bool(required)
	e.ObjEnd()
	return c.createAttribute(ctx, db, collection, "string", e.Bytes())
}

// CreateIntegerAttribute adds an integer attribute to a collection.
func (c *Client) CreateIntegerAttribute(ctx context.Context, db, collection, key string, required bool) error {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("key")
	e.Str(key)
	e.FieldStart("required")
	e.Bool(required)
	e.ObjEnd()
	return c.createAttribute(ctx, db, collection, "integer", e.Bytes())
}

// CreateFloatAttribute adds a float attribute to a collection.
func (c *Client) CreateFloatAttribute(ctx context.Context, db, collection, key string, required bool) error {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("key")
	e.Str(key)
	e.FieldStart("required")
	e.Bool(required)
	e.ObjEnd()
	return c.createAttribute(ctx, db, collection, "float", e.Bytes())
}

// CreateIndex adds a key index over the given attributes.
func (c *Client) CreateIndex(ctx context.Context, db, collection, key string, attributes []string) error {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("key")
	e.Str(key)
	e.FieldStart("type")
	e.Str("key")
	e.FieldStart("attributes")
	e.ArrStart()
	for _, a := range attributes {
		e.Str(a)
	}
	e.ArrEnd()
	e.ObjEnd()

	path := collectionPath(db, collection) + "/indexes"
	_, err := c.do(ctx, http.MethodPost, path, e.Bytes())
	return err
}
