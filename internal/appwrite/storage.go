package appwrite

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// File is a stored object in a bucket.
type File struct {
	ID           string
	Name         string
	SizeOriginal int64
}

// CreateFile uploads content into a bucket as a multipart form. Pass IDUnique
// to let the platform generate the file identifier.
func (c *Client) CreateFile(ctx context.Context, bucket, fileID, filename string, content io.Reader) (*File, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("fileId", fileID); err != nil {
		return nil, errors.Wrap(err, "write fileId field")
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, errors.Wrap(err, "copy file content")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}

	data, err := c.send(ctx, request{
		method:      http.MethodPost,
		path:        fmt.Sprintf("/storage/buckets/%s/files", bucket),
		contentType: mw.FormDataContentType(),
		body:        &buf,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "upload file to bucket %s", bucket)
	}

	f := &File{}
	d := jx.DecodeBytes(data)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "$id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			f.ID = s
		case "name":
			s, err := d.Str()
			if err != nil {
				return err
			}
			f.Name = s
		case "sizeOriginal":
			n, err := d.Int64()
			if err != nil {
				return err
			}
			f.SizeOriginal = n
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode file response")
	}
	return f, nil
}

// DeleteFile removes a stored object.
func (c *Client) DeleteFile(ctx context.Context, bucket, fileID string) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/storage/buckets/%s/files/%s", bucket, fileID), nil)
	if err != nil {
		return errors.Wrapf(err, "delete file %s from bucket %s", fileID, bucket)
	}
	return nil
}

// FileViewURL builds the public view URL for a stored object.
func (c *Client) FileViewURL(bucket, fileID string) string {
	return fmt.Sprintf("%s/storage/buckets/%s/files/%s/view?project=%s",
		c.cfg.Endpoint, bucket, fileID, c.cfg.Project)
}
