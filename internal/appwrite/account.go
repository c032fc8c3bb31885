package appwrite

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// User is a platform auth account. Distinct from the customer document the
// storefront keeps alongside it.
type User struct {
	ID    string
	Email string
	Name  string
}

// Session is an issued email+password session. Secret is the value clients
// carry in the session cookie.
type Session struct {
	ID        string
	UserID    string
	Secret    string
	ExpiresAt time.Time
}

func decodeUser(data []byte) (*User, error) {
	u := &User{}
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "$id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			u.ID = s
		case "email":
			s, err := d.Str()
			if err != nil {
				return err
			}
			u.Email = s
		case "name":
			s, err := d.Str()
			if err != nil {
				return err
			}
			u.Name = s
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	return u, nil
}

// CreateAccount registers an auth account. A duplicate email matches
// ErrConflict.
func (c *Client) CreateAccount(ctx context.Context, userID, email, password, name string) (*User, error) {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("userId")
	e.Str(userID)
	e.FieldStart("email")
	e.Str(email)
	e.FieldStart("password")
	e.Str(password)
	e.FieldStart("name")
	e.Str(name)
	e.ObjEnd()

	data, err := c.do(ctx, http.MethodPost, "/account", e.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "create account")
	}
	return decodeUser(data)
}

// CreateEmailSession exchanges credentials for a session.
func (c *Client) CreateEmailSession(ctx context.Context, email, password string) (*Session, error) {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("email")
	e.Str(email)
	e.FieldStart("password")
	e.Str(password)
	e.ObjEnd()

	data, err := c.do(ctx, http.MethodPost, "/account/sessions/email", e.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "create email session")
	}

	s := &Session{}
	d := jx.DecodeBytes(data)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "$id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			s.ID = v
		case "userId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			s.UserID = v
		case "secret":
			v, err := d.Str()
			if err != nil {
				return err
			}
			s.Secret = v
		case "expire":
			v, err := d.Str()
			if err != nil {
				return err
			}
			s.ExpiresAt, _ = time.Parse(time.RFC3339, v)
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	return s, nil
}

// GetAccount returns the account the session belongs to.
func (c *Client) GetAccount(ctx context.Context, session string) (*User, error) {
	data, err := c.send(ctx, request{
		method:  http.MethodGet,
		path:    "/account",
		session: session,
	})
	if err != nil {
		return nil, errors.Wrap(err, "get account")
	}
	return decodeUser(data)
}

// DeleteSession revokes the session identified by sessionID ("current" for
// the one carried in the session parameter).
func (c *Client) DeleteSession(ctx context.Context, session, sessionID string) error {
	_, err := c.send(ctx, request{
		method:  http.MethodDelete,
		path:    "/account/sessions/" + sessionID,
		session: session,
	})
	if err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}
