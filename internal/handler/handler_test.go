package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/makerforge/print-api/internal/appwrite"
	"github.com/makerforge/print-api/internal/domain/customer"
	"github.com/makerforge/print-api/internal/domain/order"
	"github.com/makerforge/print-api/internal/domain/pricing"
	"github.com/makerforge/print-api/internal/domain/stl"
)

type mockCustomerRepo struct {
	byID    map[string]*customer.Customer
	created int
}

func newMockCustomerRepo() *mockCustomerRepo {
	return &mockCustomerRepo{byID: make(map[string]*customer.Customer)}
}

func (m *mockCustomerRepo) FindByEmail(_ context.Context, email string) (*customer.Customer, error) {
	for _, c := range m.byID {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, customer.ErrNotFound
}

func (m *mockCustomerRepo) Create(_ context.Context, c *customer.Customer) error {
	m.created++
	c.ID = fmt.Sprintf("cust_%d", m.created)
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *mockCustomerRepo) Get(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCustomerRepo) Emails(context.Context, int, int) ([]string, error) {
	return nil, nil
}

type mockSTLRepo struct {
	byID    map[string]*stl.Record
	created int
}

func newMockSTLRepo() *mockSTLRepo {
	return &mockSTLRepo{byID: make(map[string]*stl.Record)}
}

func (m *mockSTLRepo) Create(_ context.Context, rec *stl.Record) error {
	m.created++
	rec.ID = fmt.Sprintf("stl_%d", m.created)
	cp := *rec
	m.byID[rec.ID] = &cp
	return nil
}

func (m *mockSTLRepo) Get(_ context.Context, id string) (*stl.Record, error) {
	rec, ok := m.byID[id]
	if !ok {
		return nil, stl.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockSTLRepo) FindByFileID(_ context.Context, fileID string) ([]stl.Record, error) {
	var out []stl.Record
	for _, rec := range m.byID {
		if rec.FileID == fileID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *mockSTLRepo) UpdateOptions(_ context.Context, id string, opts stl.PrintOptions, priceCents int64) error {
	rec, ok := m.byID[id]
	if !ok {
		return stl.ErrNotFound
	}
	rec.Options = opts
	rec.PriceCents = priceCents
	return nil
}

func (m *mockSTLRepo) LinkOrder(_ context.Context, id, groupID string) error {
	rec, ok := m.byID[id]
	if !ok {
		return stl.ErrNotFound
	}
	rec.OrderGroupID = groupID
	return nil
}

func (m *mockSTLRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return stl.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type mockOrderRepo struct {
	lines   []order.Line
	created int
}

func (m *mockOrderRepo) Create(_ context.Context, line *order.Line) error {
	m.created++
	line.ID = fmt.Sprintf("line_%d", m.created)
	m.lines = append(m.lines, *line)
	return nil
}

func (m *mockOrderRepo) ListByGroup(_ context.Context, groupID string) ([]order.Line, error) {
	var out []order.Line
	for _, l := range m.lines {
		if l.GroupID == groupID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListByCustomer(_ context.Context, customerID string) ([]order.Line, error) {
	var out []order.Line
	for _, l := range m.lines {
		if l.CustomerID == customerID {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockFileStore struct {
	uploaded  int
	removed   []string
	uploadErr error
}

func (m *mockFileStore) Upload(_ context.Context, filename string, content io.Reader) (string, string, error) {
	if m.uploadErr != nil {
		return "", "", m.uploadErr
	}
	if _, err := io.Copy(io.Discard, content); err != nil {
		return "", "", err
	}
	m.uploaded++
	id := fmt.Sprintf("file_%d", m.uploaded)
	return id, "https://storage.example.io/v1/storage/buckets/stl_files/files/" + id + "/view?project=proj_1", nil
}

func (m *mockFileStore) Remove(_ context.Context, fileID string) error {
	m.removed = append(m.removed, fileID)
	return nil
}

type mockAccounts struct {
	createErr   error
	sessionErr  error
	sessions    map[string]*appwrite.User
	revoked     []string
	lastCreated *appwrite.User
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{sessions: make(map[string]*appwrite.User)}
}

func (m *mockAccounts) CreateAccount(_ context.Context, _, email, _, name string) (*appwrite.User, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.lastCreated = &appwrite.User{ID: "user_1", Email: email, Name: name}
	return m.lastCreated, nil
}

func (m *mockAccounts) CreateEmailSession(_ context.Context, email, _ string) (*appwrite.Session, error) {
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	secret := "sess_" + email
	u := m.lastCreated
	if u == nil {
		u = &appwrite.User{ID: "user_1", Email: email, Name: "Known User"}
	}
	m.sessions[secret] = u
	return &appwrite.Session{ID: "session_1", UserID: u.ID, Secret: secret}, nil
}

func (m *mockAccounts) GetAccount(_ context.Context, session string) (*appwrite.User, error) {
	u, ok := m.sessions[session]
	if !ok {
		return nil, errors.Wrap(appwrite.ErrNotFound, "get account")
	}
	return u, nil
}

func (m *mockAccounts) DeleteSession(_ context.Context, session, sessionID string) error {
	m.revoked = append(m.revoked, sessionID)
	delete(m.sessions, session)
	return nil
}

type fixture struct {
	handler   *Handler
	mux       *http.ServeMux
	customers *mockCustomerRepo
	stls      *mockSTLRepo
	orders    *mockOrderRepo
	files     *mockFileStore
	accounts  *mockAccounts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	customers := newMockCustomerRepo()
	stls := newMockSTLRepo()
	orders := &mockOrderRepo{}
	files := &mockFileStore{}
	accounts := newMockAccounts()

	engine := pricing.NewEngine(pricing.DefaultConfig(), zap.NewNop())
	resolver := customer.NewResolver(customers, zap.NewNop())
	svc := order.NewService(resolver, customers, stls, orders, engine)

	h := NewHandler(
		Config{Project: "proj_1", MaxUploadFiles: 10, MaxFileSize: 50 << 20},
		svc, resolver, stls, engine, files, accounts,
	)

	return &fixture{
		handler:   h,
		mux:       h.Routes(),
		customers: customers,
		stls:      stls,
		orders:    orders,
		files:     files,
		accounts:  accounts,
	}
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func (f *fixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.Copy(part, strings.NewReader(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
