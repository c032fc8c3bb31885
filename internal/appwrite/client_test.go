package appwrite

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{Endpoint: srv.URL, Project: "proj_1", Key: "key_1"}, srv.Client())
}

func TestClient_AuthHeaders(t *testing.T) {
	var gotProject, gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotProject = r.Header.Get("X-Appwrite-Project")
		gotKey = r.Header.Get("X-Appwrite-Key")
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, "proj_1", gotProject)
	assert.Equal(t, "key_1", gotKey)
}

func TestCreateDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/databases/main/collections/customers/documents", r.URL.Path)

		var body struct {
			DocumentID string         `json:"documentId"`
			Data       map[string]any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, IDUnique, body.DocumentID)
		assert.Equal(t, "ada@example.com", body.Data["email"])

		_, _ = w.Write([]byte(`{
			"$id": "doc_1",
			"$createdAt": "2026-03-01T12:00:00.000+00:00",
			"$permissions": [],
			"email": "ada@example.com",
			"phone": "0712345678"
		}`))
	})

	doc, err := c.CreateDocument(context.Background(), "main", "customers", IDUnique, map[string]any{
		"email": "ada@example.com",
		"phone": "0712345678",
	})
	require.NoError(t, err)
	assert.Equal(t, "doc_1", doc.ID)
	assert.Equal(t, "ada@example.com", doc.String("email"))
}

func TestGetDocument_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Document with the requested ID could not be found.","code":404,"type":"document_not_found"}`))
	})

	_, err := c.GetDocument(context.Background(), "main", "customers", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "document_not_found", apiErr.Type)
}

func TestCreateAccount_Conflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"A user with the same email already exists","code":409,"type":"user_already_exists"}`))
	})

	_, err := c.CreateAccount(context.Background(), IDUnique, "dup@example.com", "secret123", "Dup User")
	require.ErrorIs(t, err, ErrConflict)
}

func TestListDocuments_QueriesAndDecoding(t *testing.T) {
	var gotQueries []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQueries = r.URL.Query()["queries[]"]
		_, _ = w.Write([]byte(`{
			"total": 2,
			"documents": [
				{"$id": "o1", "order_id": "ORD_1_AAAAAA", "price": "15.10", "quantity": 2},
				{"$id": "o2", "order_id": "ORD_1_AAAAAA", "price": "9.80", "scale": 87.5}
			]
		}`))
	})

	list, err := c.ListDocuments(context.Background(), "main", "orders",
		QueryEqual("order_id", "ORD_1_AAAAAA"),
		QueryLimit(100),
	)
	require.NoError(t, err)

	require.Len(t, gotQueries, 2)
	var q struct {
		Method    string `json:"method"`
		Attribute string `json:"attribute"`
		Values    []any  `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(gotQueries[0]), &q))
	assert.Equal(t, "equal", q.Method)
	assert.Equal(t, "order_id", q.Attribute)
	assert.Equal(t, []any{"ORD_1_AAAAAA"}, q.Values)

	assert.Equal(t, int64(2), list.Total)
	require.Len(t, list.Documents, 2)
	assert.Equal(t, "15.10", list.Documents[0].String("price"))
	assert.Equal(t, int64(2), list.Documents[0].Int64("quantity"))
	assert.Equal(t, 87.5, list.Documents[1].Float64("scale"))
}

func TestUpdateDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/databases/main/collections/stls/documents/stl_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"$id": "stl_1", "stl_order": "ORD_1_AAAAAA"}`))
	})

	doc, err := c.UpdateDocument(context.Background(), "main", "stls", "stl_1", map[string]any{
		"stl_order": "ORD_1_AAAAAA",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD_1_AAAAAA", doc.String("stl_order"))
}

func TestCreateFile_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/buckets/stl_files/files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, IDUnique, r.FormValue("fileId"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "benchy.stl", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "solid benchy", string(content))

		_, _ = w.Write([]byte(`{"$id": "file_1", "name": "benchy.stl", "sizeOriginal": 12}`))
	})

	f, err := c.CreateFile(context.Background(), "stl_files", IDUnique, "benchy.stl",
		strings.NewReader("solid benchy"))
	require.NoError(t, err)
	assert.Equal(t, "file_1", f.ID)
	assert.Equal(t, int64(12), f.SizeOriginal)
}

func TestFileViewURL(t *testing.T) {
	c := New(Config{Endpoint: "https://cloud.example.io/v1/", Project: "proj_1"}, nil)
	u := c.FileViewURL("stl_files", "file_1")
	assert.Equal(t, "https://cloud.example.io/v1/storage/buckets/stl_files/files/file_1/view?project=proj_1", u)

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "/v1/storage/buckets/stl_files/files/file_1/view", parsed.Path)
}

func TestSessionHeader(t *testing.T) {
	var gotSession string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get("X-Appwrite-Session")
		_, _ = w.Write([]byte(`{"$id": "user_1", "email": "ada@example.com", "name": "Ada"}`))
	})

	u, err := c.GetAccount(context.Background(), "sess_secret")
	require.NoError(t, err)
	assert.Equal(t, "sess_secret", gotSession)
	assert.Equal(t, "user_1", u.ID)
}
