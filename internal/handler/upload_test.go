package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerforge/print-api/internal/domain/order"
	"github.com/makerforge/print-api/internal/domain/stl"
)

// oneMiB is a payload whose size cost is exactly 0.10.
var oneMiB = strings.Repeat("s", 1<<20)

func TestUploadSTL_DefaultOptions(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/upload/stl", nil, map[string]string{
		"benchy.stl": oneMiB,
	})
	rec, env := f.do(t, req)

	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	require.True(t, env.Success)

	var data uploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Files, 1)
	assert.Equal(t, "file_1", data.Files[0].FileID)
	assert.Equal(t, "stl_1", data.Files[0].MetadataID)
	assert.Equal(t, "benchy.stl", data.Files[0].Name)
	assert.Contains(t, data.Files[0].URL, "/files/file_1/view")
	assert.InDelta(t, 15.10, data.Files[0].Price, 1e-9)
	assert.Equal(t, "PLA", data.Files[0].Options.Material)
	assert.InDelta(t, 15.10, data.Total, 1e-9)
	assert.Empty(t, data.Skipped)
}

func TestUploadSTL_CustomOptions(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/upload/stl", map[string]string{
		"quality":  "Ultra",
		"shipping": "Express",
	}, map[string]string{
		"benchy.stl": oneMiB,
	})
	rec, env := f.do(t, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var data uploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Files, 1)
	assert.InDelta(t, 35.10, data.Files[0].Price, 1e-9)
}

func TestUploadSTL_SkipsBadFiles(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/upload/stl", nil, map[string]string{
		"benchy.stl": oneMiB,
		"notes.txt":  "not a model",
		"empty.stl":  "",
	})
	rec, env := f.do(t, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var data uploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Files, 1)
	assert.Len(t, data.Skipped, 2)

	skipped := make(map[string]string, len(data.Skipped))
	for _, s := range data.Skipped {
		skipped[s.Name] = s.Reason
	}
	assert.Contains(t, skipped["notes.txt"], ".stl")
	assert.Contains(t, skipped["empty.stl"], "empty")
}

func TestUploadSTL_NoFiles(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/upload/stl", map[string]string{"material": "PLA"}, nil)
	rec, env := f.do(t, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestUploadSTL_TooManyFiles(t *testing.T) {
	f := newFixture(t)

	files := make(map[string]string, 11)
	for r := 'a'; r < 'a'+11; r++ {
		files[string(r)+".stl"] = "solid"
	}
	req := multipartRequest(t, "/upload/stl", nil, files)
	rec, env := f.do(t, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "10")
}

func TestUploadSTL_InvalidMaterial(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/upload/stl", map[string]string{
		"material": "titanium",
	}, map[string]string{
		"benchy.stl": "solid benchy",
	})
	rec, env := f.do(t, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var fields []order.FieldError
	require.NoError(t, json.Unmarshal(env.Details, &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "material", fields[0].Field)
}

func TestUploadSTL_AllFail(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/upload/stl", nil, map[string]string{
		"notes.txt": "not a model",
	})
	rec, env := f.do(t, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, env.Success)
}

func uploadOne(t *testing.T, f *fixture) stlResponse {
	t.Helper()
	req := multipartRequest(t, "/upload/stl", nil, map[string]string{"benchy.stl": oneMiB})
	rec, env := f.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var data uploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Files, 1)
	return data.Files[0]
}

func TestUpdatePrintOptions(t *testing.T) {
	f := newFixture(t)
	uploaded := uploadOne(t, f)

	body := map[string]any{"quality": "Ultra", "shipping": "Express"}
	rec, env := f.do(t, jsonRequest(t, http.MethodPut,
		"/upload/stl/"+uploaded.MetadataID+"/options", body))

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var data stlResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Ultra", data.Options.Quality)
	assert.Equal(t, "PLA", data.Options.Material, "unsubmitted options keep their stored value")
	assert.InDelta(t, 35.10, data.Price, 1e-9)

	stored, err := f.stls.Get(t.Context(), uploaded.MetadataID)
	require.NoError(t, err)
	assert.Equal(t, int64(3510), stored.PriceCents)
}

func TestUpdatePrintOptions_UnknownRecord(t *testing.T) {
	f := newFixture(t)

	body := map[string]any{"quality": "Ultra"}
	rec, _ := f.do(t, jsonRequest(t, http.MethodPut, "/upload/stl/stl_404/options", body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePrintOptions_InvalidEnum(t *testing.T) {
	f := newFixture(t)
	uploaded := uploadOne(t, f)

	body := map[string]any{"material": "titanium"}
	rec, env := f.do(t, jsonRequest(t, http.MethodPut,
		"/upload/stl/"+uploaded.MetadataID+"/options", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var fields []order.FieldError
	require.NoError(t, json.Unmarshal(env.Details, &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "material", fields[0].Field)
}

func TestGetSTLInfo(t *testing.T) {
	f := newFixture(t)
	uploaded := uploadOne(t, f)

	rec, env := f.do(t, httptest.NewRequest(http.MethodGet,
		"/upload/stl/"+uploaded.FileID+"/info", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var data stlResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, uploaded.MetadataID, data.MetadataID)
	assert.Equal(t, "benchy.stl", data.Name)
}

func TestGetSTLInfo_NotFound(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/upload/stl/file_404/info", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSTL(t *testing.T) {
	f := newFixture(t)
	uploaded := uploadOne(t, f)

	rec, env := f.do(t, httptest.NewRequest(http.MethodDelete,
		"/upload/stl/"+uploaded.FileID, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	_, err := f.stls.Get(t.Context(), uploaded.MetadataID)
	assert.ErrorIs(t, err, stl.ErrNotFound)
	assert.Equal(t, []string{uploaded.FileID}, f.files.removed)
}
