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
)

func validCheckoutBody() map[string]any {
	return map[string]any{
		"customerData": map[string]any{
			"first_name":       "Ada",
			"last_name":        "Lovelace",
			"email":            "ada@example.com",
			"phone":            "+44 (0)20 1234 5678",
			"delivery_address": "12 Azalea Lane",
		},
		"stlFiles": []map[string]any{{
			"file_id":   "file_abc",
			"file_name": "benchy.stl",
			"file_size": 1 << 20,
			"material":  "PLA",
			"color":     "Black",
			"scale":     100,
			"quantity":  1,
			"infill":    20,
			"quality":   "Standard",
			"shipping":  "Standard",
			"price":     15.10,
		}},
		"orderDetails": map[string]any{
			"price":         15.10,
			"delivery_type": "standard",
		},
	}
}

func TestCreateOrder_Success(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, jsonRequest(t, http.MethodPost, "/orders", validCheckoutBody()))

	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	require.True(t, env.Success)

	var data receiptResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, strings.HasPrefix(data.OrderID, "ORD_"), "order id %q", data.OrderID)
	assert.Equal(t, "cust_1", data.CustomerID)
	assert.Equal(t, "Ada Lovelace", data.CustomerName)
	assert.InDelta(t, 15.10, data.Total, 1e-9)
	assert.Equal(t, order.StatusOrderMade, data.Status)
	assert.Equal(t, 1, data.OrderCount)
	assert.Equal(t, []string{"stl_1"}, data.STLFiles)

	linked, err := f.stls.Get(t.Context(), "stl_1")
	require.NoError(t, err)
	assert.Equal(t, data.OrderID, linked.OrderGroupID)
}

func TestCreateOrder_ResidualLine(t *testing.T) {
	f := newFixture(t)

	body := validCheckoutBody()
	body["orderDetails"].(map[string]any)["price"] = 25.10

	rec, env := f.do(t, jsonRequest(t, http.MethodPost, "/orders", body))

	require.Equal(t, http.StatusCreated, rec.Code)

	var data receiptResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 2, data.OrderCount)
	assert.InDelta(t, 25.10, data.Total, 1e-9)

	require.Len(t, f.orders.lines, 2)
	assert.Equal(t, order.SentinelSTLID, f.orders.lines[1].STLID)
	assert.Equal(t, "10", f.orders.lines[1].Price.String())
}

func TestCreateOrder_UnknownMaterialNamesIndex(t *testing.T) {
	f := newFixture(t)

	body := validCheckoutBody()
	second := map[string]any{
		"file_id": "file_def", "file_size": 2 << 20,
		"material": "titanium", "color": "Black",
		"scale": 100, "price": 20.0,
	}
	body["stlFiles"] = append(body["stlFiles"].([]map[string]any), second)

	rec, env := f.do(t, jsonRequest(t, http.MethodPost, "/orders", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, env.Success)

	var fields []order.FieldError
	require.NoError(t, json.Unmarshal(env.Details, &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "stlFiles[1].material", fields[0].Field)
	assert.Contains(t, fields[0].Message, "pla")

	assert.Zero(t, f.customers.created, "validation must not touch the store")
	assert.Empty(t, f.orders.lines)
}

func TestCreateOrder_CollectsAllViolations(t *testing.T) {
	f := newFixture(t)

	body := validCheckoutBody()
	body["customerData"] = map[string]any{
		"first_name": "Ada",
		"email":      "ada@example.com",
		"phone":      "no digits here",
		"delivery_address": strings.Repeat("x", 300),
	}

	rec, env := f.do(t, jsonRequest(t, http.MethodPost, "/orders", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var fields []order.FieldError
	require.NoError(t, json.Unmarshal(env.Details, &fields))

	got := make([]string, len(fields))
	for i, fe := range fields {
		got[i] = fe.Field
	}
	assert.ElementsMatch(t, []string{
		"customerData.last_name",
		"customerData.phone",
		"customerData.delivery_address",
	}, got)
}

func TestCreateOrder_MissingScaleRejected(t *testing.T) {
	f := newFixture(t)

	body := validCheckoutBody()
	delete(body["stlFiles"].([]map[string]any)[0], "scale")

	rec, env := f.do(t, jsonRequest(t, http.MethodPost, "/orders", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var fields []order.FieldError
	require.NoError(t, json.Unmarshal(env.Details, &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "stlFiles[0].scale", fields[0].Field)
	assert.Equal(t, "required", fields[0].Message)
}

func TestCreateOrder_InvalidBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader("{not json"))
	rec, env := f.do(t, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestGetOrderGroup(t *testing.T) {
	f := newFixture(t)

	_, env := f.do(t, jsonRequest(t, http.MethodPost, "/orders", validCheckoutBody()))
	var receipt receiptResponse
	require.NoError(t, json.Unmarshal(env.Data, &receipt))

	rec, env := f.do(t, httptest.NewRequest(http.MethodGet, "/orders/"+receipt.OrderID, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var data orderGroupResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, receipt.OrderID, data.OrderID)
	require.Len(t, data.Lines, 1)
	assert.Equal(t, "stl_1", data.Lines[0].STLID)
	assert.Equal(t, "Ada Lovelace", data.Lines[0].CustomerName)
	require.NotNil(t, data.Lines[0].STL)
	assert.Equal(t, "benchy.stl", data.Lines[0].STL.Name)
	assert.InDelta(t, 15.10, data.Total, 1e-9)
}

func TestGetOrderGroup_NotFound(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, httptest.NewRequest(http.MethodGet, "/orders/ORD_0_MISSING", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestGetCustomerOrders(t *testing.T) {
	f := newFixture(t)

	f.do(t, jsonRequest(t, http.MethodPost, "/orders", validCheckoutBody()))

	rec, env := f.do(t, httptest.NewRequest(http.MethodGet, "/orders/customer/cust_1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var data customerOrdersResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "cust_1", data.CustomerID)
	require.Len(t, data.Orders, 1)
	assert.Equal(t, "ada@example.com", data.Orders[0].CustomerEmail)
}

func TestGetCustomerOrders_UnknownCustomer(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/orders/customer/cust_404", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
