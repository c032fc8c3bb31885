package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/makerforge/print-api/internal/domain/customer"
	"github.com/makerforge/print-api/internal/domain/order"
	"github.com/makerforge/print-api/internal/domain/stl"
)

func customerFromDTO(c checkoutCustomerDTO) customer.Customer {
	return customer.Customer{
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		Email:           c.Email,
		Phone:           c.Phone,
		DeliveryAddress: c.DeliveryAddress,
	}
}

type checkoutCustomerDTO struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required"`
	Phone           string `json:"phone" validate:"required,phone_digits"`
	DeliveryAddress string `json:"delivery_address" validate:"required,max=255"`
}

type checkoutFileDTO struct {
	FileID   string `json:"file_id" validate:"required"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size" validate:"gte=0"`

	Material *string  `json:"material" validate:"required,material"`
	Colour   *string  `json:"color" validate:"required,colour"`
	Scale    *float64 `json:"scale" validate:"required,gte=0"`
	Quantity *int     `json:"quantity" validate:"omitnil,gte=0"`
	Infill   *int     `json:"infill" validate:"omitnil,gte=0"`
	Quality  *string  `json:"quality" validate:"omitnil,quality_tier"`
	Shipping *string  `json:"shipping" validate:"omitnil,shipping_tier"`

	// Price is the client's declared cost for this file. The server quotes
	// its own price per line; only the order-wide total participates in the
	// residual calculation.
	Price *float64 `json:"price" validate:"required,gte=0"`
}

type checkoutDetailsDTO struct {
	Price           *float64 `json:"price" validate:"required,gte=0"`
	DeliveryType    string   `json:"delivery_type" validate:"required"`
	DropOffLocation string   `json:"drop_off_location"`
}

type checkoutDTO struct {
	Customer checkoutCustomerDTO `json:"customerData"`
	Files    []checkoutFileDTO   `json:"stlFiles" validate:"min=1,dive"`
	Details  checkoutDetailsDTO  `json:"orderDetails"`
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func (dto *checkoutDTO) toDomain() order.CheckoutRequest {
	files := make([]order.FileInput, len(dto.Files))
	for i, f := range dto.Files {
		files[i] = order.FileInput{
			FileRef:   f.FileID,
			FileName:  f.FileName,
			SizeBytes: f.FileSize,
			Options: stl.PrintOptions{
				Material:      deref(f.Material),
				Colour:        deref(f.Colour),
				ScalePercent:  deref(f.Scale),
				Quantity:      deref(f.Quantity),
				InfillPercent: deref(f.Infill),
				Quality:       deref(f.Quality),
				Shipping:      deref(f.Shipping),
			},
		}
	}
	return order.CheckoutRequest{
		Customer: customerFromDTO(dto.Customer),
		Files:    files,
		Details: order.Details{
			Price:           decimal.NewFromFloat(deref(dto.Details.Price)),
			DeliveryType:    dto.Details.DeliveryType,
			DropOffLocation: dto.Details.DropOffLocation,
		},
	}
}

type receiptResponse struct {
	ID            string   `json:"id"`
	OrderID       string   `json:"order_id"`
	CustomerID    string   `json:"customer_id"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	Total         float64  `json:"total"`
	Status        string   `json:"status"`
	DeliveryType  string   `json:"delivery_type"`
	CreatedAt     string   `json:"created_at"`
	STLFiles      []string `json:"stl_files"`
	OrderCount    int      `json:"order_count"`
}

// CreateOrder handles POST /orders: one checkout producing an order group.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var dto checkoutDTO
	if err := decodeBody(r, &dto); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if verr := checkValid(&dto); verr != nil {
		h.fail(w, r, verr)
		return
	}

	receipt, err := h.orders.Checkout(r.Context(), dto.toDomain())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	linked := receipt.LinkedSTLs
	if linked == nil {
		linked = []string{}
	}
	h.respond(w, http.StatusCreated,
		"order created successfully",
		receiptResponse{
			ID:            receipt.FirstLineID,
			OrderID:       receipt.GroupID,
			CustomerID:    receipt.CustomerID,
			CustomerName:  receipt.CustomerName,
			CustomerEmail: receipt.CustomerEmail,
			Total:         receipt.Total.InexactFloat64(),
			Status:        receipt.Status,
			DeliveryType:  receipt.DeliveryType,
			CreatedAt:     receipt.PlacedAt.UTC().Format(time.RFC3339),
			STLFiles:      linked,
			OrderCount:    receipt.LineCount,
		})
}

type lineResponse struct {
	ID              string       `json:"id"`
	OrderID         string       `json:"order_id"`
	CustomerID      string       `json:"customer_id"`
	CustomerName    string       `json:"customer_name"`
	CustomerEmail   string       `json:"customer_email"`
	STLID           string       `json:"stl_id"`
	Status          string       `json:"status"`
	Price           float64      `json:"price"`
	DeliveryType    string       `json:"delivery_type"`
	DropOffLocation string       `json:"drop_off_location,omitempty"`
	CreatedAt       string       `json:"created_at"`
	STL             *stlResponse `json:"stl,omitempty"`
}

func lineToResponse(d order.LineDetails) lineResponse {
	resp := lineResponse{
		ID:              d.ID,
		OrderID:         d.GroupID,
		CustomerID:      d.CustomerID,
		CustomerName:    d.CustomerName,
		CustomerEmail:   d.CustomerEmail,
		STLID:           d.STLID,
		Status:          d.Status,
		Price:           d.Price.InexactFloat64(),
		DeliveryType:    d.DeliveryType,
		DropOffLocation: d.DropOffLocation,
		CreatedAt:       d.PlacedAt.UTC().Format(time.RFC3339),
	}
	if d.STL != nil {
		s := stlToResponse(d.STL)
		resp.STL = &s
	}
	return resp
}

type orderGroupResponse struct {
	OrderID string         `json:"order_id"`
	Total   float64        `json:"total"`
	Lines   []lineResponse `json:"lines"`
}

// GetOrderGroup handles GET /orders/{groupID}: every line of the group with
// denormalized customer and STL detail.
func (h *Handler) GetOrderGroup(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")

	lines, err := h.orders.GetOrderGroup(r.Context(), groupID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := orderGroupResponse{OrderID: groupID, Lines: make([]lineResponse, len(lines))}
	total := decimal.Zero
	for i, d := range lines {
		resp.Lines[i] = lineToResponse(d)
		total = total.Add(d.Price)
	}
	resp.Total = total.InexactFloat64()

	h.respond(w, http.StatusOK, "order retrieved", resp)
}

type customerOrdersResponse struct {
	CustomerID string         `json:"customer_id"`
	Orders     []lineResponse `json:"orders"`
}

// GetCustomerOrders handles GET /orders/customer/{customerID}.
func (h *Handler) GetCustomerOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")

	lines, err := h.orders.GetCustomerOrders(r.Context(), customerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := customerOrdersResponse{
		CustomerID: customerID,
		Orders:     make([]lineResponse, len(lines)),
	}
	for i, d := range lines {
		resp.Orders[i] = lineToResponse(d)
	}

	h.respond(w, http.StatusOK, "orders retrieved", resp)
}
