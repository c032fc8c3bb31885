package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/makerforge/print-api/internal/domain/order"
	"github.com/makerforge/print-api/internal/domain/pricing"
	"github.com/makerforge/print-api/internal/domain/stl"
)

// multipartMemory is how much of a parsed upload is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

type stlResponse struct {
	MetadataID string               `json:"metadata_id"`
	FileID     string               `json:"file_id"`
	Name       string               `json:"name"`
	URL        string               `json:"url"`
	Size       int64                `json:"size"`
	Price      float64              `json:"price"`
	Options    printOptionsResponse `json:"print_options"`
	OrderID    string               `json:"order_id,omitempty"`
}

type printOptionsResponse struct {
	Material string  `json:"material"`
	Colour   string  `json:"color"`
	Scale    float64 `json:"scale"`
	Quantity int     `json:"quantity"`
	Infill   int     `json:"infill"`
	Quality  string  `json:"quality"`
	Shipping string  `json:"shipping"`
}

func stlToResponse(rec *stl.Record) stlResponse {
	return stlResponse{
		MetadataID: rec.ID,
		FileID:     rec.FileID,
		Name:       rec.FileName,
		URL:        rec.FileURL,
		Size:       rec.FileSize,
		Price:      float64(rec.PriceCents) / 100,
		Options: printOptionsResponse{
			Material: rec.Options.Material,
			Colour:   rec.Options.Colour,
			Scale:    rec.Options.ScalePercent,
			Quantity: rec.Options.Quantity,
			Infill:   rec.Options.InfillPercent,
			Quality:  rec.Options.Quality,
			Shipping: rec.Options.Shipping,
		},
		OrderID: rec.OrderGroupID,
	}
}

// optionsFromForm reads one shared set of print options from the multipart
// form values. Absent values stay zero and are defaulted downstream.
func optionsFromForm(r *http.Request) stl.PrintOptions {
	opts := stl.PrintOptions{
		Material: r.FormValue("material"),
		Colour:   r.FormValue("color"),
		Quality:  r.FormValue("quality"),
		Shipping: r.FormValue("shipping"),
	}
	opts.ScalePercent, _ = strconv.ParseFloat(r.FormValue("scale"), 64)
	opts.Quantity, _ = strconv.Atoi(r.FormValue("quantity"))
	opts.InfillPercent, _ = strconv.Atoi(r.FormValue("infill"))
	return opts
}

func validateOptions(opts stl.PrintOptions) *order.ValidationError {
	var fields []order.FieldError
	add := func(field, message string) {
		fields = append(fields, order.FieldError{Field: field, Message: message})
	}

	if opts.Material != "" && !stl.ValidMaterial(opts.Material) {
		add("material", "must be one of "+strings.Join(stl.Materials, ", "))
	}
	if opts.Colour != "" && !stl.ValidColour(opts.Colour) {
		add("color", "must be one of "+strings.Join(stl.Colours, ", "))
	}
	if opts.Quality != "" && !stl.ValidQuality(opts.Quality) {
		add("quality", "must be one of "+strings.Join(stl.Qualities, ", "))
	}
	if opts.Shipping != "" && !stl.ValidShipping(opts.Shipping) {
		add("shipping", "must be one of "+strings.Join(stl.Shippings, ", "))
	}
	if opts.ScalePercent < 0 {
		add("scale", "must not be negative")
	}
	if opts.Quantity < 0 {
		add("quantity", "must not be negative")
	}
	if opts.InfillPercent < 0 {
		add("infill", "must not be negative")
	}

	if len(fields) == 0 {
		return nil
	}
	return &order.ValidationError{Fields: fields}
}

func (h *Handler) quote(sizeBytes int64, opts stl.PrintOptions) (int64, error) {
	return h.engine.Quote(pricing.Input{
		FileSizeBytes: sizeBytes,
		Material:      opts.Material,
		ScalePercent:  opts.ScalePercent,
		Quantity:      opts.Quantity,
		InfillPercent: opts.InfillPercent,
		Quality:       opts.Quality,
		Shipping:      opts.Shipping,
	})
}

type uploadResponse struct {
	Files   []stlResponse `json:"files"`
	FileIDs []string      `json:"file_ids"`
	Skipped []skippedFile `json:"skipped,omitempty"`
	Total   float64       `json:"total"`
}

type skippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// UploadSTL handles POST /upload/stl: a multipart batch of model files
// sharing one set of print options. Files that are not .stl, exceed the size
// cap, or fail upstream are skipped individually; the request fails only
// when nothing could be stored.
func (h *Handler) UploadSTL(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.cfg.MaxUploadFiles)*h.cfg.MaxFileSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid multipart request", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.respondError(w, http.StatusBadRequest, "no files uploaded", nil)
		return
	}
	if len(files) > h.cfg.MaxUploadFiles {
		h.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("at most %d files per upload", h.cfg.MaxUploadFiles), nil)
		return
	}

	opts := optionsFromForm(r)
	if verr := validateOptions(opts); verr != nil {
		h.fail(w, r, verr)
		return
	}
	opts = opts.WithDefaults()

	lg := zctx.From(r.Context())
	resp := uploadResponse{Files: []stlResponse{}, FileIDs: []string{}}

	for _, header := range files {
		rec, reason := h.storeFile(r, header, opts)
		if rec == nil {
			lg.Warn("skipping file",
				zap.String("file_name", header.Filename),
				zap.String("reason", reason))
			resp.Skipped = append(resp.Skipped, skippedFile{Name: header.Filename, Reason: reason})
			continue
		}
		resp.Files = append(resp.Files, stlToResponse(rec))
		resp.FileIDs = append(resp.FileIDs, rec.FileID)
		resp.Total += float64(rec.PriceCents) / 100
	}

	if len(resp.Files) == 0 {
		h.respondError(w, http.StatusInternalServerError, "failed to upload any files", resp.Skipped)
		return
	}

	h.respond(w, http.StatusCreated,
		fmt.Sprintf("%d file(s) uploaded successfully", len(resp.Files)), resp)
}

// storeFile prices, uploads, and records one file. A nil record means the
// file was skipped for the returned reason.
func (h *Handler) storeFile(r *http.Request, header *multipart.FileHeader, opts stl.PrintOptions) (*stl.Record, string) {
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".stl") {
		return nil, "not an .stl file"
	}
	if header.Size > h.cfg.MaxFileSize {
		return nil, fmt.Sprintf("exceeds the %dMB size limit", h.cfg.MaxFileSize>>20)
	}
	if header.Size == 0 {
		return nil, "file is empty"
	}

	priceCents, err := h.quote(header.Size, opts)
	if err != nil {
		return nil, err.Error()
	}

	f, err := header.Open()
	if err != nil {
		return nil, "could not read file"
	}
	defer func() { _ = f.Close() }()

	fileID, url, err := h.files.Upload(r.Context(), header.Filename, f)
	if err != nil {
		return nil, "storage upload failed: " + err.Error()
	}

	rec := &stl.Record{
		FileID:     fileID,
		FileName:   header.Filename,
		FileURL:    url,
		FileSize:   header.Size,
		Options:    opts,
		PriceCents: priceCents,
	}
	if err := h.stls.Create(r.Context(), rec); err != nil {
		// The stored file without metadata is unusable; clean it up.
		if rmErr := h.files.Remove(r.Context(), fileID); rmErr != nil {
			zctx.From(r.Context()).Warn("orphaned stored file",
				zap.String("file_id", fileID), zap.Error(rmErr))
		}
		return nil, "saving metadata failed: " + err.Error()
	}
	return rec, ""
}

type updateOptionsDTO struct {
	Material *string  `json:"material" validate:"omitnil,material"`
	Colour   *string  `json:"color" validate:"omitnil,colour"`
	Scale    *float64 `json:"scale" validate:"omitnil,gte=0"`
	Quantity *int     `json:"quantity" validate:"omitnil,gte=0"`
	Infill   *int     `json:"infill" validate:"omitnil,gte=0"`
	Quality  *string  `json:"quality" validate:"omitnil,quality_tier"`
	Shipping *string  `json:"shipping" validate:"omitnil,shipping_tier"`
}

// merge overlays the submitted values onto the stored options.
func (dto *updateOptionsDTO) merge(opts stl.PrintOptions) stl.PrintOptions {
	if dto.Material != nil {
		opts.Material = *dto.Material
	}
	if dto.Colour != nil {
		opts.Colour = *dto.Colour
	}
	if dto.Scale != nil {
		opts.ScalePercent = *dto.Scale
	}
	if dto.Quantity != nil {
		opts.Quantity = *dto.Quantity
	}
	if dto.Infill != nil {
		opts.InfillPercent = *dto.Infill
	}
	if dto.Quality != nil {
		opts.Quality = *dto.Quality
	}
	if dto.Shipping != nil {
		opts.Shipping = *dto.Shipping
	}
	return opts
}

// UpdatePrintOptions handles PUT /upload/stl/{metadataID}/options: merge the
// submitted options over the stored ones and requote.
func (h *Handler) UpdatePrintOptions(w http.ResponseWriter, r *http.Request) {
	metadataID := r.PathValue("metadataID")

	var dto updateOptionsDTO
	if err := decodeBody(r, &dto); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if verr := checkValid(&dto); verr != nil {
		h.fail(w, r, verr)
		return
	}

	rec, err := h.stls.Get(r.Context(), metadataID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	opts := dto.merge(rec.Options).WithDefaults()
	priceCents, err := h.quote(rec.FileSize, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.stls.UpdateOptions(r.Context(), metadataID, opts, priceCents); err != nil {
		h.fail(w, r, err)
		return
	}

	rec.Options = opts
	rec.PriceCents = priceCents
	h.respond(w, http.StatusOK, "print options updated", stlToResponse(rec))
}

// GetSTLInfo handles GET /upload/stl/{stlID}/info, keyed by the storage
// file id.
func (h *Handler) GetSTLInfo(w http.ResponseWriter, r *http.Request) {
	stlID := r.PathValue("stlID")

	records, err := h.stls.FindByFileID(r.Context(), stlID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(records) == 0 {
		h.fail(w, r, stl.ErrNotFound)
		return
	}

	h.respond(w, http.StatusOK, "stl retrieved", stlToResponse(&records[0]))
}

// DeleteSTL handles DELETE /upload/stl/{stlID}: remove the metadata
// documents first, then the stored file. Metadata deletion failures are
// logged and do not block the file removal.
func (h *Handler) DeleteSTL(w http.ResponseWriter, r *http.Request) {
	stlID := r.PathValue("stlID")
	lg := zctx.From(r.Context())

	records, err := h.stls.FindByFileID(r.Context(), stlID)
	if err != nil {
		lg.Warn("could not list stl metadata", zap.String("stl_id", stlID), zap.Error(err))
	}
	for i := range records {
		if err := h.stls.Delete(r.Context(), records[i].ID); err != nil {
			lg.Warn("could not delete stl metadata",
				zap.String("metadata_id", records[i].ID), zap.Error(err))
		}
	}

	if err := h.files.Remove(r.Context(), stlID); err != nil {
		h.fail(w, r, err)
		return
	}

	h.respond(w, http.StatusOK, "stl deleted", nil)
}
