package handler

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/listing-dashboard/internal/form"
	"github.com/vyrodovalexey/listing-dashboard/internal/model"
	"github.com/vyrodovalexey/listing-dashboard/internal/store"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

// Messages rendered on the form page for request-level failures.
const (
	msgUploadTooLarge = "Uploaded images are too large."
	msgBadForm        = "The form could not be read. Please try again."
	msgBusy           = "This form is already being submitted."
)

// ListingStore is the dashboard's view of the listing collection.
type ListingStore interface {
	Get(id string) (model.Listing, bool)
	View(state store.FilterState) store.View
	Remove(ctx context.Context, id string) error
	Load(ctx context.Context) error
	Loaded() bool
}

// FormSessions tracks open create and edit forms.
type FormSessions interface {
	Open(existing *model.Listing) (string, *form.Controller)
	Get(id string) (*form.Controller, bool)
	Close(id string) error
}

// DashboardHandler serves the HTML dashboard, the listing forms and the JSON
// view of the filtered collection.
type DashboardHandler struct {
	store          ListingStore
	forms          FormSessions
	logger         *zap.Logger
	maxUploadBytes int64
	live           bool
}

// DashboardOption configures a DashboardHandler.
type DashboardOption func(*DashboardHandler)

// WithLiveReload makes rendered pages subscribe to the change feed.
func WithLiveReload(enabled bool) DashboardOption {
	return func(h *DashboardHandler) {
		h.live = enabled
	}
}

// NewDashboardHandler creates a new DashboardHandler instance.
func NewDashboardHandler(
	s ListingStore,
	forms FormSessions,
	logger *zap.Logger,
	maxUploadBytes int64,
	opts ...DashboardOption,
) *DashboardHandler {
	h := &DashboardHandler{
		store:          s,
		forms:          forms,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the dashboard routes with the router.
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Index).Methods(http.MethodGet)
	router.HandleFunc("/listings/new", h.NewListing).Methods(http.MethodGet)
	router.HandleFunc("/listings/{id}/edit", h.EditListing).Methods(http.MethodGet)
	router.HandleFunc("/listings/{id}/delete", h.DeleteListing).Methods(http.MethodPost)
	router.HandleFunc("/forms/{session}", h.SubmitForm).Methods(http.MethodPost)
	router.HandleFunc("/forms/{session}/cancel", h.CancelForm).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/view", h.View).Methods(http.MethodGet)
	router.HandleFunc("/static/app.css", serveAsset("text/css; charset=utf-8", appCSS)).Methods(http.MethodGet)
	router.HandleFunc("/static/app.js", serveAsset("text/javascript; charset=utf-8", appJS)).Methods(http.MethodGet)
}

type dashboardPage struct {
	View store.View
	Live bool
}

// Index handles GET / requests.
func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	// Every view refetches. A failure is logged by the store and the
	// previous collection is rendered.
	_ = h.store.Load(r.Context())

	view := h.store.View(filterStateFromQuery(r))
	h.render(w, http.StatusOK, dashboardTemplate, dashboardPage{
		View: view,
		Live: h.live,
	})
}

// View handles GET /api/v1/view requests. It answers 503 until the listing
// collection has been fetched once.
func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	if !h.store.Loaded() {
		writeError(w, h.logger, http.StatusServiceUnavailable, "listings not loaded yet")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.store.View(filterStateFromQuery(r)))
}

// NewListing handles GET /listings/new requests.
func (h *DashboardHandler) NewListing(w http.ResponseWriter, _ *http.Request) {
	id, c := h.forms.Open(nil)
	h.renderForm(w, http.StatusOK, id, c, "")
}

// EditListing handles GET /listings/{id}/edit requests.
func (h *DashboardHandler) EditListing(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.store.Get(mux.Vars(r)["id"])
	if !ok {
		http.NotFound(w, r)
		return
	}

	id, c := h.forms.Open(&listing)
	h.renderForm(w, http.StatusOK, id, c, "")
}

// DeleteListing handles POST /listings/{id}/delete requests. Failures are
// logged and the user is returned to the dashboard either way.
func (h *DashboardHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.Remove(r.Context(), id); err != nil {
		h.logger.Error("failed to delete listing", zap.String("id", id), zap.Error(err))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SubmitForm handles POST /forms/{session} requests.
func (h *DashboardHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session"]
	c, ok := h.forms.Get(sessionID)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := parseForm(r); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.renderForm(w, http.StatusRequestEntityTooLarge, sessionID, c, msgUploadTooLarge)
			return
		}
		h.logger.Warn("invalid form body", zap.String("session_id", sessionID), zap.Error(err))
		h.renderForm(w, http.StatusBadRequest, sessionID, c, msgBadForm)
		return
	}

	draft, err := draftFromRequest(r, c)
	if err != nil {
		h.logger.Warn("failed to read uploaded images", zap.String("session_id", sessionID), zap.Error(err))
		h.renderForm(w, http.StatusBadRequest, sessionID, c, msgBadForm)
		return
	}

	if err := c.SetDraft(draft); err != nil {
		h.handleFormError(w, r, sessionID, c, err)
		return
	}

	if err := c.Submit(r.Context()); err != nil {
		h.handleFormError(w, r, sessionID, c, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// CancelForm handles POST /forms/{session}/cancel requests.
func (h *DashboardHandler) CancelForm(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session"]

	if err := h.forms.Close(sessionID); err != nil {
		if c, ok := h.forms.Get(sessionID); ok && errors.Is(err, form.ErrBusy) {
			h.renderForm(w, http.StatusConflict, sessionID, c, msgBusy)
			return
		}
		h.logger.Warn("failed to cancel form", zap.String("session_id", sessionID), zap.Error(err))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleFormError maps controller errors to responses.
func (h *DashboardHandler) handleFormError(
	w http.ResponseWriter,
	r *http.Request,
	sessionID string,
	c *form.Controller,
	err error,
) {
	switch {
	case errors.Is(err, form.ErrInvalidDraft):
		h.renderForm(w, http.StatusUnprocessableEntity, sessionID, c, "")
	case errors.Is(err, form.ErrBusy):
		h.renderForm(w, http.StatusConflict, sessionID, c, msgBusy)
	case errors.Is(err, form.ErrClosed):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		h.renderForm(w, http.StatusBadGateway, sessionID, c, c.Message())
	}
}

type formPage struct {
	Session        string
	Heading        string
	SubmitLabel    string
	ImagesEnabled  bool
	MaxImages      int
	AttachedImages int
	Draft          form.Draft
	Errors         form.FieldErrors
	Message        string
	Busy           bool
}

func (h *DashboardHandler) renderForm(w http.ResponseWriter, status int, sessionID string, c *form.Controller, message string) {
	page := formPage{
		Session:       sessionID,
		Heading:       "Add New Product",
		SubmitLabel:   "Submit",
		ImagesEnabled: c.ImagesEnabled(),
		MaxImages:     model.MaxImages,
		Draft:         c.Draft(),
		Errors:        c.Errors(),
		Message:       message,
		Busy:          c.Busy(),
	}
	if c.Mode() == form.ModeEdit {
		page.Heading = "Edit Product"
		page.SubmitLabel = "Update"
	}
	page.AttachedImages = len(page.Draft.Images)

	h.render(w, status, formTemplate, page)
}

// render executes tmpl into a buffer first so a template failure never leaves
// a half-written page behind.
func (h *DashboardHandler) render(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		h.logger.Error("failed to render template", zap.String("template", tmpl.Name()), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Debug("failed to write response", zap.Error(err))
	}
}

// filterStateFromQuery builds the filter state from dashboard query
// parameters. When the category differs from prev_category the user picked a
// new category and the subcategory is reset.
func filterStateFromQuery(r *http.Request) store.FilterState {
	q := r.URL.Query()

	var state store.FilterState
	state.SetQuery(q.Get("q"))

	category := q.Get("category")
	if q.Has("prev_category") && q.Get("prev_category") != category {
		state.SelectCategory(category)
		return state
	}

	state.Category = category
	state.SelectSubcategory(q.Get("subcategory"))
	return state
}

// parseForm parses a multipart body, falling back to a urlencoded one.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// draftFromRequest reads the posted fields. In create mode a post without new
// files keeps the images retained from the previous attempt.
func draftFromRequest(r *http.Request, c *form.Controller) (form.Draft, error) {
	d := form.Draft{
		Title:       r.PostFormValue(form.FieldTitle),
		Price:       r.PostFormValue(form.FieldPrice),
		Category:    r.PostFormValue(form.FieldCategory),
		Subcategory: r.PostFormValue(form.FieldSubcategory),
	}

	if !c.ImagesEnabled() {
		return d, nil
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File[form.FieldImages] {
			// Browsers send an empty part when no file was chosen.
			if fh.Filename == "" && fh.Size == 0 {
				continue
			}
			headers = append(headers, fh)
		}
	}

	if len(headers) == 0 {
		d.Images = c.Draft().Images
		return d, nil
	}

	images := make([]model.ImageFile, 0, len(headers))
	for _, fh := range headers {
		img, err := readImage(fh)
		if err != nil {
			return form.Draft{}, err
		}
		images = append(images, img)
	}
	d.Images = images

	return d, nil
}

func readImage(fh *multipart.FileHeader) (model.ImageFile, error) {
	f, err := fh.Open()
	if err != nil {
		return model.ImageFile{}, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return model.ImageFile{}, err
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return model.ImageFile{
		Name:        fh.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func serveAsset(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = io.WriteString(w, body)
	}
}
