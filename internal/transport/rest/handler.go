// Package rest provides the HTTP API consumed by the storefront UI.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/banerjeearin/storefront/internal/cart"
	"github.com/banerjeearin/storefront/internal/platform/web"
	"github.com/banerjeearin/storefront/internal/shopify"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const sessionCookie = "storefront_session"

// Catalog is the slice of the storefront client used by the browse endpoints.
type Catalog interface {
	Product(ctx context.Context, handle string) (*shopify.Product, error)
	Products(ctx context.Context, first int, after string) (*shopify.ProductPage, error)
	SearchProducts(ctx context.Context, query string, first int) (*shopify.ProductPage, error)
	Collections(ctx context.Context, first int) ([]shopify.Collection, error)
}

type Handler struct {
	carts    *cart.Manager
	catalog  Catalog
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(carts *cart.Manager, catalog Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		carts:    carts,
		catalog:  catalog,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the storefront API routes.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/create", h.CreateCart)
		r.Post("/add", h.AddItem)
		r.Post("/update", h.UpdateItem)
		r.Post("/remove", h.RemoveItem)
		r.Post("/clear-error", h.ClearError)
		r.Get("/checkout", h.Checkout)
	})
	r.Get("/api/products", h.ListProducts)
	r.Get("/api/products/{handle}", h.GetProduct)
	r.Get("/api/search", h.SearchProducts)
	r.Get("/api/collections", h.ListCollections)
	r.Get("/healthz", h.HealthCheck)
}

// session returns the session's store, issuing a session cookie on first
// touch. Each session owns an independent cart; no cross-session coherence.
// Only server-issued identifiers are honored: a cookie that is not a UUID is
// replaced, so arbitrary client values never allocate stores.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *cart.Store {
	var sessionID string
	if c, err := r.Cookie(sessionCookie); err == nil && isSessionID(c.Value) {
		sessionID = c.Value
	} else {
		sessionID = h.carts.NewSessionID()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   365 * 24 * 3600,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return h.carts.Store(sessionID)
}

func isSessionID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

type addItemRequest struct {
	MerchandiseID string `json:"merchandiseId" validate:"required"`
	Quantity      int    `json:"quantity" validate:"gte=0"`
}

type updateItemRequest struct {
	LineID   string `json:"lineId" validate:"required"`
	Quantity int    `json:"quantity"`
}

type removeItemRequest struct {
	LineID string `json:"lineId" validate:"required"`
}

// GetCart initializes the session's cart if needed and returns its state.
// Initialization failures still yield 200: the state carries the error and
// the page keeps rendering.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	store := h.session(w, r)
	if err := store.Init(r.Context()); err != nil {
		mLogger.WarnContext(r.Context(), "Cart initialization failed", "error", err)
	}
	web.RespondJSON(w, mLogger, http.StatusOK, store.Snapshot())
}

// CreateCart ensures the session has a live cart, creating one if needed.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	store := h.session(w, r)
	if err := store.Init(r.Context()); err != nil {
		h.respondCartError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, store.Snapshot())
}

// AddItem adds a variant to the session's cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var req addItemRequest
	if !h.decodeAndValidate(w, r, mLogger, &req) {
		return
	}

	store := h.session(w, r)
	if err := store.AddItem(r.Context(), req.MerchandiseID, req.Quantity); err != nil {
		h.respondCartError(w, r, mLogger, err)
		return
	}
	mLogger.InfoContext(r.Context(), "Added item to cart", "merchandise_id", req.MerchandiseID, "quantity", req.Quantity)
	web.RespondJSON(w, mLogger, http.StatusOK, store.Snapshot())
}

// UpdateItem sets a line's quantity. Quantities below one remove the line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var req updateItemRequest
	if !h.decodeAndValidate(w, r, mLogger, &req) {
		return
	}

	store := h.session(w, r)
	if err := store.UpdateItem(r.Context(), req.LineID, req.Quantity); err != nil {
		h.respondCartError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, store.Snapshot())
}

// RemoveItem removes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var req removeItemRequest
	if !h.decodeAndValidate(w, r, mLogger, &req) {
		return
	}

	store := h.session(w, r)
	if err := store.RemoveItem(r.Context(), req.LineID); err != nil {
		h.respondCartError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, store.Snapshot())
}

// ClearError drops the cart's error message without any remote call.
func (h *Handler) ClearError(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	store := h.session(w, r)
	store.ClearError()
	web.RespondJSON(w, mLogger, http.StatusOK, store.Snapshot())
}

// Checkout redirects to the server-issued checkout URL. Checkout itself is
// entirely the platform's concern.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	store := h.session(w, r)
	state := store.Snapshot()
	if state.Cart == nil || state.Cart.CheckoutURL == "" {
		web.RespondError(w, mLogger, http.StatusNotFound, "No cart to check out")
		return
	}
	http.Redirect(w, r, state.Cart.CheckoutURL, http.StatusFound)
}

// simpleProduct is the flattened listing entry used by product grids.
type simpleProduct struct {
	ID       string `json:"id"`
	Handle   string `json:"handle"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Image    string `json:"image,omitempty"`
	ImageAlt string `json:"imageAlt,omitempty"`
}

func toSimpleProduct(p shopify.Product) simpleProduct {
	sp := simpleProduct{
		ID:     p.ID,
		Handle: p.Handle,
		Title:  p.Title,
		Price:  p.PriceRange.MinVariantPrice.Format(),
	}
	if len(p.Images) > 0 {
		sp.Image = p.Images[0].URL
		sp.ImageAlt = p.Images[0].AltText
	}
	return sp
}

// ListProducts returns one page of the catalog in grid-ready form.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	first := 20
	if raw := r.URL.Query().Get("first"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid first number: "+raw)
			return
		}
		first = v
	}
	after := r.URL.Query().Get("after")

	page, err := h.catalog.Products(r.Context(), first, after)
	if err != nil {
		h.respondCatalogError(w, r, mLogger, err)
		return
	}
	products := make([]simpleProduct, 0, len(page.Products))
	for _, p := range page.Products {
		products = append(products, toSimpleProduct(p))
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{
		"products": products,
		"pageInfo": page.PageInfo,
	})
}

// GetProduct returns the full product for a handle.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	handle := chi.URLParam(r, "handle")

	product, err := h.catalog.Product(r.Context(), handle)
	if err != nil {
		h.respondCatalogError(w, r, mLogger, err)
		return
	}
	if product == nil {
		web.RespondError(w, mLogger, http.StatusNotFound, "Product not found")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{"product": product})
}

// SearchProducts runs a free-text catalog search.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	query := r.URL.Query().Get("q")
	if query == "" {
		web.RespondError(w, mLogger, http.StatusBadRequest, "q url parameter is required")
		return
	}

	page, err := h.catalog.SearchProducts(r.Context(), query, 20)
	if err != nil {
		h.respondCatalogError(w, r, mLogger, err)
		return
	}
	products := make([]simpleProduct, 0, len(page.Products))
	for _, p := range page.Products {
		products = append(products, toSimpleProduct(p))
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{
		"products": products,
		"pageInfo": page.PageInfo,
	})
}

// ListCollections lists the shop's collections.
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	collections, err := h.catalog.Collections(r.Context(), 10)
	if err != nil {
		h.respondCatalogError(w, r, mLogger, err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{"collections": collections})
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// decodeAndValidate decodes the JSON body into req and validates it.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return false
		}
		mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondCartError maps a store/gateway failure to an HTTP status. The
// store has already recorded the error; the previous snapshot is untouched.
func (h *Handler) respondCartError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error) {
	status, message := mapGatewayError(err)
	if status >= http.StatusInternalServerError {
		mLogger.ErrorContext(r.Context(), "Cart operation failed", "error", err)
	} else {
		mLogger.WarnContext(r.Context(), "Cart operation rejected", "error", err)
	}
	web.RespondError(w, mLogger, status, message)
}

func (h *Handler) respondCatalogError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error) {
	status, message := mapGatewayError(err)
	if status >= http.StatusInternalServerError {
		mLogger.ErrorContext(r.Context(), "Catalog request failed", "error", err)
	} else {
		mLogger.WarnContext(r.Context(), "Catalog request rejected", "error", err)
	}
	web.RespondError(w, mLogger, status, message)
}

// mapGatewayError translates the gateway taxonomy into HTTP statuses.
func mapGatewayError(err error) (int, string) {
	switch {
	case errors.Is(err, cart.ErrNoCart):
		return http.StatusNotFound, "Cart not found"
	case errors.Is(err, shopify.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, shopify.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Storefront is not configured"
	case errors.Is(err, shopify.ErrTimeout):
		return http.StatusGatewayTimeout, "The request timed out"
	case errors.Is(err, shopify.ErrRemoteRejected):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, shopify.ErrTransport):
		return http.StatusBadGateway, "Storefront is temporarily unavailable"
	default:
		return http.StatusInternalServerError, "An unexpected error occurred"
	}
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID, _ := web.GetRequestID(r.Context())
	return h.logger.With("request_id", reqID)
}
