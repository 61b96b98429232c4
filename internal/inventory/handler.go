package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vlady-pos/vlady-pos/internal/platform/httpx"
	"github.com/vlady-pos/vlady-pos/internal/rbac"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// Handler wires HTTP endpoints for the product store.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInventoryView, shared.PermInventoryEdit))
		r.Get("/", h.handleList)
		r.Get("/deleted", h.handleDeletionLog)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermInventoryEdit))
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

type productRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Description string           `json:"description" validate:"max=500"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"required,gte=0"`
}

type deleteRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListActive(r.Context())
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.OK(w, http.StatusOK, "", products)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.OK(w, http.StatusOK, "", p)
}

func (h *Handler) handleDeletionLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListDeletionLog(r.Context())
	if err != nil {
		h.fail(w, "list deletion log", err)
		return
	}
	if entries == nil {
		entries = []DeletionLogEntry{}
	}
	httpx.OK(w, http.StatusOK, "", entries)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	actorID, _, _ := shared.OperatorFromContext(r.Context())
	p, err := h.service.Create(r.Context(), actorID, input)
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Product created.", p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	input, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	actorID, _, _ := shared.OperatorFromContext(r.Context())
	p, err := h.service.Update(r.Context(), actorID, id, input)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product updated.", p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req deleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.RespondError(w, shared.Errorf(shared.ErrValidation, "Invalid request body."))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Errorf(shared.ErrValidation, "Reason must be at most 255 characters."))
		return
	}
	actorID, _, _ := shared.OperatorFromContext(r.Context())
	entry, err := h.service.Delete(r.Context(), actorID, id, req.Reason)
	if err != nil {
		h.fail(w, "delete product", err)
		return
	}
	httpx.OK(w, http.StatusOK, "Product deleted.", entry)
}

func (h *Handler) decodeProduct(w http.ResponseWriter, r *http.Request) (ProductInput, bool) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Errorf(shared.ErrValidation, "Invalid request body."))
		return ProductInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.Errorf(shared.ErrValidation, "Name and a non-negative stock are required."))
		return ProductInput{}, false
	}
	if req.Price == nil {
		httpx.RespondError(w, shared.Errorf(shared.ErrValidation, "Price is required."))
		return ProductInput{}, false
	}
	return ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       *req.Stock,
	}, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.Errorf(shared.ErrValidation, "Invalid product id."))
		return 0, false
	}
	return id, true
}
