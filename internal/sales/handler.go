package sales

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vlady-pos/vlady-pos/internal/platform/httpx"
	"github.com/vlady-pos/vlady-pos/internal/rbac"
	"github.com/vlady-pos/vlady-pos/internal/reports"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyModule = "sales"
)

// HistoryReader serves the read side of the ledger.
type HistoryReader interface {
	History(ctx context.Context, f reports.Filter, page, perPage int) (reports.HistoryPage, error)
	Sale(ctx context.Context, id int64) (reports.SaleRecord, error)
	Location() *time.Location
}

// IdempotencyGuard rejects replayed submissions.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler exposes the sale endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	history   HistoryReader
	idem      IdempotencyGuard
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler. idem may be nil to ignore Idempotency-Key.
func NewHandler(logger *slog.Logger, service *Service, history HistoryReader, idem IdempotencyGuard, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		history:   history,
		idem:      idem,
		rbac:      rbac,
		validator: validator.New(),
	}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSalesView))
		r.Get("/", h.handleHistory)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesCreate))
		r.Post("/", h.handleRecord)
	})
}

type recordSaleItem struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Subtotal  *decimal.Decimal `json:"subtotal"`
}

type recordSaleRequest struct {
	Date             string           `json:"date"`
	ClientNationalID string           `json:"client_national_id" validate:"required,min=8,max=20,numeric"`
	ClientName       string           `json:"client_name" validate:"required,max=150"`
	PaymentMethod    string           `json:"payment_method" validate:"required,oneof=cash card yape plin efectivo tarjeta"`
	Total            *decimal.Decimal `json:"total" validate:"required"`
	Items            []recordSaleItem `json:"items" validate:"required,min=1,max=200,dive"`
}

func (req recordSaleRequest) toSaleRequest() (SaleRequest, error) {
	out := SaleRequest{
		ClientNationalID: strings.TrimSpace(req.ClientNationalID),
		ClientName:       req.ClientName,
		PaymentMethod:    PaymentMethod(req.PaymentMethod),
		Total:            *req.Total,
		Items:            make([]LineRequest, 0, len(req.Items)),
	}
	if raw := strings.TrimSpace(req.Date); raw != "" {
		d, err := parseSaleDate(raw)
		if err != nil {
			return SaleRequest{}, err
		}
		out.Date = &d
	}
	for _, it := range req.Items {
		out.Items = append(out.Items, LineRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return out, nil
}

func parseSaleDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, shared.Errorf(shared.ErrValidation, "Invalid sale date %q.", raw)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	operatorID, _, ok := shared.OperatorFromContext(ctx)
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var body recordSaleRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, shared.Errorf(shared.ErrValidation, "Invalid request body."))
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.RespondError(w, validationError(err))
		return
	}
	req, err := body.toSaleRequest()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	key, err := h.claimKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	receipt, err := h.service.RecordSale(ctx, operatorID, req)
	if err != nil {
		if key != "" {
			if derr := h.idem.Delete(context.WithoutCancel(ctx), key); derr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		h.fail(w, "record sale", operatorID, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Sale recorded.", receipt)
}

// claimKey reserves the Idempotency-Key header when present.
func (h *Handler) claimKey(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if raw == "" || h.idem == nil {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", shared.Errorf(shared.ErrValidation, "The %s header must be a UUID.", idempotencyHeader)
	}
	key := id.String()
	if err := h.idem.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
		return "", err
	}
	return key, nil
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	f, err := reports.FilterFromRequest(r, h.history.Location())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	out, err := h.history.History(r.Context(), f, page, perPage)
	if err != nil {
		h.fail(w, "sale history", 0, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.Errorf(shared.ErrValidation, "Invalid sale id."))
		return
	}
	rec, err := h.history.Sale(r.Context(), id)
	if err != nil {
		h.fail(w, "get sale", 0, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", rec)
}

func (h *Handler) fail(w http.ResponseWriter, op string, operatorID int64, err error) {
	status := httpx.StatusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error(op, slog.Int64("operator_id", operatorID), slog.Any("error", err))
	case status == http.StatusConflict || status == http.StatusForbidden:
		h.logger.Info(op+" rejected", slog.Int64("operator_id", operatorID), slog.String("reason", err.Error()))
	}
	httpx.RespondError(w, err)
}

var fieldMessages = map[string]string{
	"ClientNationalID": "The client national ID must have between 8 and 20 digits.",
	"ClientName":       "The client name is required.",
	"PaymentMethod":    "The payment method must be cash, card, yape or plin.",
	"Total":            "The sale total is required.",
	"Items":            "The sale must contain between 1 and 200 items.",
	"ProductID":        "Every item needs a valid product id.",
	"Quantity":         "Every item needs a quantity greater than zero.",
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := fieldMessages[verrs[0].StructField()]; ok {
			return shared.Errorf(shared.ErrValidation, "%s", msg)
		}
	}
	return shared.Errorf(shared.ErrValidation, "Invalid sale request.")
}
