package portal

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/tenant_portal/internal/currency"
	"github.com/R3E-Network/tenant_portal/internal/errors"
	"github.com/R3E-Network/tenant_portal/internal/httputil"
	"github.com/R3E-Network/tenant_portal/internal/logging"
	"github.com/R3E-Network/tenant_portal/internal/metrics"
	"github.com/R3E-Network/tenant_portal/internal/receipt"
	"github.com/R3E-Network/tenant_portal/internal/tenants"
)

const defaultRatesBase = "USD"

type handlers struct {
	log       *logging.Logger
	metrics   *metrics.Metrics
	converter *currency.Converter
	directory tenants.Directory
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

type parseReceiptRequest struct {
	Text string `json:"text"`
}

func (h *handlers) parseReceipt(w http.ResponseWriter, r *http.Request) {
	var req parseReceiptRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	parsed := receipt.Parse(req.Text)
	h.metrics.RecordReceiptParsed(parsed.Total != nil)
	h.log.WithContext(r.Context()).WithFields(map[string]interface{}{
		"total_found":  parsed.Total != nil,
		"date_found":   parsed.Date != nil,
		"vendor_found": parsed.Vendor != nil,
	}).Debug("receipt parsed")

	httputil.WriteJSON(w, http.StatusOK, parsed)
}

func (h *handlers) exchangeRates(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	if base == "" {
		base = defaultRatesBase
	}
	code, err := currency.NormalizeCode(base)
	if err != nil {
		httputil.WriteError(w, r, errors.InvalidFormat("base", "ISO 4217 currency code"))
		return
	}

	rates, err := h.converter.Rates(r.Context(), code)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).WithField("base", code).Warn("exchange rates unavailable")
		httputil.WriteError(w, r, errors.Upstream("exchange rates", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rates)
}

func (h *handlers) convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(strings.TrimSpace(q.Get("amount")))
	if err != nil {
		httputil.WriteError(w, r, errors.InvalidFormat("amount", "decimal number"))
		return
	}
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		httputil.WriteError(w, r, errors.BadRequest("from and to are required"))
		return
	}

	conv, err := h.converter.Convert(r.Context(), amount, from, to)
	switch {
	case err == nil:
	case stderrors.Is(err, currency.ErrInvalidCode):
		httputil.WriteError(w, r, errors.InvalidFormat("currency", "ISO 4217 currency code"))
		return
	case stderrors.Is(err, currency.ErrUnknownCurrency), stderrors.Is(err, currency.ErrInvalidRate):
		httputil.WriteError(w, r, errors.BadRequest("unsupported currency").WithDetails("reason", err.Error()))
		return
	default:
		h.log.WithContext(r.Context()).WithError(err).Warn("currency conversion failed")
		httputil.WriteError(w, r, errors.Upstream("exchange rates", err))
		return
	}

	h.metrics.RecordConversion(conv.From, conv.To)
	httputil.WriteJSON(w, http.StatusOK, conv)
}

func (h *handlers) tenant(w http.ResponseWriter, r *http.Request) {
	site := tenants.NormalizeSite(mux.Vars(r)["site"])

	t, err := h.directory.Lookup(r.Context(), site)
	if err != nil {
		if stderrors.Is(err, tenants.ErrTenantNotFound) {
			httputil.WriteError(w, r, errors.NotFound("tenant", site))
			return
		}
		h.log.WithContext(r.Context()).WithError(err).WithField("site", site).Error("tenant lookup failed")
		httputil.WriteError(w, r, errors.Internal("tenant lookup failed", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}
