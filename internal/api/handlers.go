// Package api is the HTTP request layer over the scheduled-transaction
// service: routing, decoding, identity extraction and error mapping. No
// business rules live here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kdantuono/money-wise-sub010/internal/ai"
	"github.com/kdantuono/money-wise-sub010/internal/models"
	"github.com/kdantuono/money-wise-sub010/internal/recur"
	"github.com/kdantuono/money-wise-sub010/internal/schedtx"
)

// RecurrenceParser turns free text into a recurrence rule. Nil when natural
// language parsing is not configured.
type RecurrenceParser interface {
	ParseRecurrence(ctx context.Context, text string, now time.Time) (*ai.ParsedRule, error)
}

type Handler struct {
	svc    *schedtx.Service
	parser RecurrenceParser
	log    zerolog.Logger
}

func NewHandler(svc *schedtx.Service, parser RecurrenceParser, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, parser: parser, log: log}
}

// Routes wires every endpoint onto a ServeMux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/scheduled-transactions", h.create)
	mux.HandleFunc("GET /api/scheduled-transactions", h.list)
	mux.HandleFunc("GET /api/scheduled-transactions/upcoming", h.upcoming)
	mux.HandleFunc("GET /api/scheduled-transactions/calendar", h.calendar)
	mux.HandleFunc("POST /api/scheduled-transactions/generate", h.generate)
	mux.HandleFunc("GET /api/scheduled-transactions/{id}", h.get)
	mux.HandleFunc("PUT /api/scheduled-transactions/{id}", h.update)
	mux.HandleFunc("DELETE /api/scheduled-transactions/{id}", h.remove)
	mux.HandleFunc("POST /api/scheduled-transactions/{id}/skip", h.skip)
	mux.HandleFunc("POST /api/scheduled-transactions/{id}/complete", h.complete)
	mux.HandleFunc("GET /api/scheduled-transactions/{id}/rrule", h.rrule)
	mux.HandleFunc("POST /api/liabilities", h.createLiability)
	mux.HandleFunc("GET /api/liabilities", h.listLiabilities)
	mux.HandleFunc("POST /api/recurrence/parse", h.parseRecurrence)

	return mux
}

type createRequest struct {
	AccountID   *int64      `json:"account_id"`
	CategoryID  *int64      `json:"category_id"`
	Type        string      `json:"type"`
	FlowType    string      `json:"flow_type"`
	Amount      float64     `json:"amount"`
	Description string      `json:"description"`
	Rule        *recur.Rule `json:"rule"`
	RRule       string      `json:"rrule"`
	SeriesStart string      `json:"series_start"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var rule recur.Rule
	switch {
	case req.Rule != nil:
		rule = *req.Rule
	case req.RRule != "":
		parsed, err := recur.ParseRRuleString(req.RRule)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid rrule: "+err.Error())
			return
		}
		rule = parsed
	default:
		WriteError(w, http.StatusBadRequest, "Either rule or rrule is required")
		return
	}

	seriesStart, err := time.Parse("2006-01-02", req.SeriesStart)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "series_start must be YYYY-MM-DD")
		return
	}

	tx, err := h.svc.Create(r.Context(), userID, schedtx.CreateInput{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Type:        models.TransactionType(req.Type),
		FlowType:    models.FlowType(req.FlowType),
		Amount:      req.Amount,
		Description: req.Description,
		Rule:        rule,
		SeriesStart: seriesStart,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, tx)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var filter schedtx.Filter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		status := models.ScheduledTransactionStatus(v)
		filter.Status = &status
	}
	if v := q.Get("type"); v != "" {
		txType := models.TransactionType(v)
		filter.Type = &txType
	}
	if v := q.Get("flow_type"); v != "" {
		flowType := models.FlowType(v)
		filter.FlowType = &flowType
	}
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "account_id must be an integer")
			return
		}
		filter.AccountID = &id
	}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "category_id must be an integer")
			return
		}
		filter.CategoryID = &id
	}
	filter.Skip, _ = strconv.Atoi(q.Get("skip"))
	filter.Take, _ = strconv.Atoi(q.Get("take"))

	list, err := h.svc.List(r.Context(), userID, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"scheduled_transactions": list,
		"count":                  len(list),
	})
}

func (h *Handler) upcoming(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	list, err := h.svc.Upcoming(r.Context(), userID, days)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"upcoming": list,
		"count":    len(list),
	})
}

func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	start, err := time.Parse("2006-01-02", q.Get("start"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", q.Get("end"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}

	events, err := h.svc.CalendarEvents(r.Context(), userID, start, end)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	tx, err := h.svc.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

type updateRequest struct {
	AccountID   *int64      `json:"account_id"`
	CategoryID  *int64      `json:"category_id"`
	Type        *string     `json:"type"`
	FlowType    *string     `json:"flow_type"`
	Amount      *float64    `json:"amount"`
	Description *string     `json:"description"`
	Rule        *recur.Rule `json:"rule"`
	NextDueDate *string     `json:"next_due_date"`
	Cancel      bool        `json:"cancel"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := schedtx.UpdateInput{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Description: req.Description,
		Rule:        req.Rule,
		Cancel:      req.Cancel,
	}
	if req.Type != nil {
		txType := models.TransactionType(*req.Type)
		in.Type = &txType
	}
	if req.FlowType != nil {
		flowType := models.FlowType(*req.FlowType)
		in.FlowType = &flowType
	}
	if req.NextDueDate != nil {
		due, err := time.Parse("2006-01-02", *req.NextDueDate)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "next_due_date must be YYYY-MM-DD")
			return
		}
		in.NextDueDate = &due
	}

	tx, err := h.svc.Update(r.Context(), r.PathValue("id"), userID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	if err := h.svc.Remove(r.Context(), r.PathValue("id"), userID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) skip(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	tx, err := h.svc.Skip(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

type completeRequest struct {
	LinkedTransactionID *string `json:"linked_transaction_id"`
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var req completeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	tx, err := h.svc.Complete(r.Context(), r.PathValue("id"), userID, req.LinkedTransactionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	created, err := h.svc.GenerateFromLiabilities(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"scheduled_transactions": created,
		"count":                  len(created),
	})
}

func (h *Handler) rrule(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	tx, err := h.svc.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	s, err := tx.Rule.RRuleString(tx.SeriesStart)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"rrule": s,
		"label": recur.Describe(tx.Rule),
	})
}

type liabilityRequest struct {
	Name              string  `json:"name"`
	AccountID         *int64  `json:"account_id"`
	CategoryID        *int64  `json:"category_id"`
	PaymentAmount     float64 `json:"payment_amount"`
	DueDayOfMonth     int     `json:"due_day_of_month"`
	RemainingPayments *int    `json:"remaining_payments"`
	PayoffDate        *string `json:"payoff_date"`
}

func (h *Handler) createLiability(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var req liabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := schedtx.AddLiabilityInput{
		Name:              req.Name,
		AccountID:         req.AccountID,
		CategoryID:        req.CategoryID,
		PaymentAmount:     req.PaymentAmount,
		DueDayOfMonth:     req.DueDayOfMonth,
		RemainingPayments: req.RemainingPayments,
	}
	if req.PayoffDate != nil {
		payoff, err := time.Parse("2006-01-02", *req.PayoffDate)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "payoff_date must be YYYY-MM-DD")
			return
		}
		in.PayoffDate = &payoff
	}

	l, err := h.svc.AddLiability(r.Context(), userID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) listLiabilities(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	list, err := h.svc.Liabilities(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"liabilities": list,
		"count":       len(list),
	})
}

type parseRecurrenceRequest struct {
	Text  string `json:"text"`
	RRule string `json:"rrule"`
}

// parseRecurrence resolves either an RFC 5545 RRULE string or, when the AI
// parser is configured, a natural-language description into a rule.
func (h *Handler) parseRecurrence(w http.ResponseWriter, r *http.Request) {
	if _, ok := userIDFrom(w, r); !ok {
		return
	}

	var req parseRecurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch {
	case req.RRule != "":
		rule, err := recur.ParseRRuleString(req.RRule)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid rrule: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"rule":  rule,
			"label": recur.Describe(rule),
		})
	case req.Text != "":
		if h.parser == nil {
			WriteError(w, http.StatusNotImplemented, "Natural language parsing is not configured")
			return
		}
		parsed, err := h.parser.ParseRecurrence(r.Context(), req.Text, time.Now())
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"rule":       parsed.Rule,
			"label":      recur.Describe(parsed.Rule),
			"confidence": parsed.Confidence,
		})
	default:
		WriteError(w, http.StatusBadRequest, "Either text or rrule is required")
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedtx.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Scheduled transaction not found")
	case errors.Is(err, schedtx.ErrNotActive):
		WriteError(w, http.StatusUnprocessableEntity, "Scheduled transaction is not active")
	case errors.Is(err, schedtx.ErrInvalidRule):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, schedtx.ErrConflict):
		WriteError(w, http.StatusConflict, "Concurrent modification, retry the request")
	default:
		h.log.Error().Err(err).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// userIDFrom extracts the authenticated user id supplied by the upstream
// identity layer. Authentication itself happens before requests reach this
// service.
func userIDFrom(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		WriteError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "X-User-ID must be an integer")
		return 0, false
	}
	return id, true
}
