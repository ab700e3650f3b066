package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/mcdev12/bazaar/go/internal/negotiation"
	"github.com/rs/zerolog/log"
)

// OrderActionsResponse lists what a user may do with an order right now
type OrderActionsResponse struct {
	Order    *models.Order        `json:"order"`
	Role     models.Party         `json:"role"`
	Awaiting models.Party         `json:"awaiting,omitempty"`
	Actions  []negotiation.Action `json:"actions"`
	Draft    *negotiation.Draft   `json:"draft,omitempty"`
}

// OrderActionRequest is the body of POST /api/orders/{id}/actions
type OrderActionRequest struct {
	UserID  models.ID                 `json:"user_id"`
	Action  string                    `json:"action"`
	Counter *negotiation.CounterInput `json:"counter,omitempty"`
}

// DraftRequest is the body of PUT /api/orders/{id}/draft
type DraftRequest struct {
	UserID  models.ID                `json:"user_id"`
	Counter negotiation.CounterInput `json:"counter"`
}

// OrderHandler exposes negotiation actions over HTTP
type OrderHandler struct {
	service *negotiation.Service
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(service *negotiation.Service) *OrderHandler {
	return &OrderHandler{service: service}
}

// HandleGetActions handles GET /api/orders/{id}/actions?user_id=..
func (h *OrderHandler) HandleGetActions(w http.ResponseWriter, r *http.Request) {
	order, role, ok := h.loadForUser(w, r, models.ID(r.URL.Query().Get("user_id")))
	if !ok {
		return
	}

	resp := OrderActionsResponse{
		Order:    order,
		Role:     role,
		Awaiting: negotiation.AwaitingParty(order),
		Actions:  h.service.Machine().Actions(order, role),
	}
	if resp.Actions == nil {
		resp.Actions = []negotiation.Action{}
	}
	if draft, ok := h.service.Draft(order.ID); ok {
		resp.Draft = &draft
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandlePerformAction handles POST /api/orders/{id}/actions. Illegal actions
// are answered with 409 and never reach the marketplace.
func (h *OrderHandler) HandlePerformAction(w http.ResponseWriter, r *http.Request) {
	var req OrderActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	action, err := negotiation.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, role, ok := h.loadForUser(w, r, req.UserID)
	if !ok {
		return
	}

	updated, err := h.service.Perform(r.Context(), order, negotiation.Command{
		Action:  action,
		Role:    role,
		Counter: req.Counter,
	})
	if err != nil {
		if negotiation.IsRejectedLocally(err) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		log.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("action", string(action)).
			Msg("failed to perform order action")
		writeError(w, loadErrorStatus(err), "marketplace rejected the action")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// HandleSaveDraft handles PUT /api/orders/{id}/draft
func (h *OrderHandler) HandleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, _, ok := h.loadForUser(w, r, req.UserID)
	if !ok {
		return
	}

	h.service.SaveDraft(order.ID, req.Counter)
	draft, _ := h.service.Draft(order.ID)
	writeJSON(w, http.StatusOK, draft)
}

// HandleDiscardDraft handles DELETE /api/orders/{id}/draft
func (h *OrderHandler) HandleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	h.service.DiscardDraft(models.ID(r.PathValue("id")))
	w.WriteHeader(http.StatusNoContent)
}

// RegisterOrderRoutes registers negotiation routes
func (h *OrderHandler) RegisterOrderRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/orders/{id}/actions", h.HandleGetActions)
	mux.HandleFunc("POST /api/orders/{id}/actions", h.HandlePerformAction)
	mux.HandleFunc("PUT /api/orders/{id}/draft", h.HandleSaveDraft)
	mux.HandleFunc("DELETE /api/orders/{id}/draft", h.HandleDiscardDraft)
}

// loadForUser fetches the order and resolves the caller's role, writing the
// error response itself when either step fails.
func (h *OrderHandler) loadForUser(w http.ResponseWriter, r *http.Request, userID models.ID) (*models.Order, models.Party, bool) {
	id := models.ID(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "order id is required")
		return nil, "", false
	}

	order, err := h.service.Load(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("order_id", id.String()).Msg("failed to load order")
		writeError(w, loadErrorStatus(err), "failed to load order")
		return nil, "", false
	}

	role, err := negotiation.RoleOf(order, userID)
	if err != nil {
		status := http.StatusForbidden
		if !errors.Is(err, negotiation.ErrNotParticipant) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return nil, "", false
	}

	return order, role, true
}
