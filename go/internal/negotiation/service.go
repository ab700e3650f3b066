package negotiation

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/rs/zerolog/log"
)

// OrderAPI defines what the negotiation service needs from the marketplace.
// Every call returns the server's updated projection.
type OrderAPI interface {
	GetOrder(ctx context.Context, id models.ID) (*models.Order, error)
	AcceptOrder(ctx context.Context, id models.ID) (*models.Order, error)
	CounterOrder(ctx context.Context, id models.ID, pricePerUnit, quantity float64, message string) (*models.Order, error)
	AcceptCounter(ctx context.Context, id models.ID) (*models.Order, error)
	RejectOrder(ctx context.Context, id models.ID) (*models.Order, error)
	CancelOrder(ctx context.Context, id models.ID) (*models.Order, error)
	MarkFulfilled(ctx context.Context, id models.ID) (*models.Order, error)
	ConfirmReceipt(ctx context.Context, id models.ID) (*models.Order, error)
	ArchiveOrder(ctx context.Context, id models.ID) (*models.Order, error)
}

// Service runs negotiation actions: it checks them against the state machine
// locally and only forwards legal ones to the marketplace.
type Service struct {
	api     OrderAPI
	machine *Machine

	mu     sync.Mutex
	drafts map[models.ID]Draft
	// origins remembers whether an order was new or pending before it
	// entered negotiation; the marketplace projection does not carry it.
	origins map[models.ID]models.OrderStatus
}

// NewService creates a new negotiation service
func NewService(api OrderAPI, machine *Machine) *Service {
	return &Service{
		api:     api,
		machine: machine,
		drafts:  make(map[models.ID]Draft),
		origins: make(map[models.ID]models.OrderStatus),
	}
}

// Machine exposes the state machine the service validates with.
func (s *Service) Machine() *Machine {
	return s.machine
}

// Load fetches the current order projection.
func (s *Service) Load(ctx context.Context, id models.ID) (*models.Order, error) {
	order, err := s.api.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	return s.track(order), nil
}

// track records the status of orders that have not been countered yet and
// fills StatusBeforeNegotiation on negotiating orders that lack it. The
// returned order is a copy when it had to be filled in.
func (s *Service) track(order *models.Order) *models.Order {
	if order == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch order.Status {
	case models.OrderStatusNew, models.OrderStatusPending:
		s.origins[order.ID] = order.Status
	case models.OrderStatusNegotiating:
		origin, ok := s.origins[order.ID]
		if order.StatusBeforeNegotiation == "" && ok {
			order = order.Clone()
			order.StatusBeforeNegotiation = origin
		}
	default:
		delete(s.origins, order.ID)
	}
	return order
}

// Perform validates cmd locally and, when legal, submits it. Illegal commands
// return the local error without any network call.
func (s *Service) Perform(ctx context.Context, order *models.Order, cmd Command) (*models.Order, error) {
	order = s.track(order)
	if _, err := s.machine.Apply(order, cmd); err != nil {
		log.Info().
			Str("order_id", order.ID.String()).
			Str("role", string(cmd.Role)).
			Str("action", string(cmd.Action)).
			Str("status", string(order.Status)).
			Err(err).
			Msg("negotiation action rejected locally")
		return nil, err
	}

	updated, err := s.submit(ctx, order, normalize(order, cmd.Action), cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to %s order %s: %w", cmd.Action, order.ID, err)
	}

	updated = s.track(updated)
	s.DiscardDraft(order.ID)

	log.Info().
		Str("order_id", order.ID.String()).
		Str("role", string(cmd.Role)).
		Str("action", string(cmd.Action)).
		Str("status", string(updated.Status)).
		Msg("negotiation action applied")

	return updated, nil
}

func (s *Service) submit(ctx context.Context, order *models.Order, action Action, cmd Command) (*models.Order, error) {
	id := order.ID
	switch action {
	case ActionAccept:
		return s.api.AcceptOrder(ctx, id)
	case ActionCounter:
		return s.api.CounterOrder(ctx, id, cmd.Counter.PricePerUnit, cmd.Counter.Quantity, cmd.Counter.Message)
	case ActionAcceptCounter:
		return s.api.AcceptCounter(ctx, id)
	case ActionReject:
		return s.api.RejectOrder(ctx, id)
	case ActionCancel:
		return s.api.CancelOrder(ctx, id)
	case ActionMarkFulfilled:
		return s.api.MarkFulfilled(ctx, id)
	case ActionConfirmReceipt:
		return s.api.ConfirmReceipt(ctx, id)
	case ActionArchive:
		return s.api.ArchiveOrder(ctx, id)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrIllegalTransition, action)
	}
}

// SaveDraft keeps a counter-offer being composed for an order.
func (s *Service) SaveDraft(orderID models.ID, input CounterInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[orderID] = Draft{OrderID: orderID, Input: input}
}

// Draft returns the pending counter-offer draft for an order, if any.
func (s *Service) Draft(orderID models.ID) (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[orderID]
	return d, ok
}

// DiscardDraft drops the local draft; called after every successful round-trip.
func (s *Service) DiscardDraft(orderID models.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, orderID)
}
