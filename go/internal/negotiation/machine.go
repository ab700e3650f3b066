package negotiation

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/models"
)

// Machine encodes the legal order transitions and the counter-offer
// alternation. It never mutates its input.
type Machine struct {
	clock clockwork.Clock
}

// NewMachine creates a state machine stamping transitions with clock.
func NewMachine(clock clockwork.Clock) *Machine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Machine{clock: clock}
}

// AwaitingParty returns the side expected to act next, or "" when nobody is.
func AwaitingParty(order *models.Order) models.Party {
	switch order.Status {
	case models.OrderStatusNew, models.OrderStatusPending:
		// The buyer opened the order; the seller answers.
		return models.PartySeller
	case models.OrderStatusNegotiating:
		if p := order.AwaitingParty(); p != "" {
			return p
		}
		return models.PartySeller
	case models.OrderStatusAccepted:
		return models.PartySeller
	case models.OrderStatusAwaitingPayment:
		return models.PartyBuyer
	default:
		return ""
	}
}

// Actions lists what role may do right now. Counter terms are not checked
// here; a listed counter can still fail validation.
func (m *Machine) Actions(order *models.Order, role models.Party) []Action {
	var out []Action
	for _, a := range AllActions {
		if m.check(order, role, a) == nil {
			out = append(out, a)
		}
	}
	return out
}

// Can reports whether role may perform action now.
func (m *Machine) Can(order *models.Order, role models.Party, action Action) error {
	return m.check(order, role, normalize(order, action))
}

// Apply validates cmd against the order and returns the projection the
// transition produces. The input order is left untouched.
func (m *Machine) Apply(order *models.Order, cmd Command) (*models.Order, error) {
	action := normalize(order, cmd.Action)
	if err := m.check(order, cmd.Role, action); err != nil {
		return nil, err
	}

	next := order.Clone()
	now := m.clock.Now().UTC()
	next.UpdatedAt = now

	switch action {
	case ActionAccept:
		next.Status = models.OrderStatusAccepted

	case ActionCounter:
		if err := validateCounter(cmd.Counter); err != nil {
			return nil, err
		}
		if order.Status != models.OrderStatusNegotiating {
			next.StatusBeforeNegotiation = order.Status
		}
		role := cmd.Role
		price := cmd.Counter.PricePerUnit
		qty := cmd.Counter.Quantity
		total := price * qty
		msg := cmd.Counter.Message
		next.Status = models.OrderStatusNegotiating
		next.CounterOfferedBy = &role
		next.CounterPricePerUnit = &price
		next.CounterQuantity = &qty
		next.CounterTotalAmount = &total
		next.CounterOfferMessage = &msg
		next.BuyerAcceptedCounter = false

	case ActionAcceptCounter:
		if !order.HasCounter() {
			return nil, fmt.Errorf("%w: no counter-offer to accept", ErrIllegalTransition)
		}
		next.PricePerUnit = *order.CounterPricePerUnit
		if order.CounterQuantity != nil {
			next.Quantity = *order.CounterQuantity
		}
		if order.CounterTotalAmount != nil {
			next.TotalAmount = *order.CounterTotalAmount
		} else {
			next.TotalAmount = next.PricePerUnit * next.Quantity
		}
		next.BuyerAcceptedCounter = cmd.Role == models.PartyBuyer
		next.Status = models.OrderStatusAccepted

	case ActionReject:
		next.Status = models.OrderStatusRejected

	case ActionCancel:
		next.Status = models.OrderStatusCancelled

	case ActionMarkFulfilled:
		next.Status = models.OrderStatusAwaitingPayment

	case ActionConfirmReceipt:
		next.Status = models.OrderStatusCompleted

	case ActionArchive:
		next.ArchivedFrom = order.Status
		next.ArchivedAt = &now
		next.Status = models.OrderStatusArchived
	}

	return next, nil
}

// normalize maps a plain accept on a negotiating order to accepting the
// counter, which is what the party means there.
func normalize(order *models.Order, action Action) Action {
	if action == ActionAccept && order.Status == models.OrderStatusNegotiating {
		return ActionAcceptCounter
	}
	return action
}

func (m *Machine) check(order *models.Order, role models.Party, action Action) error {
	if order == nil {
		return fmt.Errorf("%w: no order", ErrIllegalTransition)
	}
	if !role.Valid() {
		return ErrNotParticipant
	}

	status := order.Status

	if action == ActionArchive {
		switch status {
		case models.OrderStatusCompleted, models.OrderStatusCancelled, models.OrderStatusRejected:
			return nil
		case models.OrderStatusArchived:
			return ErrTerminal
		default:
			return fmt.Errorf("%w: only finished orders can be archived", ErrIllegalTransition)
		}
	}
	if status.IsTerminal() {
		return ErrTerminal
	}

	switch action {
	case ActionAccept:
		if status != models.OrderStatusNew && status != models.OrderStatusPending {
			return fmt.Errorf("%w: accept from %s", ErrIllegalTransition, status)
		}
		return turn(order, role)

	case ActionCounter:
		if !status.IsPreAccepted() {
			return fmt.Errorf("%w: counter from %s", ErrIllegalTransition, status)
		}
		return turn(order, role)

	case ActionAcceptCounter:
		if status != models.OrderStatusNegotiating {
			return fmt.Errorf("%w: accept counter from %s", ErrIllegalTransition, status)
		}
		return turn(order, role)

	case ActionReject:
		if !status.IsPreAccepted() {
			return fmt.Errorf("%w: reject from %s", ErrIllegalTransition, status)
		}
		return turn(order, role)

	case ActionCancel:
		switch status {
		case models.OrderStatusNew, models.OrderStatusPending:
			return nil
		case models.OrderStatusNegotiating:
			if order.StatusBeforeNegotiation == models.OrderStatusPending {
				return nil
			}
		}
		return ErrCannotCancelInProgress

	case ActionMarkFulfilled:
		if status != models.OrderStatusAccepted {
			return fmt.Errorf("%w: mark fulfilled from %s", ErrIllegalTransition, status)
		}
		return turn(order, role)

	case ActionConfirmReceipt:
		if status != models.OrderStatusAwaitingPayment {
			return fmt.Errorf("%w: confirm receipt from %s", ErrIllegalTransition, status)
		}
		return turn(order, role)

	default:
		return fmt.Errorf("%w: unknown action %q", ErrIllegalTransition, action)
	}
}

func turn(order *models.Order, role models.Party) error {
	if AwaitingParty(order) != role {
		return ErrNotYourTurn
	}
	return nil
}

func validateCounter(in *CounterInput) error {
	if in == nil {
		return fmt.Errorf("%w: missing terms", ErrInvalidCounter)
	}
	if in.PricePerUnit <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidCounter)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidCounter)
	}
	if in.OfferAvailableQuantity != nil && in.Quantity > *in.OfferAvailableQuantity {
		return fmt.Errorf("%w: quantity %.2f exceeds available %.2f", ErrInvalidCounter, in.Quantity, *in.OfferAvailableQuantity)
	}
	return nil
}
