package negotiation

import (
	"fmt"

	"github.com/mcdev12/bazaar/go/internal/models"
)

// Action is something a party can do to an order.
type Action string

const (
	ActionAccept         Action = "accept"
	ActionCounter        Action = "counter"
	ActionAcceptCounter  Action = "accept_counter"
	ActionReject         Action = "reject"
	ActionCancel         Action = "cancel"
	ActionMarkFulfilled  Action = "mark_fulfilled"
	ActionConfirmReceipt Action = "confirm_receipt"
	ActionArchive        Action = "archive"
)

// AllActions lists every action in a stable order.
var AllActions = []Action{
	ActionAccept,
	ActionCounter,
	ActionAcceptCounter,
	ActionReject,
	ActionCancel,
	ActionMarkFulfilled,
	ActionConfirmReceipt,
	ActionArchive,
}

// ParseAction converts a wire value into an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range AllActions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// CounterInput carries the terms of a counter-offer.
type CounterInput struct {
	PricePerUnit float64 `json:"pricePerUnit"`
	Quantity     float64 `json:"quantity"`
	Message      string  `json:"message,omitempty"`
	// OfferAvailableQuantity is the remaining quantity on the underlying
	// offer, supplied by the caller. Nil skips the upper bound check.
	OfferAvailableQuantity *float64 `json:"offerAvailableQuantity,omitempty"`
}

// Command is one action issued by one party.
type Command struct {
	Action  Action        `json:"action"`
	Role    models.Party  `json:"role"`
	Counter *CounterInput `json:"counter,omitempty"`
}

// Draft is a locally held, not yet submitted counter-offer.
type Draft struct {
	OrderID models.ID    `json:"orderId"`
	Input   CounterInput `json:"input"`
}

// RoleOf resolves which side of the order userID is on.
func RoleOf(order *models.Order, userID models.ID) (models.Party, error) {
	switch {
	case userID == "":
		return "", ErrNotParticipant
	case order.SellerID == userID:
		return models.PartySeller, nil
	case order.BuyerID == userID:
		return models.PartyBuyer, nil
	default:
		return "", ErrNotParticipant
	}
}
