package models

import "time"

// Party identifies one side of an order.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)

// Opposite returns the other side of the deal.
func (p Party) Opposite() Party {
	switch p {
	case PartyBuyer:
		return PartySeller
	case PartySeller:
		return PartyBuyer
	default:
		return ""
	}
}

// Valid reports whether p is a known party.
func (p Party) Valid() bool {
	return p == PartyBuyer || p == PartySeller
}

// OrderStatus defines the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusNegotiating     OrderStatus = "negotiating"
	OrderStatusAccepted        OrderStatus = "accepted"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusArchived        OrderStatus = "archived"
)

// IsTerminal reports whether no further negotiation can happen.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusRejected, OrderStatusArchived:
		return true
	}
	return false
}

// IsPreAccepted reports whether the order has not been agreed yet.
func (s OrderStatus) IsPreAccepted() bool {
	switch s {
	case OrderStatusNew, OrderStatusPending, OrderStatusNegotiating:
		return true
	}
	return false
}

// Order is the client projection of a buyer/seller deal created in response to
// an offer or a request.
type Order struct {
	ID        ID  `json:"id"`
	BuyerID   ID  `json:"buyerId"`
	SellerID  ID  `json:"sellerId"`
	OfferID   *ID `json:"offerId,omitempty"`
	RequestID *ID `json:"requestId,omitempty"`

	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	PricePerUnit float64 `json:"pricePerUnit"`
	TotalAmount  float64 `json:"totalAmount"`

	// Negotiation overlay, nil until the first counter-offer.
	CounterOfferedBy     *Party   `json:"counterOfferedBy,omitempty"`
	CounterPricePerUnit  *float64 `json:"counterPricePerUnit,omitempty"`
	CounterQuantity      *float64 `json:"counterQuantity,omitempty"`
	CounterTotalAmount   *float64 `json:"counterTotalAmount,omitempty"`
	CounterOfferMessage  *string  `json:"counterOfferMessage,omitempty"`
	BuyerAcceptedCounter bool     `json:"buyerAcceptedCounter"`

	Status OrderStatus `json:"status"`
	// StatusBeforeNegotiation records whether the order was new or pending
	// when the first counter arrived. Cancellation during negotiation is only
	// possible when it was pending.
	StatusBeforeNegotiation OrderStatus `json:"statusBeforeNegotiation,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// ArchivedFrom keeps the terminal status the order had when archived.
	ArchivedFrom OrderStatus `json:"archivedFrom,omitempty"`
	ArchivedAt   *time.Time  `json:"archivedAt,omitempty"`
}

// Clone returns a deep copy so that state transitions never alias the
// caller's projection.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.OfferID != nil {
		v := *o.OfferID
		c.OfferID = &v
	}
	if o.RequestID != nil {
		v := *o.RequestID
		c.RequestID = &v
	}
	if o.CounterOfferedBy != nil {
		v := *o.CounterOfferedBy
		c.CounterOfferedBy = &v
	}
	if o.CounterPricePerUnit != nil {
		v := *o.CounterPricePerUnit
		c.CounterPricePerUnit = &v
	}
	if o.CounterQuantity != nil {
		v := *o.CounterQuantity
		c.CounterQuantity = &v
	}
	if o.CounterTotalAmount != nil {
		v := *o.CounterTotalAmount
		c.CounterTotalAmount = &v
	}
	if o.CounterOfferMessage != nil {
		v := *o.CounterOfferMessage
		c.CounterOfferMessage = &v
	}
	if o.ArchivedAt != nil {
		v := *o.ArchivedAt
		c.ArchivedAt = &v
	}
	return &c
}

// AwaitingParty returns the party whose response is expected while the order is
// negotiating, i.e. the side opposite to the last counter.
func (o *Order) AwaitingParty() Party {
	if o.CounterOfferedBy == nil {
		return ""
	}
	return o.CounterOfferedBy.Opposite()
}

// HasCounter reports whether a counter-offer overlay is present.
func (o *Order) HasCounter() bool {
	return o.CounterOfferedBy != nil && o.CounterPricePerUnit != nil
}
