package negotiation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(status models.OrderStatus) *models.Order {
	return &models.Order{
		ID:           "o-1",
		BuyerID:      "b-1",
		SellerID:     "s-1",
		Quantity:     10,
		Unit:         "t",
		PricePerUnit: 1000,
		TotalAmount:  10000,
		Status:       status,
	}
}

func counter(role models.Party, price, qty float64) Command {
	return Command{Action: ActionCounter, Role: role, Counter: &CounterInput{PricePerUnit: price, Quantity: qty}}
}

func TestMachine_CounterThenCounterThenAccept(t *testing.T) {
	m := NewMachine(clockwork.NewFakeClock())
	order := newOrder(models.OrderStatusNew)

	order, err := m.Apply(order, counter(models.PartySeller, 900, 10))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusNegotiating, order.Status)
	require.NotNil(t, order.CounterOfferedBy)
	assert.Equal(t, models.PartySeller, *order.CounterOfferedBy)

	order, err = m.Apply(order, counter(models.PartyBuyer, 950, 10))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusNegotiating, order.Status)
	assert.Equal(t, models.PartyBuyer, *order.CounterOfferedBy)

	order, err = m.Apply(order, Command{Action: ActionAccept, Role: models.PartySeller})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAccepted, order.Status)
	assert.Equal(t, 950.0, order.PricePerUnit)
	assert.Equal(t, 10.0, order.Quantity)
	assert.Equal(t, 9500.0, order.TotalAmount)
	assert.False(t, order.BuyerAcceptedCounter)
}

func TestMachine_BuyerAcceptingCounterSetsFlag(t *testing.T) {
	m := NewMachine(clockwork.NewFakeClock())
	order, err := m.Apply(newOrder(models.OrderStatusNew), counter(models.PartySeller, 900, 5))
	require.NoError(t, err)

	order, err = m.Apply(order, Command{Action: ActionAcceptCounter, Role: models.PartyBuyer})
	require.NoError(t, err)
	assert.True(t, order.BuyerAcceptedCounter)
	assert.Equal(t, 4500.0, order.TotalAmount)
	assert.Equal(t, 5.0, order.Quantity)
}

func TestMachine_CounterClearsBuyerAcceptedCounter(t *testing.T) {
	m := NewMachine(clockwork.NewFakeClock())
	by := models.PartySeller
	price := 10.0
	order := newOrder(models.OrderStatusNegotiating)
	order.CounterOfferedBy = &by
	order.CounterPricePerUnit = &price
	order.BuyerAcceptedCounter = true

	next, err := m.Apply(order, counter(models.PartyBuyer, 11, 1))
	require.NoError(t, err)
	assert.False(t, next.BuyerAcceptedCounter)
	assert.True(t, order.BuyerAcceptedCounter, "input must not be mutated")
}

func TestMachine_Errors(t *testing.T) {
	sellerCountered := func() *models.Order {
		o := newOrder(models.OrderStatusNegotiating)
		by := models.PartySeller
		p, q, total := 900.0, 10.0, 9000.0
		o.CounterOfferedBy = &by
		o.CounterPricePerUnit = &p
		o.CounterQuantity = &q
		o.CounterTotalAmount = &total
		o.StatusBeforeNegotiation = models.OrderStatusNew
		return o
	}
	available := 5.0

	tests := []struct {
		name    string
		order   *models.Order
		cmd     Command
		wantErr error
	}{
		{
			name:    "seller_counters_twice",
			order:   sellerCountered(),
			cmd:     counter(models.PartySeller, 800, 10),
			wantErr: ErrNotYourTurn,
		},
		{
			name:    "seller_accepts_own_counter",
			order:   sellerCountered(),
			cmd:     Command{Action: ActionAcceptCounter, Role: models.PartySeller},
			wantErr: ErrNotYourTurn,
		},
		{
			name:    "buyer_accepts_new_order",
			order:   newOrder(models.OrderStatusNew),
			cmd:     Command{Action: ActionAccept, Role: models.PartyBuyer},
			wantErr: ErrNotYourTurn,
		},
		{
			name:    "zero_price",
			order:   newOrder(models.OrderStatusNew),
			cmd:     counter(models.PartySeller, 0, 1),
			wantErr: ErrInvalidCounter,
		},
		{
			name:  "quantity_above_available",
			order: newOrder(models.OrderStatusNew),
			cmd: Command{Action: ActionCounter, Role: models.PartySeller, Counter: &CounterInput{
				PricePerUnit: 10, Quantity: 6, OfferAvailableQuantity: &available,
			}},
			wantErr: ErrInvalidCounter,
		},
		{
			name:    "cancel_accepted",
			order:   newOrder(models.OrderStatusAccepted),
			cmd:     Command{Action: ActionCancel, Role: models.PartyBuyer},
			wantErr: ErrCannotCancelInProgress,
		},
		{
			name:    "cancel_negotiation_started_from_new",
			order:   sellerCountered(),
			cmd:     Command{Action: ActionCancel, Role: models.PartyBuyer},
			wantErr: ErrCannotCancelInProgress,
		},
		{
			name:    "counter_completed",
			order:   newOrder(models.OrderStatusCompleted),
			cmd:     counter(models.PartySeller, 1, 1),
			wantErr: ErrTerminal,
		},
		{
			name:    "archive_twice",
			order:   newOrder(models.OrderStatusArchived),
			cmd:     Command{Action: ActionArchive, Role: models.PartySeller},
			wantErr: ErrTerminal,
		},
		{
			name:    "archive_open_order",
			order:   newOrder(models.OrderStatusNew),
			cmd:     Command{Action: ActionArchive, Role: models.PartySeller},
			wantErr: ErrIllegalTransition,
		},
		{
			name:    "buyer_marks_fulfilled",
			order:   newOrder(models.OrderStatusAccepted),
			cmd:     Command{Action: ActionMarkFulfilled, Role: models.PartyBuyer},
			wantErr: ErrNotYourTurn,
		},
		{
			name:    "unknown_role",
			order:   newOrder(models.OrderStatusNew),
			cmd:     Command{Action: ActionAccept, Role: "courier"},
			wantErr: ErrNotParticipant,
		},
	}

	m := NewMachine(clockwork.NewFakeClock())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.order.Clone()
			next, err := m.Apply(tt.order, tt.cmd)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, next)
			assert.Equal(t, before, tt.order)
			assert.True(t, IsRejectedLocally(err))
		})
	}
}

func TestMachine_CancelFromPendingNegotiation(t *testing.T) {
	m := NewMachine(clockwork.NewFakeClock())
	order, err := m.Apply(newOrder(models.OrderStatusPending), counter(models.PartySeller, 900, 10))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.StatusBeforeNegotiation)

	order, err = m.Apply(order, Command{Action: ActionCancel, Role: models.PartyBuyer})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
}

func TestMachine_FulfilmentAndArchive(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	m := NewMachine(clock)

	order, err := m.Apply(newOrder(models.OrderStatusNew), Command{Action: ActionAccept, Role: models.PartySeller})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAccepted, order.Status)

	order, err = m.Apply(order, Command{Action: ActionMarkFulfilled, Role: models.PartySeller})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingPayment, order.Status)

	order, err = m.Apply(order, Command{Action: ActionConfirmReceipt, Role: models.PartyBuyer})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)

	order, err = m.Apply(order, Command{Action: ActionArchive, Role: models.PartyBuyer})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusArchived, order.Status)
	assert.Equal(t, models.OrderStatusCompleted, order.ArchivedFrom)
	require.NotNil(t, order.ArchivedAt)
	assert.Equal(t, clock.Now().UTC(), *order.ArchivedAt)
}

func TestMachine_Actions(t *testing.T) {
	m := NewMachine(clockwork.NewFakeClock())
	order := newOrder(models.OrderStatusNew)

	assert.ElementsMatch(t,
		[]Action{ActionAccept, ActionCounter, ActionReject, ActionCancel},
		m.Actions(order, models.PartySeller))
	assert.ElementsMatch(t,
		[]Action{ActionCancel},
		m.Actions(order, models.PartyBuyer))
	assert.Empty(t, m.Actions(newOrder(models.OrderStatusArchived), models.PartyBuyer))
}

// Random walks over the state machine must keep the turn invariants.
func TestMachine_RandomSequencesKeepTurnInvariant(t *testing.T) {
	m := NewMachine(clockwork.NewFakeClock())
	rng := rand.New(rand.NewSource(42))
	roles := []models.Party{models.PartyBuyer, models.PartySeller}

	for run := 0; run < 500; run++ {
		order := newOrder(models.OrderStatusNew)
		for step := 0; step < 12; step++ {
			role := roles[rng.Intn(2)]
			var cmd Command
			if rng.Intn(2) == 0 {
				cmd = counter(role, float64(rng.Intn(1000)+1), float64(rng.Intn(10)+1))
			} else {
				cmd = Command{Action: ActionAccept, Role: role}
			}

			prev := order
			next, err := m.Apply(order, cmd)
			if err != nil {
				continue
			}

			switch cmd.Action {
			case ActionCounter:
				require.NotNil(t, next.CounterOfferedBy)
				require.Equal(t, role, *next.CounterOfferedBy)
				if prev.Status == models.OrderStatusNegotiating {
					require.NotEqual(t, role, *prev.CounterOfferedBy)
				}
			case ActionAccept:
				if prev.Status == models.OrderStatusNegotiating {
					require.Equal(t, models.OrderStatusAccepted, next.Status)
					require.NotEqual(t, role, *prev.CounterOfferedBy)
				}
			}
			order = next
		}
	}
}
