package negotiation

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOrderAPI struct {
	mock.Mock
}

func (m *mockOrderAPI) order(args mock.Arguments) (*models.Order, error) {
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrderAPI) GetOrder(ctx context.Context, id models.ID) (*models.Order, error) {
	return m.order(m.Called(ctx, id))
}

func (m *mockOrderAPI) AcceptOrder(ctx context.Context, id models.ID) (*models.Order, error) {
	return m.order(m.Called(ctx, id))
}

func (m *mockOrderAPI) CounterOrder(ctx context.Context, id models.ID, pricePerUnit, quantity float64, message string) (*models.Order, error) {
	return m.order(m.Called(ctx, id, pricePerUnit, quantity, message))
}

func (m *mockOrderAPI) AcceptCounter(ctx context.Context, id models.ID) (*models.Order, error) {
	return m.order(m.Called(ctx, id))
}

func (m *mockOrderAPI) RejectOrder(ctx context.Context, id models.ID) (*models.Order, error) {
	return m.order(m.Called(ctx, id))
}

func (m *mockOrderAPI) CancelOrder(ctx context.Context, id models.ID) (*models.Order, error) {
	return m.order(m.Called(ctx, id))
}

func (m *mockOrderAPI) MarkFulfilled(ctx context.Context, id models.ID) (*models.Order, error) {
	return m.order(m.Called(ctx, id))
}

func (m *mockOrderAPI) ConfirmReceipt(ctx context.Context, id models.ID) (*models.Order, error) {
	return m.order(m.Called(ctx, id))
}

func (m *mockOrderAPI) ArchiveOrder(ctx context.Context, id models.ID) (*models.Order, error) {
	return m.order(m.Called(ctx, id))
}

func TestService_PerformCounterSubmitsAndDiscardsDraft(t *testing.T) {
	api := &mockOrderAPI{}
	svc := NewService(api, NewMachine(clockwork.NewFakeClock()))
	ctx := context.Background()
	order := newOrder(models.OrderStatusNew)

	serverOrder := order.Clone()
	serverOrder.Status = models.OrderStatusNegotiating
	api.On("CounterOrder", ctx, models.ID("o-1"), 900.0, 10.0, "can ship Monday").Return(serverOrder, nil).Once()

	input := CounterInput{PricePerUnit: 900, Quantity: 10, Message: "can ship Monday"}
	svc.SaveDraft(order.ID, input)

	got, err := svc.Perform(ctx, order, Command{Action: ActionCounter, Role: models.PartySeller, Counter: &input})
	require.NoError(t, err)
	assert.Equal(t, serverOrder.ID, got.ID)
	assert.Equal(t, models.OrderStatusNegotiating, got.Status)
	assert.Equal(t, models.OrderStatusNew, got.StatusBeforeNegotiation)

	_, ok := svc.Draft(order.ID)
	assert.False(t, ok)
	api.AssertExpectations(t)
}

func TestService_PerformOutOfTurnNeverCallsAPI(t *testing.T) {
	api := &mockOrderAPI{}
	svc := NewService(api, NewMachine(clockwork.NewFakeClock()))
	order := newOrder(models.OrderStatusNew)

	svc.SaveDraft(order.ID, CounterInput{PricePerUnit: 1, Quantity: 1})

	_, err := svc.Perform(context.Background(), order, Command{Action: ActionAccept, Role: models.PartyBuyer})
	require.ErrorIs(t, err, ErrNotYourTurn)

	_, ok := svc.Draft(order.ID)
	assert.True(t, ok, "draft survives a local rejection")
	api.AssertNotCalled(t, "AcceptOrder", mock.Anything, mock.Anything)
}

func TestService_PerformAcceptOnNegotiatingRoutesToAcceptCounter(t *testing.T) {
	api := &mockOrderAPI{}
	svc := NewService(api, NewMachine(clockwork.NewFakeClock()))
	ctx := context.Background()

	by := models.PartyBuyer
	price := 950.0
	order := newOrder(models.OrderStatusNegotiating)
	order.CounterOfferedBy = &by
	order.CounterPricePerUnit = &price

	accepted := order.Clone()
	accepted.Status = models.OrderStatusAccepted
	api.On("AcceptCounter", ctx, order.ID).Return(accepted, nil).Once()

	got, err := svc.Perform(ctx, order, Command{Action: ActionAccept, Role: models.PartySeller})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAccepted, got.Status)
	api.AssertExpectations(t)
}

func TestService_PerformKeepsDraftOnNetworkFailure(t *testing.T) {
	api := &mockOrderAPI{}
	svc := NewService(api, NewMachine(clockwork.NewFakeClock()))
	ctx := context.Background()
	order := newOrder(models.OrderStatusNew)

	api.On("RejectOrder", ctx, order.ID).Return(nil, errors.New("connection reset")).Once()
	svc.SaveDraft(order.ID, CounterInput{PricePerUnit: 5, Quantity: 1})

	_, err := svc.Perform(ctx, order, Command{Action: ActionReject, Role: models.PartySeller})
	require.Error(t, err)
	assert.False(t, IsRejectedLocally(err))

	_, ok := svc.Draft(order.ID)
	assert.True(t, ok)
}

func TestService_CancelNegotiationThatStartedPending(t *testing.T) {
	ctx := context.Background()
	seller := models.PartySeller

	pending := newOrder(models.OrderStatusPending)
	negotiating := newOrder(models.OrderStatusNegotiating)
	negotiating.CounterOfferedBy = &seller
	cancelled := newOrder(models.OrderStatusCancelled)

	tests := []struct {
		name    string
		seen    []*models.Order
		wantErr error
	}{
		{name: "seen pending first", seen: []*models.Order{pending, negotiating}},
		{name: "only seen negotiating", seen: []*models.Order{negotiating}, wantErr: ErrCannotCancelInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockOrderAPI{}
			svc := NewService(api, NewMachine(clockwork.NewFakeClock()))

			var loaded *models.Order
			for _, o := range tt.seen {
				api.On("GetOrder", ctx, o.ID).Return(o.Clone(), nil).Once()
				var err error
				loaded, err = svc.Load(ctx, o.ID)
				require.NoError(t, err)
			}
			api.On("CancelOrder", ctx, loaded.ID).Return(cancelled.Clone(), nil).Maybe()

			got, err := svc.Perform(ctx, loaded, Command{Action: ActionCancel, Role: models.PartyBuyer})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				api.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusCancelled, got.Status)
			api.AssertExpectations(t)
		})
	}
}

func TestRoleOf(t *testing.T) {
	order := newOrder(models.OrderStatusNew)

	role, err := RoleOf(order, "s-1")
	require.NoError(t, err)
	assert.Equal(t, models.PartySeller, role)

	role, err = RoleOf(order, "b-1")
	require.NoError(t, err)
	assert.Equal(t, models.PartyBuyer, role)

	_, err = RoleOf(order, "x")
	assert.ErrorIs(t, err, ErrNotParticipant)
}
