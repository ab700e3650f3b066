package marketplace_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/bazaar/go/internal/models"
	"github.com/rs/zerolog/log"
)

type CounterRequest struct {
	PricePerUnit float64 `json:"pricePerUnit"`
	Quantity     float64 `json:"quantity"`
	Message      string  `json:"message,omitempty"`
}

func decodeOrder(body []byte) (*models.Order, error) {
	var order models.Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return &order, nil
}

func (c *MarketplaceClient) GetOrder(ctx context.Context, id models.ID) (*models.Order, error) {
	body, err := c.Get(ctx, fmt.Sprintf(orderPath, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return decodeOrder(body)
}

func (c *MarketplaceClient) orderAction(ctx context.Context, id models.ID, segment string, payload any) (*models.Order, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", segment, err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader([]byte("{}"))
	}

	resp, requestID, err := c.post(ctx, fmt.Sprintf(orderAction, id, segment), body)
	if err != nil {
		return nil, fmt.Errorf("failed to %s order %s: %w", segment, id, err)
	}

	log.Debug().
		Str("order_id", id.String()).
		Str("action", segment).
		Str("request_id", requestID).
		Msg("order action submitted")

	return decodeOrder(resp)
}

func (c *MarketplaceClient) AcceptOrder(ctx context.Context, id models.ID) (*models.Order, error) {
	return c.orderAction(ctx, id, segmentAccept, nil)
}

func (c *MarketplaceClient) CounterOrder(ctx context.Context, id models.ID, pricePerUnit, quantity float64, message string) (*models.Order, error) {
	return c.orderAction(ctx, id, segmentCounter, CounterRequest{
		PricePerUnit: pricePerUnit,
		Quantity:     quantity,
		Message:      message,
	})
}

func (c *MarketplaceClient) AcceptCounter(ctx context.Context, id models.ID) (*models.Order, error) {
	return c.orderAction(ctx, id, segmentAcceptCounter, nil)
}

func (c *MarketplaceClient) RejectOrder(ctx context.Context, id models.ID) (*models.Order, error) {
	return c.orderAction(ctx, id, segmentReject, nil)
}

func (c *MarketplaceClient) CancelOrder(ctx context.Context, id models.ID) (*models.Order, error) {
	return c.orderAction(ctx, id, segmentCancel, nil)
}

func (c *MarketplaceClient) MarkFulfilled(ctx context.Context, id models.ID) (*models.Order, error) {
	return c.orderAction(ctx, id, segmentFulfill, nil)
}

func (c *MarketplaceClient) ConfirmReceipt(ctx context.Context, id models.ID) (*models.Order, error) {
	return c.orderAction(ctx, id, segmentComplete, nil)
}

func (c *MarketplaceClient) ArchiveOrder(ctx context.Context, id models.ID) (*models.Order, error) {
	return c.orderAction(ctx, id, segmentArchive, nil)
}
