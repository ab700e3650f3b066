package marketplace_client

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bazaar/go/clients"
)

type MarketplaceClient struct {
	*clients.BaseClient
	clock clockwork.Clock
}

func NewMarketplaceClient(baseURL, token string, clock clockwork.Clock) *MarketplaceClient {
	client := &MarketplaceClient{
		BaseClient: clients.NewBaseClient(baseURL),
		clock:      clock,
	}

	client.SetHeader(JsonHeader, JsonContentType)
	if token != "" {
		client.SetHeader(AuthHeader, "Bearer "+token)
	}

	return client
}

// post tags every mutating request with a fresh request id so server logs
// can be matched to ours.
func (c *MarketplaceClient) post(ctx context.Context, endpoint string, body io.Reader) ([]byte, string, error) {
	requestID := uuid.NewString()
	data, err := c.MakeRequestWithHeaders(ctx, http.MethodPost, endpoint, body,
		map[string]string{RequestIDHeader: requestID})
	return data, requestID, err
}
