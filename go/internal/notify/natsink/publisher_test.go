package natsink

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mcdev12/bazaar/go/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_CarriesRoutingHeaders(t *testing.T) {
	id := notify.NotificationID("a-1", notify.KindAuctionSeller)
	env := notify.Envelope{
		ID:        id,
		Kind:      notify.KindAuctionSeller,
		AuctionID: "a-1",
		Payload:   json.RawMessage(`{"winnerName":"Агро-Юг"}`),
		CreatedAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	msg, err := Message("auction.notifications", env)
	require.NoError(t, err)

	assert.Equal(t, "auction.notifications.seller", msg.Subject)
	assert.Equal(t, "seller", msg.Header.Get("Notification-Kind"))
	assert.Equal(t, "a-1", msg.Header.Get("Auction-ID"))
	assert.Equal(t, id.String(), msg.Header.Get("Notification-ID"))

	var decoded notify.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, env.ID, decoded.ID)
	assert.JSONEq(t, `{"winnerName":"Агро-Юг"}`, string(decoded.Payload))
}

func TestStreamConfig_CoversAllKinds(t *testing.T) {
	p := &JetStreamPublisher{config: DefaultJetStreamConfig()}
	sc := p.streamConfig()

	assert.Equal(t, []string{"auction.notifications.>"}, sc.Subjects)
	assert.Equal(t, 24*time.Hour, sc.Duplicates)
	assert.True(t, isStreamConfigEqual(sc, p.streamConfig()))
}
