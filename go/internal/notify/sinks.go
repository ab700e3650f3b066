package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// LogSink only logs notifications; used in development.
type LogSink struct{}

func (LogSink) NotifyAuctionWinner(ctx context.Context, n WinnerNotification) error {
	log.Info().
		Str("notification_id", n.ID.String()).
		Str("user_id", n.UserID.String()).
		Str("auction_id", n.AuctionID.String()).
		Str("title", n.AuctionTitle).
		Float64("amount", n.Amount).
		Msg("notify auction winner")
	return nil
}

func (LogSink) NotifyAuctionSeller(ctx context.Context, n SellerNotification) error {
	log.Info().
		Str("notification_id", n.ID.String()).
		Str("seller_id", n.SellerID.String()).
		Str("auction_id", n.AuctionID.String()).
		Str("title", n.AuctionTitle).
		Str("winner_name", n.WinnerName).
		Float64("amount", n.Amount).
		Msg("notify auction seller")
	return nil
}

// LogPublisher logs envelopes instead of transporting them.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, env Envelope) error {
	log.Info().
		Str("notification_id", env.ID.String()).
		Str("kind", string(env.Kind)).
		Str("auction_id", env.AuctionID.String()).
		RawJSON("payload", env.Payload).
		Msg("notification published")
	return nil
}

// MultiSink fans a notification out to several sinks.
type MultiSink []Sink

func (m MultiSink) NotifyAuctionWinner(ctx context.Context, n WinnerNotification) error {
	var errs []error
	for _, s := range m {
		if err := s.NotifyAuctionWinner(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) NotifyAuctionSeller(ctx context.Context, n SellerNotification) error {
	var errs []error
	for _, s := range m {
		if err := s.NotifyAuctionSeller(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishingSink wraps notifications into envelopes for a Publisher.
type PublishingSink struct {
	publisher Publisher
	clock     clockwork.Clock
}

// NewPublishingSink creates a sink that hands envelopes to publisher.
func NewPublishingSink(publisher Publisher, clock clockwork.Clock) *PublishingSink {
	return &PublishingSink{publisher: publisher, clock: clock}
}

func (s *PublishingSink) NotifyAuctionWinner(ctx context.Context, n WinnerNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal winner notification: %w", err)
	}
	return s.publisher.Publish(ctx, Envelope{
		ID:        n.ID,
		Kind:      KindAuctionWinner,
		AuctionID: n.AuctionID,
		Payload:   payload,
		CreatedAt: s.clock.Now().UTC(),
	})
}

func (s *PublishingSink) NotifyAuctionSeller(ctx context.Context, n SellerNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal seller notification: %w", err)
	}
	return s.publisher.Publish(ctx, Envelope{
		ID:        n.ID,
		Kind:      KindAuctionSeller,
		AuctionID: n.AuctionID,
		Payload:   payload,
		CreatedAt: s.clock.Now().UTC(),
	})
}
