package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hackgods/appointment-routing-saga/internal/consumer"
	"github.com/hackgods/appointment-routing-saga/internal/messaging"
	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

type queue interface {
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]messaging.ReceivedMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
	URL() string
}

type deadLetterQueue interface {
	Send(ctx context.Context, body string, attrs map[string]string) error
}

// Config controls one poll-process-ack loop.
type Config struct {
	Name            string
	BatchSize       int
	WaitSeconds     int
	PollInterval    time.Duration
	MaxReceiveCount int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 || c.BatchSize > 10 {
		c.BatchSize = 10
	}
	if c.WaitSeconds < 0 {
		c.WaitSeconds = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxReceiveCount <= 0 {
		c.MaxReceiveCount = 3
	}
	return c
}

// Poller feeds one queue into a batch handler. Acknowledged messages are
// deleted, failed ones are left for redelivery until they reach the receive
// limit and are moved to the dead-letter queue.
type Poller struct {
	queue   queue
	handler consumer.BatchHandler
	dlq     deadLetterQueue
	cfg     Config
	logger  *logging.Logger
	metrics *metrics.SagaMetrics
}

func NewPoller(q queue, h consumer.BatchHandler, dlq deadLetterQueue, cfg Config, logger *logging.Logger, m *metrics.SagaMetrics) *Poller {
	if logger == nil {
		logger = logging.Default()
	}
	cfg = cfg.withDefaults()
	return &Poller{
		queue:   q,
		handler: h,
		dlq:     dlq,
		cfg:     cfg,
		logger:  logger.With("poller", cfg.Name),
		metrics: m,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		"queue_url", p.queue.URL(),
		"batch_size", p.cfg.BatchSize,
		"interval", p.cfg.PollInterval.String(),
	)
	for {
		n, err := p.PollOnce(ctx)
		if ctx.Err() != nil {
			p.logger.Info("poller stopped")
			return nil
		}
		if err != nil {
			p.logger.Warn("poll failed", "error", err)
		}
		if err == nil && n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// PollOnce runs a single receive-handle-ack cycle and returns the number of
// messages received.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	received, err := p.queue.Receive(ctx, p.cfg.BatchSize, p.cfg.WaitSeconds)
	if err != nil {
		return 0, err
	}
	if len(received) == 0 {
		return 0, nil
	}

	msgs := make([]consumer.Message, 0, len(received))
	for _, r := range received {
		msgs = append(msgs, consumer.Message{ID: r.ID, Body: r.Body, ReceiveCount: r.ReceiveCount})
	}
	res := p.handler.HandleBatch(ctx, msgs)

	failed := make(map[string]bool, len(res.Failed))
	for _, id := range res.Failed {
		failed[id] = true
	}

	var errs []error
	for _, r := range received {
		if failed[r.ID] {
			if r.ReceiveCount < p.cfg.MaxReceiveCount || p.dlq == nil {
				continue
			}
			if err := p.deadLetter(ctx, r); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if err := p.queue.Delete(ctx, r.ReceiptHandle); err != nil {
			errs = append(errs, err)
		}
	}
	return len(received), errors.Join(errs...)
}

func (p *Poller) deadLetter(ctx context.Context, r messaging.ReceivedMessage) error {
	attrs := map[string]string{
		"deadLetterReason": "max_receive_count",
		"sourceQueue":      p.cfg.Name,
		"receiveCount":     strconv.Itoa(r.ReceiveCount),
	}
	if err := p.dlq.Send(ctx, r.Body, attrs); err != nil {
		return err
	}
	p.metrics.ObserveDeadLetter(p.cfg.Name, "max_receive_count")
	p.logger.Error("message moved to dead-letter queue",
		"message_id", r.ID,
		"receive_count", r.ReceiveCount,
	)
	return nil
}
