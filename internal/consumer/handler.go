package consumer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

const defaultConcurrency = 5

// Message is one delivered queue message.
type Message struct {
	ID           string
	Body         string
	ReceiveCount int
}

// BatchResult lists the messages that must be redelivered.
type BatchResult struct {
	Total  int
	Failed []string
}

func (r BatchResult) HasFailures() bool { return len(r.Failed) > 0 }

// BatchHandler processes a batch with per-message independence.
type BatchHandler interface {
	HandleBatch(ctx context.Context, msgs []Message) BatchResult
}

type creationProcessor interface {
	Process(ctx context.Context, msg appointment.CreationMessage) error
}

type completionConfirmer interface {
	Confirm(ctx context.Context, ev appointment.CompletionEvent) error
}

// Options tune a batch handler. Zero values pick defaults.
type Options struct {
	Concurrency    int
	MessageTimeout time.Duration
}

// ProcessorHandler is the country processor entry point.
type ProcessorHandler struct {
	processor creationProcessor
	opts      Options
	logger    *logging.Logger
}

func NewProcessorHandler(p creationProcessor, opts Options, logger *logging.Logger) *ProcessorHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ProcessorHandler{processor: p, opts: opts, logger: logger.With("handler", "country_processor")}
}

func (h *ProcessorHandler) HandleBatch(ctx context.Context, msgs []Message) BatchResult {
	return runBatch(ctx, msgs, h.opts, h.logger, func(ctx context.Context, m Message) error {
		msg, err := UnwrapCreation([]byte(m.Body))
		if err != nil {
			return err
		}
		return h.processor.Process(ctx, msg)
	})
}

// ConfirmationHandler is the confirmation entry point.
type ConfirmationHandler struct {
	confirmer completionConfirmer
	opts      Options
	logger    *logging.Logger
}

func NewConfirmationHandler(c completionConfirmer, opts Options, logger *logging.Logger) *ConfirmationHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfirmationHandler{confirmer: c, opts: opts, logger: logger.With("handler", "confirmation")}
}

func (h *ConfirmationHandler) HandleBatch(ctx context.Context, msgs []Message) BatchResult {
	return runBatch(ctx, msgs, h.opts, h.logger, func(ctx context.Context, m Message) error {
		ev, err := UnwrapCompletion([]byte(m.Body))
		if err != nil {
			return err
		}
		return h.confirmer.Confirm(ctx, ev)
	})
}

// runBatch runs fn for every message with bounded concurrency. One failure
// never stops the others.
func runBatch(ctx context.Context, msgs []Message, opts Options, logger *logging.Logger, fn func(context.Context, Message) error) BatchResult {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	var (
		mu     sync.Mutex
		failed = make([]bool, len(msgs))
		g      errgroup.Group
	)
	g.SetLimit(limit)

	for i, m := range msgs {
		g.Go(func() error {
			msgCtx := ctx
			if opts.MessageTimeout > 0 {
				var cancel context.CancelFunc
				msgCtx, cancel = context.WithTimeout(ctx, opts.MessageTimeout)
				defer cancel()
			}

			err := fn(msgCtx, m)
			if err == nil {
				return nil
			}

			mu.Lock()
			failed[i] = true
			mu.Unlock()

			attrs := []any{
				"message_id", m.ID,
				"receive_count", m.ReceiveCount,
				"code", appointment.ErrorCode(err),
				"error", err,
			}
			if appointment.IsPermanent(err) {
				logger.Error("message rejected, will dead-letter after retries", attrs...)
			} else {
				logger.Warn("message failed, will be redelivered", attrs...)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Total: len(msgs)}
	for i, f := range failed {
		if f {
			res.Failed = append(res.Failed, msgs[i].ID)
		}
	}
	if res.HasFailures() {
		logger.Info("batch finished with failures", "total", res.Total, "failed", len(res.Failed))
	}
	return res
}
