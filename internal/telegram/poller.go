package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"stillframe/internal/logging"
)

const (
	pollBackoffInitial = time.Second
	pollBackoffMax     = time.Minute
	acknowledgeTimeout = 10 * time.Second
)

// Poller long-polls getUpdates and dispatches each update concurrently.
type Poller struct {
	api         API
	dispatcher  *Dispatcher
	pollTimeout time.Duration
	slots       *semaphore.Weighted
	logger      *slog.Logger
	inflight    sync.WaitGroup
}

// NewPoller builds a Poller allowing at most maxConcurrent updates in flight.
func NewPoller(api API, dispatcher *Dispatcher, pollTimeout time.Duration, maxConcurrent int, logger *slog.Logger) *Poller {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Poller{
		api:         api,
		dispatcher:  dispatcher,
		pollTimeout: pollTimeout,
		slots:       semaphore.NewWeighted(int64(maxConcurrent)),
		logger:      logging.NewComponentLogger(logger, "poller"),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight updates.
//
// Cancellation only stops polling. Updates already dispatched run to
// completion on a context detached from ctx so a render in progress still
// delivers and cleans up. Once they finish, the offset past the last
// dispatched update is confirmed so a restart does not replay them.
func (p *Poller) Run(ctx context.Context) error {
	// offset covers dispatched updates only; acked is the offset Telegram has
	// already seen on a successful getUpdates.
	var offset, acked int64
	defer func() {
		p.inflight.Wait()
		p.acknowledge(ctx, offset, acked)
	}()

	handlerCtx := context.WithoutCancel(ctx)
	backoff := pollBackoffInitial

	p.logger.Info("polling for updates",
		logging.Duration("poll_timeout", p.pollTimeout),
		logging.String(logging.FieldEventType, "poll_started"),
	)
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := p.api.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := backoff
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = apiErr.RetryAfter
			}
			logging.WarnWithContext(p.logger, "getUpdates failed", "poll_failed",
				logging.Error(err),
				logging.Duration("retry_in", wait),
				logging.String(logging.FieldErrorHint, "check network access and the bot token"),
				logging.String(logging.FieldImpact, "inbound messages are delayed"),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil
			}
			if backoff *= 2; backoff > pollBackoffMax {
				backoff = pollBackoffMax
			}
			continue
		}
		acked = offset
		backoff = pollBackoffInitial

		for _, update := range updates {
			if err := p.slots.Acquire(ctx, 1); err != nil {
				// Shutdown while waiting for a slot. This update and the rest
				// of the batch stay unconfirmed and are redelivered next run.
				return nil
			}
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			p.inflight.Add(1)
			go func(update Update) {
				defer p.inflight.Done()
				defer p.slots.Release(1)
				p.dispatch(handlerCtx, update)
			}(update)
		}
	}
}

// acknowledge confirms every update below offset with a non-blocking
// getUpdates call. Updates it happens to return are left unconfirmed.
func (p *Poller) acknowledge(ctx context.Context, offset, acked int64) {
	if offset <= acked {
		return
	}
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), acknowledgeTimeout)
	defer cancel()
	if _, err := p.api.GetUpdates(ackCtx, offset, 0); err != nil {
		logging.WarnWithContext(p.logger, "failed to confirm handled updates", "ack_failed",
			logging.Error(err),
			logging.Int64("offset", offset),
			logging.String(logging.FieldImpact, "handled updates are redelivered on restart"),
		)
		return
	}
	p.logger.Debug("confirmed handled updates", logging.Int64("offset", offset))
}

func (p *Poller) dispatch(ctx context.Context, update Update) {
	ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logging.WithContext(ctx, p.logger), "update handler panicked", "update_panic",
				logging.Int64("update_id", update.UpdateID),
				logging.Any("panic", r),
			)
		}
	}()
	p.dispatcher.Dispatch(ctx, update)
}
