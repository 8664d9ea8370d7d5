package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"rentalhub/internal/events"
	"rentalhub/internal/lock"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultQueueKey      = "rentalhub:reports:queue"
	defaultDeadLetterKey = "rentalhub:reports:deadletter"
	monthKeyLayout       = "2006-01"

	// maxMonthsPerRental bounds the fan-out of a single long rental.
	maxMonthsPerRental = 12
)

var ErrQueueFull = errors.New("report queue is full")

// ReportTask asks for the workbook of one calendar month to be rebuilt.
type ReportTask struct {
	Month      time.Time `json:"month"`
	Attempt    int       `json:"attempt"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ReportWriter renders and stores the workbook for [from, to).
type ReportWriter interface {
	SaveFile(ctx context.Context, from, to time.Time) (string, error)
}

// RetryPolicy bounds how often a failed rebuild is retried.
type RetryPolicy struct {
	MaxRetries int
	Backoff    lock.RetryPolicy
}

// ReportWorker keeps the monthly export workbooks current. Tasks travel through
// a redis list when one is configured and through an in-memory queue otherwise.
type ReportWorker struct {
	reports       ReportWriter
	redis         *redis.Client
	retry         RetryPolicy
	queue         chan ReportTask
	queueKey      string
	deadLetterKey string
	pollTimeout   time.Duration
	logger        *zerolog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewReportWorker(reports ReportWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *ReportWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.Backoff.InitialDelay == 0 {
		retry.Backoff.InitialDelay = 2 * time.Second
	}
	if retry.Backoff.MaxDelay == 0 {
		retry.Backoff.MaxDelay = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &ReportWorker{
		reports:       reports,
		redis:         redisClient,
		retry:         retry,
		queue:         make(chan ReportTask, 128),
		queueKey:      defaultQueueKey,
		deadLetterKey: defaultDeadLetterKey,
		pollTimeout:   time.Second,
		logger:        logger,
		pending:       make(map[string]struct{}),
	}
}

// Subscribe hooks the worker to rental and payment events on the bus.
func (w *ReportWorker) Subscribe(bus *events.EventBus) {
	for _, t := range []string{
		events.EventRentalCreated,
		events.EventRentalUpdated,
		events.EventRentalStatusChanged,
		events.EventRentalDeleted,
	} {
		bus.Subscribe(t, w.handleRentalEvent)
	}
	bus.Subscribe(events.EventPaymentRecorded, w.handlePaymentEvent)
	bus.Subscribe(events.EventPaymentDeleted, w.handlePaymentEvent)
}

func (w *ReportWorker) handleRentalEvent(e *events.Event) error {
	var payload events.RentalEventPayload
	if err := e.Decode(&payload); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	month := monthStart(payload.StartAt)
	last := monthStart(payload.EndAt)
	for i := 0; i < maxMonthsPerRental && !month.After(last); i++ {
		if err := w.EnqueueMonth(ctx, month, e.Type); err != nil {
			return err
		}
		month = month.AddDate(0, 1, 0)
	}
	return nil
}

func (w *ReportWorker) handlePaymentEvent(e *events.Event) error {
	var payload events.PaymentEventPayload
	if err := e.Decode(&payload); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return w.EnqueueMonth(ctx, payload.PaidAt, e.Type)
}

// EnqueueMonth schedules a rebuild of the month containing t. A month that is
// already waiting is not queued twice.
func (w *ReportWorker) EnqueueMonth(ctx context.Context, t time.Time, reason string) error {
	task := ReportTask{Month: monthStart(t), Reason: reason, EnqueuedAt: time.Now().UTC()}
	if !w.markPending(task.Month) {
		return nil
	}
	if err := w.push(ctx, task); err != nil {
		w.clearPending(task.Month)
		return err
	}
	return nil
}

func (w *ReportWorker) push(ctx context.Context, task ReportTask) error {
	if w.redis != nil {
		err := w.pushRedis(ctx, task)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Msg("redis push failed, falling back to memory queue")
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the consume loop until ctx is done.
func (w *ReportWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("report worker started")
	defer w.logger.Info().Msg("report worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if w.redis != nil {
			if t, ok := w.tryRedis(ctx); ok {
				w.processTask(ctx, &t)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, &t)
		}
	}
}

func (w *ReportWorker) tryLocalQueue() (ReportTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return ReportTask{}, false
	}
}

func (w *ReportWorker) tryRedis(ctx context.Context) (ReportTask, bool) {
	res, err := w.redis.BRPop(ctx, w.pollTimeout, w.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return ReportTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP failed")
		select {
		case <-ctx.Done():
		case <-time.After(w.pollTimeout):
		}
		return ReportTask{}, false
	}
	if len(res) != 2 {
		return ReportTask{}, false
	}

	var task ReportTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return ReportTask{}, false
	}
	return task, true
}

func (w *ReportWorker) processTask(ctx context.Context, task *ReportTask) {
	w.clearPending(task.Month)

	from := task.Month
	to := from.AddDate(0, 1, 0)
	path, err := w.reports.SaveFile(ctx, from, to)
	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	w.logger.Info().
		Str("month", from.Format(monthKeyLayout)).
		Str("reason", task.Reason).
		Str("file_path", path).
		Msg("report rebuilt")
}

func (w *ReportWorker) retryOrFail(ctx context.Context, task *ReportTask, cause error) {
	attempt := task.Attempt + 1
	log := w.logger.With().
		Str("month", task.Month.Format(monthKeyLayout)).
		Int("attempt", attempt).
		Logger()

	if attempt >= w.retry.MaxRetries {
		log.Error().Err(cause).Msg("report rebuild failed permanently")
		w.pushDeadLetter(ctx, task)
		return
	}

	delay := w.retry.Backoff.NextDelay(attempt)
	log.Warn().Err(cause).Dur("retry_in", delay).Msg("report rebuild failed")

	retry := *task
	retry.Attempt = attempt
	time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.push(context.WithoutCancel(ctx), retry); err != nil {
			log.Error().Err(err).Msg("requeue report task")
		}
	})
}

func (w *ReportWorker) pushRedis(ctx context.Context, task ReportTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.queueKey, data).Err()
}

func (w *ReportWorker) pushDeadLetter(ctx context.Context, task *ReportTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Msg("encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Msg("dead letter push")
	}
}

func (w *ReportWorker) markPending(month time.Time) bool {
	key := month.Format(monthKeyLayout)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[key]; ok {
		return false
	}
	w.pending[key] = struct{}{}
	return true
}

func (w *ReportWorker) clearPending(month time.Time) {
	w.mu.Lock()
	delete(w.pending, month.Format(monthKeyLayout))
	w.mu.Unlock()
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
