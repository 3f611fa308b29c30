package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Iseelight/interview-backend/internal/config"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// AlertWorker consumes persist_alerts_queue and bulk-inserts security
// alerts into PostgreSQL.
type AlertWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAlertWorker creates a new AlertWorker.
func NewAlertWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AlertWorker {
	return &AlertWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "alert_worker").Logger(),
	}
}

type alertPayload struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AlertWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AlertWorker started")

	buffer := make([]*alertPayload, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check flush conditions (time or size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check context (graceful shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
			// Continue
		}

		// 3. Fetch from Redis. BLPop blocks for 1 second and returns
		// immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAlertsQueue).Result()

		if err != nil {
			if err == redis.Nil {
				continue // Timeout (queue empty), loop back to check flush timer
			}
			if ctx.Err() != nil {
				return // Context cancelled
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload alertPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *AlertWorker) flushSafe(ctx context.Context, batch []*alertPayload) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *AlertWorker) bulkInsert(ctx context.Context, batch []*alertPayload) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, p := range batch {
		sessionID, err := uuid.Parse(p.SessionID)
		if err != nil {
			// Trigger fallback, which handles the bad UUID individually
			return err
		}
		rows = append(rows, []interface{}{
			sessionID, p.Kind, p.Severity, p.Message, time.Unix(p.Timestamp, 0),
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"security_alerts"},
		[]string{"session_id", "kind", "severity", "message", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *AlertWorker) fallbackInsert(ctx context.Context, batch []*alertPayload) {
	requeueList := make([]*alertPayload, 0)

	for _, p := range batch {
		sessionID, err := uuid.Parse(p.SessionID)
		if err != nil {
			w.log.Error().Str("session_id", p.SessionID).Msg("Dropping alert with invalid UUID")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO security_alerts (session_id, kind, severity, message, recorded_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			sessionID, p.Kind, p.Severity, p.Message, time.Unix(p.Timestamp, 0),
		)

		if err != nil {
			w.log.Error().Err(err).Str("session_id", p.SessionID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *AlertWorker) requeue(ctx context.Context, items []*alertPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.PersistAlertsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Avoid thrashing if the database is down hard
		time.Sleep(2 * time.Second)
	}
}

func (w *AlertWorker) shutdown(buffer []*alertPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
