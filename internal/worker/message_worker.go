package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Iseelight/interview-backend/internal/config"
)

// MessageWorker consumes persist_messages_queue and inserts transcript
// messages into PostgreSQL.
type MessageWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewMessageWorker creates a new MessageWorker.
func NewMessageWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *MessageWorker {
	return &MessageWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "message_worker").Logger(),
	}
}

type messagePayload struct {
	SessionID    string `json:"session_id"`
	Sender       string `json:"sender"`
	Text         string `json:"text"`
	VoiceSourced bool   `json:"voice_sourced"`
	Timestamp    int64  `json:"timestamp"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *MessageWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *MessageWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistMessagesQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload messagePayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistMessage(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Str("session_id", payload.SessionID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistMessagesQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *MessageWorker) persistMessage(ctx context.Context, p *messagePayload) error {
	sessionID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`INSERT INTO messages (session_id, sender, text, voice_sourced, sent_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sessionID, p.Sender, p.Text, p.VoiceSourced, time.Unix(p.Timestamp, 0),
	)
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *MessageWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistMessagesQueue).Result()
		if err != nil {
			break
		}

		var payload messagePayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistMessage(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistMessagesQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
