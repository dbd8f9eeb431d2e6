package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starford/smartmarks/internal/models"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "smartmarks:changes"

// RedisOptions configures the relay connection.
type RedisOptions struct {
	Addr           string
	Username       string
	Password       string
	DB             int
	Channel        string
	ConnectTimeout time.Duration // total time allowed for the initial ping loop
	RetryInterval  time.Duration // first wait between pings, doubled up to MaxWait
	MaxWait        time.Duration
	PingTimeout    time.Duration
}

func (o *RedisOptions) defaults() {
	if o.Channel == "" {
		o.Channel = DefaultChannel
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 500 * time.Millisecond
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 5 * time.Second
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 2 * time.Second
	}
}

// ConnectRedis creates a client and pings it with exponential backoff until
// ConnectTimeout elapses.
func ConnectRedis(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*redis.Client, error) {
	opts.defaults()
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	logger.Info("connecting to redis", slog.String("addr", opts.Addr))
	wait := opts.RetryInterval
	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()
		if err == nil {
			logger.Info("connected to redis", slog.String("addr", opts.Addr), slog.Int("attempts", attempt))
			return client, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = client.Close()
			return nil, fmt.Errorf("redis unavailable at %s after %d attempts: %w", opts.Addr, attempt, err)
		case <-timer.C:
			logger.Warn("redis connection failed, retrying",
				slog.String("addr", opts.Addr),
				slog.Int("attempt", attempt),
				slog.Duration("next_retry_in", wait),
				slog.String("error", err.Error()))
			wait *= 2
			if wait > opts.MaxWait {
				wait = opts.MaxWait
			}
		}
	}
}

// envelope is the relay message. It carries the owner so the receiving
// process can scope delivery, which the SSE frame alone does not for deletes.
type envelope struct {
	Type    models.ChangeType `json:"type"`
	OwnerID string            `json:"user_id"`
	New     *models.Bookmark  `json:"new,omitempty"`
	OldID   string            `json:"old_id,omitempty"`
	Origin  string            `json:"origin"`
}

func marshalEnvelope(c models.Change, origin string) ([]byte, error) {
	return json.Marshal(envelope{Type: c.Type, OwnerID: c.OwnerID, New: c.Record, OldID: c.OldID, Origin: origin})
}

func unmarshalEnvelope(data []byte) (models.Change, string, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return models.Change{}, "", err
	}
	return models.Change{Type: e.Type, OwnerID: e.OwnerID, Record: e.New, OldID: e.OldID}, e.Origin, nil
}

// RedisRelay publishes changes on a Redis channel and forwards everything
// received on that channel to a local broker. Processes sharing a database
// (the server and an MCP process, say) thereby share one change feed.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	local   Publisher
	logger  *slog.Logger
}

var _ Publisher = (*RedisRelay)(nil)

// NewRedisRelay wires client to local. origin identifies this process so
// Run can tell its own messages apart; they are already delivered locally.
func NewRedisRelay(client *redis.Client, channel, origin string, local Publisher, logger *slog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, channel: channel, origin: origin, local: local, logger: logger}
}

// Publish delivers c to the local broker and to Redis. A Redis failure is
// logged; local subscribers still see the change.
func (r *RedisRelay) Publish(c models.Change) {
	if r.local != nil {
		r.local.Publish(c)
	}

	data, err := marshalEnvelope(c, r.origin)
	if err != nil {
		r.logger.Error("relay marshal failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Warn("relay publish failed",
			slog.String("channel", r.channel),
			slog.String("error", err.Error()))
	}
}

// Run subscribes to the channel and forwards foreign changes to the local
// broker until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("relay subscribed", slog.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c, origin, err := unmarshalEnvelope([]byte(msg.Payload))
			if err != nil {
				r.logger.Warn("relay dropped malformed message", slog.String("error", err.Error()))
				continue
			}
			if origin == r.origin || r.local == nil {
				continue
			}
			r.local.Publish(c)
		}
	}
}
