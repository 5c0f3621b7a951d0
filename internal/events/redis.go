package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tranthanhlongdev/CRM-AI-AGENT-sub001/internal/metrics"
)

const publishBuffer = 256

// RedisConfig selects the Redis node and channel
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type publishFunc func(ctx context.Context, channel string, payload []byte) error

// RedisPublisher forwards events to a Redis pub/sub channel from a background loop
type RedisPublisher struct {
	client  *redis.Client
	channel string
	publish publishFunc
	logger  zerolog.Logger

	queue     chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisClient connects to a single Redis node and pings it
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("no Redis address provided")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisPublisher connects and starts the publish loop
func NewRedisPublisher(cfg RedisConfig, logger zerolog.Logger) (*RedisPublisher, error) {
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	p := newRedisPublisher(cfg.Channel, func(ctx context.Context, channel string, payload []byte) error {
		return client.Publish(ctx, channel, payload).Err()
	}, logger)
	p.client = client

	p.logger.Info().Str("addr", cfg.Addr).Str("channel", cfg.Channel).Msg("Redis event mirror connected")
	return p, nil
}

func newRedisPublisher(channel string, publish publishFunc, logger zerolog.Logger) *RedisPublisher {
	p := &RedisPublisher{
		channel: channel,
		publish: publish,
		logger:  logger.With().Str("component", "events").Logger(),
		queue:   make(chan Event, publishBuffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues an event; it is dropped when the buffer is full
func (p *RedisPublisher) Publish(ev Event) {
	defer func() {
		// queue closed by Close
		recover()
	}()

	select {
	case p.queue <- ev:
	default:
		metrics.Get().RecordPublishError()
		p.logger.Warn().Str("type", ev.Type).Msg("event buffer full, dropping")
	}
}

func (p *RedisPublisher) run() {
	defer close(p.done)

	for ev := range p.queue {
		payload, err := ev.Encode()
		if err != nil {
			p.logger.Error().Err(err).Str("type", ev.Type).Msg("failed to encode event")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = p.publish(ctx, p.channel, payload)
		cancel()
		if err != nil {
			metrics.Get().RecordPublishError()
			p.logger.Warn().Err(err).Str("type", ev.Type).Msg("failed to publish event")
		}
	}
}

// Close drains the buffer and releases the Redis connection
func (p *RedisPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.queue)
		<-p.done
		if p.client != nil {
			err = p.client.Close()
		}
	})
	return err
}
