// Package kafkaconsumer applies cache purge events read from Kafka.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	obs "github.com/sedn/nbn-facade/internal/core/observability"
	"github.com/sedn/nbn-facade/internal/invalidation"
	mylog "github.com/sedn/nbn-facade/internal/logger"
)

// ErrPoison marks a message that can never be applied.
var ErrPoison = errors.New("poison message")

// Purger removes cached entries by key prefix.
type Purger interface {
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	zlog   *zerolog.Logger
	store  Purger
	seen   *idDedupe

	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a consumer. zl carries the structured event log; nil disables it.
func New(cfg Config, logger *slog.Logger, store Purger, zl *zerolog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if zl == nil {
		nop := zerolog.Nop()
		zl = &nop
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		zlog:   zl,
		store:  store,
		seen:   newIDDedupe(cfg.DedupeSize),
		assign: map[int32]struct{}{},
	}
}

// Start joins the consumer group and consumes in the background until ctx is
// canceled or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	if c.store == nil {
		return errors.New("kafkaconsumer: cache store is required")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" {
		return errors.New("kafkaconsumer: brokers and topic are required")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("create consumer group: %w", err)
	}

	h := c.handler()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				c.logger.Error("kafka consumer group close", "err", err)
			}
		}()
		for {
			if err := group.Consume(ctx, []string{c.cfg.Topic}, h); err != nil {
				obs.IncKafkaConsumerError("consume")
				c.logger.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range group.Errors() {
			obs.IncKafkaConsumerError("group")
			c.logger.Error("kafka group error", "err", err)
		}
	}()

	c.logger.Info("kafka invalidation consumer started",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)
	return nil
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("kafka invalidation consumer stopped")
}

// Readiness reports whether the consumer currently holds partitions.
func (c *Consumer) Readiness() (ready bool, partitions []int32) {
	if !c.assigned.Load() {
		return false, nil
	}
	c.assignMu.RLock()
	defer c.assignMu.RUnlock()
	for p := range c.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

func (c *Consumer) handler() *groupHandler {
	return &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			c.assignMu.Lock()
			c.assign = map[int32]struct{}{}
			for _, parts := range sess.Claims() {
				for _, p := range parts {
					c.assign[p] = struct{}{}
				}
			}
			c.assigned.Store(true)
			c.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			c.assignMu.Lock()
			c.assigned.Store(false)
			c.assign = map[int32]struct{}{}
			c.assignMu.Unlock()
		},
		process: c.ProcessOne,
	}
}

// ProcessOne applies a single purge event. Redelivered event ids are skipped.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	ctx = mylog.WithComponent(ctx, "kafka_consumer")

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.poison(ctx, msg, "decode", err)
		return fmt.Errorf("%w: json decode: %w", ErrPoison, err)
	}
	if err := ev.Validate(); err != nil {
		c.poison(ctx, msg, "validate", err)
		return fmt.Errorf("%w: validate: %w", ErrPoison, err)
	}

	if c.seen.seen(ev.ID) {
		c.logger.DebugContext(ctx, "invalidation event already applied", "id", ev.ID)
		return nil
	}

	removed := 0
	for _, prefix := range ev.Prefixes() {
		n, err := c.store.DelPrefix(ctx, prefix)
		removed += n
		if err != nil {
			obs.IncKafkaConsumerError("cache_del")
			obs.ObserveInvalidation(ev.Label(), removed, time.Since(start), err)
			mylog.FromContext(ctx, c.zlog).Error().
				Str("kind", "cache_del").
				Str("prefix", prefix).
				Int32("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Err(err).
				Msg("kafka error")
			return fmt.Errorf("purge %q: %w", prefix, err)
		}
	}
	c.seen.mark(ev.ID)

	obs.ObserveInvalidation(ev.Label(), removed, time.Since(start), nil)
	mylog.FromContext(mylog.WithQueryKind(ctx, ev.Label()), c.zlog).Info().
		Str("event", "invalidation").
		Str("id", ev.ID).
		Str("search", ev.Search).
		Str("source", ev.Source).
		Int("keys", removed).
		Msg("invalidated keys")
	return nil
}

func (c *Consumer) poison(ctx context.Context, msg *sarama.ConsumerMessage, kind string, err error) {
	obs.IncKafkaConsumerError(kind)
	mylog.FromContext(ctx, c.zlog).Error().
		Str("kind", kind).
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Err(err).
		Msg("kafka error")
}
