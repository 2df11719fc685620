// Command dlq-replay переносит события из DLQ обратно в топик событий.
// По умолчанию работает в режиме dry-run и только логирует кандидатов.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	brokersEnv         = "ORDERAPI_KAFKA_BROKERS"
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

// failedEvent — payload сообщения, которое outbox-воркер отправил в DLQ.
type failedEvent struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

type replayMessage struct {
	key     string
	value   []byte
	headers map[string]string
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

// publisher реализуется *kafka.Producer.
type publisher interface {
	Publish(topic, key string, value []byte, headers map[string]string) error
	Close() error
}

type saramaSource struct {
	consumer sarama.Consumer
}

func (s saramaSource) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

func (s saramaSource) Close() error {
	return s.consumer.Close()
}

type dependencies struct {
	client    offsetClient
	source    partitionSource
	publisher publisher
}

func (d dependencies) close() {
	if d.publisher != nil {
		_ = d.publisher.Close()
	}
	if d.source != nil {
		_ = d.source.Close()
	}
	if d.client != nil {
		_ = d.client.Close()
	}
}

var newDependencies = func(cfg config) (dependencies, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.ClientID = "orderapi-dlq-replay"
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return dependencies{}, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return dependencies{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps := dependencies{client: client, source: saramaSource{consumer: consumer}}
	if !cfg.execute {
		return deps, nil
	}

	producer, err := kafka.NewProducer(cfg.brokers, "orderapi-dlq-replay")
	if err != nil {
		deps.close()
		return dependencies{}, err
	}
	deps.publisher = producer
	return deps, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fail("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log.WithField("component", "dlq-replay")); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs := flag.NewFlagSet("dlq-replay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&brokersRaw, "brokers", "", "comma-separated Kafka brokers (fallback: "+brokersEnv+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic to read")
	fs.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicEvents, "topic to republish events to")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of DLQ messages to scan")
	fs.BoolVar(&cfg.execute, "execute", false, "publish events; without it only logs candidates")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan the newest messages of each partition")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this idle period")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv(brokersEnv)
	}
	cfg.brokers = splitBrokers(brokersRaw)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, errors.New("kafka brokers are required (-brokers or " + brokersEnv + ")")
	case strings.TrimSpace(cfg.sourceTopic) == "":
		return config{}, errors.New("source-topic is required")
	case strings.TrimSpace(cfg.targetTopic) == "":
		return config{}, errors.New("target-topic is required")
	case cfg.sourceTopic == cfg.targetTopic:
		return config{}, errors.New("source-topic and target-topic must differ")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}
	return cfg, nil
}

func splitBrokers(raw string) []string {
	brokers := make([]string, 0)
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config, logger *log.Entry) error {
	deps, err := newDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	stats, err := replay(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	logger.WithFields(log.Fields{
		"mode":      mode,
		"processed": stats.processed,
		"replayed":  stats.replayed,
		"skipped":   stats.skipped,
	}).Info("dlq replay finished")
	return nil
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

// replay обходит партиции по возрастанию номера, пока не исчерпан limit.
func replay(ctx context.Context, cfg config, deps dependencies, logger *log.Entry) (replayStats, error) {
	var total replayStats
	if deps.client == nil || deps.source == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if cfg.execute && deps.publisher == nil {
		return total, errors.New("publisher is required in execute mode")
	}

	partitions, err := deps.client.Partitions(cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("list partitions of %s: %w", cfg.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if total.processed >= cfg.limit {
			break
		}
		stats, err := replayPartition(ctx, cfg, deps, logger, partition, cfg.limit-total.processed)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func replayPartition(
	ctx context.Context,
	cfg config,
	deps dependencies,
	logger *log.Entry,
	partition int32,
	limit int,
) (replayStats, error) {
	var stats replayStats

	oldest, err := deps.client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("oldest offset of partition %d: %w", partition, err)
	}
	newest, err := deps.client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("newest offset of partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	start := oldest
	if cfg.fromNewest {
		start = max(oldest, newest-int64(limit))
	}

	pc, err := deps.source.ConsumePartition(cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	errs := pc.Errors()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case consumerErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if consumerErr != nil {
				return stats, fmt.Errorf("partition %d: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idle.Reset(cfg.idleTimeout)
			stats.processed++

			entry := logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})
			candidate, err := decodeFailedEvent(msg.Value)
			if err != nil {
				stats.skipped++
				entry.WithError(err).Warn("skip unsupported dlq message")
				continue
			}

			if cfg.execute {
				if err := deps.publisher.Publish(cfg.targetTopic, candidate.key, candidate.value, candidate.headers); err != nil {
					return stats, fmt.Errorf("republish offset %d: %w", msg.Offset, err)
				}
			} else {
				entry.WithField("key", candidate.key).Info("dlq replay candidate")
			}
			stats.replayed++

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}
	return stats, nil
}

// decodeFailedEvent восстанавливает исходный конверт события из DLQ-сообщения.
func decodeFailedEvent(raw []byte) (replayMessage, error) {
	var outer kafka.Envelope
	if err := json.Unmarshal(raw, &outer); err != nil {
		return replayMessage{}, fmt.Errorf("decode dlq envelope: %w", err)
	}
	if len(outer.Payload) == 0 {
		return replayMessage{}, errors.New("dlq envelope has no payload")
	}

	var failed failedEvent
	if err := json.Unmarshal(outer.Payload, &failed); err != nil {
		return replayMessage{}, fmt.Errorf("decode failed event: %w", err)
	}
	if len(failed.Payload) == 0 || !json.Valid(failed.Payload) {
		return replayMessage{}, errors.New("failed event has no original payload")
	}

	envelope := kafka.Envelope{
		ID:            firstNonEmpty(failed.OutboxID, outer.ID),
		AggregateType: firstNonEmpty(failed.AggregateType, outer.AggregateType),
		AggregateID:   firstNonEmpty(failed.AggregateID, outer.AggregateID),
		EventType:     firstNonEmpty(failed.EventType, outer.EventType),
		Payload:       failed.Payload,
		OccurredAt:    outer.OccurredAt,
		PublishedAt:   time.Now().UTC(),
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return replayMessage{}, fmt.Errorf("encode replay envelope: %w", err)
	}

	return replayMessage{
		key:   kafka.MessageKey(envelope.AggregateType, envelope.AggregateID, envelope.ID),
		value: value,
		headers: map[string]string{
			kafka.HeaderEventType:     envelope.EventType,
			kafka.HeaderAggregateType: envelope.AggregateType,
			kafka.HeaderMessageID:     envelope.ID,
		},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
