package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
)

// Record types carried in the record_type header.
const (
	RecordGlobal  = "global"
	RecordCountry = "country"
)

const (
	// batchSize bounds the messages handed to one WriteMessages call.
	batchSize = 100

	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per trend record to a Kafka topic.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	backoff time.Duration
}

// NewPublisher creates a Kafka producer for the trend topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger, backoff: initialBackoff}
}

// countryRecord is the payload of a per-country message.
type countryRecord struct {
	Country string `json:"country"`
	domain.CountryTrend
}

// PublishTrends writes every global and per-country record, keyed so that
// one series always lands on the same partition. It returns the number of
// messages written.
func (p *Publisher) PublishTrends(ctx context.Context, runID string, publishedAt time.Time, global domain.GlobalTrends, countries domain.CountryTrends) (int, error) {
	msgs := make([]kafkago.Message, 0, len(global))
	for _, g := range global {
		msg, err := serializeToMessage("global|"+strconv.Itoa(g.Year), RecordGlobal, runID, publishedAt, g)
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, msg)
	}
	for _, name := range countries.Countries() {
		for _, c := range countries[name] {
			msg, err := serializeToMessage(name+"|"+strconv.Itoa(c.Year), RecordCountry, runID, publishedAt, countryRecord{Country: name, CountryTrend: c})
			if err != nil {
				return 0, err
			}
			msgs = append(msgs, msg)
		}
	}

	written := 0
	for start := 0; start < len(msgs); start += batchSize {
		end := min(start+batchSize, len(msgs))
		if err := p.writeBatch(ctx, msgs[start:end]); err != nil {
			return written, fmt.Errorf("publish trends: %w", err)
		}
		written = end
	}
	p.logger.Info("trends published", "run_id", runID, "messages", written)
	return written, nil
}

// writeBatch retries a failed write with exponential backoff.
func (p *Publisher) writeBatch(ctx context.Context, msgs []kafkago.Message) error {
	backoff := p.backoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = p.writer.WriteMessages(ctx, msgs...); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		p.logger.Warn("kafka write failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
	return err
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a trend record into a Kafka message.
func serializeToMessage(key, recordType, runID string, publishedAt time.Time, v any) (kafkago.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record %s: %w", recordType, key, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_type", Value: []byte(recordType)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "published_at", Value: []byte(publishedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
