package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mia-platform/crud-service-sub002/internal/pkg/circuitbreaker"
	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// Producer는 Kafka 프로듀서입니다
type Producer struct {
	producer sarama.SyncProducer
	config   *ProducerConfig
}

// ProducerConfig는 프로듀서 설정입니다
type ProducerConfig struct {
	Brokers         []string
	ClientID        string
	MaxMessageBytes int
	RequiredAcks    sarama.RequiredAcks
	Compression     sarama.CompressionCodec
	MaxRetries      int
	RetryBackoff    time.Duration
}

// NewProducer는 새로운 Kafka 프로듀서를 생성합니다
func NewProducer(cfg *ProducerConfig) (*Producer, error) {
	config := sarama.NewConfig()
	config.ClientID = cfg.ClientID
	config.Producer.RequiredAcks = cfg.RequiredAcks
	config.Producer.Compression = cfg.Compression
	config.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	config.Producer.Retry.Max = cfg.MaxRetries
	config.Producer.Retry.Backoff = cfg.RetryBackoff
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Version = sarama.V3_6_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info(context.Background(), "kafka producer initialized",
		logger.Field("brokers", cfg.Brokers),
		logger.Field("client_id", cfg.ClientID),
	)

	return &Producer{producer: producer, config: cfg}, nil
}

// PublishEvent는 이벤트를 발행합니다
func (p *Producer) PublishEvent(ctx context.Context, topic string, key string, event interface{}) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		logger.Error(ctx, "failed to marshal event",
			logger.Field("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(eventJSON),
		Timestamp: time.Now(),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_time"),
				Value: []byte(time.Now().Format(time.RFC3339)),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logger.Error(ctx, "failed to send event",
			logger.Field("topic", topic),
			logger.Field("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send event: %w", err)
	}

	logger.Debug(ctx, "event published",
		logger.Field("topic", topic),
		logger.Field("key", key),
		logger.Field("partition", partition),
		logger.Field("offset", offset),
	)

	return nil
}

// Close는 프로듀서를 종료합니다
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// RecordEvent는 CRUD 변경 이벤트입니다
type RecordEvent struct {
	EventID    string                 `json:"event_id"`
	EventType  string                 `json:"event_type"`
	Timestamp  time.Time              `json:"timestamp"`
	RecordID   string                 `json:"record_id"`
	Collection string                 `json:"collection"`
	Data       map[string]interface{} `json:"data,omitempty"`
	UserID     string                 `json:"user_id,omitempty"`
}

// 이벤트 타입들
const (
	EventRecordCreated      = "record.created"
	EventRecordUpdated      = "record.updated"
	EventRecordStateChanged = "record.state_changed"
	EventRecordDeleted      = "record.deleted"
)

// ChangePublisher는 컬렉션 변경 이벤트를 발행합니다.
// nil 수신자는 발행을 생략하므로 Kafka가 구성되지 않은 배포에서도
// 동일한 코드 경로를 사용할 수 있습니다.
type ChangePublisher struct {
	producer *Producer
	topic    string
	breaker  *circuitbreaker.Breaker
}

// NewChangePublisher는 새로운 변경 이벤트 발행자를 생성합니다
func NewChangePublisher(producer *Producer, topic string) *ChangePublisher {
	return &ChangePublisher{
		producer: producer,
		topic:    topic,
		breaker:  circuitbreaker.New("kafka-change-events", circuitbreaker.Settings{}),
	}
}

// Publish는 변경 이벤트를 발행합니다. 발행 실패는 호출자의 쓰기 경로를
// 실패시키지 않고 로그로만 남깁니다. 브로커 장애가 지속되면 breaker가
// 열려 이후 쓰기 요청이 발행 타임아웃을 기다리지 않습니다.
func (c *ChangePublisher) Publish(ctx context.Context, eventType, collection, recordID string, data map[string]interface{}, userID string) {
	if c == nil || c.producer == nil {
		return
	}

	event := RecordEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		Timestamp:  time.Now(),
		RecordID:   recordID,
		Collection: collection,
		Data:       data,
		UserID:     userID,
	}

	err := c.breaker.Do(ctx, func() error {
		return c.producer.PublishEvent(ctx, c.topic, collection+":"+recordID, event)
	})
	if err != nil {
		logger.Warn(ctx, "failed to publish change event",
			logger.Field("event_type", eventType),
			logger.Field("collection", collection),
			zap.Error(err),
		)
	}
}
