package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	cfg "github.com/sentryops/account-security/internal/config"
	"github.com/sentryops/account-security/internal/util/logger"
)

// KafkaAuditShipper publishes request-audit events to a Kafka topic.
// Best-effort: events are queued on a bounded channel and dropped on
// backpressure rather than slowing request handling.
type KafkaAuditShipper struct {
	cfg    cfg.KafkaAuditConfig
	writer *kafka.Writer
	ch     chan RequestAuditEvent
	stop   chan struct{}
}

func NewKafkaAuditShipper(cfgIn cfg.KafkaAuditConfig) (*KafkaAuditShipper, error) {
	c := cfgIn
	if !c.Enabled {
		return &KafkaAuditShipper{cfg: c, ch: make(chan RequestAuditEvent), stop: make(chan struct{})}, nil
	}
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka audit: no brokers configured")
	}
	if c.Topic == "" {
		return nil, errors.New("kafka audit: no topic configured")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 2 * time.Second
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = c.BatchSize * 4
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}

	tr := &kafka.Transport{DialTimeout: c.DialTimeout}
	if c.TLS {
		tr.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Transport:    tr,
		Async:        true,
		BatchTimeout: c.FlushEvery,
		BatchSize:    c.BatchSize,
		WriteTimeout: c.WriteTimeout,
	}

	return &KafkaAuditShipper{
		cfg:    c,
		writer: w,
		ch:     make(chan RequestAuditEvent, c.QueueCapacity),
		stop:   make(chan struct{}),
	}, nil
}

func (s *KafkaAuditShipper) Start() {
	if !s.cfg.Enabled {
		return
	}
	go s.loop()
}

func (s *KafkaAuditShipper) Stop(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	close(s.stop)
	drain := time.After(500 * time.Millisecond)
	for {
		select {
		case ev := <-s.ch:
			s.publish(ev)
		case <-drain:
			_ = s.writer.Close()
			return
		case <-ctx.Done():
			_ = s.writer.Close()
			return
		}
	}
}

// Publish queues an event; drops on backpressure.
func (s *KafkaAuditShipper) Publish(ev RequestAuditEvent) {
	if !s.cfg.Enabled {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	select {
	case s.ch <- ev:
	default:
	}
}

func (s *KafkaAuditShipper) loop() {
	for {
		select {
		case ev := <-s.ch:
			s.publish(ev)
		case <-s.stop:
			for {
				select {
				case ev := <-s.ch:
					s.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *KafkaAuditShipper) publish(ev RequestAuditEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	err = s.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(ev.IPAddress),
		Value: payload,
		Time:  ev.Timestamp,
	})
	if err != nil {
		logger.Errorf("Request audit publish failed: %v", err)
	}
}
