// Package alert is the notification boundary of the account-security core.
// The core decides when and with what content to alert; delivery beyond the
// dispatcher is someone else's problem. The contract is at-most-once,
// best-effort: a slow or failing channel never delays or fails the caller.
package alert

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	cfg "github.com/sentryops/account-security/internal/config"
	"github.com/sentryops/account-security/internal/util"
	"github.com/sentryops/account-security/internal/util/logger"
)

// Alert types dispatched by the core.
const (
	TypeFailedLogins    = "Multiple Failed Login Attempts"
	TypeNewLocation     = "Login from New Location"
	TypeUnusualTime     = "Unusual Login Time"
	TypeRapidLogins     = "Rapid Login Attempts"
	TypeHighRiskRegion  = "Login from High-Risk Region"
	TypeNewDevice       = "New Device Login"
	TypeLoginBlocked    = "Login Blocked by Geofencing"
	TypeUnusualLocation = "Unusual Login Location"
)

// Alert is one notification to a user about account activity.
type Alert struct {
	Email        string    `json:"email"`
	UserName     string    `json:"userName"`
	AlertType    string    `json:"alertType"`
	AlertDetails string    `json:"alertDetails"`
	Timestamp    time.Time `json:"timestamp"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	Location     string    `json:"location,omitempty"`
}

// Dispatcher submits alerts for delivery. Dispatch must never block the
// caller and must never return an error path to it.
type Dispatcher interface {
	Dispatch(a Alert)
}

// NopDispatcher drops everything. Used when alerting is disabled.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(Alert) {}

// CaptureDispatcher records alerts in memory, for tests.
type CaptureDispatcher struct {
	alerts []Alert
}

func (d *CaptureDispatcher) Dispatch(a Alert) {
	d.alerts = append(d.alerts, a)
}

// Alerts returns everything dispatched so far.
func (d *CaptureDispatcher) Alerts() []Alert {
	return d.alerts
}

// KafkaDispatcher publishes alerts to a notification topic. Alerts are
// queued on a bounded channel and written asynchronously; on backpressure
// the newest alert is dropped and counted, never blocking the login path.
type KafkaDispatcher struct {
	cfg    cfg.KafkaAlertConfig
	writer *kafka.Writer
	ch     chan Alert
	stop   chan struct{}
}

func NewKafkaDispatcher(cfgIn cfg.KafkaAlertConfig) (*KafkaDispatcher, error) {
	c := cfgIn
	if !c.Enabled {
		return &KafkaDispatcher{cfg: c, ch: make(chan Alert), stop: make(chan struct{})}, nil
	}
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka alerts: no brokers configured")
	}
	if c.Topic == "" {
		return nil, errors.New("kafka alerts: no topic configured")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 1 * time.Second
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

	return &KafkaDispatcher{
		cfg:    c,
		writer: w,
		ch:     make(chan Alert, c.QueueCapacity),
		stop:   make(chan struct{}),
	}, nil
}

// Start launches the delivery loop.
func (d *KafkaDispatcher) Start() {
	if !d.cfg.Enabled {
		return
	}
	go d.loop()
}

// Stop drains briefly and closes the writer.
func (d *KafkaDispatcher) Stop(ctx context.Context) {
	if !d.cfg.Enabled {
		return
	}
	close(d.stop)
	drain := time.After(500 * time.Millisecond)
	for {
		select {
		case a := <-d.ch:
			d.publish(a)
		case <-drain:
			_ = d.writer.Close()
			return
		case <-ctx.Done():
			_ = d.writer.Close()
			return
		}
	}
}

// Dispatch queues a for delivery; drops on backpressure.
func (d *KafkaDispatcher) Dispatch(a Alert) {
	if !d.cfg.Enabled {
		return
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	select {
	case d.ch <- a:
	default:
		logger.Warnf("Alert queue full, dropping %q for %s", a.AlertType, util.MaskEmail(a.Email))
	}
}

func (d *KafkaDispatcher) loop() {
	for {
		select {
		case a := <-d.ch:
			d.publish(a)
		case <-d.stop:
			for {
				select {
				case a := <-d.ch:
					d.publish(a)
				default:
					return
				}
			}
		}
	}
}

func (d *KafkaDispatcher) publish(a Alert) {
	payload, err := json.Marshal(a)
	if err != nil {
		logger.Errorf("Alert marshal failed: %v", err)
		return
	}
	err = d.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(a.Email),
		Value: payload,
		Time:  a.Timestamp,
	})
	if err != nil {
		logger.Errorf("Alert publish failed for %s: %v", util.MaskEmail(a.Email), err)
	}
}
