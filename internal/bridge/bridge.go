package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lightspeed-asi/internal/camera"
	"github.com/nerrad567/lightspeed-asi/internal/capture"
	"github.com/nerrad567/lightspeed-asi/internal/driver"
	"github.com/nerrad567/lightspeed-asi/internal/infrastructure/mqtt"
	"github.com/nerrad567/lightspeed-asi/internal/property"
)

const (
	// DefaultPublishInterval is the periodic snapshot period.
	DefaultPublishInterval = 2500 * time.Millisecond

	// requestTimeout bounds one request's hardware calls.
	requestTimeout = 10 * time.Second

	subscribeQoS = 1
)

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	PublishRetained(topic string, payload []byte) error
	PublishEvent(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// DeviceService is the device manager as seen by the bridge.
type DeviceService interface {
	Devices() []driver.Info
	Get(id string) (driver.Device, error)
	SetProperty(ctx context.Context, id, name, value string) error
	Expose(ctx context.Context, id string, length float64) (camera.Exposure, error)
	Calibrate(ctx context.Context, id string) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bridge.
type Options struct {
	MQTT            MQTTClient
	Devices         DeviceService
	Topics          mqtt.Topics
	PublishInterval time.Duration
	Logger          Logger
}

// Bridge publishes device state to MQTT and executes requests received
// from it. It implements driver.Observer.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt     MQTTClient
	devices  DeviceService
	topics   mqtt.Topics
	interval time.Duration
	logger   Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a bridge. Call Start to subscribe and begin publishing.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("device service is required")
	}
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = DefaultPublishInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		mqtt:     opts.MQTT,
		devices:  opts.Devices,
		topics:   opts.Topics,
		interval: opts.PublishInterval,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start subscribes to the request topics, publishes every snapshot once
// and starts the periodic publisher.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.started || b.stopped {
		b.mu.Unlock()
		return fmt.Errorf("bridge already started")
	}
	b.started = true
	b.mu.Unlock()

	for _, topic := range b.requestTopics() {
		if err := b.mqtt.Subscribe(topic, subscribeQoS, b.handleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		b.logger.Info("subscribed to requests", "topic", topic)
	}

	b.publishAll()

	b.wg.Add(1)
	go b.publishLoop()
	return nil
}

// Stop halts periodic publishing, unsubscribes and waits for in-flight
// requests to finish.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	started := b.started
	b.mu.Unlock()

	b.cancel()
	if started {
		for _, topic := range b.requestTopics() {
			if err := b.mqtt.Unsubscribe(topic); err != nil {
				b.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
			}
		}
	}
	b.wg.Wait()
	b.logger.Info("bridge stopped")
}

func (b *Bridge) requestTopics() []string {
	return []string{
		b.topics.AllDeviceUpdates(),
		b.topics.AllDeviceExposes(),
		b.topics.AllDeviceCalibrates(),
	}
}

func (b *Bridge) publishLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.publishAll()
		}
	}
}

// publishAll publishes a snapshot of every device. Nothing is sent while
// disconnected; the next tick after reconnecting catches up.
func (b *Bridge) publishAll() {
	if !b.mqtt.IsConnected() {
		return
	}
	now := time.Now().UTC()
	for _, info := range b.devices.Devices() {
		b.publishSnapshot(Snapshot{Info: info, Timestamp: now})
	}
}

func (b *Bridge) publishSnapshot(s Snapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		b.logger.Error("marshalling snapshot failed", "device_id", s.ID, "error", err)
		return
	}
	if err := b.mqtt.PublishRetained(b.topics.Device(s.ID), payload); err != nil {
		b.logger.Warn("publishing snapshot failed", "device_id", s.ID, "error", err)
	}
}

// PropertiesChanged republishes the device's full snapshot.
func (b *Bridge) PropertiesChanged(deviceID string, _ []property.Property) {
	if !b.mqtt.IsConnected() {
		return
	}
	d, err := b.devices.Get(deviceID)
	if err != nil {
		return
	}
	b.publishSnapshot(Snapshot{Info: driver.InfoOf(d), Timestamp: time.Now().UTC()})
}

// CaptureFinished publishes the capture record.
func (b *Bridge) CaptureFinished(res camera.Result) {
	if !b.mqtt.IsConnected() {
		return
	}
	rec := capture.FromResult(res)
	payload, err := json.Marshal(rec)
	if err != nil {
		b.logger.Error("marshalling capture failed", "exposure_id", rec.ID, "error", err)
		return
	}
	if err := b.mqtt.PublishEvent(b.topics.DeviceCapture(rec.DeviceID), payload); err != nil {
		b.logger.Warn("publishing capture failed", "exposure_id", rec.ID, "error", err)
	}
}

// handleMessage routes a request by topic action. Malformed requests are
// acked as failed when the device id can be recovered from the topic.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	id, action, ok := b.topics.ParseDeviceTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.wg.Add(1)
	b.mu.Unlock()
	defer b.wg.Done()

	ctx, cancel := context.WithTimeout(b.ctx, requestTimeout)
	defer cancel()

	var ack Ack
	switch action {
	case mqtt.ActionUpdate:
		ack = b.handleUpdate(ctx, id, payload)
	case mqtt.ActionExpose:
		ack = b.handleExpose(ctx, id, payload)
	case mqtt.ActionCalibrate:
		ack = b.handleCalibrate(ctx, id, payload)
	default:
		return fmt.Errorf("unexpected action %q on %q", action, topic)
	}

	ack.DeviceID = id
	ack.Action = action
	ack.Timestamp = time.Now().UTC()
	b.publishAck(ack)
	return nil
}

func (b *Bridge) handleUpdate(ctx context.Context, id string, payload []byte) Ack {
	var req UpdateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return invalidRequest("", "invalid JSON payload")
	}
	if req.Name == "" {
		return invalidRequest(req.RequestID, "name is required")
	}
	raw, err := driver.ValueText(req.Value)
	if err != nil {
		return failed(req.RequestID, err)
	}
	if err := b.devices.SetProperty(ctx, id, req.Name, raw); err != nil {
		b.logger.Debug("update rejected", "device_id", id, "property", req.Name, "error", err)
		return failed(req.RequestID, err)
	}
	return Ack{RequestID: req.RequestID, Status: AckOK}
}

func (b *Bridge) handleExpose(ctx context.Context, id string, payload []byte) Ack {
	var req ExposeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return invalidRequest("", "invalid JSON payload")
	}
	exp, err := b.devices.Expose(ctx, id, req.Length)
	if err != nil {
		b.logger.Debug("expose rejected", "device_id", id, "error", err)
		return failed(req.RequestID, err)
	}
	return Ack{RequestID: req.RequestID, Status: AckAccepted, ExposureID: exp.ID}
}

func (b *Bridge) handleCalibrate(ctx context.Context, id string, payload []byte) Ack {
	var req CalibrateRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return invalidRequest("", "invalid JSON payload")
		}
	}
	if err := b.devices.Calibrate(ctx, id); err != nil {
		return failed(req.RequestID, err)
	}
	return Ack{RequestID: req.RequestID, Status: AckAccepted}
}

func (b *Bridge) publishAck(ack Ack) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("marshalling ack failed", "error", err)
		return
	}
	if err := b.mqtt.PublishEvent(b.topics.DeviceAck(ack.DeviceID), payload); err != nil {
		b.logger.Warn("publishing ack failed", "device_id", ack.DeviceID, "request_id", ack.RequestID, "error", err)
	}
}

func failed(requestID string, err error) Ack {
	code, message := driver.Classify(err)
	return Ack{RequestID: requestID, Status: AckFailed, Code: code, Message: message}
}

func invalidRequest(requestID, message string) Ack {
	return Ack{RequestID: requestID, Status: AckFailed, Code: driver.CodeInvalidRequest, Message: message}
}
