package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/lightspeed-asi/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "lightspeed-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "lightspeed",
	}
}

// disconnected returns a Client that was never connected.
func disconnected() *Client {
	return &Client{
		cfg:           testConfig(),
		topics:        NewTopics("lightspeed"),
		subscriptions: make(map[string]subscription),
	}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("observatory")
	id := "5b0c"

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Device", topics.Device(id), "observatory/devices/5b0c"},
		{"DeviceUpdate", topics.DeviceUpdate(id), "observatory/devices/5b0c/update"},
		{"DeviceExpose", topics.DeviceExpose(id), "observatory/devices/5b0c/expose"},
		{"DeviceCalibrate", topics.DeviceCalibrate(id), "observatory/devices/5b0c/calibrate"},
		{"DeviceAck", topics.DeviceAck(id), "observatory/devices/5b0c/ack"},
		{"DeviceCapture", topics.DeviceCapture(id), "observatory/devices/5b0c/capture"},
		{"AllDeviceUpdates", topics.AllDeviceUpdates(), "observatory/devices/+/update"},
		{"AllDeviceExposes", topics.AllDeviceExposes(), "observatory/devices/+/expose"},
		{"AllDeviceCalibrates", topics.AllDeviceCalibrates(), "observatory/devices/+/calibrate"},
		{"SystemStatus", topics.SystemStatus(), "observatory/system/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNewTopics_Prefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "lightspeed/system/status"},
		{"/obs/", "obs/system/status"},
		{"site/north", "site/north/system/status"},
	}
	for _, tt := range tests {
		if got := NewTopics(tt.prefix).SystemStatus(); got != tt.want {
			t.Errorf("NewTopics(%q).SystemStatus() = %q, want %q", tt.prefix, got, tt.want)
		}
	}

	var zero Topics
	if got := zero.Device("x"); got != "lightspeed/devices/x" {
		t.Errorf("zero Topics Device() = %q", got)
	}
}

func TestParseDeviceTopic(t *testing.T) {
	topics := NewTopics("lightspeed")

	tests := []struct {
		topic      string
		wantID     string
		wantAction string
		wantOK     bool
	}{
		{"lightspeed/devices/abc/update", "abc", ActionUpdate, true},
		{"lightspeed/devices/abc/expose", "abc", ActionExpose, true},
		{"lightspeed/devices/abc", "", "", false},
		{"lightspeed/devices//update", "", "", false},
		{"lightspeed/devices/abc/update/extra", "", "", false},
		{"other/devices/abc/update", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, action, ok := topics.ParseDeviceTopic(tt.topic)
			if ok != tt.wantOK || id != tt.wantID || action != tt.wantAction {
				t.Errorf("ParseDeviceTopic() = (%q, %q, %v), want (%q, %q, %v)",
					id, action, ok, tt.wantID, tt.wantAction, tt.wantOK)
			}
		})
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "scope", Password: "secret"}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "lightspeed-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "scope" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("AutoReconnect and CleanSession should be enabled")
	}
	if opts.Order {
		t.Error("ordered delivery should be disabled so handlers can publish")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured without broker.tls")
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLS MinVersion = %x", opts.TLSConfig.MinVersion)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("lightspeed"), "lightspeed-test")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will enabled=%v retained=%v qos=%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "lightspeed/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var status Status
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload not JSON: %v", err)
	}
	if status.Status != "offline" || status.Reason != "unexpected_disconnect" || status.ClientID != "lightspeed-test" {
		t.Errorf("will status = %+v", status)
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	c := disconnected()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "t", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "t", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "t", []byte("x"), 1, ErrNotConnected},
		{"nil payload not connected", "t", nil, 0, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := c.PublishRetained("t", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishRetained() error = %v", err)
	}
	if err := c.PublishEvent("t", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishEvent() error = %v", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := disconnected()
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid qos", "t", 5, handler, ErrInvalidQoS},
		{"nil handler", "t", 1, nil, ErrSubscribeFailed},
		{"not connected", "t", 1, handler, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Subscribe(tt.topic, tt.qos, tt.handler); !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("t") {
		t.Error("failed subscribe left a tracked subscription")
	}

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v", err)
	}
	if err := c.Unsubscribe("t"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c := disconnected()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v", err)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
	if err := disconnected().Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestWrapHandler(t *testing.T) {
	c := disconnected()
	logger := &mockLogger{}
	c.SetLogger(logger)

	var got string
	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})
	wrapped(nil, fakeMessage{topic: "lightspeed/devices/a/update", payload: []byte("{}")})
	if got != "lightspeed/devices/a/update={}" {
		t.Errorf("handler saw %q", got)
	}

	c.wrapHandler(func(string, []byte) error {
		return errors.New("bad payload")
	})(nil, fakeMessage{topic: "t"})

	c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "t"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "returned error") {
		t.Errorf("warns = %v", logger.warns)
	}
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "panic") {
		t.Errorf("errors = %v", logger.errors)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	c := disconnected()
	c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "t"})
}

func TestCallbacks(t *testing.T) {
	c := disconnected()

	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })
	c.handleDisconnect(errors.New("network down"))
	if lost == nil || lost.Error() != "network down" {
		t.Errorf("OnDisconnect got %v", lost)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
}

func TestStatusPayload(t *testing.T) {
	var status Status
	if err := json.Unmarshal(statusPayload("online", "id-1", ""), &status); err != nil {
		t.Fatalf("statusPayload not JSON: %v", err)
	}
	if status.Status != "online" || status.ClientID != "id-1" || status.Timestamp == "" {
		t.Errorf("status = %+v", status)
	}
	if status.Reason != "" {
		t.Errorf("Reason = %q, want omitted", status.Reason)
	}
}
