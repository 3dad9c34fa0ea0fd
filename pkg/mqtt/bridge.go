package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

const (
	// ReadingsTopic is subscribed with a single-level wildcard so every hive node has its own
	// topic, hives/<tag>/readings. Replies go to hives/<tag>/policy.
	ReadingsTopic = "hives/+/readings"
	QoS           = byte(1)

	connectTimeout = 10 * time.Second
	handleTimeout  = 10 * time.Second
)

// Publisher is the slice of the paho client the bridge writes replies through.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

type policyMessage struct {
	DisconnectVoltage float64   `json:"disconnect_voltage"`
	ReconnectVoltage  float64   `json:"reconnect_voltage"`
	Enabled           bool      `json:"enabled"`
	Version           uint64    `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Reply is published for every received reading, accepted or not.
type Reply struct {
	Success bool           `json:"success"`
	Error   *common.Error  `json:"error,omitempty"`
	Policy  *policyMessage `json:"policy,omitempty"`
}

func toPolicyMessage(p models.ThresholdPolicy) *policyMessage {
	return &policyMessage{
		DisconnectVoltage: p.DisconnectVoltage,
		ReconnectVoltage:  p.ReconnectVoltage,
		Enabled:           p.Enabled,
		Version:           p.Version,
		UpdatedAt:         p.UpdatedAt,
	}
}

type Bridge struct {
	Iot              *iot.IOT
	RateLimiterStore *iot.RateLimiterStore

	publisher Publisher
	client    MQTT.Client
}

func NewBridge(iotObj *iot.IOT, limiter *iot.RateLimiterStore, publisher Publisher) *Bridge {
	return &Bridge{Iot: iotObj, RateLimiterStore: limiter, publisher: publisher}
}

// ReplyTopic maps hives/<tag>/readings to hives/<tag>/policy.
func ReplyTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "hives" || parts[1] == "" || parts[2] != "readings" {
		return "", false
	}
	return fmt.Sprintf("hives/%s/policy", parts[1]), true
}

// Process runs one message body through the same adapter and ingestion path as HTTP.
func (b *Bridge) Process(ctx context.Context, payload []byte) Reply {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return failure(common.NewError(common.KindInvalidPayload, "body is not a JSON object"))
	}

	credential, canonical, err := iot.DecodeSubmission(body)
	if err != nil {
		return failure(b.Iot.Ingestion.RejectMalformed(ctx, credential, err))
	}
	if credential == "" {
		return failure(iot.ErrCredentialRequired())
	}
	if b.RateLimiterStore != nil && !b.RateLimiterStore.Allow(credential) {
		return failure(common.NewError(common.KindRateLimited, "too many submissions, slow down"))
	}

	policy, err := b.Iot.Ingestion.Submit(ctx, credential, canonical)
	if err != nil {
		return failure(err)
	}
	return Reply{Success: true, Policy: toPolicyMessage(*policy)}
}

func failure(err error) Reply {
	return Reply{Error: common.AsError(err)}
}

// HandleMessage processes a reading and publishes the reply. Messages on unexpected topics
// are dropped.
func (b *Bridge) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	logger := common.GetLoggerWith(common.LoggerNameMqttBridge, zap.String("topic", topic))

	replyTopic, ok := ReplyTopic(topic)
	if !ok {
		logger.Warn("Dropping message on unexpected topic")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	reply := b.Process(ctx, payload)
	if reply.Error != nil {
		logger.Info("Rejected reading", zap.String("kind", string(reply.Error.Kind)))
	}

	out, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	if b.publisher == nil {
		return nil
	}
	if err := b.publisher.Publish(replyTopic, out); err != nil {
		logger.Error("Failed to publish reply", zap.String("reply_topic", replyTopic), zap.Error(err))
		return err
	}
	return nil
}

func clientOptions(opts Options) *MQTT.ClientOptions {
	clientOpts := MQTT.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		if opts.Password != "" {
			clientOpts.SetPassword(opts.Password)
		}
	}
	return clientOpts
}

func checkToken(token MQTT.Token) error {
	if !token.WaitTimeout(connectTimeout) {
		return common.NewError(common.KindTransient, "mqtt operation timed out")
	}
	return token.Error()
}

type pahoPublisher struct {
	client MQTT.Client
}

func (p pahoPublisher) Publish(topic string, payload []byte) error {
	return checkToken(p.client.Publish(topic, QoS, false, payload))
}

// Start connects to the broker and subscribes on every (re)connect. Message handling lives
// for as long as ctx does.
func (b *Bridge) Start(ctx context.Context, opts Options) error {
	logger := common.GetLoggerWith(common.LoggerNameMqttBridge, zap.String("broker", opts.Broker))

	clientOpts := clientOptions(opts)
	clientOpts.SetOnConnectHandler(func(client MQTT.Client) {
		token := client.Subscribe(ReadingsTopic, QoS, func(_ MQTT.Client, msg MQTT.Message) {
			_ = b.HandleMessage(ctx, msg.Topic(), msg.Payload())
		})
		if err := checkToken(token); err != nil {
			logger.Error("Failed to subscribe", zap.String("topic", ReadingsTopic), zap.Error(err))
			return
		}
		logger.Info("Subscribed", zap.String("topic", ReadingsTopic))
	})
	clientOpts.SetConnectionLostHandler(func(_ MQTT.Client, err error) {
		logger.Warn("Connection lost", zap.Error(err))
	})

	client := MQTT.NewClient(clientOpts)
	if err := checkToken(client.Connect()); err != nil {
		return common.WrapTransient(err, "mqtt connect")
	}
	b.client = client
	if b.publisher == nil {
		b.publisher = pahoPublisher{client: client}
	}
	return nil
}

func (b *Bridge) Stop() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Unsubscribe(ReadingsTopic).WaitTimeout(connectTimeout)
		b.client.Disconnect(250)
	}
}
