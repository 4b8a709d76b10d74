// Package mqtt publishes readings to an MQTT broker and announces the sensor
// through Home Assistant discovery.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mklimuk/hwmon/monitor"
)

const (
	DefaultServer     = "tcp://localhost:1883"
	DefaultClientID   = "ds1624-client"
	DefaultStateTopic = "ds1624/state"

	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyDeviceClass         = "device_class"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	unitCelsius            = "°C"
	deviceClassTemperature = "temperature"
	stateClassMeasurement  = "measurement"
	valueTemplateCelsius   = "{{ value_json.celsius }}"

	disconnectQuiesce = 250
	publishTimeout    = 5 * time.Second
)

var ErrNotConnected = errors.New("mqtt client not connected")

type Config struct {
	Server         string
	ClientID       string
	Username       string
	Password       string
	StateTopic     string
	DiscoveryTopic string
	DiscoveryName  string
	Logger         *slog.Logger
}

// publisher is the part of mqtt.Client the output uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Output struct {
	client     publisher
	stateTopic string
	logger     *slog.Logger
}

// Connect dials the broker and publishes the retained discovery message when
// a discovery topic is configured.
func Connect(cfg Config) (*Output, error) {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newOutput(client, cfg)
}

func newOutput(client publisher, cfg Config) (*Output, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Output{
		client:     client,
		stateTopic: cfg.StateTopic,
		logger:     logger.With("output", "mqtt"),
	}
	if o.stateTopic == "" {
		o.stateTopic = DefaultStateTopic
	}
	if cfg.DiscoveryTopic != "" {
		payload := discoveryPayload(discoveryName(cfg), o.stateTopic, discoveryUniqueID(cfg))
		if err := o.publishJSON(cfg.DiscoveryTopic, true, payload); err != nil {
			o.logger.Error("discovery publish failed", "topic", cfg.DiscoveryTopic, "error", err)
		}
	}
	return o, nil
}

func (o *Output) Publish(ctx context.Context, r monitor.Reading) error {
	return o.publishJSON(o.stateTopic, false, r)
}

func (o *Output) Close() error {
	if o.client != nil {
		o.client.Disconnect(disconnectQuiesce)
		o.client = nil
	}
	return nil
}

func (o *Output) publishJSON(topic string, retained bool, payload any) error {
	if o.client == nil {
		return ErrNotConnected
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := o.client.Publish(topic, 0, retained, b)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

func discoveryName(cfg Config) string {
	if cfg.DiscoveryName != "" {
		return cfg.DiscoveryName
	}
	return fmt.Sprintf("DS1624 %s", cfg.ClientID)
}

func discoveryUniqueID(cfg Config) string {
	if cfg.ClientID == "" {
		return ""
	}
	return cfg.ClientID + "_temperature"
}

func discoveryPayload(name, stateTopic, uniqueID string) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyUnitOfMeasurement:   unitCelsius,
		keyDeviceClass:         deviceClassTemperature,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       valueTemplateCelsius,
		keyJSONAttributesTopic: stateTopic,
	}
	if uniqueID != "" {
		payload[keyUniqueID] = uniqueID
	}
	return payload
}

var _ monitor.Output = &Output{}
