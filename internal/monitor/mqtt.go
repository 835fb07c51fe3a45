// Package monitor subscribes to the live monitor feed over MQTT and routes
// each sample to the session of its appointment.
package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clinic-session-service/internal/biometrics"
	"clinic-session-service/internal/config"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Ingester interface {
	Ingest(appointmentID string, s biometrics.Sample) error
}

type Consumer struct {
	log      *slog.Logger
	client   mqtt.Client
	ingester Ingester
	topic    string
	qos      byte
}

// NewConsumer builds the consumer without connecting. Use Start to connect
// and subscribe.
func NewConsumer(log *slog.Logger, cfg config.MQTT, ingester Ingester) *Consumer {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)

	c := &Consumer{
		log:      log.With(slog.String("component", "monitor")),
		ingester: ingester,
		topic:    cfg.TopicPrefix + "/+/samples",
		qos:      cfg.QoS,
	}

	// resubscribe after every reconnect since the session is clean
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if token := client.Subscribe(c.topic, c.qos, c.onMessage); token.Wait() && token.Error() != nil {
			c.log.Error("failed to subscribe", slog.String("topic", c.topic), sl.Err(token.Error()))
			return
		}
		c.log.Info("subscribed to live monitor feed", slog.String("topic", c.topic))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warn("mqtt connection lost", sl.Err(err))
	})

	c.client = mqtt.NewClient(opts)

	return c
}

func (c *Consumer) Start() error {
	const op = "monitor.Consumer.Start"

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%s: connect: %w", op, token.Error())
	}

	return nil
}

func (c *Consumer) Stop() {
	if token := c.client.Unsubscribe(c.topic); token.Wait() && token.Error() != nil {
		c.log.Error("failed to unsubscribe", sl.Err(token.Error()))
	}

	c.client.Disconnect(250)
	c.log.Info("live monitor consumer stopped")
}

func (c *Consumer) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := c.HandleMessage(msg.Topic(), msg.Payload()); err != nil {
		c.log.Debug("dropped live sample", slog.String("topic", msg.Topic()), sl.Err(err))
	}
}

// HandleMessage decodes one sample published on <prefix>/<appointmentId>/samples.
// Samples for sessions that are not open or not running are dropped.
func (c *Consumer) HandleMessage(topic string, payload []byte) error {
	const op = "monitor.Consumer.HandleMessage"

	appointmentID, err := appointmentFromTopic(topic)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var s biometrics.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		c.log.Warn("invalid sample payload", slog.String("topic", topic), sl.Err(err))
		return fmt.Errorf("%s: %w: %v", op, response.ErrInvalidInput, err)
	}

	if err := c.ingester.Ingest(appointmentID, s); err != nil {
		if errors.Is(err, response.ErrNotFound) || errors.Is(err, response.ErrWrongPhase) {
			return fmt.Errorf("%s: %w", op, err)
		}

		c.log.Error("failed to ingest sample", slog.String("appointment_id", appointmentID), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func appointmentFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[len(parts)-1] != "samples" || parts[len(parts)-2] == "" {
		return "", fmt.Errorf("invalid topic %q: %w", topic, response.ErrInvalidInput)
	}

	return parts[len(parts)-2], nil
}
