// Package mqtt bridges the generator to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coach-event-generator/internal/config"
	"coach-event-generator/internal/core"
	"coach-event-generator/internal/logger"
	"coach-event-generator/internal/protocol"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Inbound subtopics, relative to the configured prefix.
const (
	TopicCommandSet = "command/set"
	TopicRandomRun  = "random/run"
	TopicDemoRun    = "demo/run"
	TopicScriptRun  = "script/run"
	TopicScriptStop = "script/stop"
)

// Client relays inbound MQTT requests to the orchestrator and publishes
// generator events back to the broker.
type Client struct {
	client         mqtt.Client
	cfg            *config.Config
	commandChannel core.CommandChannel
	log            *logger.Logger
	prefix         string
}

// NewClient returns nil when MQTT is disabled.
func NewClient(cfg *config.Config, cmdChan core.CommandChannel, log *logger.Logger) *Client {
	if !cfg.MQTT.Enabled {
		return nil
	}

	prefix := strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)

	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	// keep retrying at startup so a late broker does not stop the generator
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetOrderMatters(false)

	opts.SetWill(prefix+"/availability", "offline", 1, true)

	c := &Client{
		cfg:            cfg,
		commandChannel: cmdChan,
		log:            log,
		prefix:         prefix,
	}

	opts.SetOnConnectHandler(c.onConnect)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warnw("[MQTT] Connection lost, retrying in background", "err", err)
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		log.Infow("[MQTT] Attempting to reconnect")
	})

	c.client = mqtt.NewClient(opts)

	return c
}

// Connect starts the connection loop and waits for the first handshake.
func (c *Client) Connect() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.log.Infow("[MQTT] Connecting", "broker", c.cfg.MQTT.Broker)

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Disconnect publishes offline availability, then closes the connection.
func (c *Client) Disconnect() {
	if c == nil || c.client == nil || !c.client.IsConnected() {
		return
	}
	c.log.Infow("[MQTT] Disconnecting")

	token := c.client.Publish(c.prefix+"/availability", 0, true, "offline")
	if token.WaitTimeout(2 * time.Second) {
		if token.Error() != nil {
			c.log.Warnw("[MQTT] Failed to publish offline status", "err", token.Error())
		}
	} else {
		c.log.Warnw("[MQTT] Timed out publishing offline status")
	}

	c.client.Disconnect(250)
}

// Publish sends payload to prefix/subtopic without blocking the caller.
func (c *Client) Publish(subtopic string, payload interface{}, retained bool) {
	if c == nil || c.client == nil || !c.client.IsConnected() {
		return
	}

	topic := fmt.Sprintf("%s/%s", c.prefix, subtopic)
	token := c.client.Publish(topic, 0, retained, payload)

	go func() {
		if token.WaitTimeout(5 * time.Second) {
			if token.Error() != nil {
				c.log.Warnw("[MQTT] Publish error", "topic", topic, "err", token.Error())
			}
		} else {
			c.log.Warnw("[MQTT] Publish timed out", "topic", topic)
		}
	}()
}

// PublishEvent mirrors a generator event to its state topic.
func (c *Client) PublishEvent(ev core.Event) {
	if subtopic, payload, retained, ok := eventMessage(ev); ok {
		c.Publish(subtopic, payload, retained)
	}
}

// eventMessage maps an event to the subtopic and payload it is published as.
func eventMessage(ev core.Event) (subtopic string, payload []byte, retained, ok bool) {
	switch p := ev.Payload.(type) {
	case core.LinkPayload:
		state := "disconnected"
		if p.Connected {
			state = "connected"
		}
		return "link/state", []byte(state), true, true
	case core.CommandPayload:
		if ev.Type == core.CommandFailedEvent {
			data, err := json.Marshal(p)
			if err != nil {
				return "", nil, false, false
			}
			return "command/failed", data, false, true
		}
		return "command/sent", []byte(p.Line), false, true
	case core.RunPayload:
		switch ev.Type {
		case core.ScenarioChangedEvent:
			return "scenario/state", []byte(p.Running), true, true
		case core.ScriptChangedEvent:
			return "script/state", []byte(p.Running), true, true
		}
	}
	return "", nil, false, false
}

func (c *Client) onConnect(client mqtt.Client) {
	c.log.Infow("[MQTT] Connected to broker")

	for _, sub := range []string{TopicCommandSet, TopicRandomRun, TopicDemoRun, TopicScriptRun, TopicScriptStop} {
		sub := sub
		topic := fmt.Sprintf("%s/%s", c.prefix, sub)
		handler := func(_ mqtt.Client, msg mqtt.Message) {
			if err := c.route(sub, msg.Payload()); err != nil {
				c.log.Warnw("[MQTT] Rejected message", "topic", msg.Topic(), "err", err)
			}
		}
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			c.log.Errorw("[MQTT] Subscribe failed", "topic", topic, "err", token.Error())
		} else {
			c.log.Infow("[MQTT] Subscribed", "topic", topic)
		}
	}

	go c.Publish("availability", "online", true)
}

// route validates an inbound message and queues the command it requests.
func (c *Client) route(subtopic string, payload []byte) error {
	body := strings.TrimSpace(string(payload))

	cmd := core.Command{Origin: core.OriginMQTT}
	switch subtopic {
	case TopicCommandSet:
		in, err := protocol.Parse(body)
		if err == nil {
			err = core.Validate(in, c.cfg.Generator.Cabins)
		}
		if err != nil {
			return err
		}
		cmd.Type, cmd.Intent = core.CmdSend, in
	case TopicRandomRun:
		cmd.Type = core.CmdSendRandom
	case TopicDemoRun:
		cmd.Type = core.CmdRunDemo
	case TopicScriptRun:
		if body == "" {
			return fmt.Errorf("script name required")
		}
		cmd.Type, cmd.Name = core.CmdRunScript, body
	case TopicScriptStop:
		cmd.Type = core.CmdStopScript
	default:
		return fmt.Errorf("unhandled topic %q", subtopic)
	}

	select {
	case c.commandChannel <- cmd:
		return nil
	default:
		return fmt.Errorf("command queue full")
	}
}
