package mqtt

import (
	"fmt"
	"sort"
	"sync"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/womat/debug"
)

// quiesce is the specified number of milliseconds to wait for existing work to be completed.
const (
	quiesce = 250
)

// Handler contains the handler of the mqtt broker.
type Handler struct {
	handler mqttlib.Client
	// C is the channel to service the mqtt message
	// sending a message to channel C will send the message.
	C chan Message

	// subscriptions are renewed on every (re)connect, the broker drops them with a clean session.
	mu            sync.Mutex
	subscriptions map[string]mqttlib.MessageHandler
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// New generate a new mqtt broker client.
func New() *Handler {
	return &Handler{
		C:             make(chan Message),
		subscriptions: map[string]mqttlib.MessageHandler{},
	}
}

// Connect connects to the mqtt broker.
// If no broker is defined, no mqtt message are send.
// An empty clientID is replaced by a random one.
func (m *Handler) Connect(broker, clientID string) error {
	if broker == "" {
		return nil
	}
	if clientID == "" {
		clientID = "bsbtrace-" + uuid.NewString()
	}

	opts := mqttlib.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(m.onConnect)
	m.handler = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.handler.Connect()
	<-t.Done()
	return t.Error()
}

// IsConnected reports whether a broker is connected.
func (m *Handler) IsConnected() bool {
	return m.handler != nil && m.handler.IsConnected()
}

// Disconnect will end the connection to the broker.
func (m *Handler) Disconnect() error {
	if m.handler == nil {
		return nil
	}

	m.handler.Disconnect(quiesce)
	return nil
}

// Subscribe calls fn for every message received on topic.
// fn runs on the goroutine of the mqtt client and must not block.
// The subscription is renewed whenever the client reconnects.
func (m *Handler) Subscribe(topic string, fn func(Message)) error {
	if m.handler == nil {
		return fmt.Errorf("subscribe %v: no mqtt broker connected", topic)
	}

	cb := func(_ mqttlib.Client, msg mqttlib.Message) {
		fn(Message{
			Topic:    msg.Topic(),
			Payload:  msg.Payload(),
			Qos:      msg.Qos(),
			Retained: msg.Retained(),
		})
	}

	m.mu.Lock()
	if m.subscriptions == nil {
		m.subscriptions = map[string]mqttlib.MessageHandler{}
	}
	m.subscriptions[topic] = cb
	m.mu.Unlock()

	t := m.handler.Subscribe(topic, 0, cb)
	<-t.Done()
	return t.Error()
}

// Subscriptions returns the topics renewed on reconnect.
func (m *Handler) Subscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	topics := make([]string, 0, len(m.subscriptions))
	for topic := range m.subscriptions {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// onConnect renews the subscriptions after a (re)connect.
func (m *Handler) onConnect(c mqttlib.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for topic, cb := range m.subscriptions {
		debug.DebugLog.Printf("renew subscription %v", topic)
		t := c.Subscribe(topic, 0, cb)

		go func(topic string) {
			<-t.Done()
			if err := t.Error(); err != nil {
				debug.ErrorLog.Printf("renew subscription %v: %v", topic, err)
			}
		}(topic)
	}
}

// Service listen to a message on the channel C and send the message to mqtt.
// If no handler or topic is defined, the message will be ignored.
func (m *Handler) Service() {
	for d := range m.C {
		if m.handler == nil || d.Topic == "" {
			continue
		}

		go func(msg Message) {
			if !m.handler.IsConnected() {
				debug.DebugLog.Printf("mqtt broker isn't connected, reconnect it")

				if err := m.ReConnect(); err != nil {
					debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
					return
				}
			}

			debug.DebugLog.Printf("publishing %v bytes to topic %v", len(msg.Payload), msg.Topic)
			t := m.handler.Publish(msg.Topic, msg.Qos, msg.Retained, msg.Payload)

			// the asynchronous nature of this library makes it easy to forget to check for errors.
			go func() {
				<-t.Done()
				if err := t.Error(); err != nil {
					debug.ErrorLog.Printf("publishing topic %v: %v", msg.Topic, err)
				}
			}()
		}(d)
	}
}
