package app

import (
	"strconv"
	"time"

	"bsbtrace/pkg/mqtt"
)

// mqttTransport asks the bus gateway for a field by publishing its id.
// The reading comes back on the value topic of the field.
type mqttTransport struct {
	topic   string
	publish func(mqtt.Message)
}

func (t *mqttTransport) RequestReading(id int) error {
	t.publish(mqtt.Message{
		Topic:   t.topic,
		Payload: []byte(strconv.Itoa(id)),
	})
	return nil
}

// digitalInput is a gpio line.
type digitalInput interface {
	Read() (bool, error)
}

// gpioTransport samples a gpio line as a float field (0 or 1).
type gpioTransport struct {
	input   digitalInput
	deliver func(reading)
	now     func() time.Time
}

func (t *gpioTransport) RequestReading(int) error {
	high, err := t.input.Read()
	if err != nil {
		return err
	}

	v := 0.0
	if high {
		v = 1
	}
	t.deliver(reading{Time: t.now(), Value: v})
	return nil
}

// sendMQTT send message struct to the mqtt broker.
func (app *App) sendMQTT(msg mqtt.Message) {
	go func(m mqtt.Message) {
		select {
		case app.mqtt.C <- m:
		case <-app.shutdown:
		}
	}(msg)
}
