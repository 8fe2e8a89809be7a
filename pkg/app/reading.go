package app

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"bsbtrace/pkg/mqtt"
	"bsbtrace/pkg/tracelog"

	"github.com/womat/debug"
)

// maxReadingTime is the last second of year 9999.
const maxReadingTime = 253402300799

// readingPayload is the mqtt message of a bus reading, e.g.
//  {"time": 1700000000.25, "dtype": "float", "value": 21.5}
//  {"dtype": "choice", "value": [1, "Komfort"]}
//  {"dtype": "hex", "value": [1, 2, 255]}
// A reading without time was taken when it is received.
type readingPayload struct {
	Time  *float64        `json:"time"`
	DType string          `json:"dtype"`
	Value json.RawMessage `json:"value"`
}

// decodeReading converts a reading payload to a trace value.
func decodeReading(payload []byte, received time.Time) (reading, error) {
	var p readingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return reading{}, fmt.Errorf("decode reading: %w", err)
	}

	r := reading{Time: received}
	if p.Time != nil {
		if math.IsNaN(*p.Time) || *p.Time < 0 || *p.Time > maxReadingTime {
			return reading{}, fmt.Errorf("decode reading: time %v out of range", *p.Time)
		}
		sec, frac := math.Modf(*p.Time)
		r.Time = time.Unix(int64(sec), int64(frac*1e9))
	}

	kind, err := tracelog.ParseKind(p.DType)
	if err != nil {
		return reading{}, err
	}

	if kind != tracelog.KindNone && (len(p.Value) == 0 || string(p.Value) == "null") {
		return reading{}, fmt.Errorf("decode reading: %s without value", kind)
	}

	switch kind {
	case tracelog.KindNone:
		r.Value = nil
	case tracelog.KindHex:
		var b []int
		err = json.Unmarshal(p.Value, &b)
		r.Value = b
	case tracelog.KindString:
		var s string
		err = json.Unmarshal(p.Value, &s)
		r.Value = s
	case tracelog.KindFloat:
		var f float64
		err = json.Unmarshal(p.Value, &f)
		r.Value = f
	case tracelog.KindChoice:
		r.Value, err = decodeChoice(p.Value)
	}
	if err != nil {
		return reading{}, fmt.Errorf("decode %s reading: %w", kind, err)
	}

	// reject byte values out of range before they reach the logger
	if _, err = tracelog.KindOf(r.Value); err != nil {
		return reading{}, err
	}
	return r, nil
}

// decodeChoice decodes [code] or [code, "text"].
func decodeChoice(raw json.RawMessage) (tracelog.Choice, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return tracelog.Choice{}, err
	}
	if len(parts) < 1 || len(parts) > 2 {
		return tracelog.Choice{}, fmt.Errorf("choice needs 1 or 2 elements, got %d", len(parts))
	}

	var c tracelog.Choice
	if err := json.Unmarshal(parts[0], &c.Code); err != nil {
		return tracelog.Choice{}, err
	}
	if len(parts) == 2 {
		if err := json.Unmarshal(parts[1], &c.Text); err != nil {
			return tracelog.Choice{}, err
		}
	}
	return c, nil
}

// handleReading receives the readings of the bus gateway.
// It runs on the mqtt client goroutine and only queues the reading.
func (app *App) handleReading(msg mqtt.Message) {
	id, err := mqtt.ParseValueTopic(app.config.MQTT.Topic, msg.Topic)
	if err != nil {
		debug.ErrorLog.Print(err)
		return
	}

	ch, ok := app.channels[id]
	if !ok {
		debug.TraceLog.Printf("reading of unlogged field %v ignored", id)
		return
	}

	r, err := decodeReading(msg.Payload, app.now())
	if err != nil {
		debug.ErrorLog.Printf("field %v: %v", id, err)
		app.metrics.errors.WithLabelValues(fieldLabel(id), "decode").Inc()
		return
	}

	ch.deliver(r)
}
