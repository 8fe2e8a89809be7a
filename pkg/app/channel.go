package app

import (
	"sync"
	"time"

	"bsbtrace/pkg/app/config"
	"bsbtrace/pkg/tracelog"

	"github.com/womat/debug"
)

// inboxSize is the number of readings a channel buffers between two samples.
const inboxSize = 16

// reading is a field value taken from the bus at Time.
type reading struct {
	Time  time.Time
	Value interface{}
}

// Snapshot is the last logged reading of a field.
type Snapshot struct {
	ID      int       `json:"disp_id"`
	Name    string    `json:"name"`
	File    string    `json:"file"`
	Time    time.Time `json:"time"`
	DType   string    `json:"dtype"`
	Value   string    `json:"value"`
	Samples uint64    `json:"samples"`
	Errors  uint64    `json:"errors"`
}

// channel drives the trace logger of one field. Tick and LogValue are only
// called from run, so the logger is never used concurrently.
type channel struct {
	field   config.FieldConfig
	logger  *tracelog.Logger
	inbox   chan reading
	metrics *metrics

	mu   sync.RWMutex
	last Snapshot
}

func newChannel(f config.FieldConfig, m *metrics) *channel {
	return &channel{
		field:   f,
		inbox:   make(chan reading, inboxSize),
		metrics: m,
		last:    Snapshot{ID: f.ID, Name: f.Name},
	}
}

// deliver queues a reading for the driver. It never blocks, readings are
// dropped if the driver can't keep up.
func (c *channel) deliver(r reading) {
	select {
	case c.inbox <- r:
	default:
		debug.ErrorLog.Printf("field %v: inbox full, reading dropped", c.field.ID)
		c.metrics.dropped.WithLabelValues(c.label()).Inc()
	}
}

// run serializes ticks and readings until quit is closed.
func (c *channel) run(quit <-chan struct{}, tick <-chan time.Time) {
	for {
		select {
		case <-quit:
			return
		case <-tick:
			c.tick()
		case r := <-c.inbox:
			c.logValue(r)
		}
	}
}

func (c *channel) tick() {
	if err := c.logger.Tick(); err != nil {
		debug.ErrorLog.Printf("field %v: request reading: %v", c.field.ID, err)
		c.failed("tick")
	}
}

func (c *channel) logValue(r reading) {
	if err := c.logger.LogValue(r.Time, r.Value); err != nil {
		debug.ErrorLog.Printf("field %v: log value %v: %v", c.field.ID, r.Value, err)
		c.failed("log")
		return
	}

	kind, text, _ := tracelog.Encode(r.Value)
	debug.TraceLog.Printf("field %v: logged %s %q at %v", c.field.ID, kind, text, r.Time.Unix())

	c.metrics.samples.WithLabelValues(c.label()).Inc()
	if f, ok := numeric(r.Value); ok {
		c.metrics.value.WithLabelValues(c.label()).Set(f)
	}

	c.mu.Lock()
	c.last.Time = r.Time
	c.last.DType = kind.String()
	c.last.Value = text
	c.last.Samples++
	c.mu.Unlock()
}

func (c *channel) failed(op string) {
	c.metrics.errors.WithLabelValues(c.label(), op).Inc()

	c.mu.Lock()
	c.last.Errors++
	c.mu.Unlock()
}

// snapshot returns a copy of the last logged reading.
func (c *channel) snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *channel) label() string {
	return fieldLabel(c.field.ID)
}

func numeric(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case tracelog.Choice:
		return x.Code, true
	}
	return 0, false
}
