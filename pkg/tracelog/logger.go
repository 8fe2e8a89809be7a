// Package tracelog records the time series of a single bus field to an
// append-only trace file.
//
// A trace is a line oriented text stream. Directive lines start with ':'
//  :disp_id <id>        field header, written once when the file is created
//  :fieldname <name>
//  :interval <seconds>  written on every start of a logger
//  :time <unix>         timestamp of the next value; the following values are
//                       one interval apart until the next :time
//  :dtype <kind>        serialization of the following values
// Every other line is a value. A '~' appended directly to the previous value
// repeats it.
package tracelog

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/womat/debug"
)

// Transport requests a fresh reading of a field from the bus.
// The reading is delivered later through Logger.LogValue.
type Transport interface {
	RequestReading(id int) error
}

// Registry resolves the display name of a field.
type Registry interface {
	DisplayName(id int) (string, error)
}

// Config holds the construction parameters of a Logger.
type Config struct {
	// Interval is the sampling period in seconds (default 1).
	Interval int64
	// AtomicInterval is the quantization of timestamps in seconds (default 1).
	AtomicInterval int64
	// Transport is asked for a reading by Tick. It may be nil if Tick is never called.
	Transport Transport
	// Filename of the trace, default "<id>.trace".
	Filename string
	// Now is the clock used by Tick, default time.Now.
	Now func() time.Time
}

// Logger is the trace logger of one field. It isn't safe for concurrent use;
// Tick and LogValue must be called from one goroutine.
type Logger struct {
	id             int
	interval       int64
	atomicInterval int64
	transport      Transport
	filename       string
	now            func() time.Time

	// hasSaved is set by the first logged sample, lastSaveTime is valid from then on.
	hasSaved     bool
	lastSaveTime int64

	// hasValue is false until a value other than none is saved. A none value
	// is an empty line and can't be repeated with '~'.
	hasValue  bool
	lastValue interface{}

	kindWritten bool
	kind        Kind

	lastWasValue bool

	triggers []*trigger
}

// New creates the logger of field id. If the trace file doesn't exist yet the
// field header is written, using registry to look up the field name.
// The interval directive is written in any case.
func New(id int, registry Registry, cfg Config) (*Logger, error) {
	l := &Logger{
		id:             id,
		interval:       cfg.Interval,
		atomicInterval: cfg.AtomicInterval,
		transport:      cfg.Transport,
		filename:       cfg.Filename,
		now:            cfg.Now,
	}

	if l.interval == 0 {
		l.interval = 1
	}
	if l.atomicInterval == 0 {
		l.atomicInterval = 1
	}
	if l.filename == "" {
		l.filename = fmt.Sprintf("%d.trace", id)
	}
	if l.now == nil {
		l.now = time.Now
	}

	if l.interval < 0 || l.atomicInterval < 0 || l.atomicInterval > l.interval {
		return nil, fmt.Errorf("%w: interval %d, atomic interval %d", ErrInvalidArgument, l.interval, l.atomicInterval)
	}

	_, err := os.Stat(l.filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err = l.logFieldName(registry); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, &IOError{Op: "stat", Path: l.filename, Err: err}
	}

	if err = l.appendToken(fmt.Sprintf(":interval %d", l.interval), true); err != nil {
		return nil, err
	}

	debug.DebugLog.Printf("field %d: logging to %s every %ds", id, l.filename, l.interval)
	return l, nil
}

// ID returns the field id.
func (l *Logger) ID() int { return l.id }

// Interval returns the sampling period in seconds.
func (l *Logger) Interval() int64 { return l.interval }

// AtomicInterval returns the timestamp quantization in seconds.
func (l *Logger) AtomicInterval() int64 { return l.atomicInterval }

// Filename returns the path of the trace file.
func (l *Logger) Filename() string { return l.filename }

// Tick requests a reading from the transport if the current time is on an
// interval boundary.
func (l *Logger) Tick() error {
	t := l.quantize(l.now().Unix())
	if t%l.interval != 0 {
		return nil
	}
	if l.transport == nil {
		return fmt.Errorf("%w: field %d has no transport", ErrInvalidArgument, l.id)
	}

	debug.TraceLog.Printf("field %d: request reading at %d", l.id, t)
	return l.transport.RequestReading(l.id)
}

// LogValue appends the reading v taken at timestamp to the trace.
// Triggers are evaluated when the sample directly follows the previous one.
// A value of unsupported type is rejected before anything is written.
func (l *Logger) LogValue(timestamp time.Time, v interface{}) error {
	kind, text, err := Encode(v)
	if err != nil {
		return err
	}

	t := l.quantize(timestamp.Unix())
	if !l.hasSaved || t != l.lastSaveTime+l.interval {
		if err = l.appendToken(fmt.Sprintf(":time %d", t), true); err != nil {
			return err
		}
		l.hasSaved = true
		l.lastSaveTime = t
	} else {
		l.lastSaveTime = t
		if l.hasValue {
			l.checkTriggers(t, l.lastValue, v)
		}
	}

	if l.hasValue && equal(v, l.lastValue) {
		if err = l.appendToken("~", false); err != nil {
			return err
		}
	} else {
		if !l.kindWritten || kind != l.kind {
			if err = l.appendToken(":dtype "+kind.String(), true); err != nil {
				return err
			}
			l.kindWritten = true
			l.kind = kind
		}
		if err = l.appendToken(text, true); err != nil {
			return err
		}
	}

	l.hasValue = v != nil
	l.lastValue = clone(v)
	return nil
}

// quantize floors the unix time t to a multiple of the atomic interval.
func (l *Logger) quantize(t int64) int64 {
	q := t / l.atomicInterval
	if t%l.atomicInterval != 0 && t < 0 {
		q--
	}
	return q * l.atomicInterval
}

func (l *Logger) logFieldName(registry Registry) error {
	if registry == nil {
		return fmt.Errorf("%w: no field registry", ErrInvalidArgument)
	}
	name, err := registry.DisplayName(l.id)
	if err != nil {
		return fmt.Errorf("field %d: %w", l.id, err)
	}

	if err = l.appendToken(fmt.Sprintf(":disp_id %d", l.id), true); err != nil {
		return err
	}
	// a name must not break the line structure of the trace
	name = strings.NewReplacer("\r", " ", "\n", " ").Replace(name)
	return l.appendToken(":fieldname "+name, true)
}

// appendToken opens the trace, appends text and closes it again. The text goes
// on a new line if breakBefore is set or the previous token wasn't a value.
func (l *Logger) appendToken(text string, breakBefore bool) error {
	fh, err := os.OpenFile(l.filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return &IOError{Op: "open", Path: l.filename, Err: err}
	}

	out := text
	if breakBefore || !l.lastWasValue {
		out = "\n" + text
	}

	_, err = fh.WriteString(out)
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &IOError{Op: "write", Path: l.filename, Err: err}
	}

	l.lastWasValue = !strings.HasPrefix(text, ":")
	return nil
}

// clone copies byte sequences so the caller may reuse its buffer.
func clone(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...)
	case []int:
		return append([]int(nil), x...)
	}
	return v
}
