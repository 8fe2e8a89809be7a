package tracelog

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry map[int]string

func (r fakeRegistry) DisplayName(id int) (string, error) {
	name, ok := r[id]
	if !ok {
		return "", errors.New("unknown field")
	}
	return name, nil
}

type fakeTransport struct {
	requests []int
	err      error
}

func (f *fakeTransport) RequestReading(id int) error {
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, id)
	return nil
}

var registry = fakeRegistry{
	8700: "Aussentemperatur",
	8740: "Raumtemperatur 1",
}

func newTestLogger(t *testing.T, id int, cfg Config) *Logger {
	t.Helper()
	if cfg.Filename == "" {
		cfg.Filename = filepath.Join(t.TempDir(), strconv.Itoa(id)+".trace")
	}
	l, err := New(id, registry, cfg)
	require.NoError(t, err)
	return l
}

func readTrace(t *testing.T, l *Logger) string {
	t.Helper()
	b, err := os.ReadFile(l.Filename())
	require.NoError(t, err)
	return string(b)
}

func at(sec int64) time.Time {
	return time.Unix(sec, 0)
}

const header8700 = "\n:disp_id 8700\n:fieldname Aussentemperatur\n:interval 1"

func TestNewWritesHeader(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})

	assert.Equal(t, header8700, readTrace(t, l))
	assert.EqualValues(t, 1, l.Interval())
	assert.EqualValues(t, 1, l.AtomicInterval())
	assert.Equal(t, 8700, l.ID())
}

func TestNewOnExistingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "8700.trace")
	first, err := New(8700, registry, Config{Filename: file, Interval: 60})
	require.NoError(t, err)
	require.NoError(t, first.LogValue(at(120), 1.5))

	// restart with another interval: only the interval directive is added
	second, err := New(8700, registry, Config{Filename: file, Interval: 30})
	require.NoError(t, err)

	want := "\n:disp_id 8700\n:fieldname Aussentemperatur\n:interval 60" +
		"\n:time 120\n:dtype float\n1.5" +
		"\n:interval 30"
	assert.Equal(t, want, readTrace(t, second))
	assert.Equal(t, 1, strings.Count(readTrace(t, second), ":disp_id"))
}

func TestNewDefaultFilename(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() { _ = os.Chdir(wd) }()

	l, err := New(8740, registry, Config{})
	require.NoError(t, err)
	assert.Equal(t, "8740.trace", l.Filename())

	b, err := os.ReadFile("8740.trace")
	require.NoError(t, err)
	assert.Equal(t, "\n:disp_id 8740\n:fieldname Raumtemperatur 1\n:interval 1", string(b))
}

func TestNewErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		id   int
		cfg  Config
		reg  Registry
	}{
		{"negative interval", 8700, Config{Interval: -1}, registry},
		{"atomic interval above interval", 8700, Config{Interval: 10, AtomicInterval: 20}, registry},
		{"no registry", 8700, Config{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Filename = filepath.Join(dir, tt.name+".trace")
			_, err := New(tt.id, tt.reg, tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.NoFileExists(t, tt.cfg.Filename)
		})
	}

	t.Run("unknown field", func(t *testing.T) {
		file := filepath.Join(dir, "unknown.trace")
		_, err := New(1, registry, Config{Filename: file})
		assert.Error(t, err)
		assert.NoFileExists(t, file)
	})

	t.Run("unwritable file", func(t *testing.T) {
		_, err := New(8700, registry, Config{Filename: filepath.Join(dir, "missing", "8700.trace")})
		var ioErr *IOError
		require.True(t, errors.As(err, &ioErr))
		assert.Equal(t, "open", ioErr.Op)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLogValueContinuousCadence(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})

	for i, v := range []float64{1.5, 1.5, 2, 2, 2, 3} {
		require.NoError(t, l.LogValue(at(int64(i)), v))
	}

	want := header8700 + "\n:time 0\n:dtype float\n1.5~\n2~~\n3"
	assert.Equal(t, want, readTrace(t, l))
	assert.Equal(t, 1, strings.Count(readTrace(t, l), ":time"))
}

func TestLogValueGapStartsNewEpoch(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})

	require.NoError(t, l.LogValue(at(0), 1.0))
	require.NoError(t, l.LogValue(at(5), 2.0))
	require.NoError(t, l.LogValue(at(6), 2.0))
	// out of order
	require.NoError(t, l.LogValue(at(3), 2.0))

	want := header8700 + "\n:time 0\n:dtype float\n1" +
		"\n:time 5\n2~" +
		"\n:time 3\n~"
	assert.Equal(t, want, readTrace(t, l))
}

func TestLogValueFirstSampleAlwaysStampsTime(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})

	// 1 == lastSaveTime(0) + interval, but nothing is saved yet
	require.NoError(t, l.LogValue(at(1), 4.0))
	assert.Equal(t, header8700+"\n:time 1\n:dtype float\n4", readTrace(t, l))
}

func TestLogValueQuantization(t *testing.T) {
	l := newTestLogger(t, 8700, Config{Interval: 60, AtomicInterval: 10})

	require.NoError(t, l.LogValue(at(125), 1.0))
	require.NoError(t, l.LogValue(at(189), 2.0))
	require.NoError(t, l.LogValue(at(251), 3.0))

	trace := readTrace(t, l)
	assert.Contains(t, trace, "\n:time 120\n:dtype float\n1\n2")
	assert.Contains(t, trace, "\n:time 250\n3")
	assert.EqualValues(t, 250, l.lastSaveTime)
	assert.Zero(t, l.lastSaveTime%l.atomicInterval)
}

func TestLogValueKinds(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})

	values := []interface{}{
		21.5,
		"Automatik",
		"Automatik",
		[]int{1, 2, 255},
		[]byte{1, 2, 255},
		Choice{Code: 1, Text: "Komfort"},
		Choice{Code: 1, Text: "Komfort"},
		nil,
		float32(0.1),
	}
	for i, v := range values {
		require.NoError(t, l.LogValue(at(int64(i)), v))
	}

	want := header8700 + "\n:time 0" +
		"\n:dtype float\n21.5" +
		"\n:dtype string\nAutomatik~" +
		"\n:dtype hex\n0102ff~" +
		"\n:dtype choice\n1~" +
		"\n:dtype none\n" +
		"\n:dtype float\n0.1"
	assert.Equal(t, want, readTrace(t, l))
}

func TestLogValueNoneIsNeverRepeated(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})

	for i, v := range []interface{}{1.5, nil, nil, 1.5} {
		require.NoError(t, l.LogValue(at(int64(i)), v))
	}

	want := header8700 + "\n:time 0\n:dtype float\n1.5" +
		"\n:dtype none\n\n" +
		"\n:dtype float\n1.5"
	assert.Equal(t, want, readTrace(t, l))
	assert.NotContains(t, readTrace(t, l), "~")
}

func TestLogValueRunOfNone(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})

	for i := 0; i < 3; i++ {
		require.NoError(t, l.LogValue(at(int64(i)), nil))
	}
	assert.Equal(t, header8700+"\n:time 0\n:dtype none\n\n\n", readTrace(t, l))
}

func TestLogValueUnsupportedTypeWritesNothing(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})
	require.NoError(t, l.LogValue(at(0), 1.0))
	before := readTrace(t, l)

	for _, v := range []interface{}{42, true, []int{256}, struct{}{}, []float64{1}} {
		err := l.LogValue(at(100), v)
		assert.ErrorIs(t, err, ErrUnsupportedValueType, "%T", v)
	}

	assert.Equal(t, before, readTrace(t, l))
	assert.EqualValues(t, 0, l.lastSaveTime)
	assert.Equal(t, 1.0, l.lastValue)
}

func TestLogValueCopiesByteBuffers(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})

	buf := []byte{0x0a, 0x0b}
	require.NoError(t, l.LogValue(at(0), buf))
	buf[0] = 0xff
	require.NoError(t, l.LogValue(at(1), buf))

	assert.Equal(t, header8700+"\n:time 0\n:dtype hex\n0a0b\nff0b", readTrace(t, l))
}

func TestFloatRoundTrip(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})
	require.NoError(t, l.LogValue(at(0), 3.14159))

	lines := strings.Split(readTrace(t, l), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, ":dtype float", lines[len(lines)-2])

	f, err := strconv.ParseFloat(lines[len(lines)-1], 64)
	require.NoError(t, err)
	assert.Equal(t, 3.14159, f)
}

func TestLoggersDoNotShareFiles(t *testing.T) {
	dir := t.TempDir()
	a, err := New(8700, registry, Config{Filename: filepath.Join(dir, "a.trace")})
	require.NoError(t, err)
	b, err := New(8740, registry, Config{Filename: filepath.Join(dir, "b.trace")})
	require.NoError(t, err)

	require.NoError(t, a.LogValue(at(0), 1.0))
	require.NoError(t, b.LogValue(at(0), "x"))
	require.NoError(t, a.LogValue(at(1), 2.0))

	assert.Equal(t, header8700+"\n:time 0\n:dtype float\n1\n2", readTrace(t, a))
	assert.Equal(t, "\n:disp_id 8740\n:fieldname Raumtemperatur 1\n:interval 1\n:time 0\n:dtype string\nx", readTrace(t, b))
}

func TestLogValueIOError(t *testing.T) {
	l := newTestLogger(t, 8700, Config{})
	require.NoError(t, os.Remove(l.Filename()))
	require.NoError(t, os.Mkdir(l.Filename(), 0o755))

	err := l.LogValue(at(0), 1.0)
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, l.Filename(), ioErr.Path)
}

func TestTick(t *testing.T) {
	now := at(120)
	tr := &fakeTransport{}
	l := newTestLogger(t, 8700, Config{
		Interval:       60,
		AtomicInterval: 10,
		Transport:      tr,
		Now:            func() time.Time { return now },
	})

	require.NoError(t, l.Tick())
	assert.Equal(t, []int{8700}, tr.requests)

	// quantized to 120
	now = at(129)
	require.NoError(t, l.Tick())
	assert.Equal(t, []int{8700, 8700}, tr.requests)

	now = at(130)
	require.NoError(t, l.Tick())
	assert.Len(t, tr.requests, 2)

	tr.err = errors.New("bus down")
	now = at(180)
	assert.EqualError(t, l.Tick(), "bus down")

	// tick doesn't touch the trace
	assert.Equal(t, "\n:disp_id 8700\n:fieldname Aussentemperatur\n:interval 60", readTrace(t, l))
}

func TestTickWithoutTransport(t *testing.T) {
	l := newTestLogger(t, 8700, Config{Now: func() time.Time { return at(0) }})
	assert.ErrorIs(t, l.Tick(), ErrInvalidArgument)
}

func TestQuantizeNegative(t *testing.T) {
	l := &Logger{atomicInterval: 10}
	assert.EqualValues(t, -10, l.quantize(-1))
	assert.EqualValues(t, -10, l.quantize(-10))
	assert.EqualValues(t, 0, l.quantize(9))
}
