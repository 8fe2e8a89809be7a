package app

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"bsbtrace/pkg/app/config"
	"bsbtrace/pkg/fields"
	"bsbtrace/pkg/mqtt"
	"bsbtrace/pkg/raspberry"
	"bsbtrace/pkg/tracelog"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// tickOffset keeps ticks clear of the second boundary, so scheduling jitter
// doesn't move a tick into the neighbouring second.
const tickOffset = 100 * time.Millisecond

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// publish sends a message to the mqtt broker without blocking the caller
	publish func(mqtt.Message)

	// registry holds the names of the configured fields
	registry *fields.Registry

	// chip is the gpio chip of fields with source gpio, nil if there are none
	chip *raspberry.Chip
	// inputs are the requested gpio lines
	inputs []*raspberry.Input

	// channels are the logged fields by disp_id, order keeps the configuration order
	channels map[int]*channel
	order    []int

	metrics *metrics

	// now is the clock of the application
	now     func() time.Time
	started time.Time

	// shutdown signals application shutdown
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	list := make([]fields.Field, 0, len(config.Fields))
	for _, f := range config.Fields {
		list = append(list, fields.Field{ID: f.ID, Name: f.Name})
	}
	registry, err := fields.New(list...)
	if err != nil {
		return &App{}, err
	}

	app := &App{
		config:    config,
		urlParsed: u,
		registry:  registry,

		web:      fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:     mqtt.New(),
		metrics:  newMetrics(),
		channels: map[int]*channel{},
		now:      time.Now,
		started:  time.Now(),
		shutdown: make(chan struct{}),
	}
	app.publish = app.sendMQTT

	return app, nil
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()

	for _, id := range app.order {
		app.startChannel(app.channels[id])
	}

	return nil
}

// init initializes the application.
func (app *App) init() (err error) {
	if err = app.mqtt.Connect(app.config.MQTT.Connection, app.config.MQTT.ClientID); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	for _, f := range app.config.Fields {
		if err = app.addChannel(f); err != nil {
			debug.ErrorLog.Printf("can't start logging field %v: %v", f.ID, err)
			return err
		}
	}

	if app.mqtt.IsConnected() {
		if err = app.mqtt.Subscribe(mqtt.ValueFilter(app.config.MQTT.Topic), app.handleReading); err != nil {
			debug.ErrorLog.Printf("can't subscribe to readings: %v", err)
			return err
		}
	}

	// initDefaultRoutes should be always called last because it may access the channels
	app.initDefaultRoutes()

	return nil
}

// addChannel creates the trace logger of field f and registers its triggers.
func (app *App) addChannel(f config.FieldConfig) error {
	ch := newChannel(f, app.metrics)

	var transport tracelog.Transport
	switch f.Source {
	case config.SourceGPIO:
		in, err := app.openInput(f)
		if err != nil {
			return err
		}
		transport = &gpioTransport{input: in, deliver: ch.deliver, now: app.now}
	default:
		transport = &mqttTransport{topic: mqtt.GetTopic(app.config.MQTT.Topic), publish: app.publish}
	}

	l, err := tracelog.New(f.ID, app.registry, tracelog.Config{
		Interval:       f.Interval,
		AtomicInterval: f.AtomicInterval,
		Transport:      transport,
		Filename:       app.config.TraceFile(f),
		Now:            app.now,
	})
	if err != nil {
		return err
	}
	ch.logger = l
	ch.last.File = l.Filename()

	for _, t := range f.Triggers {
		kind, err := tracelog.ParseTriggerKind(t.Type)
		if err != nil {
			return err
		}
		if err = l.AddTrigger(app.onTrigger(f), kind, t.Param1, t.Param2); err != nil {
			return err
		}
	}

	app.channels[f.ID] = ch
	app.order = append(app.order, f.ID)
	return nil
}

// openInput requests the gpio line of field f, the chip is opened on first use.
func (app *App) openInput(f config.FieldConfig) (*raspberry.Input, error) {
	if app.chip == nil {
		c, err := raspberry.Open(app.config.GPIO.Chip)
		if err != nil {
			return nil, err
		}
		app.chip = c
	}

	in, err := app.chip.NewInput(f.Line, f.Terminator)
	if err != nil {
		return nil, fmt.Errorf("field %v: %w", f.ID, err)
	}
	app.inputs = append(app.inputs, in)
	return in, nil
}

// startChannel runs the driver of ch until shutdown. Ticks are aligned to the
// atomic interval grid of the wall clock, tickOffset after each boundary.
func (app *App) startChannel(ch *channel) {
	period := time.Duration(ch.field.AtomicInterval) * time.Second

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()

		timer := time.NewTimer(untilBoundary(app.now(), ch.field.AtomicInterval) + tickOffset)
		defer timer.Stop()

		select {
		case <-app.shutdown:
			return
		case <-timer.C:
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		ch.tick()
		ch.run(app.shutdown, ticker.C)
	}()
}

// untilBoundary returns the time from now to the next multiple of atomic seconds.
func untilBoundary(now time.Time, atomic int64) time.Duration {
	next := (now.Unix()/atomic + 1) * atomic
	return time.Unix(next, 0).Sub(now)
}

// Shutdown returns the read only shutdown channel.
// Shutdown is used to be able to react on application shutdown. (see cmd/main.go)
func (app *App) Shutdown() <-chan struct{} {
	return app.shutdown
}

func (app *App) Close() error {
	if app.shutdown != nil {
		select {
		case <-app.shutdown:
		default:
			close(app.shutdown)
		}
		app.wg.Wait()
	}

	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}
	if app.web != nil {
		_ = app.web.Shutdown()
	}

	for _, in := range app.inputs {
		_ = in.Close()
	}
	if app.chip != nil {
		_ = app.chip.Close()
	}
	return nil
}
