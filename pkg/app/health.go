package app

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// healthReport is the body of /health.
type healthReport struct {
	Status        string `json:"status"`
	Fields        int    `json:"fields"`
	Samples       uint64 `json:"samples"`
	Errors        uint64 `json:"errors"`
	MQTTConnected bool   `json:"mqtt_connected"`
	TraceDir      string `json:"tracedir"`
	Uptime        string `json:"uptime"`
	Goroutines    int    `json:"goroutines"`
	HeapMB        uint64 `json:"heap_mb"`
	Version       string `json:"version"`
	GoVersion     string `json:"go_version"`
	Host          string `json:"host"`
	Time          string `json:"time"`
}

// HandleHealth reports the logger state, e.g.
//  {"status":"ok","fields":2,"samples":1440,"errors":0,"mqtt_connected":true,"tracedir":"/var/lib/bsbtrace",...}
// The status is degraded while a configured broker isn't connected.
func (app *App) HandleHealth() fiber.Handler {
	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		r := healthReport{
			Status:        "ok",
			Fields:        len(app.channels),
			MQTTConnected: app.mqtt.IsConnected(),
			TraceDir:      app.config.TraceDir,
			Uptime:        time.Since(app.started).Round(time.Second).String(),
			Goroutines:    runtime.NumGoroutine(),
			Version:       VERSION,
			GoVersion:     runtime.Version(),
			Host:          host,
			Time:          time.Now().Format(time.RFC3339),
		}

		for _, ch := range app.channels {
			s := ch.snapshot()
			r.Samples += s.Samples
			r.Errors += s.Errors
		}

		if app.config.MQTT.Connection != "" && !r.MQTTConnected {
			r.Status = "degraded"
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		r.HeapMB = m.Alloc / 1024 / 1024

		return ctx.Status(http.StatusOK).JSON(r)
	}
}
