package app

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const metricPrefix = "bsbtrace_"

type metrics struct {
	registry *prometheus.Registry
	samples  *prometheus.CounterVec
	value    *prometheus.GaugeVec
	triggers *prometheus.CounterVec
	errors   *prometheus.CounterVec
	dropped  *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "samples_total",
			Help: "Readings appended to the trace file",
		}, []string{"disp_id"}),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "value",
			Help: "Last numeric reading of a field",
		}, []string{"disp_id"}),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "trigger_fires_total",
			Help: "Fired triggers",
		}, []string{"disp_id", "trigger"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "errors_total",
			Help: "Failed reading requests, decodes and trace writes",
		}, []string{"disp_id", "op"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "readings_dropped_total",
			Help: "Readings dropped because the field inbox was full",
		}, []string{"disp_id"}),
	}

	m.registry.MustRegister(m.samples, m.value, m.triggers, m.errors, m.dropped)
	return m
}

// HandleMetrics serves the metrics in the prometheus text format.
func (app *App) HandleMetrics() fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(app.metrics.registry, promhttp.HandlerOpts{}))

	return func(ctx *fiber.Ctx) error {
		h(ctx.Context())
		return nil
	}
}

func fieldLabel(id int) string {
	return strconv.Itoa(id)
}
