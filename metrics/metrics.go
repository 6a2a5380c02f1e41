package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"seikabus.dev/shuttle/model"
)

// Collector exposes countdown and status metrics. It implements both
// shuttle.CountdownObserver and shuttle.StatusObserver.
type Collector struct {
	reg *prometheus.Registry

	Ticks       prometheus.Counter
	Resolutions *prometheus.CounterVec // kind label: none|specific|interval
	Retargets   prometheus.Counter

	ActiveCountdowns prometheus.Gauge

	StatusLookups *prometheus.CounterVec // kind label: NORMAL|SPECIAL|SUSPENDED|LOADING
	FetchErrors   *prometheus.CounterVec // url label

	TickInterval    prometheus.Gauge // seconds
	RefreshInterval prometheus.Gauge // seconds
}

func NewCollector(tickInterval time.Duration, refreshInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_countdown_ticks_total",
			Help: "Total countdown ticks processed.",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttle_departure_resolutions_total",
			Help: "Next departure resolutions by countdowns, by result kind.",
		}, []string{"kind"}),
		Retargets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_countdown_retargets_total",
			Help: "Times a countdown moved on to a new departure after the previous one left.",
		}),
		ActiveCountdowns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_active_countdowns",
			Help: "Number of countdown streams currently connected.",
		}),
		StatusLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttle_status_lookups_total",
			Help: "Operational status lookups, by resulting status.",
		}, []string{"kind"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttle_calendar_fetch_errors_total",
			Help: "Failed operation calendar refreshes, by calendar URL.",
		}, []string{"url"}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_tick_interval_seconds",
			Help: "Countdown tick interval in seconds.",
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_status_refresh_interval_seconds",
			Help: "Operation calendar refresh interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Ticks, c.Resolutions, c.Retargets,
		c.ActiveCountdowns,
		c.StatusLookups, c.FetchErrors,
		c.TickInterval, c.RefreshInterval,
	)

	c.TickInterval.Set(tickInterval.Seconds())
	c.RefreshInterval.Set(refreshInterval.Seconds())

	return c
}

func (c *Collector) ObserveTick() { c.Ticks.Inc() }

func (c *Collector) ObserveResolution(kind model.DepartureKind) {
	c.Resolutions.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) ObserveRetarget() { c.Retargets.Inc() }

func (c *Collector) ObserveStatus(kind model.StatusKind) {
	c.StatusLookups.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) ObserveFetchError(url string) {
	c.FetchErrors.WithLabelValues(url).Inc()
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics listening")
	return srv
}
