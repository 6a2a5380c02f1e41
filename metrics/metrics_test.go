package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seikabus.dev/shuttle/model"
)

func scrape(t *testing.T, c *Collector) string {
	server := httptest.NewServer(c.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector(t *testing.T) {
	c := NewCollector(time.Second, 15*time.Minute)

	c.ObserveTick()
	c.ObserveTick()
	c.ObserveResolution(model.DepartureSpecific)
	c.ObserveResolution(model.DepartureSpecific)
	c.ObserveResolution(model.DepartureInterval)
	c.ObserveRetarget()
	c.ObserveStatus(model.StatusSuspended)
	c.ObserveFetchError("https://example.com/a.ics")
	c.ActiveCountdowns.Inc()

	body := scrape(t, c)

	for _, line := range []string{
		"shuttle_countdown_ticks_total 2",
		`shuttle_departure_resolutions_total{kind="specific"} 2`,
		`shuttle_departure_resolutions_total{kind="interval"} 1`,
		"shuttle_countdown_retargets_total 1",
		"shuttle_active_countdowns 1",
		`shuttle_status_lookups_total{kind="SUSPENDED"} 1`,
		`shuttle_calendar_fetch_errors_total{url="https://example.com/a.ics"} 1`,
		"shuttle_tick_interval_seconds 1",
		"shuttle_status_refresh_interval_seconds 900",
	} {
		assert.Contains(t, body, line)
	}
}
