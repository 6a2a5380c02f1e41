package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"seikabus.dev/shuttle"
	"seikabus.dev/shuttle/config"
	"seikabus.dev/shuttle/metrics"
	"seikabus.dev/shuttle/model"
)

// Server exposes the schedule, the operational status and live
// countdowns over HTTP.
type Server struct {
	Schedule *shuttle.Schedule

	// Optional. /api/status answers 404 without one.
	Status shuttle.StatusProvider

	// Reference time source. Defaults to the wall clock.
	Reference shuttle.Clock
	Wall      shuttle.Clock

	TickInterval time.Duration

	// Optional. Serves /metrics and observes countdowns.
	Metrics *metrics.Collector

	mux *http.ServeMux
}

func New(schedule *shuttle.Schedule, status shuttle.StatusProvider, collector *metrics.Collector) *Server {
	s := &Server{
		Schedule: schedule,
		Status:   status,
		Metrics:  collector,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/next", s.next)
	s.mux.HandleFunc("GET /api/first", s.first)
	s.mux.HandleFunc("GET /api/timetable", s.timetable)
	s.mux.HandleFunc("GET /api/status", s.status)
	s.mux.HandleFunc("GET /api/countdown", s.countdown)
	if collector != nil {
		s.mux.Handle("GET /metrics", collector.Handler())
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return securityHeaders(requestLogger(s.mux))
}

// Serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("server starting")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) now() time.Time {
	if s.Reference != nil {
		return s.Reference.Now()
	}
	if s.Wall != nil {
		return s.Wall.Now()
	}
	return time.Now()
}

// Reads date and direction from the query string. The date defaults
// to the reference instant, the direction to Kokusai Kaikan departures.
func (s *Server) query(r *http.Request) (shuttle.Query, error) {
	loc := s.Schedule.Location()
	q := shuttle.Query{
		Date:      s.now().In(loc),
		Direction: model.DirectionAToB,
	}

	if v := r.URL.Query().Get("date"); v != "" {
		date, err := config.ParseInstant(v, loc)
		if err != nil {
			return q, err
		}
		q.Date = date
	}

	if v := r.URL.Query().Get("direction"); v != "" {
		direction, err := model.ParseDirection(v)
		if err != nil {
			return q, err
		}
		q.Direction = direction
	}

	return q, nil
}

type departureResponse struct {
	Kind        string     `json:"kind"`
	Time        *time.Time `json:"time,omitempty"`
	Description string     `json:"description,omitempty"`
	StartLabel  string     `json:"start_label,omitempty"`
	Text        string     `json:"text"`
}

func newDepartureResponse(d model.Departure) departureResponse {
	resp := departureResponse{
		Kind:        d.Kind.String(),
		Description: d.Description,
		StartLabel:  d.StartLabel,
	}
	switch d.Kind {
	case model.DepartureSpecific:
		t := d.Time
		resp.Time = &t
		resp.Text = t.Format("15:04")
	case model.DepartureInterval:
		resp.Text = shuttle.Display{Kind: shuttle.DisplayInterval, Departure: d}.String()
	default:
		resp.Text = shuttle.Display{Kind: shuttle.DisplayEnded}.String()
	}
	return resp
}

type nextResponse struct {
	Date      time.Time         `json:"date"`
	Direction string            `json:"direction"`
	Label     string            `json:"label"`
	Departure departureResponse `json:"departure"`
}

func (s *Server) next(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, nextResponse{
		Date:      q.Date,
		Direction: q.Direction.String(),
		Label:     q.Direction.Label(),
		Departure: newDepartureResponse(s.Schedule.NextDeparture(q.Date, q.Direction)),
	})
}

type firstResponse struct {
	Date      string `json:"date"`
	Direction string `json:"direction"`
	First     string `json:"first,omitempty"`
	Last      string `json:"last,omitempty"`
}

func (s *Server) first(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := firstResponse{
		Date:      q.Date.Format("2006-01-02"),
		Direction: q.Direction.String(),
	}
	if first, ok := s.Schedule.FirstDeparture(q.Date, q.Direction); ok {
		resp.First = first.Format("15:04")
	}
	if last, ok := s.Schedule.LastDeparture(q.Date, q.Direction); ok {
		resp.Last = last.Format("15:04")
	}

	writeJSON(w, resp)
}

type rowResponse struct {
	Hour        int    `json:"hour"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	StartMinute *int   `json:"start_minute,omitempty"`
	Minutes     []int  `json:"minutes,omitempty"`
}

type timetableResponse struct {
	Date      string        `json:"date"`
	Direction string        `json:"direction"`
	Variant   string        `json:"variant"`
	Rows      []rowResponse `json:"rows"`
}

func (s *Server) timetable(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := timetableResponse{
		Date:      q.Date.Format("2006-01-02"),
		Direction: q.Direction.String(),
		Variant:   s.Schedule.ResolveVariant(q.Date).String(),
		Rows:      []rowResponse{},
	}

	for _, row := range s.Schedule.Rows(q.Date, q.Direction) {
		rr := rowResponse{Hour: row.Hour, Kind: "none"}
		switch entry := row.Entry.(type) {
		case model.Interval:
			rr.Kind = "interval"
			rr.Description = entry.Description
			if entry.HasStart {
				m := entry.StartMinute
				rr.StartMinute = &m
			}
		case model.Specific:
			rr.Kind = "specific"
			rr.Minutes = entry.Minutes
		}
		resp.Rows = append(resp.Rows, rr)
	}

	writeJSON(w, resp)
}

type statusResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

func newStatusResponse(status model.Status) statusResponse {
	return statusResponse{Kind: status.Kind.String(), Message: status.Message, URL: status.URL}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	if s.Status == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("status is disabled"))
		return
	}

	q, err := s.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	status, err := s.Status.Status(r.Context(), q.Date)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, newStatusResponse(status))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("writing response")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
