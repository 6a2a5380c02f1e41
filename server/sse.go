package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"seikabus.dev/shuttle"
	"seikabus.dev/shuttle/model"
)

type countdownEvent struct {
	Epoch     uint64 `json:"epoch"`
	Kind      string `json:"kind"`
	Remaining string `json:"remaining,omitempty"`
	Seconds   int64  `json:"seconds"`
	Text      string `json:"text"`
}

// Streams the countdown for the requested date and direction as
// Server-Sent Events. A "status" event goes first when a status
// provider is configured. On days the line is suspended nothing else
// follows.
func (s *Server) countdown(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if s.Status != nil {
		status, err := s.Status.Status(ctx, q.Date)
		if err != nil {
			log.Warn().Err(err).Msg("status lookup for countdown")
		} else {
			if err := writeEvent(w, "status", newStatusResponse(status)); err != nil {
				return
			}
			flusher.Flush()
			if status.Kind == model.StatusSuspended {
				return
			}
		}
	}

	displays := make(chan shuttle.Display)
	session := &shuttle.Session{
		Resolver:  s.Schedule,
		Wall:      s.Wall,
		Reference: s.Reference,
		Interval:  s.TickInterval,
		Publish: func(d shuttle.Display) {
			select {
			case displays <- d:
			case <-ctx.Done():
			}
		},
	}
	if s.Metrics != nil {
		session.Observer = s.Metrics
		s.Metrics.ActiveCountdowns.Inc()
		defer s.Metrics.ActiveCountdowns.Dec()
	}

	session.Start(ctx, q)
	defer func() {
		cancel()
		session.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-displays:
			err := writeEvent(w, "countdown", countdownEvent{
				Epoch:     d.Epoch,
				Kind:      d.Kind.String(),
				Remaining: d.Remaining,
				Seconds:   d.Seconds,
				Text:      d.String(),
			})
			if err != nil {
				log.Debug().Err(err).Msg("countdown client gone")
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
