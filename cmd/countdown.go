package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"seikabus.dev/shuttle"
	"seikabus.dev/shuttle/metrics"
	"seikabus.dev/shuttle/model"
)

var countdownCmd = &cobra.Command{
	Use:   "countdown",
	Short: "Counts down to the next departure",
	Long: `Counts down to the next departure, once per tick.

Commands, each followed by enter:
  n / p         next / previous day
  t             back to today
  a / b         departures from Kokusai Kaikan / Kyoto Seika University
  d YYYY-MM-DD  jump to a date
  q             quit`,
	Args: cobra.NoArgs,
	RunE: countdown,
}

func init() {
	rootCmd.AddCommand(countdownCmd)
}

func countdown(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	schedule, err := loadSchedule()
	if err != nil {
		return err
	}

	reference := referenceClock()
	q, err := loadQuery(reference)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector = metrics.NewCollector(cfg.TickInterval, cfg.StatusRefresh)
		srv := collector.Serve(cfg.MetricsAddr)
		defer srv.Close()
	}

	status, closeStatus, err := loadStatus(collector)
	if err != nil {
		return err
	}
	defer closeStatus()

	session := &shuttle.Session{
		Resolver:  schedule,
		Reference: reference,
		Interval:  cfg.TickInterval,
		Publish: func(d shuttle.Display) {
			fmt.Printf("\r%s\033[K", d)
		},
	}
	if collector != nil {
		session.Observer = collector
	}
	defer session.Stop()

	show := func(q shuttle.Query) {
		session.Stop()
		fmt.Println()

		today := shuttle.SameDay(reference.Now(), q.Date, cfg.Location)
		lines, live := countdownView(q, today, lookupStatus(ctx, status, q.Date))
		for _, line := range lines {
			fmt.Println(line)
		}
		if live {
			session.Start(ctx, q)
		}
	}

	show(q)

	commands := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case commands <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
		close(commands)
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok := <-commands:
			if !ok {
				// stdin closed, keep counting until interrupted
				commands = nil
				continue
			}
			next, quit, err := applyCommand(line, q, reference)
			if quit {
				fmt.Println()
				return nil
			}
			if err != nil {
				log.Warn().Err(err).Str("command", line).Msg("ignoring command")
				continue
			}
			if next.Direction == q.Direction && next.Date.Equal(q.Date) {
				continue
			}
			q = next
			show(q)
		}
	}
}

// Lines shown for q, and whether a live countdown follows them. Only
// today counts down; other days get their date and status, and a
// suspended day only its status.
func countdownView(q shuttle.Query, today bool, status model.Status) ([]string, bool) {
	if !today {
		return []string{
			fmt.Sprintf("%s %s", q.Date.In(cfg.Location).Format("1/2"), q.Direction.Label()),
			formatStatus(status),
		}, false
	}

	lines := []string{q.Direction.Label()}
	if status.Message != "" {
		lines = append(lines, formatStatus(status))
	}
	return lines, status.Kind != model.StatusSuspended
}

// Applies an interactive command to q. Dates keep the time of day of
// the reference instant.
func applyCommand(line string, q shuttle.Query, reference shuttle.Clock) (shuttle.Query, bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return q, false, nil
	}

	switch fields[0] {
	case "q":
		return q, true, nil
	case "n":
		q.Date = q.Date.AddDate(0, 0, 1)
	case "p":
		q.Date = q.Date.AddDate(0, 0, -1)
	case "t":
		q.Date = reference.Now().In(cfg.Location)
	case "a":
		q.Direction = model.DirectionAToB
	case "b":
		q.Direction = model.DirectionBToA
	case "d":
		if len(fields) != 2 {
			return q, false, fmt.Errorf("usage: d YYYY-MM-DD")
		}
		day, err := time.ParseInLocation("2006-01-02", fields[1], cfg.Location)
		if err != nil {
			return q, false, err
		}
		now := reference.Now().In(cfg.Location)
		q.Date = time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), 0, cfg.Location)
	default:
		return q, false, fmt.Errorf("unknown command")
	}

	return q, false, nil
}
