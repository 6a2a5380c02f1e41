package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"seikabus.dev/shuttle/metrics"
	"seikabus.dev/shuttle/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the schedule, status and live countdowns over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var addr string

func init() {
	serveCmd.Flags().StringVarP(&addr, "addr", "", "", "Listen address (default :8080)")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cmd.Flags().Changed("addr") {
		cfg.Addr = addr
	}

	schedule, err := loadSchedule()
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(cfg.TickInterval, cfg.StatusRefresh)
	if cfg.MetricsAddr != "" {
		srv := collector.Serve(cfg.MetricsAddr)
		defer srv.Close()
	}

	status, closeStatus, err := loadStatus(collector)
	if err != nil {
		return err
	}
	defer closeStatus()

	s := server.New(schedule, nil, collector)
	if status != nil {
		s.Status = status
		go func() {
			if err := status.Refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("initial calendar refresh")
			}
		}()
	}
	s.Reference = referenceClock()
	s.TickInterval = cfg.TickInterval

	return s.ListenAndServe(ctx, cfg.Addr)
}
