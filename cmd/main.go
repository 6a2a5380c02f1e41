package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "time/tzdata"

	"seikabus.dev/shuttle"
	"seikabus.dev/shuttle/config"
	"seikabus.dev/shuttle/data"
	"seikabus.dev/shuttle/downloader"
	"seikabus.dev/shuttle/metrics"
	"seikabus.dev/shuttle/model"
	"seikabus.dev/shuttle/storage"
)

var rootCmd = &cobra.Command{
	Use:               "shuttle",
	Short:             "Seika shuttle bus tool",
	Long:              "Timetable, next departure and live countdown for the Kokusai Kaikan ⇄ Kyoto Seika University shuttle bus",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfg *config.Config

	timetablePath string
	timezone      string
	debugNow      string
	debug         bool
	directionName string
	dateValue     string
	noStatus      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&timetablePath, "timetable", "", "", "Timetable CSV (default embedded)")
	rootCmd.PersistentFlags().StringVarP(&timezone, "tz", "", "", "Timezone of the line (default Asia/Tokyo)")
	rootCmd.PersistentFlags().StringVarP(&debugNow, "now", "", "", "Fixed reference time, e.g. 2025-06-02T14:05")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "", false, "Debug logging")
	rootCmd.PersistentFlags().StringVarP(&directionName, "direction", "d", "kokusai_to_seika", "Direction (kokusai_to_seika or seika_to_kokusai)")
	rootCmd.PersistentFlags().StringVarP(&dateValue, "date", "", "", "Date or time to query (default now)")
	rootCmd.PersistentFlags().BoolVarP(&noStatus, "no-status", "", false, "Don't fetch operation calendars")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// Loads configuration, lets flags override it and sets up logging.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("timetable") {
		cfg.TimetablePath = timetablePath
	}
	if flags.Changed("tz") {
		cfg.Location, err = time.LoadLocation(timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}
	if flags.Changed("now") {
		cfg.DebugNow, err = config.ParseInstant(debugNow, cfg.Location)
		if err != nil {
			return fmt.Errorf("invalid --now: %w", err)
		}
	}
	if flags.Changed("debug") {
		cfg.Debug = debug
	}
	if flags.Changed("no-status") {
		cfg.DisableStatus = noStatus
	}

	if !cfg.LogJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.Debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	return nil
}

func loadSchedule() (*shuttle.Schedule, error) {
	tt, err := data.LoadTimetable(cfg.TimetablePath)
	if err != nil {
		return nil, err
	}
	return shuttle.NewSchedule(tt, cfg.Location)
}

func referenceClock() shuttle.Clock {
	if !cfg.DebugNow.IsZero() {
		log.Debug().Time("now", cfg.DebugNow).Msg("using fixed reference time")
		return shuttle.FixedClock{Instant: cfg.DebugNow}
	}
	return shuttle.SystemClock{}
}

// Query from the --date and --direction flags.
func loadQuery(reference shuttle.Clock) (shuttle.Query, error) {
	direction, err := model.ParseDirection(directionName)
	if err != nil {
		return shuttle.Query{}, err
	}

	date := reference.Now().In(cfg.Location)
	if dateValue != "" {
		date, err = config.ParseInstant(dateValue, cfg.Location)
		if err != nil {
			return shuttle.Query{}, fmt.Errorf("invalid --date: %w", err)
		}
	}

	return shuttle.Query{Date: date, Direction: direction}, nil
}

func openStorage() (storage.Storage, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: cfg.SQLiteDir})
	case config.StoragePostgres:
		return storage.NewPSQLStorage(cfg.PostgresURL, false)
	}
	return storage.NewMemoryStorage(), nil
}

// Builds the operational status provider. Returns nil if status is
// disabled. The returned func releases the status storage.
func loadStatus(collector *metrics.Collector) (*shuttle.CalendarStatus, func(), error) {
	if cfg.DisableStatus {
		return nil, func() {}, nil
	}

	ids := cfg.CalendarIDs
	if len(ids) == 0 {
		ids = shuttle.DefaultCalendarIDs
	}

	s, err := openStorage()
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}
	closer := func() {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Msg("closing storage")
		}
	}

	cs, err := shuttle.NewCalendarStatus(s, cfg.Location, shuttle.CalendarURLs(ids))
	if err != nil {
		closer()
		return nil, nil, err
	}
	cs.RefreshInterval = cfg.StatusRefresh

	if cfg.CacheFile != "" {
		fs, err := downloader.NewFilesystem(cfg.CacheFile)
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("creating calendar cache: %w", err)
		}
		cs.Downloader = fs
	}

	if collector != nil {
		cs.Observer = collector
	}

	return cs, closer, nil
}

// Status for the day of date, or NORMAL if status is disabled.
func lookupStatus(ctx context.Context, status *shuttle.CalendarStatus, date time.Time) model.Status {
	if status == nil {
		return model.Status{Kind: model.StatusNormal, Message: shuttle.MessageNormal}
	}
	s, err := status.Status(ctx, date)
	if err != nil {
		log.Warn().Err(err).Msg("status lookup")
		return shuttle.OfflineStatus()
	}
	return s
}

func formatStatus(status model.Status) string {
	switch status.Kind {
	case model.StatusSuspended:
		return fmt.Sprintf("運休 %s", status.Message)
	case model.StatusSpecial:
		if status.URL != "" {
			return fmt.Sprintf("特別運行 %s %s", status.Message, status.URL)
		}
		return fmt.Sprintf("特別運行 %s", status.Message)
	}
	return status.Message
}
