package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"seikabus.dev/shuttle"
	"seikabus.dev/shuttle/model"
)

var timetableCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Prints the timetable of the day",
	Args:  cobra.NoArgs,
	RunE:  timetable,
}

var bothDirections bool

func init() {
	timetableCmd.Flags().BoolVarP(&bothDirections, "both", "", false, "Print both directions")
	rootCmd.AddCommand(timetableCmd)
}

func timetable(cmd *cobra.Command, args []string) error {
	schedule, err := loadSchedule()
	if err != nil {
		return err
	}

	q, err := loadQuery(referenceClock())
	if err != nil {
		return err
	}

	directions := []model.Direction{q.Direction}
	if bothDirections {
		directions = model.Directions
	}

	for i, direction := range directions {
		if i > 0 {
			fmt.Println()
		}
		printTimetable(schedule, q.Date, direction)
	}

	return nil
}

func printTimetable(schedule *shuttle.Schedule, date time.Time, direction model.Direction) {
	fmt.Printf("%s %s (%s)\n", direction.Label(), date.Format("2006-01-02"), schedule.ResolveVariant(date))

	rows := schedule.Rows(date, direction)
	if len(rows) == 0 {
		fmt.Println("運行なし")
		return
	}

	for _, row := range rows {
		fmt.Printf("%2d | %s\n", row.Hour, formatEntry(row.Hour, row.Entry))
	}
}

func formatEntry(hour int, entry model.HourEntry) string {
	switch e := entry.(type) {
	case model.Interval:
		if e.HasStart {
			return fmt.Sprintf("%s (%02d:%02d～)", e.Description, hour, e.StartMinute)
		}
		return e.Description
	case model.Specific:
		minutes := make([]string, len(e.Minutes))
		for i, m := range e.Minutes {
			minutes[i] = fmt.Sprintf("%02d", m)
		}
		return strings.Join(minutes, " ")
	}
	return "-"
}
