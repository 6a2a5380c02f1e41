package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var firstCmd = &cobra.Command{
	Use:   "first",
	Short: "Shows the first and last departures of the day",
	Args:  cobra.NoArgs,
	RunE:  first,
}

func init() {
	rootCmd.AddCommand(firstCmd)
}

func first(cmd *cobra.Command, args []string) error {
	schedule, err := loadSchedule()
	if err != nil {
		return err
	}

	q, err := loadQuery(referenceClock())
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", q.Direction.Label(), q.Date.Format("2006-01-02"))

	firstDeparture, ok := schedule.FirstDeparture(q.Date, q.Direction)
	if !ok {
		fmt.Println("運行なし")
		return nil
	}
	fmt.Printf("始発 %s\n", firstDeparture.Format("15:04"))

	// Days ending in an interval block have no exact last bus.
	if last, ok := schedule.LastDeparture(q.Date, q.Direction); ok {
		fmt.Printf("終発 %s\n", last.Format("15:04"))
	}

	return nil
}
