package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"seikabus.dev/shuttle"
	"seikabus.dev/shuttle/model"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Shows the next departure",
	Args:  cobra.NoArgs,
	RunE:  next,
}

func init() {
	rootCmd.AddCommand(nextCmd)
}

func next(cmd *cobra.Command, args []string) error {
	schedule, err := loadSchedule()
	if err != nil {
		return err
	}

	q, err := loadQuery(referenceClock())
	if err != nil {
		return err
	}

	departure := schedule.NextDeparture(q.Date, q.Direction)

	fmt.Printf("%s %s\n", q.Direction.Label(), q.Date.Format("2006-01-02 15:04"))
	switch departure.Kind {
	case model.DepartureSpecific:
		fmt.Printf("次は %s\n", departure.Time.Format("15:04"))
	case model.DepartureInterval:
		fmt.Println(shuttle.Display{Kind: shuttle.DisplayInterval, Departure: departure})
	default:
		fmt.Println(shuttle.Display{Kind: shuttle.DisplayEnded})
	}

	return nil
}
