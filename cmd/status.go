package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the operational status of the line",
	Args:  cobra.NoArgs,
	RunE:  status,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func status(cmd *cobra.Command, args []string) error {
	if cfg.DisableStatus {
		return fmt.Errorf("status is disabled")
	}

	q, err := loadQuery(referenceClock())
	if err != nil {
		return err
	}

	cs, closeStatus, err := loadStatus(nil)
	if err != nil {
		return err
	}
	defer closeStatus()

	if err := cs.Refresh(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("refreshing operation calendars")
	}

	s := lookupStatus(cmd.Context(), cs, q.Date)
	fmt.Printf("%s %s\n", q.Date.Format("2006-01-02"), s.Kind)
	fmt.Println(formatStatus(s))

	return nil
}
