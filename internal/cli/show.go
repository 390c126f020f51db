package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"payguard/internal/app"
)

var (
	showLimit     int
	showGroup     string
	showDirection string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent payment records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		switch showDirection {
		case "", "outgoing", "incoming":
		default:
			return fmt.Errorf("--direction must be outgoing or incoming")
		}

		opts := app.ShowOptions{
			Limit:     showLimit,
			GroupName: showGroup,
			Direction: showDirection,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of records to display")
	showCmd.Flags().StringVar(&showGroup, "group", "", "Filter by policy group name")
	showCmd.Flags().StringVar(&showDirection, "direction", "", "Filter by direction (outgoing or incoming)")
}
