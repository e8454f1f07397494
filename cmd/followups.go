package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var followUpsCmd = &cobra.Command{
	Use:   "followups",
	Short: "Run one follow-up pass over stored leads (for cron)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sum, err := a.leads.ProcessFollowUps(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	},
}
