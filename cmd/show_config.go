package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/leadsite/internal/features"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved package tier, features and missing settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := features.Resolve(cfg.Package.Tier, cfg.Overrides, cfg.Credentials(), nil)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "package:   %s\n", client.Tier)

		names := make([]string, 0, len(client.Features))
		for _, f := range client.EnabledFeatures() {
			names = append(names, string(f))
		}
		fmt.Fprintf(out, "features:  %s\n", strings.Join(names, ", "))

		if link := client.BookingLink(); link != "" {
			fmt.Fprintf(out, "booking:   %s\n", link)
		}
		fmt.Fprintf(out, "store:     %s\n", cfg.Store.Backend)
		fmt.Fprintf(out, "chat llm:  %t\n", cfg.LLM.Configured())

		missing := client.Validate()
		if len(missing) == 0 {
			fmt.Fprintln(out, "missing:   none")
			return nil
		}
		fmt.Fprintf(out, "missing:   %s\n", strings.Join(missing, ", "))
		return nil
	},
}
