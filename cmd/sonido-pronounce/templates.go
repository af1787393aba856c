package main

import (
	"fmt"

	"github.com/RyanBlaney/sonido-pronounce/pronunciation"
	"github.com/spf13/cobra"
)

var warmVariant string

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage reference recordings",
}

var templatesWarmCmd = &cobra.Command{
	Use:   "warm [mode...]",
	Short: "Analyze reference recordings ahead of time and store them in the cache",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if noCache {
			return fmt.Errorf("warming requires the template cache")
		}
		if len(args) == 0 {
			args = []string{string(pronunciation.ModeSingleItem), string(pronunciation.ModePhrase)}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, name := range args {
			mode, err := pronunciation.ParseMode(name)
			if err != nil {
				return err
			}

			n, err := a.loader.Warm(cmd.Context(), mode, warmVariant)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", mode, warmVariant, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: %d templates cached\n", mode, warmVariant, n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesWarmCmd)

	templatesWarmCmd.Flags().StringVar(&warmVariant, "variant", "default",
		"reference variant to analyze")
}
