package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one janitor pass against the store",
	Long:  `Releases an expired lock, clears stale lock flags and removes sessions idle longer than the idle timeout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, b, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer b.close()

		report, err := svc.Janitor().Sweep(cmd.Context())
		fmt.Printf("Removed %d idle session(s), cleared %d stale lock flag(s)\n", len(report.Removed), report.Repaired)
		for _, id := range report.Removed {
			fmt.Println("- " + id)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
