package main

import (
	"fmt"
	"time"

	"github.com/aretw0/holdfast/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// sessionGraphCmd represents the session graph command
var sessionGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the session pool as a Mermaid diagram",
	Long:  `Reads every session of the configured store and outputs a Mermaid diagram (graph LR) showing the lock holder and stale sessions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, b, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer b.close()

		sessions, err := svc.Sessions().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}

		fmt.Print(graph.GenerateMermaid(sessions, &graph.Overlay{
			Now:         time.Now(),
			IdleTimeout: cfg.IdleTimeout,
		}))
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionGraphCmd)
}
