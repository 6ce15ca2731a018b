package commands

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/reactorcluster/reactord/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show this node's configured peer and blueprint assignments",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	applyViperOverrides()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	colored := isatty.IsTerminal(os.Stdout.Fd())

	fmt.Printf("peer:    %s\n", cfg.PeerID)
	fmt.Printf("cluster: %s\n", cfg.ClusterID)
	fmt.Printf("backfill concurrency: %d, ack timeout: %s\n",
		cfg.Backfill.Concurrency, cfg.Backfill.AckTimeout)

	if len(cfg.Blueprint) == 0 {
		fmt.Println("no blueprint configured")
		return nil
	}

	fmt.Println("blueprint:")
	for _, p := range cfg.Blueprint {
		marker := "  "
		if colored && p.PeerID == cfg.PeerID {
			marker = "* "
		}
		for _, rr := range p.Regions {
			fmt.Printf("%s%-12s [%d, %d] %s\n", marker, p.PeerID, rr.Start, rr.End, rr.Role)
		}
	}
	return nil
}
