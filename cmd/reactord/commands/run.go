package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/cobra"

	"github.com/reactorcluster/reactord/internal/blueprint"
	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/config"
	"github.com/reactorcluster/reactord/internal/directory"
	"github.com/reactorcluster/reactord/internal/mailbox"
	"github.com/reactorcluster/reactord/internal/reactor"
	"github.com/reactorcluster/reactord/internal/region"
	"github.com/reactorcluster/reactord/internal/store"
	"github.com/reactorcluster/reactord/pkg/statusfs"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run this node's reactor against its configured static blueprint",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("status-mount", "", "mount a read-only status filesystem at this path while running")
}

func runRun(cmd *cobra.Command, args []string) error {
	applyViperOverrides()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	bp, err := blueprintFromConfig(cfg.Blueprint)
	if err != nil {
		return fmt.Errorf("build blueprint: %w", err)
	}
	if err := bp.Validate(); err != nil {
		return fmt.Errorf("configured blueprint is invalid: %w", err)
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "reactord", cfg.PeerID)
	}
	dbPath := filepath.Join(dataDir, "metainfo.db")
	st, err := store.OpenSQLite(dbPath)
	if err != nil {
		return fmt.Errorf("open metainfo store: %w", err)
	}
	defer st.Close()

	net := mailbox.NewNetwork()
	view := net.View(blueprint.PeerID(cfg.PeerID))

	concurrency := int64(cfg.Backfill.Concurrency)

	r := reactor.New(reactor.Config{
		Self:                blueprint.PeerID(cfg.PeerID),
		Mailbox:             view,
		Connectivity:        view,
		Directory:           directory.New(),
		History:             branchhistory.New(),
		Store:               st,
		BackfillConcurrency: concurrency,
	})

	debug, _ := cmd.Root().PersistentFlags().GetBool("debug")

	var server *fuse.Server
	if mountpoint, _ := cmd.Flags().GetString("status-mount"); mountpoint != "" {
		if err := os.MkdirAll(mountpoint, 0755); err != nil {
			return fmt.Errorf("create status mountpoint: %w", err)
		}
		server, err = statusfs.New(r, debug).Mount(mountpoint)
		if err != nil {
			return fmt.Errorf("mount status filesystem: %w", err)
		}
		defer server.Unmount()
		log.Printf("[reactord] status filesystem mounted at %s", mountpoint)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("[reactord] shutting down")
		cancel()
	}()

	blueprints := make(chan blueprint.Blueprint, 1)
	blueprints <- bp

	log.Printf("[reactord] peer %s running with %d configured peer(s)", cfg.PeerID, len(cfg.Blueprint))
	r.Run(ctx, blueprints)
	return nil
}

// blueprintFromConfig turns the static peer/region/role assignments read
// from the config file into a blueprint.Blueprint. A live deployment would
// watch these from an external orchestrator instead of loading them once
// at startup.
func blueprintFromConfig(peers []config.PeerRoles) (blueprint.Blueprint, error) {
	assignments := make(map[blueprint.PeerID][]blueprint.RegionRole, len(peers))
	for _, p := range peers {
		roles := make([]blueprint.RegionRole, 0, len(p.Regions))
		for _, rr := range p.Regions {
			role, err := parseRole(rr.Role)
			if err != nil {
				return blueprint.Blueprint{}, fmt.Errorf("peer %s: %w", p.PeerID, err)
			}
			roles = append(roles, blueprint.RegionRole{
				Region: region.New(rr.Start, rr.End),
				Role:   role,
			})
		}
		assignments[blueprint.PeerID(p.PeerID)] = roles
	}
	return blueprint.New(assignments), nil
}

func parseRole(s string) (blueprint.Role, error) {
	switch s {
	case "primary":
		return blueprint.RolePrimary, nil
	case "secondary":
		return blueprint.RoleSecondary, nil
	case "nothing", "":
		return blueprint.RoleNothing, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}
