// Package commands implements reactord's command-line interface.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "reactord",
	Short: "Run a reactor node for a sharded, replicated key-value cluster",
	Long:  `reactord drives one node's regions through the primary/secondary/nothing roles a cluster blueprint assigns to them.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().String("peer-id", "", "override this node's peer id")
	rootCmd.PersistentFlags().String("cluster-id", "", "override the cluster id")
	rootCmd.PersistentFlags().String("data-dir", "", "override the metainfo data directory")

	viper.BindPFlag("peer-id", rootCmd.PersistentFlags().Lookup("peer-id"))
	viper.BindPFlag("cluster-id", rootCmd.PersistentFlags().Lookup("cluster-id"))
	viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.SetEnvPrefix("REACTORD")
	viper.AutomaticEnv()
}

// applyViperOverrides bridges cobra flag / viper-resolved env values into
// the process environment that internal/config.Load reads, so a --peer-id
// flag takes the same precedence as REACTORD_PEER_ID without config
// needing to know about viper at all.
func applyViperOverrides() {
	for _, v := range []struct{ viperKey, envKey string }{
		{"peer-id", "REACTORD_PEER_ID"},
		{"cluster-id", "REACTORD_CLUSTER_ID"},
		{"data-dir", "REACTORD_DATA_DIR"},
	} {
		if val := viper.GetString(v.viperKey); val != "" {
			os.Setenv(v.envKey, val)
		}
	}
}
