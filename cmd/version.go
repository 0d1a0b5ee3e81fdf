package cmd

import (
	"fmt"
	"runtime"

	"github.com/kozaktomas/face-cluster/internal/cluster"
	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		d := cluster.DefaultParams()
		fmt.Printf("face-cluster %s (%s)\n", Version, runtime.Version())
		fmt.Printf("  Commit:   %s\n", CommitSHA)
		fmt.Printf("  Built:    %s\n", BuildDate)
		fmt.Printf("  Defaults: eps=%g min_pts=%d cap=%d top_k=%d\n", d.Eps, d.MinPts, d.Cap, d.TopK)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
