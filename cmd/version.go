package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build metadata variables, set at compile time:
//
//	go build -ldflags "-X github.com/kozaktomas/pinalbum/cmd.Version=v1.2.0 \
//	  -X github.com/kozaktomas/pinalbum/cmd.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// CommitSHA and BuildDate fall back to the VCS stamp go build embeds.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := debug.ReadBuildInfo()
		printVersion(cmd.OutOrStdout(), info)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func printVersion(w io.Writer, info *debug.BuildInfo) {
	module, commit, built := "github.com/kozaktomas/pinalbum", CommitSHA, BuildDate
	if info != nil {
		if info.Main.Path != "" {
			module = info.Main.Path
		}
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "unknown":
				commit = s.Value
			case s.Key == "vcs.time" && built == "unknown":
				built = s.Value
			}
		}
	}

	fmt.Fprintf(w, "pinalbum %s\n", Version)
	fmt.Fprintf(w, "  Module: %s\n", module)
	fmt.Fprintf(w, "  Commit: %s\n", commit)
	fmt.Fprintf(w, "  Built:  %s\n", built)
	fmt.Fprintf(w, "  Go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
