package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tgdrive/dropshare/internal/version"
)

func NewVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Check the version info",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.GetVersionInfo()
			cmd.Printf("dropshare %s\n", info.Version)
			cmd.Printf("- commit: %s\n", info.CommitSHA)
			cmd.Printf("- os/type: %s\n", info.Os)
			cmd.Printf("- os/arch: %s\n", info.Arch)
			cmd.Printf("- go/version: %s\n", info.GoVersion)
		},
	}
}
