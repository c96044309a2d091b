package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/compressr/internal/version"
)

var versionShort bool

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit, and build date of compressr.",
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			fmt.Println(version.Short())
			return
		}

		fmt.Println(version.String())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print the short version only")
	rootCmd.AddCommand(versionCmd)
}
