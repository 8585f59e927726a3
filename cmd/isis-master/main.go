package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// 构建时注入
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "isis-master",
		Short: "Isis Pyramid lighting master",
		Long: `isis-master drives the Isis Pyramid lighting slaves over a SLIP-framed bus.

It plays canned packet sequences, compiles lighting programs from YAML
and inspects or frames packet files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		playCmd(),
		compileCmd(),
		dumpCmd(),
		frameCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "isis-master %s (%s)\n", version, commit)
		},
	}
}
