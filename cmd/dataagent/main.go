package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dataagent",
	Short: "Sandboxed data analysis tools over the Model Context Protocol",
	Long: `dataagent loads tabular files and runs model-written analysis snippets
against them in a sandbox. Printed output and charts drawn on the shared
axes are returned to the MCP client; conversations are kept per file.`,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, execCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
