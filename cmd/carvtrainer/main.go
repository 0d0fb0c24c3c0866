package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

type options struct {
	verbose    bool
	envFile    string
	configFile string
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "carvtrainer",
		Short:   "Turn CARV screenshots into analyses and training plans",
		Long:    "CARV Trainer serves the screenshot analysis API and offers local tools for resolving screenshot timestamps and cleaning model replies.",
		Version: version,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("CARV Trainer CLI")
			cmd.Printf("Version: %s\n", version)
			if opts.verbose {
				cmd.Println("Verbose mode: enabled")
			}
			cmd.Println("")
			cmd.Println("Use --help to see available commands and options")
		},
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "optional yaml config file")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newMetadataCmd(opts))
	rootCmd.AddCommand(newNormalizeCmd())

	return rootCmd
}
