package cmd

import (
	"os"

	"audioroute/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected on the command line.
const (
	CommandRun      = "run"
	CommandList     = "list"
	CommandSimulate = "simulate"
)

// Options holds what the command line asked for. Command is empty when
// cobra handled the invocation itself (help, version).
type Options struct {
	Command    string
	ConfigPath string
	Scenario   string
	TUI        bool
	Verbose    bool
	Activate   bool
}

func ParseArgs() (*Options, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List output devices and audio server sinks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	}
	rootCmd.AddCommand(listCmd)

	// Scenario replay against simulated hardware
	simulateCmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Replay a hardware scenario and print every routing snapshot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandSimulate
			options.Scenario = args[0]
		},
	}
	rootCmd.AddCommand(simulateCmd)

	rootCmd.PersistentFlags().StringVarP(&options.ConfigPath, "config", "c", "",
		"Path to the configuration file. Defaults to config.yaml, then the user and system config directories.")
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.Flags().BoolVarP(&options.TUI, "tui", "t", false,
		"Show the interactive device picker")
	rootCmd.Flags().BoolVarP(&options.Activate, "activate", "a", false,
		"Activate routing immediately instead of only tracking devices")

	// Execute the CLI. A nil slice would make cobra fall back to os.Args.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}
