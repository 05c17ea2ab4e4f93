package cmd

import (
	goflag "flag"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/replayctl/replayengine/cmd/internal/cmderr"
	replaycmd "github.com/replayctl/replayengine/cmd/internal/replay"
	"github.com/replayctl/replayengine/printer"
	"github.com/replayctl/replayengine/util"
	"github.com/replayctl/replayengine/version"
)

var debugFlag bool

var (
	rootCmd = &cobra.Command{
		Use:           "replayengine",
		Short:         "Replay captured traffic onto live network interfaces.",
		Long:          "replayengine retransmits packets from capture files onto one or two live network interfaces, reproducing their original timing or a configured pacing policy.",
		Version:       version.CLIDisplayString(),
		SilenceErrors: true, // We print our own errors from subcommands in Execute function
		// Don't print usage after error, we only print help if we cannot parse
		// flags. See Execute below.
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func Execute() {
	if cmd, err := rootCmd.ExecuteC(); err != nil {
		if _, isCmdErr := err.(cmderr.CmdErr); !isCmdErr {
			// Print usage for CLI usage errors (e.g. missing arg) but not for
			// errors we already reported to the user.
			cmd.Println(cmd.UsageString())
		}

		exitCode := 1
		var exitErr util.ExitError
		if isExitErr := errors.As(err, &exitErr); isExitErr {
			exitCode = exitErr.ExitCode
		}
		printer.Stderr.Errorf("%s\n", err)
		os.Exit(exitCode)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "If set, outputs detailed information for debugging.")
	rootCmd.PersistentFlags().MarkHidden("debug")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	// Include flags from go libraries that we're using. We hand-pick the
	// flags to include to avoid polluting the flag set of the CLI.
	goflag.CommandLine.VisitAll(func(f *goflag.Flag) {
		includeFlag := false
		switch f.Name {
		case "alsologtostderr", "log_dir", "logtostderr", "v":
			// Select glog flags to include.
			includeFlag = true
		}
		if includeFlag {
			flag.CommandLine.AddGoFlag(f)
			flag.CommandLine.MarkHidden(f.Name)
		}
	})

	{
		// Call Parse with empty args so the go flag library thinks it has
		// parsed the flags, when in reality only the selected flags will get
		// parsed by pflag/cobra. This is needed for glog to stop complaining
		// that flags have not been parsed.
		goflag.CommandLine.Parse(nil)

		// Disable glog logging to file so the binary doesn't create log
		// files in the user's temp directory.
		flag.CommandLine.Set("logtostderr", "true")

		// Share verbose logging flag with glog.
		viper.BindPFlag("verbose-level", flag.CommandLine.Lookup("v"))
	}

	rootCmd.AddCommand(replaycmd.Cmd)
}
