package command

import (
	"github.com/cirruslabs/imagecache/internal/command/run"
	"github.com/cirruslabs/imagecache/internal/logginglevel"
	"github.com/cirruslabs/imagecache/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var debug bool

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "imagecache",
		Short:         "Local image cache with signed URL refresh",
		Version:       version.FullVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if debug {
				logginglevel.Level.SetLevel(zapcore.DebugLevel)
			}

			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		run.NewCommand(),
	)

	return cmd
}
