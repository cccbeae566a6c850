package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/logging"
	"go.uber.org/zap"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "dropshare [command]",
		Short:             "Dropshare file sharing server",
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.AddCommand(NewRun(), NewPrune(), NewVersion())
	return cmd
}

func setupLogging(conf *config.LoggingConfig) *zap.Logger {
	logging.SetConfig(&logging.Config{
		Level:      logging.ParseLevel(conf.Level),
		Format:     conf.Format,
		FilePath:   conf.File,
		MaxSizeMB:  conf.MaxSize,
		MaxBackups: conf.MaxBackups,
		MaxAgeDays: conf.MaxAge,
	})
	return logging.DefaultLogger()
}

func preRun(loader *config.ConfigLoader, cfg any) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := loader.Load(cmd, cfg); err != nil {
			return err
		}
		return loader.Validate()
	}
}
