package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/olusolaa/cost-parker/internal/app"
	"github.com/olusolaa/cost-parker/internal/config"
	"github.com/olusolaa/cost-parker/internal/core/domain"
	apperrors "github.com/olusolaa/cost-parker/internal/errors"
)

var (
	cfgFile string
	v       = config.NewViper()

	// exitCode is set by the last command run; cobra only distinguishes
	// error from success.
	exitCode = domain.ExitOK
)

var rootCmd = &cobra.Command{
	Use:   "cost-parker",
	Short: "Parks idle AWS demo environments and restores them on demand.",
	Long: `Cost Parker scales a project's AWS resources (SageMaker endpoints, Kinesis
streams, Lambda functions and CloudWatch alarms) down to their cheapest
configuration, records what they looked like, and restores them later.

  status   show the current configuration and hourly cost
  stop     park every resource and save a restore point
  start    restore every resource from the saved restore point
  history  show the runs recorded for the project
  backups  list or restore the restore-point backups kept in S3`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig()
	},
}

func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		if exitCode == domain.ExitOK {
			exitCode = domain.ExitFatal
		}
	}
	return exitCode
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default is ./.cost-parker.yaml or ~/.cost-parker.yaml)")
	flags.String("project", "", "Project whose resources are managed")
	flags.String("log-level", "", "Override log level (debug, info, warn, error)")
	flags.String("log-format", "", "Override log format (text, json)")
	flags.StringP("output", "o", "", "Report format (text, json, yaml)")
	flags.Bool("no-color", false, "Disable colored text output")
	flags.String("metrics-textfile", "", "Write run metrics to this .prom file")

	bindings := map[string]string{
		"project":                   "project",
		"settings.log_level":        "log-level",
		"settings.log_format":       "log-format",
		"settings.output":           "output",
		"settings.text.no_color":    "no-color",
		"settings.metrics_textfile": "metrics-textfile",
	}
	for key, flag := range bindings {
		cobra.CheckErr(v.BindPFlag(key, flags.Lookup(flag)))
	}

	rootCmd.AddCommand(newStatusCmd(), newStopCmd(), newStartCmd(), newHistoryCmd(), newBackupsCmd())
}

func initializeConfig() error {
	used, err := config.ReadFile(v, cfgFile)
	if err != nil {
		return err
	}
	if used == "" {
		fmt.Fprintln(os.Stderr, "Config file not found, using defaults and environment variables.")
	}
	return nil
}

func bootstrap(ctx context.Context, v *viper.Viper) (*app.Application, error) {
	application, err := app.BuildApplicationFromViper(ctx, v)
	if err != nil {
		return nil, err
	}
	return application, nil
}

func printError(err error) {
	if errors.Is(err, context.Canceled) || apperrors.Is(err, apperrors.CodeCancelled) {
		fmt.Fprintln(os.Stderr, "ERROR: interrupted")
		return
	}
	userMsg, suggestion, userFacing := apperrors.GetUserFacingMessage(err)
	if !userFacing {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", userMsg)
	if suggestion != "" {
		fmt.Fprintf(os.Stderr, "Suggestion: %s\n", suggestion)
	}
}
