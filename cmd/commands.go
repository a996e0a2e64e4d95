package main

import (
	"fmt"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/olusolaa/cost-parker/internal/core/domain"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show each resource's configuration and hourly cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, domain.CommandStatus, false, true)
		},
	}
}

func newStopCmd() *cobra.Command {
	var dryRun, yes bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Scale every resource to its cheapest configuration and save a restore point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, domain.CommandStop, dryRun, yes)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the changes without applying them or saving state")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newStartCmd() *cobra.Command {
	var dryRun, yes bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Restore every resource from the saved restore point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, domain.CommandStart, dryRun, yes)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the restore without applying it")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func run(cmd *cobra.Command, command domain.Command, dryRun, yes bool) error {
	ctx := cmd.Context()

	application, err := bootstrap(ctx, v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: Application initialization failed")
		return err
	}

	if command.Mutating() && !dryRun && !yes {
		ok, err := confirm(command, application.Config.Project)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			return nil
		}
	}

	code, err := application.Run(ctx, command, dryRun)
	exitCode = code
	return err
}

// confirm prompts only on an interactive terminal; scheduled runs proceed.
func confirm(command domain.Command, project string) (bool, error) {
	return ask(fmt.Sprintf("Run %s for every resource in project '%s'?", command, project))
}

func ask(message string) (bool, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return true, nil
	}
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: message}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent runs recorded for the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := bootstrap(cmd.Context(), v)
			if err != nil {
				fmt.Fprintln(os.Stderr, "ERROR: Application initialization failed")
				return err
			}
			return application.ShowHistory(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show (0 shows all)")
	return cmd
}

func newBackupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List or restore the timestamped restore-point backups kept in S3",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := bootstrap(cmd.Context(), v)
			if err != nil {
				fmt.Fprintln(os.Stderr, "ERROR: Application initialization failed")
				return err
			}
			return application.ListBackups(cmd.Context())
		},
	}

	var yes bool
	restore := &cobra.Command{
		Use:   "restore [stamp]",
		Short: "Replace the local restore point with a backup (the newest when no stamp is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var stamp string
			if len(args) == 1 {
				stamp = args[0]
			}
			application, err := bootstrap(cmd.Context(), v)
			if err != nil {
				fmt.Fprintln(os.Stderr, "ERROR: Application initialization failed")
				return err
			}
			if !yes {
				ok, err := ask(fmt.Sprintf("Replace the restore point of project '%s' with backup %s?",
					application.Config.Project, orNewest(stamp)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(os.Stderr, "Cancelled.")
					return nil
				}
			}
			state, err := application.RestoreBackup(cmd.Context(), stamp)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Restored %d snapshot(s) captured at %s.\n",
				len(state.Snapshots), state.Timestamp.UTC().Format(time.RFC3339))
			return nil
		},
	}
	restore.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	cmd.AddCommand(list, restore)
	return cmd
}

func orNewest(stamp string) string {
	if stamp == "" {
		return "(newest)"
	}
	return stamp
}
