package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ohmynofan/rewards-orchestrator/internal/app"
	"github.com/ohmynofan/rewards-orchestrator/internal/config"
	"github.com/ohmynofan/rewards-orchestrator/internal/domain/model"
	"github.com/ohmynofan/rewards-orchestrator/internal/platform/logger"
	"github.com/ohmynofan/rewards-orchestrator/internal/platform/ui"
	"github.com/ohmynofan/rewards-orchestrator/internal/storage/jobstate"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "orchestrator",
		Short: "Rewards automation orchestrator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.json", "path to the config file")

	root.AddCommand(runCmd())
	root.AddCommand(validateConfigCmd())
	root.AddCommand(resetStateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler and orchestrator until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			_ = logger.Init("logs/orchestrator.log")
			defer logger.Close()
			ui.StartUISystem()
			defer ui.StopUISystem()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// driver is nil until a concrete browser.Factory is wired at this
			// boundary; Run reports that clearly instead of panicking deeper in.
			a := app.New(cfg, nil)
			if err := a.Run(ctx); err != nil {
				return err
			}
			time.Sleep(200 * time.Millisecond)
			return nil
		},
	}
}

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the config and account files without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			accounts, err := config.LoadAccounts(cfg.AccountsPath)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: %d accounts, %d schedule entries, clusters=%d\n", len(accounts), len(cfg.Schedule), cfg.Clusters)
			return nil
		},
	}
}

func resetStateCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-state",
		Short: "Clear today's job-state for one account, or every account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store, err := jobstate.New(cfg.JobStateDir)
			if err != nil {
				return err
			}

			if email != "" {
				if err := store.ResetAll(email); err != nil {
					return err
				}
				fmt.Printf("reset job-state for %s\n", model.MaskEmail(email))
				return nil
			}

			accounts, err := config.LoadAccounts(cfg.AccountsPath)
			if err != nil {
				return err
			}
			for _, a := range accounts {
				if err := store.ResetAll(a.Email); err != nil {
					return fmt.Errorf("reset %s: %w", a.Masked(), err)
				}
			}
			fmt.Printf("reset job-state for %d accounts\n", len(accounts))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "reset only this account (default: every account)")
	return cmd
}
