package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"VendorLink/internal/contracts"
	"VendorLink/internal/di"
	"VendorLink/internal/domain/models"
	"VendorLink/internal/idempotency"
	"VendorLink/internal/service/infra"
	"VendorLink/internal/service/probe"
	"VendorLink/pkg/config"
	applogger "VendorLink/pkg/logger"
	"VendorLink/pkg/util"
)

// NewRootCmd creates the root command. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "vendorlink",
		Short: "VendorLink - marketplace vendor integration toolkit",
		Long: `VendorLink serves a model behind the marketplace inference contract, writes its
decisions to the infrastructure with idempotency keys and reports liveness with heartbeats.
The infra role accepts those writes and tracks deployment status.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "Configuration file path")

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newHeartbeatCmd(&configPath))
	rootCmd.AddCommand(newKeyCmd())
	rootCmd.AddCommand(newProbeCmd())

	return rootCmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with the configured roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	return app.Run()
}

// newHeartbeatCmd sends one heartbeat with the configured credentials.
func newHeartbeatCmd(configPath *string) *cobra.Command {
	var (
		status       string
		deploymentID string
		message      string
	)

	cmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Send a single heartbeat",
		Long: `Send one heartbeat to the marketplace API and exit non-zero when it is not delivered.
Example: vendorlink heartbeat --status maintenance --message "rolling restart"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithEnv(*configPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			if deploymentID == "" {
				deploymentID = cfg.Vendor.DeploymentID
			}
			if message == "" {
				message = "Heartbeat from " + cfg.Vendor.ModelVersion
			}

			client := infra.NewHeartbeatClient(cfg.Vendor.APIURL, cfg.Vendor.Token, cfg.Vendor.HeartbeatTimeout, applogger.Nop(), nil)
			if !client.Enabled() {
				return fmt.Errorf("heartbeat disabled: api_url and token must be configured")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			out := client.Send(ctx, models.Heartbeat{
				DeploymentID: deploymentID,
				Status:       models.DeploymentStatus(status),
				Timestamp:    util.FormatISO(time.Now()),
				Message:      message,
			})
			if !out.Delivered {
				return fmt.Errorf("heartbeat not delivered (status %d): %v", out.StatusCode, out.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "heartbeat %s delivered for %s\n", status, deploymentID)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(models.StatusReady), "Deployment status (pending, ready, error, maintenance, offline)")
	cmd.Flags().StringVar(&deploymentID, "deployment-id", "", "Deployment id (defaults to the configured one)")
	cmd.Flags().StringVar(&message, "message", "", "Free-form message")

	return cmd
}

// newKeyCmd prints the idempotency key of a bar.
func newKeyCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "key [SYMBOL] [TIMEFRAME]",
		Short: "Print the idempotency key for a symbol, timeframe and time",
		Long: `Print the idempotency key a decision write would carry.
Example: vendorlink key EURUSD 5m --at 2024-05-27T10:42:31Z`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, tf := args[0], args[1]
			if !contracts.IsValidSymbol(symbol) {
				return fmt.Errorf("invalid symbol %q", symbol)
			}
			if !contracts.IsValidTimeframe(tf) {
				return fmt.Errorf("invalid timeframe %q", tf)
			}

			ts := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				ts = parsed
			}
			fmt.Fprintln(cmd.OutOrStdout(), idempotency.Derive(symbol, models.Timeframe(tf), ts))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 time (now if not provided)")

	return cmd
}

// newProbeCmd checks a running vendor service against the contracts.
func newProbeCmd() *cobra.Command {
	var (
		url     string
		task    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check a vendor service's /health and /infer against the contracts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*timeout)
			defer cancel()

			rep, err := probe.New(url, timeout).Check(ctx, models.Task(task))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range rep.Violations {
				fmt.Fprintf(out, "%s: %s\n", v.Path, v.Message)
			}
			if !rep.OK() {
				return fmt.Errorf("probe failed with %d violation(s)", len(rep.Violations))
			}
			fmt.Fprintf(out, "%s contract ok\n", task)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "Vendor service base URL")
	cmd.Flags().StringVar(&task, "task", string(models.TaskSignal), "Task served (signal, consensus, optimizer)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Per-request timeout")

	return cmd
}
