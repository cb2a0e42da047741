package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mwanafrika/mwanafrika-backend/internal/app"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/twilio"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type rootOptions struct {
	configDir string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "mwanafrika-admin",
		Short:         "Operational commands for the MwanAfrika backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "directory containing app.env")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log wiring details")

	root.AddCommand(
		newMigrateCmd(opts),
		newProfileCmd(opts),
		newCoinsCmd(opts),
		newWhatsAppCmd(opts),
	)
	return root
}

// bootstrap wires the stores and services without starting the HTTP server.
func bootstrap(ctx context.Context, opts *rootOptions) (*app.App, error) {
	_ = godotenv.Load()
	cfg, err := app.LoadConfig(opts.configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.Nop()
	if opts.verbose {
		if log, err = logger.New(cfg.LogMode); err != nil {
			return nil, err
		}
	}
	return app.Bootstrap(ctx, log, cfg)
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bootstrap runs the migrations.
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Shutdown(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", a.DB.Dialector.Name())
			return nil
		},
	}
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	profile := &cobra.Command{Use: "profile", Short: "Inspect learner profiles"}
	profile.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Print a learner profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Shutdown(cmd.Context())

			p, err := a.Services.Profile.Get(cmd.Context(), userID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	})
	return profile
}

func newCoinsCmd(opts *rootOptions) *cobra.Command {
	coins := &cobra.Command{Use: "coins", Short: "Adjust coin balances"}
	coins.AddCommand(&cobra.Command{
		Use:   "grant <user-id> <amount>",
		Short: "Add (or with a negative amount, remove) coins",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Shutdown(cmd.Context())

			p, err := a.Services.Profile.GrantCoins(cmd.Context(), userID, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d coins\n", p.DisplayName, p.Coins)
			return nil
		},
	})
	return coins
}

func newWhatsAppCmd(opts *rootOptions) *cobra.Command {
	wa := &cobra.Command{Use: "whatsapp", Short: "WhatsApp channel utilities"}
	wa.AddCommand(&cobra.Command{
		Use:   "send <to> <body>",
		Short: "Send a WhatsApp message from the configured sender",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Shutdown(cmd.Context())
			if a.Clients.Twilio == nil {
				return fmt.Errorf("twilio is not configured (set TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN)")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			msg, err := a.Clients.Twilio.SendMessage(ctx, twilio.SendMessageRequest{
				To:   args[0],
				From: a.Cfg.TwilioWhatsAppFrom,
				Body: strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s (%s)\n", msg.SID, msg.Status)
			return nil
		},
	})
	return wa
}
