package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwikikusuma/marketplace-checkout/pkg/checkoutclient"
)

type globals struct {
	url     string
	user    string
	admin   string
	timeout time.Duration
}

func (g *globals) client() *checkoutclient.Client {
	return checkoutclient.New(g.url, checkoutclient.WithUser(g.user), checkoutclient.WithAdmin(g.admin))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "checkoutctl",
		Short:         "Operate the checkout service: run sweeps and watch payments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.url, "url", envOr("CHECKOUT_URL", "http://localhost:8080"), "checkout API base URL")
	root.PersistentFlags().StringVar(&g.user, "user", os.Getenv("CHECKOUT_USER_ID"), "buyer id sent as X-User-ID")
	root.PersistentFlags().StringVar(&g.admin, "admin", envOr("CHECKOUT_ADMIN_ID", "checkoutctl"), "admin id sent as X-Admin-ID")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "timeout for one-shot commands")

	root.AddCommand(deliveriesCmd(g))
	root.AddCommand(paymentsCmd(g))
	root.AddCommand(watchCmd(g))
	return root
}

func deliveriesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deliveries",
		Short: "Scheduled delivery operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "process",
		Short: "Complete every delivery whose scheduled time has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()

			n, err := g.client().ProcessDeliveries(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d deliveries\n", n)
			return nil
		},
	})
	return cmd
}

func paymentsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Payment session operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "expire",
		Short: "Cancel pending orders whose payment window has closed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()

			n, err := g.client().ExpirePayments(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d orders\n", n)
			return nil
		},
	})
	return cmd
}

func watchCmd(g *globals) *cobra.Command {
	var (
		orders      []string
		interval    time.Duration
		maxDuration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a checkout until it is paid, expired or rejected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(orders) == 0 {
				return errors.New("at least one --order is required")
			}
			if g.user == "" {
				return errors.New("--user is required to poll a checkout")
			}

			p := &checkoutclient.Poller{
				Checker:     g.client(),
				Interval:    interval,
				MaxDuration: maxDuration,
				OnUpdate:    func(res checkoutclient.StatusResponse) { printStatus(cmd.OutOrStdout(), res) },
			}
			res, err := p.Wait(cmd.Context(), orders)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "payment %s completed\n", res.Reference)
				return nil
			case errors.Is(err, checkoutclient.ErrExpired):
				return fmt.Errorf("payment %s expired", res.Reference)
			case errors.Is(err, checkoutclient.ErrRejected):
				return fmt.Errorf("payment %s was rejected in review", res.Reference)
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&orders, "order", nil, "order id to watch (repeatable)")
	cmd.Flags().DurationVar(&interval, "interval", checkoutclient.DefaultInterval, "poll interval")
	cmd.Flags().DurationVar(&maxDuration, "max-duration", checkoutclient.DefaultMaxDuration, "give up after this long")
	return cmd
}

func printStatus(w io.Writer, res checkoutclient.StatusResponse) {
	line := fmt.Sprintf("%s  %s", time.Now().Format(time.TimeOnly), res.Status)
	if res.ExpiresAt != nil && res.Status == "pending" {
		left := checkoutclient.NewCountdown(*res.ExpiresAt).Remaining().Truncate(time.Second)
		line += fmt.Sprintf("  (%s left)", left)
	}
	fmt.Fprintln(w, line)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
