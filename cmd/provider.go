package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/provider"
	"github.com/vibast-solutions/ms-go-amazon-payments/config"
)

var providerTimeout time.Duration

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Issue single signed calls against Amazon Payments",
}

var providerAuthorizationCmd = &cobra.Command{
	Use:   "authorization <authorization-id>",
	Short: "Show the state of an authorization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProviderCommand("get_authorization_details", func(ctx context.Context, client *provider.Client, _ *config.Config) (interface{}, error) {
			return client.GetAuthorizationDetails(ctx, args[0], nil)
		})
	},
}

var providerAgreementCmd = &cobra.Command{
	Use:   "agreement <billing-agreement-id> [address-consent-token]",
	Short: "Fetch a billing agreement and evaluate it like a checkout would",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := ""
		if len(args) > 1 {
			token = args[1]
		}
		return runProviderCommand("check_agreement", func(ctx context.Context, client *provider.Client, cfg *config.Config) (interface{}, error) {
			return client.CheckAgreement(ctx, args[0], token, provider.ValidationOptions{
				ValidateShipping:       true,
				ValidatePayment:        true,
				ValidShippingCountries: cfg.Checkout.ShippingCountries,
			}, nil)
		})
	},
}

func init() {
	rootCmd.AddCommand(providerCmd)
	providerCmd.AddCommand(providerAuthorizationCmd)
	providerCmd.AddCommand(providerAgreementCmd)

	providerCmd.PersistentFlags().DurationVar(&providerTimeout, "timeout", 30*time.Second, "Overall timeout for the provider call")
}

func runProviderCommand(name string, fn func(ctx context.Context, client *provider.Client, cfg *config.Config) (interface{}, error)) error {
	cfg := mustLoadConfig()
	client := newAmazonClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
	defer cancel()

	var result interface{}
	err := runTimed(name, func() error {
		var callErr error
		result, callErr = fn(ctx, client, cfg)
		return callErr
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}

func runTimed(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("command", name).WithField("latency", latency.String()).Error("command_failed")
		return err
	}
	logrus.WithField("command", name).WithField("latency", latency.String()).Info("command_completed")
	return nil
}
