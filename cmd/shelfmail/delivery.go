package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shelfmail/shelfmail/internal/config"
	"github.com/shelfmail/shelfmail/internal/email"
	"github.com/shelfmail/shelfmail/internal/logger"
	"github.com/shelfmail/shelfmail/internal/model"
)

var deliveryFlags struct {
	tenant   string
	provider string
	to       string
	subject  string
	body     string
	from     string

	smtpHost     string
	smtpPort     int
	smtpUser     string
	smtpPassword string
	smtpFrom     string

	apiClientID     string
	apiClientSecret string
	apiRefreshToken string
	apiSender       string
	apiSenderName   string
}

var testDeliveryCmd = &cobra.Command{
	Use:   "test-delivery",
	Short: "Send a test message with a candidate mail configuration",
	Long: `Send one test message to --to using the configuration given by flags.
With --tenant the stored settings of that tenant are loaded first and any
flag given on the command line replaces the stored value.`,
	RunE: runTestDelivery,
}

func init() {
	f := testDeliveryCmd.Flags()
	f.StringVar(&deliveryFlags.tenant, "tenant", "", "tenant id whose stored settings are used as the base")
	f.StringVar(&deliveryFlags.provider, "provider", "", "delivery provider: api or smtp")
	f.StringVar(&deliveryFlags.to, "to", "", "recipient address")
	f.StringVar(&deliveryFlags.subject, "subject", "", "subject override")
	f.StringVar(&deliveryFlags.body, "body", "", "HTML body override")
	f.StringVar(&deliveryFlags.from, "from", "", "SMTP sender override for this test only")

	f.StringVar(&deliveryFlags.smtpHost, "smtp-host", "", "SMTP host")
	f.IntVar(&deliveryFlags.smtpPort, "smtp-port", 0, "SMTP port (default 587)")
	f.StringVar(&deliveryFlags.smtpUser, "smtp-user", "", "SMTP username")
	f.StringVar(&deliveryFlags.smtpPassword, "smtp-password", "", "SMTP password")
	f.StringVar(&deliveryFlags.smtpFrom, "smtp-from", "", "SMTP sender address")

	f.StringVar(&deliveryFlags.apiClientID, "api-client-id", "", "OAuth client id")
	f.StringVar(&deliveryFlags.apiClientSecret, "api-client-secret", "", "OAuth client secret")
	f.StringVar(&deliveryFlags.apiRefreshToken, "api-refresh-token", "", "OAuth refresh token")
	f.StringVar(&deliveryFlags.apiSender, "api-sender", "", "authorized sender address")
	f.StringVar(&deliveryFlags.apiSenderName, "api-sender-name", "", "sender display name")

	_ = testDeliveryCmd.MarkFlagRequired("to")
}

func runTestDelivery(cmd *cobra.Command, args []string) error {
	var (
		tester    *email.ConnectionTester
		candidate model.TenantMailSettings
	)

	if deliveryFlags.tenant != "" {
		tenantID, err := uuid.Parse(deliveryFlags.tenant)
		if err != nil {
			return fmt.Errorf("invalid tenant id: %w", err)
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stored, err := a.resolver.Resolve(cmd.Context(), tenantID)
		if err != nil {
			return fmt.Errorf("failed to load tenant settings: %w", err)
		}
		if stored == nil {
			return fmt.Errorf("tenant %s has no mail settings", tenantID)
		}
		candidate = *stored
		tester = a.tester
	} else {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log := logger.New(cfg.Log.Level, cfg.Log.Format)
		tester = email.NewConnectionTester(
			email.NewGmailTransport(cfg.Gmail.TokenURL, cfg.Gmail.Endpoint),
			email.NewSMTPTransport(cfg.SMTP.DialTimeout),
			cfg.Reminder.AppName,
			log,
		)
	}

	applyDeliveryFlags(cmd, &candidate)

	res := tester.TestDelivery(cmd.Context(), candidate, deliveryFlags.to, &email.TestOverrides{
		Subject:  deliveryFlags.subject,
		HTMLBody: deliveryFlags.body,
		From:     deliveryFlags.from,
	})
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("test delivery failed")
	}
	return nil
}

// applyDeliveryFlags overlays explicitly set flags onto s.
func applyDeliveryFlags(cmd *cobra.Command, s *model.TenantMailSettings) {
	set := func(name string, dst *string, val string) {
		if cmd.Flags().Changed(name) {
			*dst = strings.TrimSpace(val)
		}
	}

	if cmd.Flags().Changed("provider") {
		s.Provider = model.Provider(strings.ToLower(strings.TrimSpace(deliveryFlags.provider)))
	}
	set("smtp-host", &s.SMTP.Host, deliveryFlags.smtpHost)
	if cmd.Flags().Changed("smtp-port") {
		s.SMTP.Port = deliveryFlags.smtpPort
	}
	set("smtp-user", &s.SMTP.Username, deliveryFlags.smtpUser)
	set("smtp-password", &s.SMTP.Password, deliveryFlags.smtpPassword)
	set("smtp-from", &s.SMTP.From, deliveryFlags.smtpFrom)

	set("api-client-id", &s.API.ClientID, deliveryFlags.apiClientID)
	set("api-client-secret", &s.API.ClientSecret, deliveryFlags.apiClientSecret)
	set("api-refresh-token", &s.API.RefreshToken, deliveryFlags.apiRefreshToken)
	set("api-sender", &s.API.SenderAddress, deliveryFlags.apiSender)
	set("api-sender-name", &s.API.SenderName, deliveryFlags.apiSenderName)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
