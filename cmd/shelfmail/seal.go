package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelfmail/shelfmail/internal/config"
	"github.com/shelfmail/shelfmail/internal/secret"
)

var sealCmd = &cobra.Command{
	Use:   "seal [value]",
	Short: "Seal a tenant secret with the master key",
	Long: `Seal a value for storage in one of the *_enc columns of
tenant_mail_settings. The value is read from stdin when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeal,
}

func runSeal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	box, err := secret.NewBox(cfg.Security.MasterKey)
	if err != nil {
		return fmt.Errorf("failed to load master key: %w", err)
	}
	if !box.Ready() {
		return secret.ErrNoKey
	}

	var value string
	if len(args) == 1 {
		value = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read value: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return fmt.Errorf("nothing to seal")
	}

	sealed, err := box.Seal(value)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sealed)
	return nil
}
