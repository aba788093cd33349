// Package main implements walletctl, a command-line client for the
// encrypted record wallet. Each subcommand opens (or creates) a wallet
// directory, performs one operation, and closes the wallet.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/keichiri/go-wallet/log"
)

const usageText = `walletctl [command] [options]

Wallet lifecycle:
  walletctl create --dir ./w1 --name w1 --pool pool1 --master-key <base64>
  walletctl add    --dir ./w1 --master-key <base64> --class cred --record alice --value secret
  walletctl get    --dir ./w1 --master-key <base64> --class cred --record alice
  walletctl search --dir ./w1 --master-key <base64> --class cred --query-tag ~status --op eq --query-value active
  walletctl delete --dir ./w1 --master-key <base64> --class cred --record alice`

func main() {
	app := &cli.App{
		Name:      "walletctl",
		Usage:     "encrypted record wallet client",
		UsageText: usageText,
		Commands: []*cli.Command{
			createCommand,
			addCommand,
			getCommand,
			updateCommand,
			tagCommand,
			deleteCommand,
			searchCommand,
			clearCommand,
		},
		EnableBashCompletion: true,
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("walletctl failed", "err", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
