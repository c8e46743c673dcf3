// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package walletcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxfi/clawlet/pkg/application"
)

var app *application.App

func NewCmd(injectedApp *application.App) *cobra.Command {
	app = injectedApp

	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Inspect the wallet roster",
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				fmt.Println(err)
			}
		},
	}

	// clawlet wallet list
	cmd.AddCommand(newListCmd())

	return cmd
}
