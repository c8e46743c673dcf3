// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package walletcmd

import (
	"github.com/spf13/cobra"

	"github.com/luxfi/clawlet/pkg/ux"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List configured wallets",
		RunE:         listWallets,
		SilenceUsage: true,
	}
}

func listWallets(cmd *cobra.Command, args []string) error {
	entries, activeID := app.Manager.List()
	if len(entries) == 0 {
		ux.Logger.PrintToUser("No wallets configured. Create one through the serve API.")
		return nil
	}

	header := []string{"ID", "Label", "Adapter", "Address", "Frozen", "Active"}
	rows := make([][]string, 0, len(entries))
	for _, w := range entries {
		active := ""
		if activeID != nil && *activeID == w.ID {
			active = "*"
		}
		frozen := ""
		if w.Frozen {
			frozen = "yes"
		}
		rows = append(rows, []string{
			w.ID,
			w.Label,
			string(w.AdapterConfig.Type),
			w.AdapterConfig.Address,
			frozen,
			active,
		})
	}
	ux.Logger.PrintTable(header, rows)
	return nil
}
