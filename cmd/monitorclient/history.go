package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent backend requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.controller.LoadHistory(cmd.Context())
			printHistory(cmd, a)
			return nil
		},
	}

	historyCmd.AddCommand(&cobra.Command{
		Use:   "show N",
		Short: "Show the full details of history row N (1 is the newest)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid row number %q", args[0])
			}
			a.controller.LoadHistory(cmd.Context())
			if !a.controller.OpenHistoryItem(n - 1) {
				return fmt.Errorf("history row %d has no details to show", n)
			}
			return printOutput(cmd, a.controller.Output())
		},
	})

	historyCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the backend history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printOutput(cmd, a.controller.ClearHistory(cmd.Context()))
		},
	})

	return historyCmd
}

// printHistory writes the loaded list as numbered rows
func printHistory(cmd *cobra.Command, a *app) {
	w := cmd.OutOrStdout()
	rows := a.controller.History()
	if len(rows) == 0 {
		fmt.Fprintln(w, "История пуста.")
		return
	}
	for i, row := range rows {
		fmt.Fprintf(w, "%d. %s\n", i+1, strings.ReplaceAll(row.String(), "\n", "\n   "))
	}
	if total := a.controller.HistoryTotal(); total > len(rows) {
		fmt.Fprintf(w, "показано %d из %d\n", len(rows), total)
	}
}
