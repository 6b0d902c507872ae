package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/state"
	"github.com/spf13/cobra"
)

var (
	flagDbDir  string
	flagOutput string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bridgectl",
		Short:         "Inspect the bridge relayer ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagDbDir, "db-dir", envDefault("DB_DIR", "/app/db"), "Relayer database directory")
	root.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "Output format: json|text")

	root.AddCommand(newStatusCmd(), newHistoryCmd(), newStatsCmd(), newDeriveCmd())
	return root
}

// openLedger opens the relayer databases read side for one command
func openLedger() (*state.State, func(), error) {
	dbm, err := db.OpenDatabaseManager(flagDbDir, 1)
	if err != nil {
		return nil, nil, err
	}
	return state.InitializeState(dbm), dbm.Close, nil
}

func newStatusCmd() *cobra.Command {
	var nonce uint64
	var hash string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show one relay transaction by nonce or source tx hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("nonce") && hash == "" {
				return fmt.Errorf("one of --nonce or --hash is required")
			}
			st, closeFn, err := openLedger()
			if err != nil {
				return err
			}
			defer closeFn()

			var tx *db.RelayTransaction
			if hash != "" {
				tx, err = st.GetRelayTxByHash(hash)
			} else {
				tx, err = st.GetRelayTxByNonce(nonce)
			}
			if err != nil {
				return err
			}
			if tx == nil {
				return fmt.Errorf("relay transaction not found")
			}
			return printTxs(cmd.OutOrStdout(), []*db.RelayTransaction{tx})
		},
	}
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "Bridge nonce")
	cmd.Flags().StringVar(&hash, "hash", "", "Source chain tx hash")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var user, status string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List relay transactions of a sender or in a status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" && status == "" {
				return fmt.Errorf("one of --user or --status is required")
			}
			st, closeFn, err := openLedger()
			if err != nil {
				return err
			}
			defer closeFn()

			var txs []*db.RelayTransaction
			if user != "" {
				txs, err = st.GetRelayTxsBySender(user)
			} else {
				txs, err = st.GetRelayTxsByStatus(status)
			}
			if err != nil {
				return err
			}
			return printTxs(cmd.OutOrStdout(), txs)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Sender address")
	cmd.Flags().StringVar(&status, "status", "", "Relay status")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show relay counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openLedger()
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := st.GetRelayStats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flagOutput == "json" {
				return writeJSON(out, stats)
			}
			fmt.Fprintf(out, "total:                %d\n", stats.Total)
			fmt.Fprintf(out, "pending:              %d\n", stats.Pending)
			fmt.Fprintf(out, "signatures_collected: %d\n", stats.SignaturesCollected)
			fmt.Fprintf(out, "submitted:            %d\n", stats.Submitted)
			fmt.Fprintf(out, "confirmed:            %d\n", stats.Confirmed)
			fmt.Fprintf(out, "failed:               %d\n", stats.Failed)
			return nil
		},
	}
}

func printTxs(out io.Writer, txs []*db.RelayTransaction) error {
	switch flagOutput {
	case "json":
		return writeJSON(out, txs)
	case "text", "":
	default:
		return fmt.Errorf("invalid --output: %s (use json|text)", flagOutput)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NONCE\tROUTE\tAMOUNT\tSTATUS\tATTEMPTS\tSOURCE TX\tDEST TX")
	for _, tx := range txs {
		fmt.Fprintf(w, "%d\t%s->%s\t%d\t%s\t%d\t%s\t%s\n",
			tx.Nonce, tx.FromChain, tx.ToChain, tx.Amount, tx.Status, tx.Attempts, tx.FromTxHash, deref(tx.ToTxHash))
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func envDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
