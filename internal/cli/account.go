package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ecoboard/ecoboard/internal/app/reward"
	"github.com/ecoboard/ecoboard/internal/daemon"
	"github.com/ecoboard/ecoboard/internal/domain"
	"github.com/ecoboard/ecoboard/internal/infra/sqlite"
)

// ─── account commands ───────────────────────────────────────────────────────
// Operational tooling against the store directly; the daemon must not be
// writing concurrently from another host (sqlite is single-node).

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountShowCmd)
	accountCmd.AddCommand(accountSetStatusCmd)
	accountCmd.AddCommand(accountAccrueCmd)
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Inspect and administer reward accounts",
}

var accountShowCmd = &cobra.Command{
	Use:   "show USER_ID",
	Short: "Show an account's balance, status, and audit trail",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountShow,
}

func runAccountShow(cmd *cobra.Command, args []string) error {
	ledger, closeFn, err := openLedger()
	if err != nil {
		return err
	}
	defer closeFn()

	account, err := ledger.AccountFor(args[0])
	if err != nil {
		return err
	}
	events, err := ledger.Events(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("user:    %s\nbalance: %d\nstatus:  %s\n\n", account.UserID, account.Amount, account.Status)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tKIND\tVALUE\tINITIATOR")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%+d\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Value, e.Initiator)
	}
	return tw.Flush()
}

var accountSetStatusCmd = &cobra.Command{
	Use:   "set-status USER_ID STATUS",
	Short: "Freeze (SUSPENDED) or unfreeze (ACTIVE) an account",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountSetStatus,
}

func runAccountSetStatus(cmd *cobra.Command, args []string) error {
	status, err := domain.ParseAccountStatus(args[1])
	if err != nil {
		return err
	}

	ledger, closeFn, err := openLedger()
	if err != nil {
		return err
	}
	defer closeFn()

	return ledger.SetStatus(args[0], status)
}

var accountAccrueCmd = &cobra.Command{
	Use:   "accrue USER_ID AMOUNT",
	Short: "Credit an account manually (initiator: operator)",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountAccrue,
}

func runAccountAccrue(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("amount must be a positive integer, got %q", args[1])
	}

	ledger, closeFn, err := openLedger()
	if err != nil {
		return err
	}
	defer closeFn()

	return ledger.Accrue(args[0], amount, "operator")
}

func openLedger() (*reward.Ledger, func() error, error) {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	return reward.NewLedger(db), db.Close, nil
}
