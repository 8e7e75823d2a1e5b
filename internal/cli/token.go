package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(balanceCmd)
}

var approveCmd = &cobra.Command{
	Use:   "approve AMOUNT",
	Short: "Authorize the escrow to pull tokens from your account",
	Long: `Grant the escrow an allowance covering future task deposits.
Replaces any earlier authorization.`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func runApprove(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	account, err := actingAccount()
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	if err := c.Approve(cmd.Context(), account, amount); err != nil {
		return err
	}
	fmt.Printf("Approved escrow allowance of %d tokens for %s\n", amount, account)
	return nil
}

var mintCmd = &cobra.Command{
	Use:   "mint AMOUNT",
	Short: "Mint tokens to your account (local faucet)",
	Args:  cobra.ExactArgs(1),
	RunE:  runMint,
}

func runMint(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	account, err := actingAccount()
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	balance, err := c.Mint(cmd.Context(), account, amount)
	if err != nil {
		return err
	}
	fmt.Printf("Minted %d tokens to %s (balance %d)\n", amount, account, balance)
	return nil
}

var balanceCmd = &cobra.Command{
	Use:   "balance [ACCOUNT]",
	Short: "Show a token balance",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBalance,
}

func runBalance(cmd *cobra.Command, args []string) error {
	var account string
	var err error
	if len(args) == 1 {
		account = args[0]
	} else {
		account, err = actingAccount()
		if err != nil {
			return err
		}
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	balance, err := c.BalanceOf(cmd.Context(), account)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d tokens\n", account, balance)
	return nil
}

func parseAmount(s string) (int64, error) {
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount must be an integer, got %q", s)
	}
	return amount, nil
}
