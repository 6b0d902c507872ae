package main

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/goatnetwork/bridge-relayer/internal/vault"
	"github.com/spf13/cobra"
)

type derivedAddresses struct {
	Vault      string `json:"vault,omitempty"`
	VaultBump  uint8  `json:"vault_bump,omitempty"`
	VaultToken string `json:"vault_token,omitempty"`
	LockRecord string `json:"lock_record,omitempty"`
	LockBump   uint8  `json:"lock_bump,omitempty"`
}

func newDeriveCmd() *cobra.Command {
	var program, configKey, mint, user string
	var nonce uint64
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the vault program addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := derive(program, configKey, mint, user, nonce)
			if err != nil {
				return err
			}
			if flagOutput == "json" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			if out.Vault != "" {
				fmt.Fprintf(w, "vault:       %s (bump %d)\n", out.Vault, out.VaultBump)
			}
			if out.VaultToken != "" {
				fmt.Fprintf(w, "vault_token: %s\n", out.VaultToken)
			}
			if out.LockRecord != "" {
				fmt.Fprintf(w, "lock_record: %s (bump %d)\n", out.LockRecord, out.LockBump)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&program, "program", "", "Vault program id")
	cmd.Flags().StringVar(&configKey, "config", "", "Bridge config account")
	cmd.Flags().StringVar(&mint, "mint", "", "Token mint, with --config derives the vault token account")
	cmd.Flags().StringVar(&user, "user", "", "Lock owner, with --nonce derives the lock record")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "Lock nonce")
	_ = cmd.MarkFlagRequired("program")
	return cmd
}

func derive(program, configKey, mint, user string, nonce uint64) (derivedAddresses, error) {
	var out derivedAddresses
	programID, err := solana.PublicKeyFromBase58(program)
	if err != nil {
		return out, fmt.Errorf("invalid --program: %w", err)
	}
	if configKey == "" && user == "" {
		return out, fmt.Errorf("one of --config or --user is required")
	}

	if configKey != "" {
		cfgKey, err := solana.PublicKeyFromBase58(configKey)
		if err != nil {
			return out, fmt.Errorf("invalid --config: %w", err)
		}
		vaultKey, bump, err := vault.FindVaultAddress(cfgKey, programID)
		if err != nil {
			return out, err
		}
		out.Vault, out.VaultBump = vaultKey.String(), bump

		if mint != "" {
			mintKey, err := solana.PublicKeyFromBase58(mint)
			if err != nil {
				return out, fmt.Errorf("invalid --mint: %w", err)
			}
			token, err := vault.FindTokenAccountAddress(vaultKey, mintKey)
			if err != nil {
				return out, err
			}
			out.VaultToken = token.String()
		}
	}

	if user != "" {
		owner, err := solana.PublicKeyFromBase58(user)
		if err != nil {
			return out, fmt.Errorf("invalid --user: %w", err)
		}
		record, bump, err := vault.FindLockRecordAddress(owner, nonce, programID)
		if err != nil {
			return out, err
		}
		out.LockRecord, out.LockBump = record.String(), bump
	}
	return out, nil
}
