package solana

import (
	"context"
	"fmt"

	"github.com/go-errors/errors"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/goatnetwork/bridge-relayer/internal/chain"
	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	"github.com/goatnetwork/bridge-relayer/internal/vault"
	"github.com/mr-tron/base58"
	log "github.com/sirupsen/logrus"
)

type ReleaserConfig struct {
	ProgramID  solanago.PublicKey
	ConfigKey  solanago.PublicKey
	VaultToken solanago.PublicKey
	TokenMint  solanago.PublicKey
	Commitment rpc.CommitmentType
}

// Releaser unlocks vault funds for rows that were burned on the EVM side
type Releaser struct {
	client  RPCClient
	cfg     ReleaserConfig
	relayer solanago.PrivateKey
}

var _ chain.Releaser = (*Releaser)(nil)

func NewReleaser(client RPCClient, cfg ReleaserConfig, relayer solanago.PrivateKey) *Releaser {
	return &Releaser{
		client:  client,
		cfg:     cfg,
		relayer: relayer,
	}
}

func (r *Releaser) Chain() types.Chain {
	return types.ChainSolana
}

// BuildUnlockInstruction turns a signed row into the vault UnlockTokens instruction
func (r *Releaser) BuildUnlockInstruction(tx *db.RelayTransaction, sigs []types.ValidatorSignature) (*solanago.GenericInstruction, error) {
	recipient, err := solanago.PublicKeyFromBase58(tx.Recipient)
	if err != nil {
		return nil, fmt.Errorf("invalid solana recipient %q: %w", tx.Recipient, err)
	}
	userToken, err := vault.FindTokenAccountAddress(recipient, r.cfg.TokenMint)
	if err != nil {
		return nil, err
	}

	signatures := make([]solanago.Signature, 0, len(sigs))
	for _, sig := range sigs {
		raw, err := sig.Bytes()
		if err != nil {
			return nil, err
		}
		if len(raw) != solanago.SignatureLength {
			return nil, fmt.Errorf("signature of %s has %d bytes", sig.ValidatorAddress, len(raw))
		}
		signatures = append(signatures, solanago.SignatureFromBytes(raw))
	}

	return vault.NewUnlockTokensInstruction(r.cfg.ProgramID, vault.UnlockAccounts{
		Relayer:    r.relayer.PublicKey(),
		User:       recipient,
		UserToken:  userToken,
		VaultToken: r.cfg.VaultToken,
		Config:     r.cfg.ConfigKey,
	}, vault.UnlockArgs{Nonce: tx.Nonce, Signatures: signatures})
}

func (r *Releaser) Release(ctx context.Context, tx *db.RelayTransaction, sigs []types.ValidatorSignature) (string, error) {
	ix, err := r.BuildUnlockInstruction(tx, sigs)
	if err != nil {
		return "", err
	}

	blockhash, err := r.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", errors.WrapPrefix(err, "get latest blockhash", 0)
	}
	if blockhash == nil || blockhash.Value == nil {
		return "", fmt.Errorf("empty latest blockhash")
	}

	stx, err := solanago.NewTransaction(
		[]solanago.Instruction{ix},
		blockhash.Value.Blockhash,
		solanago.TransactionPayer(r.relayer.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("build unlock transaction: %w", err)
	}
	relayerPub := r.relayer.PublicKey()
	if _, err := stx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(relayerPub) {
			return &r.relayer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign unlock transaction: %w", err)
	}

	sig, err := r.client.SendTransactionWithOpts(ctx, stx, rpc.TransactionOpts{
		PreflightCommitment: r.cfg.Commitment,
	})
	if err != nil {
		return "", errors.WrapPrefix(err, "send unlock transaction", 0)
	}
	log.WithFields(log.Fields{"nonce": tx.Nonce, "signature": sig.String()}).Info("Solana unlock submitted")
	return sig.String(), nil
}

func (r *Releaser) CheckFinality(ctx context.Context, txHash string) (chain.Finality, string, error) {
	raw, err := base58.Decode(txHash)
	if err != nil || len(raw) != solanago.SignatureLength {
		return chain.FinalityPending, "", fmt.Errorf("invalid solana signature %q", txHash)
	}
	sig := solanago.SignatureFromBytes(raw)

	statuses, err := r.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return chain.FinalityPending, "", errors.WrapPrefix(err, "get signature statuses", 0)
	}
	if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
		return chain.FinalityPending, "", nil
	}
	status := statuses.Value[0]
	if status.Err != nil {
		return chain.FinalityFailed, fmt.Sprintf("transaction failed: %v", status.Err), nil
	}
	if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		return chain.FinalitySuccess, "", nil
	}
	return chain.FinalityPending, "", nil
}
