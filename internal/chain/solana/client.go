package solana

import (
	"context"
	"fmt"
	"os"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is the part of the solana json rpc the relayer uses
type RPCClient interface {
	GetSignaturesForAddressWithOpts(ctx context.Context, account solanago.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	GetTransaction(ctx context.Context, txSig solanago.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solanago.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solanago.Transaction, opts rpc.TransactionOpts) (solanago.Signature, error)
}

var _ RPCClient = (*rpc.Client)(nil)

func NewRPCClient(endpoint string) RPCClient {
	return rpc.New(endpoint)
}

func ParseCommitment(s string) (rpc.CommitmentType, error) {
	switch c := rpc.CommitmentType(strings.ToLower(s)); c {
	case rpc.CommitmentFinalized, rpc.CommitmentConfirmed, rpc.CommitmentProcessed:
		return c, nil
	}
	return "", fmt.Errorf("invalid commitment %q", s)
}

// LoadKeypair accepts a solana-keygen json file path or a base58 secret key
func LoadKeypair(value string) (solanago.PrivateKey, error) {
	if value == "" {
		return nil, fmt.Errorf("relayer keypair not configured")
	}
	if _, err := os.Stat(value); err == nil {
		return solanago.PrivateKeyFromSolanaKeygenFile(value)
	}
	return solanago.PrivateKeyFromBase58(value)
}
