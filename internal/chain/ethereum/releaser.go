package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math"
	"math/big"

	goeth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-errors/errors"
	"github.com/goatnetwork/bridge-relayer/internal/chain"
	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	log "github.com/sirupsen/logrus"
)

type ReleaserConfig struct {
	ChainID            *big.Int
	Contract           common.Address
	Confirmations      uint64
	GasPriceMultiplier float64
}

// Releaser mints wrapped tokens for rows locked on Solana
type Releaser struct {
	client Client
	cfg    ReleaserConfig
	abi    abi.ABI
	key    *ecdsa.PrivateKey
	from   common.Address
}

var _ chain.Releaser = (*Releaser)(nil)

func NewReleaser(client Client, cfg ReleaserConfig, key *ecdsa.PrivateKey) (*Releaser, error) {
	parsed, err := ParseBridgeABI()
	if err != nil {
		return nil, fmt.Errorf("parse bridge abi: %w", err)
	}
	if cfg.ChainID == nil {
		return nil, fmt.Errorf("chain id is required")
	}
	if cfg.GasPriceMultiplier < 1 {
		cfg.GasPriceMultiplier = 1
	}
	return &Releaser{
		client: client,
		cfg:    cfg,
		abi:    parsed,
		key:    key,
		from:   crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (r *Releaser) Chain() types.Chain {
	return types.ChainEthereum
}

func (r *Releaser) From() common.Address {
	return r.from
}

// PackMintCall encodes mintWrapped(recipient, amount, nonce, originSender, signatures)
func (r *Releaser) PackMintCall(tx *db.RelayTransaction, sigs []types.ValidatorSignature) ([]byte, error) {
	recipient, err := types.ParseEthRecipient(tx.Recipient)
	if err != nil {
		return nil, err
	}
	signatures := make([][]byte, 0, len(sigs))
	for _, sig := range sigs {
		raw, err := sig.Bytes()
		if err != nil {
			return nil, err
		}
		signatures = append(signatures, raw)
	}
	return r.abi.Pack(MintWrappedMethod, recipient, new(big.Int).SetUint64(tx.Amount), tx.Nonce, tx.Sender, signatures)
}

func (r *Releaser) Release(ctx context.Context, tx *db.RelayTransaction, sigs []types.ValidatorSignature) (string, error) {
	data, err := r.PackMintCall(tx, sigs)
	if err != nil {
		return "", err
	}

	nonce, err := r.client.PendingNonceAt(ctx, r.from)
	if err != nil {
		return "", errors.WrapPrefix(err, "get pending nonce", 0)
	}
	suggested, err := r.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", errors.WrapPrefix(err, "suggest gas price", 0)
	}
	gasPrice := applyMultiplier(suggested, r.cfg.GasPriceMultiplier)

	gasLimit, err := r.client.EstimateGas(ctx, goeth.CallMsg{
		From:     r.from,
		To:       &r.cfg.Contract,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return "", errors.WrapPrefix(err, "estimate gas", 0)
	}

	unsigned := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &r.cfg.Contract,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := ethtypes.SignTx(unsigned, ethtypes.LatestSignerForChainID(r.cfg.ChainID), r.key)
	if err != nil {
		return "", fmt.Errorf("sign mint transaction: %w", err)
	}
	if err := r.client.SendTransaction(ctx, signed); err != nil {
		return "", errors.WrapPrefix(err, "send mint transaction", 0)
	}

	log.WithFields(log.Fields{
		"nonce":    tx.Nonce,
		"tx":       signed.Hash().Hex(),
		"gasPrice": gasPrice.String(),
		"gas":      gasLimit,
	}).Info("Ethereum mint submitted")
	return signed.Hash().Hex(), nil
}

func (r *Releaser) CheckFinality(ctx context.Context, txHash string) (chain.Finality, string, error) {
	raw, err := hexutil.Decode(txHash)
	if err != nil || len(raw) != common.HashLength {
		return chain.FinalityPending, "", fmt.Errorf("invalid ethereum tx hash %q", txHash)
	}

	receipt, err := r.client.TransactionReceipt(ctx, common.BytesToHash(raw))
	if errors.Is(err, goeth.NotFound) {
		return chain.FinalityPending, "", nil
	}
	if err != nil {
		return chain.FinalityPending, "", errors.WrapPrefix(err, "get transaction receipt", 0)
	}
	if receipt == nil || receipt.BlockNumber == nil {
		return chain.FinalityPending, "", nil
	}

	latest, err := r.client.BlockNumber(ctx)
	if err != nil {
		return chain.FinalityPending, "", errors.WrapPrefix(err, "get latest block number", 0)
	}
	included := receipt.BlockNumber.Uint64()
	if latest < included || latest-included < r.cfg.Confirmations {
		return chain.FinalityPending, "", nil
	}
	if receipt.Status == ethtypes.ReceiptStatusFailed {
		return chain.FinalityFailed, fmt.Sprintf("transaction reverted in block %d", included), nil
	}
	return chain.FinalitySuccess, "", nil
}

// applyMultiplier scales the gas price with per-mille precision
func applyMultiplier(price *big.Int, multiplier float64) *big.Int {
	perMille := big.NewInt(int64(math.Round(multiplier * 1000)))
	out := new(big.Int).Mul(price, perMille)
	return out.Div(out, big.NewInt(1000))
}
