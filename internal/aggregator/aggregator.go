package aggregator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/goatnetwork/bridge-relayer/internal/config"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	log "github.com/sirupsen/logrus"
)

type CollectRequest struct {
	Recipient        string
	Amount           uint64
	Nonce            uint64
	OriginSender     string
	DestinationChain types.Chain
}

// InsufficientSignaturesError is returned when no validator produced a valid signature
type InsufficientSignaturesError struct {
	Expected int
	Got      int
}

func (e *InsufficientSignaturesError) Error() string {
	return fmt.Sprintf("insufficient signatures: expected %d, got %d", e.Expected, e.Got)
}

// Aggregator collects release signatures from the validator roster
type Aggregator struct {
	validators []config.ValidatorConfig
	signer     SignerClient
	now        func() time.Time
}

func New(validators []config.ValidatorConfig, signer SignerClient) *Aggregator {
	return &Aggregator{
		validators: validators,
		signer:     signer,
		now:        time.Now,
	}
}

// Message builds the canonical message the destination chain verifies
func Message(req CollectRequest) ([]byte, error) {
	switch req.DestinationChain {
	case types.ChainSolana:
		recipient, err := solana.PublicKeyFromBase58(req.Recipient)
		if err != nil {
			return nil, fmt.Errorf("invalid solana recipient %q: %w", req.Recipient, err)
		}
		return types.UnlockMessage(req.Nonce, recipient, req.Amount), nil
	case types.ChainEthereum:
		recipient, err := types.ParseEthRecipient(req.Recipient)
		if err != nil {
			return nil, err
		}
		return types.MintMessage(recipient, new(big.Int).SetUint64(req.Amount), req.Nonce, req.OriginSender), nil
	}
	return nil, fmt.Errorf("no signing scheme for destination %s", req.DestinationChain)
}

// Collect asks every validator with an endpoint concurrently and keeps the signatures that verify.
// The result follows roster order.
func (a *Aggregator) Collect(ctx context.Context, req CollectRequest) ([]types.ValidatorSignature, error) {
	msg, err := Message(req)
	if err != nil {
		return nil, err
	}

	signReq := SignRequest{
		Message:          hexutil.Encode(msg),
		DestinationChain: req.DestinationChain.String(),
		Recipient:        req.Recipient,
		Amount:           req.Amount,
		Nonce:            req.Nonce,
		OriginSender:     req.OriginSender,
	}

	results := make([]*types.ValidatorSignature, len(a.validators))
	var wg sync.WaitGroup
	for i, validator := range a.validators {
		if validator.Endpoint == "" {
			log.Debugf("Validator %s has no endpoint, skipping", validator.Name)
			continue
		}
		wg.Add(1)
		go func(i int, validator config.ValidatorConfig) {
			defer wg.Done()
			sig, err := a.requestSignature(ctx, validator, req.DestinationChain, msg, signReq)
			if err != nil {
				log.WithFields(log.Fields{"validator": validator.Name, "nonce": req.Nonce}).Warnf("Validator signature dropped: %v", err)
				return
			}
			results[i] = sig
		}(i, validator)
	}
	wg.Wait()

	sigs := make([]types.ValidatorSignature, 0, len(results))
	for _, sig := range results {
		if sig != nil {
			sigs = append(sigs, *sig)
		}
	}
	if len(sigs) == 0 {
		return nil, &InsufficientSignaturesError{Expected: len(a.validators), Got: 0}
	}
	log.Infof("Collected %d/%d validator signatures for nonce %d", len(sigs), len(a.validators), req.Nonce)
	return sigs, nil
}

func (a *Aggregator) requestSignature(ctx context.Context, validator config.ValidatorConfig, dest types.Chain, msg []byte, signReq SignRequest) (*types.ValidatorSignature, error) {
	resp, err := a.signer.Sign(ctx, validator.Endpoint, signReq)
	if err != nil {
		return nil, err
	}
	raw, err := hexutil.Decode(resp.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}

	var address string
	switch dest {
	case types.ChainSolana:
		address = validator.SolPublicKey
		err = verifyEd25519(address, msg, raw)
	case types.ChainEthereum:
		address = common.HexToAddress(validator.EthAddress).Hex()
		err = verifySecp256k1(validator.EthAddress, msg, raw)
	default:
		err = fmt.Errorf("no signing scheme for destination %s", dest)
	}
	if err != nil {
		return nil, err
	}

	sig := types.NewValidatorSignature(address, raw, a.now())
	return &sig, nil
}

func verifyEd25519(pubKey string, msg, sig []byte) error {
	if pubKey == "" {
		return fmt.Errorf("validator has no solana public key")
	}
	pk, err := solana.PublicKeyFromBase58(pubKey)
	if err != nil {
		return err
	}
	if len(sig) != solana.SignatureLength {
		return fmt.Errorf("ed25519 signature has %d bytes", len(sig))
	}
	if !solana.SignatureFromBytes(sig).Verify(pk, msg) {
		return fmt.Errorf("ed25519 signature does not match %s", pubKey)
	}
	return nil
}

func verifySecp256k1(ethAddress string, msg, sig []byte) error {
	if !common.IsHexAddress(ethAddress) {
		return fmt.Errorf("validator has no eth address")
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("secp256k1 signature has %d bytes", len(sig))
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(msg, normalized)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}
	if recovered := crypto.PubkeyToAddress(*pub); recovered != common.HexToAddress(ethAddress) {
		return fmt.Errorf("signature recovers %s, expected %s", recovered.Hex(), ethAddress)
	}
	return nil
}
