package solana

import (
	"context"

	"github.com/go-errors/errors"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/goatnetwork/bridge-relayer/internal/chain"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	log "github.com/sirupsen/logrus"
)

// Observer reads TokensLocked events from the vault program transactions
type Observer struct {
	client     RPCClient
	programID  solanago.PublicKey
	commitment rpc.CommitmentType
	limit      int
}

var _ chain.Observer = (*Observer)(nil)

func NewObserver(client RPCClient, programID solanago.PublicKey, commitment rpc.CommitmentType, limit int) *Observer {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	return &Observer{
		client:     client,
		programID:  programID,
		commitment: commitment,
		limit:      limit,
	}
}

func (o *Observer) Chain() types.Chain {
	return types.ChainSolana
}

// Poll handles every signature newer than the cursor, oldest first
func (o *Observer) Poll(ctx context.Context, from chain.Checkpoint) ([]types.BridgeEvent, chain.Checkpoint, error) {
	var until solanago.Signature
	if from.Cursor != "" {
		sig, err := solanago.SignatureFromBase58(from.Cursor)
		if err != nil {
			log.Warnf("Solana observer ignores invalid cursor %s: %v", from.Cursor, err)
		} else {
			until = sig
		}
	}

	sigs, err := o.fetchSignatures(ctx, until)
	if err != nil {
		return nil, from, err
	}

	next := from
	var events []types.BridgeEvent
	for i := len(sigs) - 1; i >= 0; i-- {
		item := sigs[i]
		next = chain.Checkpoint{Height: item.Slot, Cursor: item.Signature.String()}
		if item.Err != nil {
			log.Debugf("Solana tx %s failed, skipping", item.Signature)
			continue
		}

		ev, err := o.fetchEvent(ctx, item.Signature)
		if err != nil {
			log.WithFields(log.Fields{"signature": item.Signature.String(), "slot": item.Slot}).Errorf("Failed to process solana tx: %v", err)
			continue
		}
		if ev != nil {
			log.Infof("Found bridge event: %s", ev)
			events = append(events, *ev)
		}
	}
	return events, next, nil
}

// fetchSignatures pages back from the newest signature until the cursor is reached
func (o *Observer) fetchSignatures(ctx context.Context, until solanago.Signature) ([]*rpc.TransactionSignature, error) {
	var (
		all    []*rpc.TransactionSignature
		before solanago.Signature
	)
	for {
		limit := o.limit
		page, err := o.client.GetSignaturesForAddressWithOpts(ctx, o.programID, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Before:     before,
			Until:      until,
			Commitment: o.commitment,
		})
		if err != nil {
			return nil, errors.WrapPrefix(err, "get signatures for address", 0)
		}
		all = append(all, page...)
		// without a cursor only the newest page is considered
		if len(page) < limit || until == (solanago.Signature{}) {
			return all, nil
		}
		before = page[len(page)-1].Signature
	}
}

func (o *Observer) fetchEvent(ctx context.Context, sig solanago.Signature) (*types.BridgeEvent, error) {
	maxVersion := uint64(0)
	tx, err := o.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solanago.EncodingBase64,
		Commitment:                     o.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, errors.WrapPrefix(err, "get transaction", 0)
	}
	if tx == nil || tx.Meta == nil {
		return nil, nil
	}
	if tx.Meta.Err != nil {
		log.Debugf("Solana tx %s failed, skipping", sig)
		return nil, nil
	}
	return ParseLockEvent(tx.Meta.LogMessages, sig.String())
}
