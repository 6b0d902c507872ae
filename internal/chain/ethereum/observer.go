package ethereum

import (
	"context"
	"fmt"
	"math/big"

	goeth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/go-errors/errors"
	"github.com/goatnetwork/bridge-relayer/internal/chain"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	"github.com/mr-tron/base58"
	log "github.com/sirupsen/logrus"
)

type ObserverConfig struct {
	Contract      common.Address
	Confirmations uint64
	MaxBlockRange uint64
	StartHeight   uint64
}

// Observer reads TokensBurned logs from the bridge contract
type Observer struct {
	client Client
	cfg    ObserverConfig
	abi    abi.ABI
}

var _ chain.Observer = (*Observer)(nil)

type tokensBurned struct {
	Amount        *big.Int
	SolanaAddress string
	Nonce         uint64
}

func NewObserver(client Client, cfg ObserverConfig) (*Observer, error) {
	parsed, err := ParseBridgeABI()
	if err != nil {
		return nil, fmt.Errorf("parse bridge abi: %w", err)
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = 500
	}
	return &Observer{client: client, cfg: cfg, abi: parsed}, nil
}

func (o *Observer) Chain() types.Chain {
	return types.ChainEthereum
}

// Poll scans at most MaxBlockRange confirmed blocks after the checkpoint
func (o *Observer) Poll(ctx context.Context, from chain.Checkpoint) ([]types.BridgeEvent, chain.Checkpoint, error) {
	latestBlock, err := o.client.BlockNumber(ctx)
	if err != nil {
		return nil, from, errors.WrapPrefix(err, "get latest block number", 0)
	}
	if latestBlock <= o.cfg.Confirmations {
		return nil, from, nil
	}
	targetBlock := latestBlock - o.cfg.Confirmations

	fromBlock := from.Height + 1
	if from.Height == 0 && o.cfg.StartHeight > 0 {
		fromBlock = o.cfg.StartHeight
	}
	if fromBlock > targetBlock {
		log.Debugf("Ethereum is up to date, latest %d, synced %d", latestBlock, from.Height)
		return nil, from, nil
	}
	toBlock := min(fromBlock+o.cfg.MaxBlockRange-1, targetBlock)

	log.WithFields(log.Fields{
		"fromBlock": fromBlock,
		"toBlock":   toBlock,
	}).Debug("Syncing ethereum bridge events")

	logs, err := o.client.FilterLogs(ctx, goeth.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{o.cfg.Contract},
		Topics:    [][]common.Hash{{TokensBurnedTopic}},
	})
	if err != nil {
		return nil, from, errors.WrapPrefix(err, "filter logs", 0)
	}

	var events []types.BridgeEvent
	for _, vLog := range logs {
		if vLog.Removed {
			continue
		}
		ev, err := o.decodeBurn(vLog)
		if err != nil {
			log.WithFields(log.Fields{"tx": vLog.TxHash.Hex(), "block": vLog.BlockNumber}).Errorf("Failed to decode burn log: %v", err)
			continue
		}
		log.Infof("Found bridge event: %s", ev)
		events = append(events, *ev)
	}
	return events, chain.Checkpoint{Height: toBlock}, nil
}

func (o *Observer) decodeBurn(vLog ethtypes.Log) (*types.BridgeEvent, error) {
	if len(vLog.Topics) < 2 || vLog.Topics[0] != TokensBurnedTopic {
		return nil, fmt.Errorf("not a TokensBurned log")
	}
	var burned tokensBurned
	if err := o.abi.UnpackIntoInterface(&burned, TokensBurnedEvent, vLog.Data); err != nil {
		return nil, fmt.Errorf("unpack TokensBurned: %w", err)
	}
	if burned.Amount == nil || !burned.Amount.IsUint64() {
		return nil, fmt.Errorf("burn amount %v does not fit in u64", burned.Amount)
	}
	if raw, err := base58.Decode(burned.SolanaAddress); err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("invalid solana address %q", burned.SolanaAddress)
	}
	sender := common.BytesToAddress(vLog.Topics[1].Bytes())

	return &types.BridgeEvent{
		Kind:      types.TokensBurned,
		FromChain: types.ChainEthereum,
		ToChain:   types.ChainSolana,
		Sender:    sender.Hex(),
		Recipient: burned.SolanaAddress,
		Amount:    burned.Amount.Uint64(),
		Nonce:     burned.Nonce,
		TxHash:    vLog.TxHash.Hex(),
	}, nil
}
