package chain

import (
	"context"

	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/types"
)

// Checkpoint is the position an observer resumes from
type Checkpoint struct {
	Height uint64
	Cursor string
}

// Observer fetches the final bridge events of one source chain since a checkpoint.
// An error means the chain could not be reached at all, per item failures are skipped inside Poll.
type Observer interface {
	Chain() types.Chain
	Poll(ctx context.Context, from Checkpoint) ([]types.BridgeEvent, Checkpoint, error)
}

type Finality int

const (
	FinalityPending Finality = iota
	FinalitySuccess
	FinalityFailed
)

func (f Finality) String() string {
	return [...]string{"Pending", "Success", "Failed"}[f]
}

// Releaser submits the release of a signed relay row on its destination chain
type Releaser interface {
	Chain() types.Chain
	Release(ctx context.Context, tx *db.RelayTransaction, sigs []types.ValidatorSignature) (string, error)
	CheckFinality(ctx context.Context, txHash string) (Finality, string, error)
}
