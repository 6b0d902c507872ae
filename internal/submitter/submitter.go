package submitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goatnetwork/bridge-relayer/internal/aggregator"
	"github.com/goatnetwork/bridge-relayer/internal/chain"
	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/metrics"
	"github.com/goatnetwork/bridge-relayer/internal/state"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	log "github.com/sirupsen/logrus"
)

// ErrUnsupportedChain means no releaser is registered for the destination
var ErrUnsupportedChain = errors.New("unsupported destination chain")

const maxBackoff = 5 * time.Minute

// Collector gathers validator signatures for a release
type Collector interface {
	Collect(ctx context.Context, req aggregator.CollectRequest) ([]types.ValidatorSignature, error)
}

type Config struct {
	PollInterval time.Duration
	RetryDelay   time.Duration
	// MaxRetries of 0 retries forever
	MaxRetries int
}

// Submitter drives ledger rows through signing, release and finality
type Submitter struct {
	store     state.RelayStore
	eventBus  *state.EventBus
	collector Collector
	releasers map[types.Chain]chain.Releaser
	metrics   *metrics.Metrics
	cfg       Config
	now       func() time.Time
}

func New(store state.RelayStore, eventBus *state.EventBus, collector Collector, cfg Config, m *metrics.Metrics, releasers ...chain.Releaser) *Submitter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	s := &Submitter{
		store:     store,
		eventBus:  eventBus,
		collector: collector,
		releasers: make(map[types.Chain]chain.Releaser, len(releasers)),
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, r := range releasers {
		s.releasers[r.Chain()] = r
	}
	return s
}

func (s *Submitter) Start(ctx context.Context) {
	wake := make(chan interface{}, 1)
	if s.eventBus != nil {
		s.eventBus.SubscribeCoalesced(state.RelayTxObserved, wake)
		defer s.eventBus.Unsubscribe(state.RelayTxObserved, wake)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	log.Infof("Submitter started, interval %v, max retries %d", s.cfg.PollInterval, s.cfg.MaxRetries)

	for {
		select {
		case <-ctx.Done():
			log.Info("Submitter stopping...")
			return
		case <-ticker.C:
			s.Tick(ctx)
		case <-wake:
			s.Tick(ctx)
		}
	}
}

// Tick processes the signing queue and re-checks submitted rows
func (s *Submitter) Tick(ctx context.Context) {
	queue, err := s.store.GetProcessingQueue()
	if err != nil {
		log.Errorf("Failed to load processing queue: %v", err)
		return
	}
	submitted, err := s.store.GetRelayTxsByStatus(db.RELAY_STATUS_SUBMITTED)
	if err != nil {
		log.Errorf("Failed to load submitted relay txs: %v", err)
		return
	}
	s.metrics.SetQueueDepth(len(queue))
	if len(queue) == 0 && len(submitted) == 0 {
		log.Debug("Submitter idle")
		return
	}

	for _, row := range append(queue, submitted...) {
		if ctx.Err() != nil {
			return
		}
		if err := s.Process(ctx, row); err != nil && !errors.Is(err, state.ErrStaleTransition) {
			log.WithFields(log.Fields{"nonce": row.Nonce, "status": row.Status}).Errorf("Failed to process relay tx: %v", err)
		}
	}
}

// Process advances one row by at most one status
func (s *Submitter) Process(ctx context.Context, row *db.RelayTransaction) error {
	switch row.Status {
	case db.RELAY_STATUS_PENDING:
		if !s.due(row) {
			return nil
		}
		return s.collect(ctx, row)
	case db.RELAY_STATUS_SIGNATURES_COLLECTED:
		if !s.due(row) {
			return nil
		}
		return s.release(ctx, row)
	case db.RELAY_STATUS_SUBMITTED:
		return s.checkFinality(ctx, row)
	}
	return nil
}

func (s *Submitter) collect(ctx context.Context, row *db.RelayTransaction) error {
	toChain, err := types.ParseChain(row.ToChain)
	if err != nil {
		return s.fail(row, err.Error())
	}
	if _, ok := s.releasers[toChain]; !ok {
		return s.fail(row, fmt.Sprintf("%v: %s", ErrUnsupportedChain, row.ToChain))
	}

	sigs, err := s.collector.Collect(ctx, aggregator.CollectRequest{
		Recipient:        row.Recipient,
		Amount:           row.Amount,
		Nonce:            row.Nonce,
		OriginSender:     row.Sender,
		DestinationChain: toChain,
	})
	if err != nil {
		return s.retry(row, "collect", err)
	}
	encoded, err := types.EncodeSignatures(sigs)
	if err != nil {
		return s.retry(row, "collect", err)
	}

	if err := s.store.TransitRelayTx(row.ID, row.Status, db.RELAY_STATUS_SIGNATURES_COLLECTED, state.RelayTxUpdate{Signatures: &encoded}); err != nil {
		return err
	}
	s.transited(row, db.RELAY_STATUS_SIGNATURES_COLLECTED, state.RelayTxSigned)
	log.WithFields(log.Fields{"nonce": row.Nonce, "signatures": len(sigs)}).Info("Relay tx signatures collected")
	return nil
}

func (s *Submitter) release(ctx context.Context, row *db.RelayTransaction) error {
	releaser, err := s.releaser(row)
	if err != nil {
		return s.fail(row, err.Error())
	}
	if row.Signatures == nil {
		return s.fail(row, "no stored signatures")
	}
	sigs, err := types.DecodeSignatures(*row.Signatures)
	if err != nil {
		return s.fail(row, fmt.Sprintf("decode stored signatures: %v", err))
	}

	hash, err := releaser.Release(ctx, row, sigs)
	if err != nil {
		return s.retry(row, "release", err)
	}
	if err := s.store.TransitRelayTx(row.ID, row.Status, db.RELAY_STATUS_SUBMITTED, state.RelayTxUpdate{ToTxHash: &hash}); err != nil {
		return err
	}
	s.transited(row, db.RELAY_STATUS_SUBMITTED, state.RelayTxSubmitted)
	log.WithFields(log.Fields{"nonce": row.Nonce, "chain": row.ToChain, "tx": hash}).Info("Relay tx submitted")
	return nil
}

func (s *Submitter) checkFinality(ctx context.Context, row *db.RelayTransaction) error {
	releaser, err := s.releaser(row)
	if err != nil {
		return s.fail(row, err.Error())
	}
	if row.ToTxHash == nil || *row.ToTxHash == "" {
		return s.fail(row, "submitted without destination hash")
	}

	finality, reason, err := releaser.CheckFinality(ctx, *row.ToTxHash)
	if err != nil {
		// transient, the next tick asks again
		return err
	}
	switch finality {
	case chain.FinalitySuccess:
		if err := s.store.TransitRelayTx(row.ID, row.Status, db.RELAY_STATUS_CONFIRMED, state.RelayTxUpdate{}); err != nil {
			return err
		}
		s.transited(row, db.RELAY_STATUS_CONFIRMED, state.RelayTxFinalized)
		log.WithFields(log.Fields{"nonce": row.Nonce, "tx": *row.ToTxHash}).Info("Relay tx confirmed")
	case chain.FinalityFailed:
		return s.fail(row, reason)
	default:
		log.Debugf("Relay tx %d still pending on %s", row.Nonce, row.ToChain)
	}
	return nil
}

func (s *Submitter) releaser(row *db.RelayTransaction) (chain.Releaser, error) {
	toChain, err := types.ParseChain(row.ToChain)
	if err != nil {
		return nil, err
	}
	releaser, ok := s.releasers[toChain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, row.ToChain)
	}
	return releaser, nil
}

// retry counts a failed step, the row fails once it is out of attempts
func (s *Submitter) retry(row *db.RelayTransaction, stage string, cause error) error {
	s.metrics.RelayError(stage)
	attempts, err := s.store.RecordRelayAttempt(row.ID, row.Status, cause.Error())
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"nonce": row.Nonce, "stage": stage, "attempts": attempts}).Warnf("Relay step failed: %v", cause)

	if s.cfg.MaxRetries > 0 && attempts >= s.cfg.MaxRetries {
		return s.fail(row, fmt.Sprintf("%s failed after %d attempts: %v", stage, attempts, cause))
	}
	return nil
}

func (s *Submitter) fail(row *db.RelayTransaction, reason string) error {
	if err := s.store.TransitRelayTx(row.ID, row.Status, db.RELAY_STATUS_FAILED, state.RelayTxUpdate{ErrorMessage: &reason}); err != nil {
		return err
	}
	s.transited(row, db.RELAY_STATUS_FAILED, state.RelayTxFailed)
	log.WithFields(log.Fields{"nonce": row.Nonce, "chain": row.ToChain}).Errorf("Relay tx failed: %s", reason)
	return nil
}

func (s *Submitter) transited(row *db.RelayTransaction, to string, event state.EventType) {
	s.metrics.RelayTransition(to)
	if s.eventBus != nil {
		s.eventBus.Publish(event, row.Nonce)
	}
}

// due reports whether the backoff of a previously failed row has elapsed
func (s *Submitter) due(row *db.RelayTransaction) bool {
	if row.Attempts == 0 {
		return true
	}
	return !s.now().Before(row.UpdatedAt.Add(Backoff(s.cfg.RetryDelay, row.Attempts)))
}

// Backoff is delay * 2^(attempts-1), capped at five minutes
func Backoff(delay time.Duration, attempts int) time.Duration {
	if attempts <= 0 || delay <= 0 {
		return 0
	}
	backoff := delay
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return min(backoff, maxBackoff)
}
