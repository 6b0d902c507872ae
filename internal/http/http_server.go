package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/metrics"
	"github.com/goatnetwork/bridge-relayer/internal/state"
	"github.com/goatnetwork/bridge-relayer/internal/types"
	log "github.com/sirupsen/logrus"
)

// LedgerReader is the read side of the state served over HTTP
type LedgerReader interface {
	GetRelayStats() (state.RelayStats, error)
	GetRelayTxsByStatus(status string) ([]*db.RelayTransaction, error)
	GetRelayTxByNonce(nonce uint64) (*db.RelayTransaction, error)
	GetRelayTxByHash(hash string) (*db.RelayTransaction, error)
	GetSyncStatus(chain string) (db.SyncStatus, error)
}

type HTTPServer struct {
	ledger  LedgerReader
	metrics *metrics.Metrics
	port    string
}

func NewHTTPServer(ledger LedgerReader, m *metrics.Metrics, port string) *HTTPServer {
	return &HTTPServer{ledger: ledger, metrics: m, port: port}
}

func (hs *HTTPServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/v1")
	api.GET("/health", hs.handleHealth)
	api.GET("/stats", hs.handleStats)
	api.GET("/transactions", hs.handleTransactionsByStatus)
	api.GET("/transactions/nonce/:nonce", hs.handleTransactionByNonce)
	api.GET("/transactions/hash/:hash", hs.handleTransactionByHash)

	if hs.metrics != nil {
		metricsHandler := gin.WrapH(hs.metrics.Handler())
		r.GET("/metrics", metricsHandler)
		api.GET("/metrics", metricsHandler)
	}
	return r
}

// Start serves until ctx is cancelled
func (hs *HTTPServer) Start(ctx context.Context) {
	srv := &http.Server{
		Addr:              ":" + hs.port,
		Handler:           hs.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("HTTP server shutdown: %v", err)
		}
	}()

	log.Infof("HTTP server is running on port %s", hs.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("HTTP server stopped: %v", err)
	}
}

func (hs *HTTPServer) handleHealth(c *gin.Context) {
	chains := gin.H{}
	for _, name := range []types.Chain{types.ChainSolana, types.ChainEthereum} {
		status, err := hs.ledger.GetSyncStatus(name.String())
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		chains[name.String()] = gin.H{
			"last_height": status.LastHeight,
			"updated_at":  status.UpdatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": chains})
}

func (hs *HTTPServer) handleStats(c *gin.Context) {
	stats, err := hs.ledger.GetRelayStats()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": stats})
}

func (hs *HTTPServer) handleTransactionsByStatus(c *gin.Context) {
	status := c.DefaultQuery("status", db.RELAY_STATUS_PENDING)
	if !isRelayStatus(status) {
		respondError(c, http.StatusBadRequest, errors.New("unknown status "+status))
		return
	}
	txs, err := hs.ledger.GetRelayTxsByStatus(status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": txs})
}

func (hs *HTTPServer) handleTransactionByNonce(c *gin.Context) {
	nonce, err := strconv.ParseUint(c.Param("nonce"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, errors.New("nonce must be an unsigned integer"))
		return
	}
	tx, err := hs.ledger.GetRelayTxByNonce(nonce)
	respondTx(c, tx, err)
}

func (hs *HTTPServer) handleTransactionByHash(c *gin.Context) {
	tx, err := hs.ledger.GetRelayTxByHash(c.Param("hash"))
	respondTx(c, tx, err)
}

func respondTx(c *gin.Context, tx *db.RelayTransaction, err error) {
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if tx == nil {
		respondError(c, http.StatusNotFound, errors.New("transaction not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "data": tx})
}

func respondError(c *gin.Context, code int, err error) {
	if code >= http.StatusInternalServerError {
		log.Errorf("HTTP %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(code, gin.H{"status": "error", "error": err.Error()})
}

func isRelayStatus(status string) bool {
	for _, s := range db.AllRelayStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
