package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/goatnetwork/bridge-relayer/internal/aggregator"
	"github.com/goatnetwork/bridge-relayer/internal/chain"
	"github.com/goatnetwork/bridge-relayer/internal/chain/ethereum"
	solanachain "github.com/goatnetwork/bridge-relayer/internal/chain/solana"
	"github.com/goatnetwork/bridge-relayer/internal/config"
	"github.com/goatnetwork/bridge-relayer/internal/db"
	"github.com/goatnetwork/bridge-relayer/internal/http"
	"github.com/goatnetwork/bridge-relayer/internal/metrics"
	"github.com/goatnetwork/bridge-relayer/internal/monitor"
	"github.com/goatnetwork/bridge-relayer/internal/state"
	"github.com/goatnetwork/bridge-relayer/internal/submitter"
	"github.com/goatnetwork/bridge-relayer/internal/vault"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	DatabaseManager *db.DatabaseManager
	State           *state.State
	Metrics         *metrics.Metrics
	SolanaMonitor   *monitor.Monitor
	EthMonitor      *monitor.Monitor
	Submitter       *submitter.Submitter
	HTTPServer      *http.HTTPServer
}

func NewApplication() *Application {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}
	config.InitConfig()
	cfg := config.AppConfig

	var m *metrics.Metrics
	if cfg.EnableMetrics {
		m = metrics.New()
	}

	dbm := db.NewDatabaseManager()
	st := state.InitializeState(dbm)

	commitment, err := solanachain.ParseCommitment(cfg.SolanaCommitment)
	if err != nil {
		log.Fatalf("Failed to parse solana commitment: %v", err)
	}
	programID, err := solana.PublicKeyFromBase58(cfg.SolanaProgramID)
	if err != nil {
		log.Fatalf("Invalid SOLANA_BRIDGE_PROGRAM_ID %q: %v", cfg.SolanaProgramID, err)
	}
	solClient := solanachain.NewRPCClient(cfg.SolanaRPC)

	ethClient, err := ethereum.DialEthClient(cfg.EthRPC)
	if err != nil {
		log.Fatalf("Failed to dial eth client: %v", err)
	}
	bridgeContract := common.HexToAddress(cfg.EthBridgeContract)

	app := &Application{
		DatabaseManager: dbm,
		State:           st,
		Metrics:         m,
		HTTPServer:      http.NewHTTPServer(st, m, cfg.HTTPPort),
	}

	if cfg.EnableSolanaMonitor {
		observer := solanachain.NewObserver(solClient, programID, commitment, cfg.SolanaMaxSigs)
		app.SolanaMonitor = monitor.New(observer, st, st.EventBus, m, cfg.SolanaInterval)
	}
	if cfg.EnableEthMonitor {
		observer, err := ethereum.NewObserver(ethClient, ethereum.ObserverConfig{
			Contract:      bridgeContract,
			Confirmations: uint64(cfg.EthConfirmations),
			MaxBlockRange: uint64(cfg.EthMaxBlockRange),
			StartHeight:   cfg.EthStartHeight,
		})
		if err != nil {
			log.Fatalf("Failed to create eth observer: %v", err)
		}
		app.EthMonitor = monitor.New(observer, st, st.EventBus, m, cfg.EthInterval)
	}

	var releasers []chain.Releaser
	if cfg.EthRelayerPriKey != "" {
		key, err := ethereum.LoadPrivateKey(cfg.EthRelayerPriKey)
		if err != nil {
			log.Fatalf("Failed to load eth relayer key: %v", err)
		}
		releaser, err := ethereum.NewReleaser(ethClient, ethereum.ReleaserConfig{
			ChainID:            cfg.EthChainId,
			Contract:           bridgeContract,
			Confirmations:      uint64(cfg.EthConfirmations),
			GasPriceMultiplier: cfg.GasPriceMultiplier,
		}, key)
		if err != nil {
			log.Fatalf("Failed to create eth releaser: %v", err)
		}
		log.Infof("Eth releaser ready, from %s", releaser.From().Hex())
		releasers = append(releasers, releaser)
	} else {
		log.Warnf("ETH_RELAYER_PRIVATE_KEY not set, mints to Ethereum are disabled")
	}

	if cfg.SolanaKeypair != "" {
		key, err := solanachain.LoadKeypair(cfg.SolanaKeypair)
		if err != nil {
			log.Fatalf("Failed to load solana relayer keypair: %v", err)
		}
		releasers = append(releasers, solanachain.NewReleaser(solClient, solanaReleaserConfig(cfg, programID, commitment), key))
		log.Infof("Solana releaser ready, fee payer %s", key.PublicKey())
	} else {
		log.Warnf("SOLANA_RELAYER_KEYPAIR not set, unlocks on Solana are disabled")
	}

	collector := aggregator.New(cfg.Validators, aggregator.NewHTTPSigner(cfg.ValidatorSignTimeout, cfg.ValidatorJwtSecret))
	app.Submitter = submitter.New(st, st.EventBus, collector, submitter.Config{
		PollInterval: cfg.RelayerPollInterval,
		RetryDelay:   cfg.RelayerRetryDelay,
		MaxRetries:   cfg.RelayerMaxRetries,
	}, m, releasers...)

	return app
}

func solanaReleaserConfig(cfg config.Config, programID solana.PublicKey, commitment rpc.CommitmentType) solanachain.ReleaserConfig {
	configKey, err := solana.PublicKeyFromBase58(cfg.SolanaConfigKey)
	if err != nil {
		log.Fatalf("Invalid SOLANA_BRIDGE_CONFIG %q: %v", cfg.SolanaConfigKey, err)
	}
	mint, err := solana.PublicKeyFromBase58(cfg.SolanaTokenMint)
	if err != nil {
		log.Fatalf("Invalid SOLANA_TOKEN_MINT %q: %v", cfg.SolanaTokenMint, err)
	}

	var vaultToken solana.PublicKey
	if cfg.SolanaVaultToken != "" {
		vaultToken, err = solana.PublicKeyFromBase58(cfg.SolanaVaultToken)
	} else {
		var vaultAuthority solana.PublicKey
		vaultAuthority, _, err = vault.FindVaultAddress(configKey, programID)
		if err == nil {
			vaultToken, err = vault.FindTokenAccountAddress(vaultAuthority, mint)
		}
	}
	if err != nil {
		log.Fatalf("Failed to resolve vault token account: %v", err)
	}

	return solanachain.ReleaserConfig{
		ProgramID:  programID,
		ConfigKey:  configKey,
		VaultToken: vaultToken,
		TokenMint:  mint,
		Commitment: commitment,
	}
}

func (app *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	if app.SolanaMonitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.SolanaMonitor.Start(ctx)
		}()
	}

	if app.EthMonitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.EthMonitor.Start(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Submitter.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.HTTPServer.Start(ctx)
	}()

	<-stop
	log.Info("Receiving exit signal...")

	cancel()

	wg.Wait()
	app.DatabaseManager.Close()
	log.Info("Server stopped")
}

func main() {
	app := NewApplication()
	app.Run()
}
