package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var AppConfig Config

// ValidatorConfig is one entry of the validator roster.
// Endpoint is optional, validators without one are never asked to sign.
type ValidatorConfig struct {
	Name         string `mapstructure:"name" json:"name"`
	EthAddress   string `mapstructure:"eth_address" json:"eth_address"`
	SolPublicKey string `mapstructure:"sol_public_key" json:"sol_public_key"`
	Endpoint     string `mapstructure:"endpoint" json:"endpoint,omitempty"`
}

func setDefaults() {
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DIR", "/app/db")
	viper.SetDefault("DB_MAX_CONNECTIONS", 10)

	viper.SetDefault("SOLANA_RPC", "https://api.devnet.solana.com")
	viper.SetDefault("SOLANA_BRIDGE_PROGRAM_ID", "")
	viper.SetDefault("SOLANA_BRIDGE_CONFIG", "")
	viper.SetDefault("SOLANA_VAULT_TOKEN_ACCOUNT", "")
	viper.SetDefault("SOLANA_TOKEN_MINT", "")
	viper.SetDefault("SOLANA_COMMITMENT", "finalized")
	viper.SetDefault("SOLANA_REQUEST_INTERVAL", "5s")
	viper.SetDefault("SOLANA_MAX_SIGNATURES", 1000)
	viper.SetDefault("SOLANA_RELAYER_KEYPAIR", "")

	viper.SetDefault("ETH_RPC", "https://rpc.sepolia.org")
	viper.SetDefault("ETH_CHAIN_ID", "11155111")
	viper.SetDefault("ETH_BRIDGE_CONTRACT", "")
	viper.SetDefault("ETH_CONFIRMATIONS", 12)
	viper.SetDefault("ETH_START_HEIGHT", 0)
	viper.SetDefault("ETH_MAX_BLOCK_RANGE", 500)
	viper.SetDefault("ETH_REQUEST_INTERVAL", "5s")
	viper.SetDefault("ETH_RELAYER_PRIVATE_KEY", "")

	viper.SetDefault("RELAYER_POLL_INTERVAL", "5s")
	viper.SetDefault("RELAYER_MAX_RETRIES", 3)
	viper.SetDefault("RELAYER_RETRY_DELAY", "2s")
	viper.SetDefault("RELAYER_GAS_PRICE_MULTIPLIER", 1.2)

	viper.SetDefault("VALIDATORS_FILE", "")
	viper.SetDefault("VALIDATORS", "")
	viper.SetDefault("VALIDATOR_SIGN_TIMEOUT", "30s")
	viper.SetDefault("VALIDATOR_JWT_SECRET", "")

	viper.SetDefault("ENABLE_SOLANA_MONITOR", true)
	viper.SetDefault("ENABLE_ETH_MONITOR", true)
	viper.SetDefault("ENABLE_METRICS", true)
}

// InitConfig loads AppConfig from the environment and sets up logrus.
// A configuration error is the only fatal error of the relayer.
func InitConfig() {
	cfg, err := LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg

	logrus.Infof("Init config, SolanaRPC %s, EthRPC %s, Validators %d, PollInterval %v",
		AppConfig.SolanaRPC, AppConfig.EthRPC, len(AppConfig.Validators), AppConfig.RelayerPollInterval)

	// logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(AppConfig.LogLevel)
}

// LoadConfig reads every key from viper (environment first, then defaults).
func LoadConfig() (Config, error) {
	viper.AutomaticEnv()
	setDefaults()

	logLevel, err := logrus.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if err != nil {
		return Config{}, fmt.Errorf("invalid log level: %w", err)
	}

	ethChainId, err := strconv.ParseInt(viper.GetString("ETH_CHAIN_ID"), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse eth chain id: %w", err)
	}

	validators, err := loadValidators(viper.GetString("VALIDATORS_FILE"), viper.GetString("VALIDATORS"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTPPort:          viper.GetString("HTTP_PORT"),
		LogLevel:          logLevel,
		DbDir:             viper.GetString("DB_DIR"),
		DbMaxConnections:  viper.GetInt("DB_MAX_CONNECTIONS"),
		SolanaRPC:         viper.GetString("SOLANA_RPC"),
		SolanaProgramID:   viper.GetString("SOLANA_BRIDGE_PROGRAM_ID"),
		SolanaConfigKey:   viper.GetString("SOLANA_BRIDGE_CONFIG"),
		SolanaVaultToken:  viper.GetString("SOLANA_VAULT_TOKEN_ACCOUNT"),
		SolanaTokenMint:   viper.GetString("SOLANA_TOKEN_MINT"),
		SolanaCommitment:  viper.GetString("SOLANA_COMMITMENT"),
		SolanaInterval:    viper.GetDuration("SOLANA_REQUEST_INTERVAL"),
		SolanaMaxSigs:     viper.GetInt("SOLANA_MAX_SIGNATURES"),
		SolanaKeypair:     viper.GetString("SOLANA_RELAYER_KEYPAIR"),
		EthRPC:            viper.GetString("ETH_RPC"),
		EthChainId:        big.NewInt(ethChainId),
		EthBridgeContract: viper.GetString("ETH_BRIDGE_CONTRACT"),
		EthConfirmations:  viper.GetInt("ETH_CONFIRMATIONS"),
		EthStartHeight:    viper.GetUint64("ETH_START_HEIGHT"),
		EthMaxBlockRange:  viper.GetInt("ETH_MAX_BLOCK_RANGE"),
		EthInterval:       viper.GetDuration("ETH_REQUEST_INTERVAL"),
		EthRelayerPriKey:  viper.GetString("ETH_RELAYER_PRIVATE_KEY"),

		RelayerPollInterval: viper.GetDuration("RELAYER_POLL_INTERVAL"),
		RelayerMaxRetries:   viper.GetInt("RELAYER_MAX_RETRIES"),
		RelayerRetryDelay:   viper.GetDuration("RELAYER_RETRY_DELAY"),
		GasPriceMultiplier:  viper.GetFloat64("RELAYER_GAS_PRICE_MULTIPLIER"),

		Validators:           validators,
		ValidatorSignTimeout: viper.GetDuration("VALIDATOR_SIGN_TIMEOUT"),
		ValidatorJwtSecret:   viper.GetString("VALIDATOR_JWT_SECRET"),

		EnableSolanaMonitor: viper.GetBool("ENABLE_SOLANA_MONITOR"),
		EnableEthMonitor:    viper.GetBool("ENABLE_ETH_MONITOR"),
		EnableMetrics:       viper.GetBool("ENABLE_METRICS"),
	}

	if cfg.EthMaxBlockRange <= 0 {
		return Config{}, fmt.Errorf("ETH_MAX_BLOCK_RANGE must be positive, got %d", cfg.EthMaxBlockRange)
	}
	if cfg.EthConfirmations < 0 {
		return Config{}, fmt.Errorf("ETH_CONFIRMATIONS must not be negative, got %d", cfg.EthConfirmations)
	}
	if cfg.GasPriceMultiplier < 1 {
		logrus.Warnf("Gas price multiplier %.2f is below 1, set to 1", cfg.GasPriceMultiplier)
		cfg.GasPriceMultiplier = 1
	}
	if cfg.EthBridgeContract != "" && !common.IsHexAddress(cfg.EthBridgeContract) {
		return Config{}, fmt.Errorf("invalid ETH_BRIDGE_CONTRACT %q", cfg.EthBridgeContract)
	}
	return cfg, nil
}

// loadValidators reads the roster from a file (json, yaml or toml, key "validators")
// or from an inline JSON array. The file wins when both are set.
func loadValidators(file string, inline string) ([]ValidatorConfig, error) {
	var validators []ValidatorConfig
	switch {
	case file != "":
		v := viper.New()
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read validators file %s: %w", file, err)
		}
		if err := v.UnmarshalKey("validators", &validators); err != nil {
			return nil, fmt.Errorf("decode validators file %s: %w", file, err)
		}
	case inline != "":
		if err := json.Unmarshal([]byte(inline), &validators); err != nil {
			return nil, fmt.Errorf("decode VALIDATORS: %w", err)
		}
	}

	names := make(map[string]struct{}, len(validators))
	for i, val := range validators {
		if val.Name == "" {
			return nil, fmt.Errorf("validator %d has no name", i)
		}
		if _, ok := names[val.Name]; ok {
			return nil, fmt.Errorf("duplicate validator name %s", val.Name)
		}
		names[val.Name] = struct{}{}
		if val.EthAddress != "" && !common.IsHexAddress(val.EthAddress) {
			return nil, fmt.Errorf("validator %s has invalid eth address %q", val.Name, val.EthAddress)
		}
		if val.SolPublicKey != "" {
			raw, err := base58.Decode(val.SolPublicKey)
			if err != nil || len(raw) != 32 {
				return nil, fmt.Errorf("validator %s has invalid solana public key %q", val.Name, val.SolPublicKey)
			}
		}
	}
	return validators, nil
}

type Config struct {
	HTTPPort         string
	LogLevel         logrus.Level
	DbDir            string
	DbMaxConnections int

	SolanaRPC        string
	SolanaProgramID  string
	SolanaConfigKey  string
	SolanaVaultToken string
	SolanaTokenMint  string
	SolanaCommitment string
	SolanaInterval   time.Duration
	SolanaMaxSigs    int
	SolanaKeypair    string

	EthRPC            string
	EthChainId        *big.Int
	EthBridgeContract string
	EthConfirmations  int
	EthStartHeight    uint64
	EthMaxBlockRange  int
	EthInterval       time.Duration
	EthRelayerPriKey  string

	RelayerPollInterval time.Duration
	RelayerMaxRetries   int
	RelayerRetryDelay   time.Duration
	GasPriceMultiplier  float64

	Validators           []ValidatorConfig
	ValidatorSignTimeout time.Duration
	ValidatorJwtSecret   string

	EnableSolanaMonitor bool
	EnableEthMonitor    bool
	EnableMetrics       bool
}
