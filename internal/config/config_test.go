package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, int64(11155111), cfg.EthChainId.Int64())
	assert.Equal(t, 12, cfg.EthConfirmations)
	assert.Equal(t, 3, cfg.RelayerMaxRetries)
	assert.Equal(t, 5*time.Second, cfg.RelayerPollInterval)
	assert.Equal(t, 2*time.Second, cfg.RelayerRetryDelay)
	assert.InDelta(t, 1.2, cfg.GasPriceMultiplier, 1e-9)
	assert.Equal(t, "finalized", cfg.SolanaCommitment)
	assert.Empty(t, cfg.Validators)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ETH_CONFIRMATIONS", "3")
	t.Setenv("RELAYER_POLL_INTERVAL", "1s")
	t.Setenv("VALIDATORS", `[
		{"name":"v1","eth_address":"0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0","sol_public_key":"11111111111111111111111111111111","endpoint":"http://v1:9000"},
		{"name":"v2","eth_address":"0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb1"}
	]`)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 3, cfg.EthConfirmations)
	assert.Equal(t, time.Second, cfg.RelayerPollInterval)
	require.Len(t, cfg.Validators, 2)
	assert.Equal(t, "http://v1:9000", cfg.Validators[0].Endpoint)
	assert.Empty(t, cfg.Validators[1].Endpoint)
}

func TestLoadValidatorsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "validators.yaml")
	content := `validators:
  - name: alpha
    eth_address: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"
    sol_public_key: "11111111111111111111111111111111"
    endpoint: "http://alpha:9000"
  - name: beta
    eth_address: "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb1"
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	validators, err := loadValidators(file, `[{"name":"ignored"}]`)
	require.NoError(t, err)
	require.Len(t, validators, 2)
	assert.Equal(t, "alpha", validators[0].Name)
	assert.Equal(t, "http://alpha:9000", validators[0].Endpoint)
}

func TestLoadValidatorsRejectsBadRoster(t *testing.T) {
	_, err := loadValidators("", `[{"name":"a"},{"name":"a"}]`)
	assert.ErrorContains(t, err, "duplicate validator")

	_, err = loadValidators("", `[{"name":"a","eth_address":"nothex"}]`)
	assert.ErrorContains(t, err, "invalid eth address")

	_, err = loadValidators("", `[{"name":"a","sol_public_key":"0OIl"}]`)
	assert.ErrorContains(t, err, "invalid solana public key")
}

func TestLoadConfigInvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "invalid log level")
}

func TestLoadConfigChainKeys(t *testing.T) {
	t.Setenv("SOLANA_BRIDGE_PROGRAM_ID", "11111111111111111111111111111111")
	t.Setenv("SOLANA_VAULT_TOKEN_ACCOUNT", "So11111111111111111111111111111111111111112")
	t.Setenv("ETH_BRIDGE_CONTRACT", "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0")
	t.Setenv("ETH_START_HEIGHT", "18000000")
	t.Setenv("ETH_REQUEST_INTERVAL", "12s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "11111111111111111111111111111111", cfg.SolanaProgramID)
	assert.Equal(t, "So11111111111111111111111111111111111111112", cfg.SolanaVaultToken)
	assert.Equal(t, "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0", cfg.EthBridgeContract)
	assert.Equal(t, uint64(18_000_000), cfg.EthStartHeight)
	assert.Equal(t, 12*time.Second, cfg.EthInterval)

	t.Setenv("ETH_BRIDGE_CONTRACT", "0x1234")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "invalid ETH_BRIDGE_CONTRACT")
}
