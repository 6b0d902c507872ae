package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// BridgeContractABI is the subset of the wrapped token bridge the relayer talks to
const BridgeContractABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
			{"indexed": false, "internalType": "string", "name": "solanaAddress", "type": "string"},
			{"indexed": false, "internalType": "uint64", "name": "nonce", "type": "uint64"}
		],
		"name": "TokensBurned",
		"type": "event"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "recipient", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "uint64", "name": "nonce", "type": "uint64"},
			{"internalType": "string", "name": "originSender", "type": "string"},
			{"internalType": "bytes[]", "name": "signatures", "type": "bytes[]"}
		],
		"name": "mintWrapped",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const (
	TokensBurnedEvent = "TokensBurned"
	MintWrappedMethod = "mintWrapped"
)

// TokensBurnedTopic is topic0 of TokensBurned(address,uint256,string,uint64)
var TokensBurnedTopic = crypto.Keccak256Hash([]byte("TokensBurned(address,uint256,string,uint64)"))

func ParseBridgeABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(BridgeContractABI))
}
