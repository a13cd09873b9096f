package chain

import "github.com/ethereum/go-ethereum/common"

// NetworkConfig carries every chain-specific parameter the adapter needs.
// It is passed explicitly into constructors; nothing is read from the
// environment at package level.
type NetworkConfig struct {
	// Name human-readable network name.
	Name string
	// ChainID EIP-155 chain id used for transaction signing.
	ChainID int64
	// RPCURL JSON-RPC endpoint.
	RPCURL string
	// Router MemeSwap router contract, the spender of pool trades.
	Router common.Address
	// Factory MemeSwap factory contract, resolves pair addresses.
	Factory common.Address
	// Tokens maps asset symbols to token contracts. Native assets need no entry.
	Tokens map[string]common.Address
}

// Known MemeCore networks, mirroring the deployment targets of the product.
var (
	// Mainnet MemeCore mainnet.
	Mainnet = NetworkConfig{
		Name:    "MemeCore Mainnet",
		ChainID: 4352,
		RPCURL:  "https://rpc.memecore.net/",
	}
	// Insectarium MemeCore Insectarium testnet, the default deploy target.
	Insectarium = NetworkConfig{
		Name:    "MemeCore Insectarium Testnet",
		ChainID: 43522,
		RPCURL:  "https://rpc.insectarium.memecore.net/",
	}
	// Formicarium MemeCore Formicarium testnet.
	Formicarium = NetworkConfig{
		Name:    "MemeCore Formicarium Testnet",
		ChainID: 43521,
		RPCURL:  "https://rpc.formicarium.memecore.net/",
	}
)

// NetworkByName resolves a named network, defaulting to Insectarium.
func NetworkByName(name string) NetworkConfig {
	switch name {
	case "mainnet":
		return Mainnet
	case "formicarium":
		return Formicarium
	default:
		return Insectarium
	}
}
