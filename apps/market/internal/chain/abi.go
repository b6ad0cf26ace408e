package chain

// ERC721ABI covers the ownership and operator-approval reads.
const ERC721ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "ownerOf",
		"outputs": [{"name": "owner", "type": "address"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "operator", "type": "address"}
		],
		"name": "isApprovedForAll",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	}
]`

// ERC20ABI for allowance and balanceOf
const ERC20ABI = `[
	{
		"constant": true,
		"inputs": [
			{"name": "_owner", "type": "address"},
			{"name": "_spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "remaining", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"type": "function"
	}
]`

// ProxyRegistryABI maps a user to their authenticated proxy.
const ProxyRegistryABI = `[
	{
		"constant": true,
		"inputs": [{"name": "", "type": "address"}],
		"name": "proxies",
		"outputs": [{"name": "", "type": "address"}],
		"type": "function"
	}
]`

// ExchangeABI is the settlement contract's read-only order check.
const ExchangeABI = `[
	{
		"inputs": [
			{
				"components": [
					{"name": "exchange", "type": "address"},
					{"name": "maker", "type": "address"},
					{"name": "taker", "type": "address"},
					{"name": "saleSide", "type": "uint8"},
					{"name": "saleKind", "type": "uint8"},
					{"name": "target", "type": "address"},
					{"name": "paymentToken", "type": "address"},
					{"name": "callData", "type": "bytes"},
					{"name": "replacementPattern", "type": "bytes"},
					{"name": "staticTarget", "type": "address"},
					{"name": "staticExtra", "type": "bytes"},
					{"name": "basePrice", "type": "uint256"},
					{"name": "endPrice", "type": "uint256"},
					{"name": "listingTime", "type": "uint256"},
					{"name": "expirationTime", "type": "uint256"},
					{"name": "salt", "type": "bytes32"}
				],
				"name": "order",
				"type": "tuple"
			},
			{
				"components": [
					{"name": "r", "type": "bytes32"},
					{"name": "s", "type": "bytes32"},
					{"name": "v", "type": "uint8"}
				],
				"name": "sig",
				"type": "tuple"
			}
		],
		"name": "validateOrder",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	}
]`
