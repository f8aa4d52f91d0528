package mints

const permitBatchComponents = `[
	{"name": "owner", "type": "address"},
	{"name": "to", "type": "address"},
	{"name": "tokenIds", "type": "uint256[]"},
	{"name": "quantities", "type": "uint256[]"},
	{"name": "safeTransferData", "type": "bytes"},
	{"name": "nonce", "type": "uint256"},
	{"name": "deadline", "type": "uint256"}
]`

// Mints1155ABI covers the credit-token contract functions used here.
var Mints1155ABI = []byte(`[
	{
		"type": "function",
		"name": "tokenPrice",
		"stateMutability": "view",
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "transferBatchToManagerAndCall",
		"stateMutability": "payable",
		"inputs": [
			{"name": "tokenIds", "type": "uint256[]"},
			{"name": "quantities", "type": "uint256[]"},
			{"name": "call", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "permitSafeTransfer",
		"stateMutability": "nonpayable",
		"inputs": [
			{
				"name": "permit",
				"type": "tuple",
				"internalType": "struct PermitSafeTransfer",
				"components": [
					{"name": "owner", "type": "address"},
					{"name": "to", "type": "address"},
					{"name": "tokenId", "type": "uint256"},
					{"name": "quantity", "type": "uint256"},
					{"name": "safeTransferData", "type": "bytes"},
					{"name": "nonce", "type": "uint256"},
					{"name": "deadline", "type": "uint256"}
				]
			},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "permitSafeTransferBatch",
		"stateMutability": "nonpayable",
		"inputs": [
			{
				"name": "permit",
				"type": "tuple",
				"internalType": "struct PermitSafeTransferBatch",
				"components": ` + permitBatchComponents + `
			},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	},
	{"type": "error", "name": "ERC2612ExpiredSignature", "inputs": [{"name": "deadline", "type": "uint256"}]},
	{"type": "error", "name": "InvalidSignature", "inputs": []},
	{"type": "error", "name": "InvalidAccountNonce", "inputs": [{"name": "account", "type": "address"}, {"name": "currentNonce", "type": "uint256"}]}
]`)

// MintsManagerABI covers the calls the manager executes on receipt of
// credit tokens.
var MintsManagerABI = []byte(`[
	{
		"type": "function",
		"name": "collect",
		"stateMutability": "payable",
		"inputs": [
			{"name": "zoraCreator1155Contract", "type": "address"},
			{"name": "minter", "type": "address"},
			{"name": "zoraCreator1155TokenId", "type": "uint256"},
			{
				"name": "collectMintArguments",
				"type": "tuple",
				"internalType": "struct CollectMintArguments",
				"components": [
					{"name": "mintRewardsRecipients", "type": "address[]"},
					{"name": "minterArguments", "type": "bytes"},
					{"name": "mintComment", "type": "string"}
				]
			}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "collectPremint",
		"stateMutability": "payable",
		"inputs": [
			{
				"name": "contractConfig",
				"type": "tuple",
				"internalType": "struct ContractWithAdditionalAdminsCreationConfig",
				"components": [
					{"name": "contractAdmin", "type": "address"},
					{"name": "contractURI", "type": "string"},
					{"name": "contractName", "type": "string"},
					{"name": "additionalAdmins", "type": "address[]"}
				]
			},
			{"name": "tokenContract", "type": "address"},
			{
				"name": "premintConfig",
				"type": "tuple",
				"internalType": "struct PremintConfigEncoded",
				"components": [
					{"name": "uid", "type": "uint32"},
					{"name": "version", "type": "uint32"},
					{"name": "deleted", "type": "bool"},
					{"name": "tokenConfig", "type": "bytes"},
					{"name": "premintConfigVersion", "type": "bytes32"}
				]
			},
			{"name": "signature", "type": "bytes"},
			{
				"name": "mintArguments",
				"type": "tuple",
				"internalType": "struct MintArguments",
				"components": [
					{"name": "mintRecipient", "type": "address"},
					{"name": "mintComment", "type": "string"},
					{"name": "mintRewardsRecipients", "type": "address[]"}
				]
			},
			{"name": "firstMinter", "type": "address"},
			{"name": "signerContract", "type": "address"}
		],
		"outputs": []
	}
]`)

// UnwrapperABI covers the unwrap-and-call contract.
var UnwrapperABI = []byte(`[
	{
		"type": "function",
		"name": "permitWithAdditionalValue",
		"stateMutability": "payable",
		"inputs": [
			{
				"name": "permit",
				"type": "tuple",
				"internalType": "struct PermitSafeTransferBatch",
				"components": ` + permitBatchComponents + `
			},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	},
	{"type": "error", "name": "CallFailed", "inputs": [{"name": "reason", "type": "bytes"}]},
	{"type": "error", "name": "InsufficientValue", "inputs": [{"name": "required", "type": "uint256"}, {"name": "provided", "type": "uint256"}]}
]`)
