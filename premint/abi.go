package premint

// PremintExecutorABI covers the premint executor functions used here.
var PremintExecutorABI = []byte(`[
	{
		"type": "function",
		"name": "getContractAddress",
		"stateMutability": "view",
		"inputs": [
			{
				"name": "contractConfig",
				"type": "tuple",
				"internalType": "struct ContractCreationConfig",
				"components": [
					{"name": "contractAdmin", "type": "address"},
					{"name": "contractURI", "type": "string"},
					{"name": "contractName", "type": "string"}
				]
			}
		],
		"outputs": [{"name": "", "type": "address"}]
	},
	{
		"type": "function",
		"name": "getContractWithAdditionalAdminsAddress",
		"stateMutability": "view",
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
			}
		],
		"outputs": [{"name": "", "type": "address"}]
	},
	{
		"type": "function",
		"name": "isAuthorizedToCreatePremintWithAdditionalAdmins",
		"stateMutability": "view",
		"inputs": [
			{"name": "signer", "type": "address"},
			{"name": "premintContractConfigContractAdmin", "type": "address"},
			{"name": "contractAddress", "type": "address"},
			{"name": "additionalAdmins", "type": "address[]"}
		],
		"outputs": [{"name": "isAuthorized", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "mintFee",
		"stateMutability": "view",
		"inputs": [{"name": "collectionAddress", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "premint",
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
			{"name": "premintCollection", "type": "address"},
			{
				"name": "encodedPremintConfig",
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
			{"name": "quantityToMint", "type": "uint256"},
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
		"outputs": [
			{
				"name": "premintResult",
				"type": "tuple",
				"internalType": "struct PremintResult",
				"components": [
					{"name": "contractAddress", "type": "address"},
					{"name": "tokenId", "type": "uint256"},
					{"name": "createdNewContract", "type": "bool"}
				]
			}
		]
	}
]`)
