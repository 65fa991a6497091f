package domain

const (
	// EAS v0.26 registry on Ethereum mainnet
	DEFAULT_EAS_CONTRACT = "0xA1207F3BBa224E2c9c3c6D5aF63D0eb1582Ce587"

	// Block the registry contract was deployed at; checkpoints default to this
	// when no row exists for a stream yet
	DEFAULT_DEPLOYMENT_BLOCK = 16756720

	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"
)
