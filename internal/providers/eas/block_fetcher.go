package eas

import (
	"context"
	"fmt"

	"github.com/attestream/indexer/internal/adapter"
	"github.com/attestream/indexer/internal/block"
)

// blockFetcher implements block.BlockFetcher over the raw Ethereum client
type blockFetcher struct {
	eth adapter.EthClient
}

func NewBlockFetcher(eth adapter.EthClient) block.BlockFetcher {
	return &blockFetcher{eth: eth}
}

// FetchLatestBlock fetches the latest block number from the chain
func (f *blockFetcher) FetchLatestBlock(ctx context.Context) (uint64, error) {
	header, err := f.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}
