package eas

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/attestream/indexer/internal/adapter"
	"github.com/attestream/indexer/internal/domain"
	"github.com/attestream/indexer/internal/logger"
)

// Event signatures emitted by the attestation registry
var (
	// Attested(address indexed recipient, address indexed attester, bytes32 uid, bytes32 indexed schemaUID)
	attestedEventSignature = crypto.Keccak256Hash([]byte("Attested(address,address,bytes32,bytes32)"))

	// Revoked(address indexed recipient, address indexed attester, bytes32 uid, bytes32 indexed schemaUID)
	revokedEventSignature = crypto.Keccak256Hash([]byte("Revoked(address,address,bytes32,bytes32)"))
)

// getAttestationABI is the registry's point-lookup function
const getAttestationABI = `[{"inputs":[{"internalType":"bytes32","name":"uid","type":"bytes32"}],"name":"getAttestation","outputs":[{"components":[{"internalType":"bytes32","name":"uid","type":"bytes32"},{"internalType":"bytes32","name":"schema","type":"bytes32"},{"internalType":"uint64","name":"time","type":"uint64"},{"internalType":"uint64","name":"expirationTime","type":"uint64"},{"internalType":"uint64","name":"revocationTime","type":"uint64"},{"internalType":"bytes32","name":"refUID","type":"bytes32"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"address","name":"attester","type":"address"},{"internalType":"bool","name":"revocable","type":"bool"},{"internalType":"bytes","name":"data","type":"bytes"}],"internalType":"struct Attestation","name":"","type":"tuple"}],"stateMutability":"view","type":"function"}]`

// registryABI is parsed once; GetAttestation sits inside the resolver's
// retry loop and must not pay the JSON parse on every attempt
var registryABI = mustParseABI(getAttestationABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// attestationRecord mirrors the registry's Attestation struct for ABI unpacking
type attestationRecord struct {
	Uid            [32]byte
	Schema         [32]byte
	Time           uint64
	ExpirationTime uint64
	RevocationTime uint64
	RefUID         [32]byte
	Recipient      common.Address
	Attester       common.Address
	Revocable      bool
	Data           []byte
}

// Client wraps the registry contract on top of a raw Ethereum client
type Client interface {
	// FilterAttested returns Attested logs in [fromBlock, toBlock] for the given schema UIDs
	FilterAttested(ctx context.Context, fromBlock, toBlock uint64, schemaUIDs []common.Hash) ([]domain.LogEvent, error)

	// FilterRevoked returns Revoked logs in [fromBlock, toBlock] for the given schema UIDs
	FilterRevoked(ctx context.Context, fromBlock, toBlock uint64, schemaUIDs []common.Hash) ([]domain.LogEvent, error)

	// SubscribeLogs subscribes to both Attested and Revoked logs for the given schema UIDs
	SubscribeLogs(ctx context.Context, schemaUIDs []common.Hash, ch chan<- types.Log) (ethereum.Subscription, error)

	// GetAttestation performs the registry's point lookup by uid. The returned
	// record has a zero UID while the registry's read path still lags the log
	// stream; callers are expected to retry.
	GetAttestation(ctx context.Context, uid common.Hash) (*domain.Attestation, error)

	// ParseLog parses a raw registry log into a LogEvent
	ParseLog(vLog types.Log) (*domain.LogEvent, error)

	// Close closes the underlying connection
	Close()
}

type client struct {
	contract common.Address
	eth      adapter.EthClient
}

// NewClient creates a registry client bound to the given contract address
func NewClient(contract common.Address, eth adapter.EthClient) Client {
	return &client{contract: contract, eth: eth}
}

// FilterAttested returns Attested logs in [fromBlock, toBlock] for the given schema UIDs
func (c *client) FilterAttested(ctx context.Context, fromBlock, toBlock uint64, schemaUIDs []common.Hash) ([]domain.LogEvent, error) {
	return c.filterEvents(ctx, attestedEventSignature, fromBlock, toBlock, schemaUIDs)
}

// FilterRevoked returns Revoked logs in [fromBlock, toBlock] for the given schema UIDs
func (c *client) FilterRevoked(ctx context.Context, fromBlock, toBlock uint64, schemaUIDs []common.Hash) ([]domain.LogEvent, error) {
	return c.filterEvents(ctx, revokedEventSignature, fromBlock, toBlock, schemaUIDs)
}

func (c *client) filterEvents(ctx context.Context, signature common.Hash, fromBlock, toBlock uint64, schemaUIDs []common.Hash) ([]domain.LogEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.contract},
		Topics: [][]common.Hash{
			{signature},
			nil, // any recipient
			nil, // any attester
			schemaUIDs,
		},
	}

	logs, err := c.getLogsWithRetry(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", err)
	}

	events := make([]domain.LogEvent, 0, len(logs))
	for _, vLog := range logs {
		event, err := c.ParseLog(vLog)
		if err != nil {
			// Log error but continue processing
			logger.WarnCtx(ctx, "Failed to parse registry log",
				zap.Error(err),
				zap.String("tx_hash", vLog.TxHash.Hex()))
			continue
		}
		events = append(events, *event)
	}

	return events, nil
}

// getLogsWithRetry fetches logs for the query range, halving the chunk size
// whenever the provider rejects a range for returning too many results
func (c *client) getLogsWithRetry(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	from := query.FromBlock.Uint64()
	to := query.ToBlock.Uint64()
	if from > to {
		return nil, nil
	}

	stepSize := to - from + 1
	var allLogs []types.Log
	currentFrom := from

	for currentFrom <= to {
		currentTo := currentFrom + stepSize - 1
		if currentTo > to {
			currentTo = to
		}

		chunk := query
		chunk.FromBlock = new(big.Int).SetUint64(currentFrom)
		chunk.ToBlock = new(big.Int).SetUint64(currentTo)

		logs, err := c.eth.FilterLogs(timeoutCtx, chunk)
		if err == nil {
			allLogs = append(allLogs, logs...)
			currentFrom = currentTo + 1
			continue
		}

		if !isTooManyResultsError(err) {
			return nil, err
		}

		if stepSize <= 1 {
			return nil, fmt.Errorf("provider rejected single-block range %d: %w", currentFrom, err)
		}
		stepSize = stepSize / 2

		logger.Warn("Too many results, reducing step size",
			zap.Uint64("newStepSize", stepSize),
			zap.Uint64("fromBlock", currentFrom),
			zap.Uint64("toBlock", currentTo))
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum")
}

// SubscribeLogs subscribes to both Attested and Revoked logs for the given schema UIDs
func (c *client) SubscribeLogs(ctx context.Context, schemaUIDs []common.Hash, ch chan<- types.Log) (ethereum.Subscription, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics: [][]common.Hash{
			{attestedEventSignature, revokedEventSignature},
			nil,
			nil,
			schemaUIDs,
		},
	}
	return c.eth.SubscribeFilterLogs(ctx, query, ch)
}

// GetAttestation performs the registry's point lookup by uid
func (c *client) GetAttestation(ctx context.Context, uid common.Hash) (*domain.Attestation, error) {
	data, err := registryABI.Pack("getAttestation", [32]byte(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to pack data: %w", err)
	}

	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call contract: %w", err)
	}

	out, err := registryABI.Unpack("getAttestation", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}

	record := abi.ConvertType(out[0], new(attestationRecord)).(*attestationRecord)

	return &domain.Attestation{
		UID:            common.Hash(record.Uid),
		SchemaUID:      common.Hash(record.Schema),
		Time:           record.Time,
		ExpirationTime: record.ExpirationTime,
		RevocationTime: record.RevocationTime,
		RefUID:         common.Hash(record.RefUID),
		Recipient:      record.Recipient,
		Attester:       record.Attester,
		Revocable:      record.Revocable,
		Data:           record.Data,
	}, nil
}

// ParseLog parses a raw registry log into a LogEvent
func (c *client) ParseLog(vLog types.Log) (*domain.LogEvent, error) {
	if len(vLog.Topics) != 4 {
		return nil, fmt.Errorf("invalid registry event: expected 4 topics, got %d", len(vLog.Topics))
	}
	if len(vLog.Data) < 32 {
		return nil, fmt.Errorf("invalid registry event: insufficient data")
	}

	var kind domain.EventKind
	switch vLog.Topics[0] {
	case attestedEventSignature:
		kind = domain.EventAttested
	case revokedEventSignature:
		kind = domain.EventRevoked
	default:
		return nil, fmt.Errorf("unknown event signature: %s", vLog.Topics[0].Hex())
	}

	return &domain.LogEvent{
		Kind:        kind,
		UID:         common.BytesToHash(vLog.Data[0:32]),
		SchemaUID:   vLog.Topics[3],
		Recipient:   common.BytesToAddress(vLog.Topics[1].Bytes()),
		Attester:    common.BytesToAddress(vLog.Topics[2].Bytes()),
		BlockNumber: vLog.BlockNumber,
		TxHash:      vLog.TxHash.Hex(),
		LogIndex:    vLog.Index,
	}, nil
}

// Close closes the underlying connection
func (c *client) Close() {
	c.eth.Close()
}
