// Package node defines the command/query contract of one running Mynta
// daemon. The orchestrator treats the daemon as an opaque black box behind
// this interface; it never assumes a call's side effect occurred unless the
// call returned success.
package node

import "context"

// Block holds the subset of getblock output the orchestrator consumes
type Block struct {
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
	Time   int64  `json:"time"`
}

// MemoryInfo holds the daemon-reported memory usage, in bytes
type MemoryInfo struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
}

// HTLC holds the outcome of an htlc create call
type HTLC struct {
	Txid         string `json:"txid"`
	Address      string `json:"htlcAddress"`
	RedeemScript string `json:"redeemScript"`
}

// Handle is a thin proxy over one running node process
type Handle interface {
	// Name identifies the node in logs and diagnostics
	Name() string
	// PeerAddress is the address other nodes use to (dis)connect this node
	PeerAddress() string

	// mutating commands
	Generate(ctx context.Context, count int, address string) ([]string, error)
	SendToAddress(ctx context.Context, address string, amount float64) (string, error)
	GetNewAddress(ctx context.Context) (string, error)
	AddNode(ctx context.Context, peer string) error
	DisconnectNode(ctx context.Context, peer string) error
	ProTxRegister(ctx context.Context, collateralTxid, fundAddress string) (string, error)
	HTLCCreate(ctx context.Context, receiver string, amount float64, hashLock string, timeoutBlocks int) (*HTLC, error)
	HTLCClaim(ctx context.Context, txid, preimage string) (string, error)
	HTLCRefund(ctx context.Context, txid string) (string, error)

	// queries
	GetBestBlockHash(ctx context.Context) (string, error)
	GetBlockCount(ctx context.Context) (int64, error)
	GetBlock(ctx context.Context, hash string) (*Block, error)
	GetBalance(ctx context.Context) (float64, error)
	GetRawMempool(ctx context.Context) ([]string, error)
	GetConnectionCount(ctx context.Context) (int, error)
	GetMemoryInfo(ctx context.Context) (*MemoryInfo, error)
}
