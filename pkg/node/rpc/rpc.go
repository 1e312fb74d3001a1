// Package rpc implements the node.Handle contract over the daemon's
// JSON-RPC 1.0 HTTP endpoint.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/myntacore/mynta-chaos-go/pkg/cerrors"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
)

// Client talks to one daemon over HTTP
type Client struct {
	name       string
	endpoint   string
	peerAddr   string
	user       string
	password   string
	httpClient *http.Client
}

// Config carries the connection parameters of one daemon endpoint
type Config struct {
	Name     string
	Endpoint string
	// PeerAddress is the p2p address other nodes dial, distinct from the RPC endpoint
	PeerAddress string
	User        string
	Password    string
	Timeout     time.Duration
}

// New builds a client for a single daemon endpoint
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		name:       cfg.Name,
		endpoint:   cfg.Endpoint,
		peerAddr:   cfg.PeerAddress,
		user:       cfg.User,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type request struct {
	ID     int64         `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	payload, err := json.Marshal(request{ID: time.Now().UnixNano(), Method: method, Params: params})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: c.name, Reason: fmt.Sprintf("%s transport failed: %v", method, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: c.name, Reason: fmt.Sprintf("%s read failed: %v", method, err)}
	}

	var rpcResp response
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: c.name, Reason: fmt.Sprintf("%s decode failed: %v", method, err)}
	}
	if rpcResp.Error != nil {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: c.name, Reason: fmt.Sprintf("%s: %v", method, rpcResp.Error)}
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: c.name, Reason: fmt.Sprintf("%s result decode failed: %v", method, err)}
		}
	}
	return nil
}

// Name identifies the node in logs and diagnostics
func (c *Client) Name() string { return c.name }

// PeerAddress is the p2p address used by addnode/disconnectnode on other nodes
func (c *Client) PeerAddress() string { return c.peerAddr }

// Generate requests count new blocks paying to address
func (c *Client) Generate(ctx context.Context, count int, address string) ([]string, error) {
	var hashes []string
	err := c.call(ctx, "generatetoaddress", []interface{}{count, address}, &hashes)
	return hashes, err
}

// SendToAddress moves funds from the node wallet to address
func (c *Client) SendToAddress(ctx context.Context, address string, amount float64) (string, error) {
	var txid string
	err := c.call(ctx, "sendtoaddress", []interface{}{address, amount}, &txid)
	return txid, err
}

// GetNewAddress creates a fresh receiving address
func (c *Client) GetNewAddress(ctx context.Context) (string, error) {
	var address string
	err := c.call(ctx, "getnewaddress", nil, &address)
	return address, err
}

// AddNode connects this node to peer (onetry keeps it out of the retry list)
func (c *Client) AddNode(ctx context.Context, peer string) error {
	return c.call(ctx, "addnode", []interface{}{peer, "onetry"}, nil)
}

// DisconnectNode drops the connection to peer
func (c *Client) DisconnectNode(ctx context.Context, peer string) error {
	return c.call(ctx, "disconnectnode", []interface{}{peer}, nil)
}

// ProTxRegister registers masternode collateral, returns the proTx hash
func (c *Client) ProTxRegister(ctx context.Context, collateralTxid, fundAddress string) (string, error) {
	var proTxHash string
	err := c.call(ctx, "protx", []interface{}{"register", collateralTxid, 0, fundAddress}, &proTxHash)
	return proTxHash, err
}

// HTLCCreate opens a hash time locked contract paying receiver
func (c *Client) HTLCCreate(ctx context.Context, receiver string, amount float64, hashLock string, timeoutBlocks int) (*node.HTLC, error) {
	htlc := &node.HTLC{}
	err := c.call(ctx, "htlc", []interface{}{"create", receiver, amount, hashLock, timeoutBlocks}, htlc)
	if err != nil {
		return nil, err
	}
	return htlc, nil
}

// HTLCClaim settles an HTLC with its preimage
func (c *Client) HTLCClaim(ctx context.Context, txid, preimage string) (string, error) {
	var claimTxid string
	err := c.call(ctx, "htlc", []interface{}{"claim", txid, preimage}, &claimTxid)
	return claimTxid, err
}

// HTLCRefund returns HTLC funds to the sender after timeout
func (c *Client) HTLCRefund(ctx context.Context, txid string) (string, error) {
	var refundTxid string
	err := c.call(ctx, "htlc", []interface{}{"refund", txid}, &refundTxid)
	return refundTxid, err
}

// GetBestBlockHash returns the tip hash
func (c *Client) GetBestBlockHash(ctx context.Context) (string, error) {
	var hash string
	err := c.call(ctx, "getbestblockhash", nil, &hash)
	return hash, err
}

// GetBlockCount returns the best height
func (c *Client) GetBlockCount(ctx context.Context) (int64, error) {
	var count int64
	err := c.call(ctx, "getblockcount", nil, &count)
	return count, err
}

// GetBlock returns block details including the timestamp
func (c *Client) GetBlock(ctx context.Context, hash string) (*node.Block, error) {
	block := &node.Block{}
	err := c.call(ctx, "getblock", []interface{}{hash}, block)
	if err != nil {
		return nil, err
	}
	return block, nil
}

// GetBalance returns the spendable wallet balance
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	var balance float64
	err := c.call(ctx, "getbalance", nil, &balance)
	return balance, err
}

// GetRawMempool returns the pending transaction ids
func (c *Client) GetRawMempool(ctx context.Context) ([]string, error) {
	var txids []string
	err := c.call(ctx, "getrawmempool", nil, &txids)
	return txids, err
}

// GetConnectionCount returns the active peer connection count
func (c *Client) GetConnectionCount(ctx context.Context) (int, error) {
	var count int
	err := c.call(ctx, "getconnectioncount", nil, &count)
	return count, err
}

// GetMemoryInfo returns the daemon-reported memory usage
func (c *Client) GetMemoryInfo(ctx context.Context) (*node.MemoryInfo, error) {
	var raw struct {
		Locked node.MemoryInfo `json:"locked"`
	}
	err := c.call(ctx, "getmemoryinfo", nil, &raw)
	if err != nil {
		return nil, err
	}
	return &raw.Locked, nil
}
