// Package simnode provides an in-process implementation of the node.Handle
// contract: a toy chain with longest-chain adoption, per-node wallets,
// mempools and a peer graph. It backs dry runs and the test suite, where
// spawning real daemons is not an option.
package simnode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/myntacore/mynta-chaos-go/pkg/cerrors"
	"github.com/myntacore/mynta-chaos-go/pkg/node"
)

const blockReward = 5000.0

type block struct {
	node.Block
	txids []string
}

// Network owns the whole simulated cluster behind a single mutex, which
// makes every node operation linearizable with respect to every other.
type Network struct {
	mu    sync.Mutex
	nodes []*Node
	now   func() time.Time
	htlcs map[string]htlcRecord
}

type htlcRecord struct {
	maker    int
	receiver string
	amount   float64
}

// NewNetwork creates count disconnected nodes sharing one genesis block
func NewNetwork(count int) *Network {
	n := &Network{
		now:   time.Now,
		htlcs: make(map[string]htlcRecord),
	}
	genesis := block{Block: node.Block{Hash: "genesis", Height: 0, Time: n.now().Unix()}}
	for i := 0; i < count; i++ {
		n.nodes = append(n.nodes, &Node{
			net:     n,
			index:   i,
			name:    fmt.Sprintf("node-%d", i),
			chain:   []block{genesis},
			mempool: make(map[string]struct{}),
			peers:   make(map[int]struct{}),
		})
	}
	return n
}

// Handles returns the cluster as node.Handle values, index-addressed
func (n *Network) Handles() []node.Handle {
	handles := make([]node.Handle, len(n.nodes))
	for i, sn := range n.nodes {
		handles[i] = sn
	}
	return handles
}

// Node returns the raw simulated node for test instrumentation
func (n *Network) Node(i int) *Node {
	return n.nodes[i]
}

// Node is one simulated cluster member
type Node struct {
	net         *Network
	index       int
	name        string
	chain       []block
	balance     float64
	mempool     map[string]struct{}
	peers       map[int]struct{}
	addrSeq     int
	txSeq       int
	unreachable bool
}

// SetUnreachable makes every call fail with a transport-style error,
// emulating a node that dropped off the RPC interface
func (s *Node) SetUnreachable(v bool) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	s.unreachable = v
}

// Balance reports the wallet balance without going through the RPC surface
func (s *Node) Balance() float64 {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	return s.balance
}

func (s *Node) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeTimeout, Target: s.name, Reason: err.Error()}
	}
	if s.unreachable {
		return cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: s.name, Reason: "connection refused"}
	}
	return nil
}

// Name identifies the node in logs and diagnostics
func (s *Node) Name() string { return s.name }

// PeerAddress is the address peers use for addnode/disconnectnode
func (s *Node) PeerAddress() string { return fmt.Sprintf("sim:%d", s.index) }

func (s *Node) ownerOf(address string) *Node {
	var idx, seq int
	if _, err := fmt.Sscanf(address, "sim:%d:%d", &idx, &seq); err != nil {
		return s
	}
	if idx < 0 || idx >= len(s.net.nodes) {
		return s
	}
	return s.net.nodes[idx]
}

// Generate appends count blocks to this node's chain, credits the address
// owner with the rewards and gossips the new tip to every reachable peer
func (s *Node) Generate(ctx context.Context, count int, address string) ([]string, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	hashes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		height := int64(len(s.chain))
		b := block{
			Block: node.Block{
				Hash:   fmt.Sprintf("blk-%s-%06d-%d", s.name, height, s.net.now().UnixNano()),
				Height: height,
				Time:   s.net.now().Unix(),
			},
		}
		// the first block of the batch confirms everything pending locally
		if i == 0 {
			for txid := range s.mempool {
				b.txids = append(b.txids, txid)
			}
			s.mempool = make(map[string]struct{})
		}
		s.chain = append(s.chain, b)
		hashes = append(hashes, b.Hash)
	}
	s.ownerOf(address).balance += blockReward * float64(count)
	s.gossipChain()
	return hashes, nil
}

// gossipChain floods the caller's chain through the connected component;
// peers adopt iff the incoming chain is strictly longer
func (s *Node) gossipChain() {
	for _, peer := range s.reachable() {
		peer.adoptIfLonger(s.chain)
	}
}

// reachable walks the peer graph breadth-first from s (s excluded)
func (s *Node) reachable() []*Node {
	seen := map[int]bool{s.index: true}
	queue := []*Node{s}
	var out []*Node
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for idx := range cur.peers {
			if !seen[idx] {
				seen[idx] = true
				peer := s.net.nodes[idx]
				out = append(out, peer)
				queue = append(queue, peer)
			}
		}
	}
	return out
}

func (s *Node) adoptIfLonger(chain []block) {
	if len(chain) <= len(s.chain) {
		return
	}
	s.chain = append([]block(nil), chain...)
	for _, b := range chain {
		for _, txid := range b.txids {
			delete(s.mempool, txid)
		}
	}
}

// SendToAddress moves funds to the owner of address and floods the tx
func (s *Node) SendToAddress(ctx context.Context, address string, amount float64) (string, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	if amount <= 0 || s.balance < amount {
		return "", cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: s.name, Reason: "Insufficient funds"}
	}

	s.txSeq++
	txid := fmt.Sprintf("tx-%s-%06d", s.name, s.txSeq)
	s.balance -= amount
	s.ownerOf(address).balance += amount
	s.floodTx(txid)
	return txid, nil
}

func (s *Node) floodTx(txid string) {
	s.mempool[txid] = struct{}{}
	for _, peer := range s.reachable() {
		peer.mempool[txid] = struct{}{}
	}
}

// GetNewAddress creates a fresh receiving address owned by this node
func (s *Node) GetNewAddress(ctx context.Context) (string, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	s.addrSeq++
	return fmt.Sprintf("sim:%d:%d", s.index, s.addrSeq), nil
}

func (s *Node) peerByAddress(peer string) (*Node, error) {
	var idx int
	if _, err := fmt.Sscanf(peer, "sim:%d", &idx); err != nil || idx < 0 || idx >= len(s.net.nodes) {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeTargetSelection, Target: s.name, Reason: fmt.Sprintf("unknown peer %q", peer)}
	}
	return s.net.nodes[idx], nil
}

// AddNode connects this node with peer and lets both sides catch up:
// the shorter chain adopts the longer one, mempools are merged
func (s *Node) AddNode(ctx context.Context, peer string) error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	other, err := s.peerByAddress(peer)
	if err != nil {
		return err
	}
	if other.index == s.index {
		return nil
	}
	s.peers[other.index] = struct{}{}
	other.peers[s.index] = struct{}{}

	for txid := range other.mempool {
		s.mempool[txid] = struct{}{}
	}
	for txid := range s.mempool {
		other.mempool[txid] = struct{}{}
	}
	s.gossipChain()
	other.gossipChain()
	return nil
}

// DisconnectNode drops the link to peer; dropping a missing link is a no-op
func (s *Node) DisconnectNode(ctx context.Context, peer string) error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	other, err := s.peerByAddress(peer)
	if err != nil {
		return err
	}
	delete(s.peers, other.index)
	delete(other.peers, s.index)
	return nil
}

// ProTxRegister registers masternode collateral, returns the proTx hash
func (s *Node) ProTxRegister(ctx context.Context, collateralTxid, fundAddress string) (string, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	return "protx-" + collateralTxid, nil
}

// HTLCCreate locks amount into a simulated hash time locked contract
func (s *Node) HTLCCreate(ctx context.Context, receiver string, amount float64, hashLock string, timeoutBlocks int) (*node.HTLC, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if s.balance < amount {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: s.name, Reason: "Insufficient funds"}
	}
	s.txSeq++
	txid := fmt.Sprintf("htlc-%s-%06d", s.name, s.txSeq)
	s.balance -= amount
	s.net.htlcs[txid] = htlcRecord{maker: s.index, receiver: receiver, amount: amount}
	s.floodTx(txid)
	return &node.HTLC{Txid: txid, Address: "htlc:" + hashLock, RedeemScript: hashLock}, nil
}

// HTLCClaim settles the contract in favour of the receiver
func (s *Node) HTLCClaim(ctx context.Context, txid, preimage string) (string, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	rec, ok := s.net.htlcs[txid]
	if !ok {
		return "", cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: s.name, Reason: "unknown htlc " + txid}
	}
	delete(s.net.htlcs, txid)
	s.ownerOf(rec.receiver).balance += rec.amount
	s.txSeq++
	claim := fmt.Sprintf("claim-%s-%06d", s.name, s.txSeq)
	s.floodTx(claim)
	return claim, nil
}

// HTLCRefund returns the locked funds to the maker after timeout
func (s *Node) HTLCRefund(ctx context.Context, txid string) (string, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	rec, ok := s.net.htlcs[txid]
	if !ok {
		return "", cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: s.name, Reason: "unknown htlc " + txid}
	}
	delete(s.net.htlcs, txid)
	s.net.nodes[rec.maker].balance += rec.amount
	s.txSeq++
	refund := fmt.Sprintf("refund-%s-%06d", s.name, s.txSeq)
	s.floodTx(refund)
	return refund, nil
}

// GetBestBlockHash returns the tip hash
func (s *Node) GetBestBlockHash(ctx context.Context) (string, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return "", err
	}
	return s.chain[len(s.chain)-1].Hash, nil
}

// GetBlockCount returns the best height
func (s *Node) GetBlockCount(ctx context.Context) (int64, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return int64(len(s.chain) - 1), nil
}

// GetBlock returns block details including the timestamp
func (s *Node) GetBlock(ctx context.Context, hash string) (*node.Block, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	for i := len(s.chain) - 1; i >= 0; i-- {
		if s.chain[i].Hash == hash {
			b := s.chain[i].Block
			return &b, nil
		}
	}
	return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeNodeQuery, Target: s.name, Reason: "block not found: " + hash}
}

// GetBalance returns the spendable wallet balance
func (s *Node) GetBalance(ctx context.Context) (float64, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return s.balance, nil
}

// GetRawMempool returns the pending transaction ids
func (s *Node) GetRawMempool(ctx context.Context) ([]string, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	txids := make([]string, 0, len(s.mempool))
	for txid := range s.mempool {
		txids = append(txids, txid)
	}
	return txids, nil
}

// GetConnectionCount returns the active peer connection count
func (s *Node) GetConnectionCount(ctx context.Context) (int, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return len(s.peers), nil
}

// GetMemoryInfo reports memory usage growing with chain length, enough to
// exercise the sampling path
func (s *Node) GetMemoryInfo(ctx context.Context) (*node.MemoryInfo, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return &node.MemoryInfo{
		Used:  64<<20 + uint64(len(s.chain))*4096,
		Total: 512 << 20,
	}, nil
}
