package models

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// User represents a registered user bound to a wallet identity
type User struct {
	ID           int
	Username     string
	PasswordHash string
	Identity     solana.PublicKey
	CreatedAt    time.Time
}

// Auction is the persistent state of one auction instance.
// Field order is the on-ledger layout.
type Auction struct {
	Seed             uint64
	Maker            solana.PublicKey
	PrizeMint        solana.PublicKey
	BidMint          solana.PublicKey
	EndTime          int64 // unix seconds, bidding closes at this instant
	Bump             uint8
	Resolved         bool
	HighestBidder    solana.PublicKey // zero until the first bid
	HighestBidAmount uint64
}

// HasBids reports whether anyone has bid on the auction
func (a *Auction) HasBids() bool {
	return a.HighestBidAmount > 0
}

// Bid is one bidder's cumulative deposit for one auction
type Bid struct {
	Bidder   solana.PublicKey
	Amount   uint64
	Bump     uint8
	Refunded bool
}

// Mint describes an asset type
type Mint struct {
	Authority solana.PublicKey
	Supply    uint64
	Decimals  uint8
}

// Holding is a custodial balance of one asset owned by one authority
type Holding struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}
