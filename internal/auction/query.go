package auction

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/xtrntr/auctionhouse/internal/ledger"
	"github.com/xtrntr/auctionhouse/internal/models"
)

// Snapshot is a consistent read of one live auction and its vaults
type Snapshot struct {
	Address         solana.PublicKey
	Auction         models.Auction
	PrizeVault      solana.PublicKey
	BidVault        solana.PublicKey
	PrizeEscrowed   uint64
	BidVaultBalance uint64
	BidDecimals     uint8
	Now             int64
}

// Ended reports whether bidding had closed when the snapshot was taken
func (s *Snapshot) Ended() bool {
	return s.Now >= s.Auction.EndTime
}

// Auction reads the auction at addr
func (p *Program) Auction(ctx context.Context, addr solana.PublicKey) (*Snapshot, error) {
	var snap *Snapshot
	err := p.ledger.View(ctx, func(tx *ledger.Tx) error {
		a, err := p.loadAuction(tx, addr)
		if err != nil {
			return err
		}
		prizeVault, bidVault, err := Vaults(addr, a)
		if err != nil {
			return err
		}
		prizeBalance, err := tx.Balance(addr, a.PrizeMint)
		if err != nil {
			return err
		}
		bidBalance, err := tx.Balance(addr, a.BidMint)
		if err != nil {
			return err
		}
		mint, err := tx.Mint(a.BidMint)
		if err != nil {
			return err
		}
		snap = &Snapshot{
			Address:         addr,
			Auction:         *a,
			PrizeVault:      prizeVault,
			BidVault:        bidVault,
			PrizeEscrowed:   prizeBalance,
			BidVaultBalance: bidBalance,
			BidDecimals:     mint.Decimals,
			Now:             tx.Now(),
		}
		return nil
	})
	return snap, err
}

// BidOf reads bidder's record on the auction at addr
func (p *Program) BidOf(ctx context.Context, addr, bidder solana.PublicKey) (*models.Bid, error) {
	var bid *models.Bid
	err := p.ledger.View(ctx, func(tx *ledger.Tx) error {
		b, _, err := p.loadBid(tx, addr, bidder)
		bid = b
		return err
	})
	return bid, err
}
