package auction

import (
	"context"
	"errors"
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/xtrntr/auctionhouse/internal/ledger"
	"github.com/xtrntr/auctionhouse/internal/models"
)

// Bid adds amount to bidder's cumulative deposit on auction and moves the
// funds into the bid vault. The leader only changes on a strictly higher total.
func (p *Program) Bid(ctx context.Context, bidder, auction solana.PublicKey, amount uint64) error {
	var total uint64
	var leading bool

	err := p.run(ctx, "bid", bidder, func(tx *ledger.Tx) error {
		if amount == 0 {
			return ErrZeroBid
		}
		a, err := p.loadAuction(tx, auction)
		if err != nil {
			return err
		}
		if tx.Now() >= a.EndTime {
			return ErrAuctionEnded
		}

		b, bidAddr, err := p.loadBid(tx, auction, bidder)
		switch {
		case errors.Is(err, ErrBidNotFound):
			_, bump, err := p.BidAddress(auction, bidder)
			if err != nil {
				return err
			}
			b = &models.Bid{Bidder: bidder, Bump: bump}
			data, err := encodeBid(b)
			if err != nil {
				return err
			}
			if err := tx.CreateRecord(bidder, bidAddr, p.id, data); err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if b.Amount > math.MaxUint64-amount {
			return ErrBidOverflow
		}
		b.Amount += amount
		if err := p.storeBid(tx, bidAddr, b); err != nil {
			return err
		}

		if b.Amount > a.HighestBidAmount {
			a.HighestBidder = bidder
			a.HighestBidAmount = b.Amount
			if err := p.storeAuction(tx, auction, a); err != nil {
				return err
			}
		}
		total, leading = b.Amount, a.HighestBidder.Equals(bidder)

		source, err := ledger.HoldingAddress(bidder, a.BidMint)
		if err != nil {
			return err
		}
		_, vault, err := Vaults(auction, a)
		if err != nil {
			return err
		}
		return tx.Transfer(source, vault, a.BidMint, amount, ledger.Signer(bidder))
	})
	if err != nil {
		return err
	}

	p.log.Info("bid placed", "auction", auction, "bidder", bidder, "amount", amount, "total", total, "leading", leading)
	return nil
}
