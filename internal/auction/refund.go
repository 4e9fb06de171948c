package auction

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/xtrntr/auctionhouse/internal/ledger"
)

// ClaimRefund returns a losing bidder's deposit once the deadline has passed.
// The last refund out of a resolved auction closes the bid vault and destroys
// the auction record.
func (p *Program) ClaimRefund(ctx context.Context, bidder, auction solana.PublicKey) error {
	var amount uint64
	var terminated bool

	err := p.run(ctx, "refund", bidder, func(tx *ledger.Tx) error {
		a, err := p.loadAuction(tx, auction)
		if err != nil {
			return err
		}
		if tx.Now() < a.EndTime {
			return ErrAuctionNotEnded
		}

		b, bidAddr, err := p.loadBid(tx, auction, bidder)
		if err != nil {
			return err
		}
		if b.Bidder.Equals(a.HighestBidder) {
			return ErrCannotRefundWinner
		}
		if b.Refunded {
			return ErrAlreadyRefunded
		}

		b.Refunded = true
		if err := p.storeBid(tx, bidAddr, b); err != nil {
			return err
		}

		auth, err := p.authority(a)
		if err != nil {
			return err
		}
		_, bidVault, err := Vaults(auction, a)
		if err != nil {
			return err
		}
		dest, err := tx.InitHoldingIfNeeded(bidder, bidder, a.BidMint)
		if err != nil {
			return err
		}
		if err := tx.Transfer(bidVault, dest, a.BidMint, b.Amount, auth); err != nil {
			return err
		}
		if _, err := tx.CloseRecord(bidAddr, p.id, bidder); err != nil {
			return err
		}

		amount = b.Amount
		terminated, err = p.finishIfDrained(tx, auction, a, auth)
		return err
	})
	if err != nil {
		return err
	}

	if terminated {
		liveAuctionsGauge.Dec()
	}
	p.log.Info("refund claimed", "auction", auction, "bidder", bidder, "amount", amount, "terminated", terminated)
	return nil
}
