package auction

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/xtrntr/auctionhouse/internal/ledger"
)

// Resolve settles the auction once its deadline has passed: the prize goes to
// the leader and the winning amount to the maker. Anyone may call it; the
// resolver pays for any holding the maker or winner does not have yet.
//
// The winner's bid record is destroyed here, so the winner never refunds.
// If no losing deposits remain, the auction terminates in the same call.
func (p *Program) Resolve(ctx context.Context, resolver, auction solana.PublicKey) error {
	var winner solana.PublicKey
	var amount uint64
	var terminated bool

	err := p.run(ctx, "resolve", resolver, func(tx *ledger.Tx) error {
		a, err := p.loadAuction(tx, auction)
		if err != nil {
			return err
		}
		if tx.Now() < a.EndTime {
			return ErrAuctionNotEnded
		}
		if a.Resolved {
			return ErrAlreadyResolved
		}
		if !a.HasBids() {
			return ErrNoBids
		}

		winnerBid, winnerBidAddr, err := p.loadBid(tx, auction, a.HighestBidder)
		if err != nil {
			return err
		}
		if winnerBid.Amount != a.HighestBidAmount || winnerBid.Refunded {
			return fmt.Errorf("%w: leader %s holds %d, record says %d",
				ErrCorruptState, a.HighestBidder, winnerBid.Amount, a.HighestBidAmount)
		}

		// flip the flag before any funds move
		a.Resolved = true
		if err := p.storeAuction(tx, auction, a); err != nil {
			return err
		}

		auth, err := p.authority(a)
		if err != nil {
			return err
		}
		prizeVault, bidVault, err := Vaults(auction, a)
		if err != nil {
			return err
		}

		winnerPrize, err := tx.InitHoldingIfNeeded(resolver, a.HighestBidder, a.PrizeMint)
		if err != nil {
			return err
		}
		if err := tx.Transfer(prizeVault, winnerPrize, a.PrizeMint, PrizeUnit, auth); err != nil {
			return err
		}
		if _, err := tx.CloseHolding(prizeVault, a.Maker, auth); err != nil {
			return err
		}

		makerProceeds, err := tx.InitHoldingIfNeeded(resolver, a.Maker, a.BidMint)
		if err != nil {
			return err
		}
		if err := tx.Transfer(bidVault, makerProceeds, a.BidMint, a.HighestBidAmount, auth); err != nil {
			return err
		}

		if _, err := tx.CloseRecord(winnerBidAddr, p.id, a.HighestBidder); err != nil {
			return err
		}

		winner, amount = a.HighestBidder, a.HighestBidAmount
		terminated, err = p.finishIfDrained(tx, auction, a, auth)
		return err
	})
	if err != nil {
		return err
	}

	if terminated {
		liveAuctionsGauge.Dec()
	}
	p.log.Info("auction resolved", "auction", auction, "resolver", resolver, "winner", winner, "amount", amount, "terminated", terminated)
	return nil
}
