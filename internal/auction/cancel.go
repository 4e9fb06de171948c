package auction

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/xtrntr/auctionhouse/internal/ledger"
)

// Cancel unwinds an auction that ended without bids: the prize returns to
// the maker, both vaults close and the record is destroyed.
// Only the maker may cancel.
func (p *Program) Cancel(ctx context.Context, maker, auction solana.PublicKey) error {
	err := p.run(ctx, "cancel", maker, func(tx *ledger.Tx) error {
		a, err := p.loadAuction(tx, auction)
		if err != nil {
			return err
		}
		if !a.Maker.Equals(maker) {
			return ErrUnauthorized
		}
		if tx.Now() < a.EndTime {
			return ErrAuctionNotEnded
		}
		if a.HasBids() {
			return ErrAuctionHasBids
		}

		auth, err := p.authority(a)
		if err != nil {
			return err
		}
		prizeVault, bidVault, err := Vaults(auction, a)
		if err != nil {
			return err
		}

		dest, err := tx.InitHoldingIfNeeded(maker, maker, a.PrizeMint)
		if err != nil {
			return err
		}
		if err := tx.Transfer(prizeVault, dest, a.PrizeMint, PrizeUnit, auth); err != nil {
			return err
		}
		if _, err := tx.CloseHolding(prizeVault, maker, auth); err != nil {
			return err
		}
		if _, err := tx.CloseHolding(bidVault, maker, auth); err != nil {
			return err
		}
		_, err = tx.CloseRecord(auction, p.id, maker)
		return err
	})
	if err != nil {
		return err
	}

	liveAuctionsGauge.Dec()
	p.log.Info("auction cancelled", "auction", auction, "maker", maker)
	return nil
}
