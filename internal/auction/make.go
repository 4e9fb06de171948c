package auction

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/xtrntr/auctionhouse/internal/ledger"
	"github.com/xtrntr/auctionhouse/internal/models"
)

// PrizeUnit is the indivisible amount of the prize asset every auction holds
const PrizeUnit = 1

// MakeParams configures a new auction
type MakeParams struct {
	Seed          uint64
	EndTime       int64
	PrizeMint     solana.PublicKey
	BidMint       solana.PublicKey
	DepositAmount uint64
}

// MakeAuction creates maker's auction, opens both vaults and escrows the prize.
// It returns the auction address.
func (p *Program) MakeAuction(ctx context.Context, maker solana.PublicKey, params MakeParams) (solana.PublicKey, error) {
	addr, bump, err := p.AuctionAddress(maker, params.Seed)
	if err != nil {
		return solana.PublicKey{}, err
	}

	err = p.run(ctx, "make", maker, func(tx *ledger.Tx) error {
		if params.DepositAmount != PrizeUnit {
			return ErrInvalidPrizeAmount
		}
		if params.PrizeMint.Equals(params.BidMint) {
			return ErrSameAsset
		}
		prize, err := tx.Mint(params.PrizeMint)
		if err != nil {
			return err
		}
		if prize.Decimals != 0 {
			return ErrPrizeNotUnique
		}
		if _, err := tx.Mint(params.BidMint); err != nil {
			return err
		}
		if tx.Exists(addr) {
			return ErrAuctionExists
		}

		a := &models.Auction{
			Seed:      params.Seed,
			Maker:     maker,
			PrizeMint: params.PrizeMint,
			BidMint:   params.BidMint,
			EndTime:   params.EndTime,
			Bump:      bump,
		}
		data, err := encodeAuction(a)
		if err != nil {
			return err
		}
		if err := tx.CreateRecord(maker, addr, p.id, data); err != nil {
			return err
		}

		prizeVault, err := tx.InitHolding(maker, addr, params.PrizeMint)
		if err != nil {
			return err
		}
		if _, err := tx.InitHolding(maker, addr, params.BidMint); err != nil {
			return err
		}

		source, err := ledger.HoldingAddress(maker, params.PrizeMint)
		if err != nil {
			return err
		}
		return tx.Transfer(source, prizeVault, params.PrizeMint, params.DepositAmount, ledger.Signer(maker))
	})
	if err != nil {
		return solana.PublicKey{}, err
	}

	liveAuctionsGauge.Inc()
	p.log.Info("auction created", "auction", addr, "maker", maker, "seed", params.Seed, "end_time", params.EndTime)
	return addr, nil
}
