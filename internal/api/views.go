package api

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/xtrntr/auctionhouse/internal/auction"
	"github.com/xtrntr/auctionhouse/internal/models"
)

// AuctionView is the JSON form of an auction snapshot. Amounts are given in
// base units and as decimal strings scaled by the bid asset's decimals.
type AuctionView struct {
	Address          string `json:"address"`
	Seed             uint64 `json:"seed"`
	Maker            string `json:"maker"`
	PrizeMint        string `json:"prize_mint"`
	BidMint          string `json:"bid_mint"`
	PrizeVault       string `json:"prize_vault"`
	BidVault         string `json:"bid_vault"`
	EndTime          int64  `json:"end_time"`
	Ended            bool   `json:"ended"`
	Resolved         bool   `json:"resolved"`
	HighestBidder    string `json:"highest_bidder,omitempty"`
	HighestBid       string `json:"highest_bid"`
	HighestBidUI     string `json:"highest_bid_ui"`
	PrizeEscrowed    uint64 `json:"prize_escrowed"`
	BidVaultBalance  string `json:"bid_vault_balance"`
	BidVaultUI       string `json:"bid_vault_ui"`
	BidAssetDecimals uint8  `json:"bid_asset_decimals"`
}

func NewAuctionView(s *auction.Snapshot) AuctionView {
	a := s.Auction
	v := AuctionView{
		Address:          s.Address.String(),
		Seed:             a.Seed,
		Maker:            a.Maker.String(),
		PrizeMint:        a.PrizeMint.String(),
		BidMint:          a.BidMint.String(),
		PrizeVault:       s.PrizeVault.String(),
		BidVault:         s.BidVault.String(),
		EndTime:          a.EndTime,
		Ended:            s.Ended(),
		Resolved:         a.Resolved,
		HighestBid:       strconv.FormatUint(a.HighestBidAmount, 10),
		HighestBidUI:     FormatAmount(a.HighestBidAmount, s.BidDecimals),
		PrizeEscrowed:    s.PrizeEscrowed,
		BidVaultBalance:  strconv.FormatUint(s.BidVaultBalance, 10),
		BidVaultUI:       FormatAmount(s.BidVaultBalance, s.BidDecimals),
		BidAssetDecimals: s.BidDecimals,
	}
	if a.HasBids() {
		v.HighestBidder = a.HighestBidder.String()
	}
	return v
}

// BidView is the JSON form of one bidder's deposit
type BidView struct {
	Auction  string `json:"auction"`
	Bidder   string `json:"bidder"`
	Amount   string `json:"amount"`
	AmountUI string `json:"amount_ui"`
	Refunded bool   `json:"refunded"`
}

func NewBidView(addr solana.PublicKey, b *models.Bid, decimals uint8) BidView {
	return BidView{
		Auction:  addr.String(),
		Bidder:   b.Bidder.String(),
		Amount:   strconv.FormatUint(b.Amount, 10),
		AmountUI: FormatAmount(b.Amount, decimals),
		Refunded: b.Refunded,
	}
}

// FormatAmount renders base units as a decimal string
func FormatAmount(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

// ParseAmount converts a decimal string such as "1.25" into base units
func ParseAmount(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be positive")
	}
	base := d.Shift(int32(decimals))
	if !base.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", s, decimals)
	}
	n := base.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("amount %s is too large", s)
	}
	return n.Uint64(), nil
}
