package auction

import "errors"

// Protocol errors. Every one of them aborts the whole invocation.
var (
	ErrAuctionEnded       = errors.New("the auction has already ended")
	ErrAuctionNotEnded    = errors.New("the auction has not ended yet")
	ErrAlreadyResolved    = errors.New("the auction has already been resolved")
	ErrCannotRefundWinner = errors.New("the winner cannot claim a refund")
	ErrAlreadyRefunded    = errors.New("the bid has already been refunded")
	ErrAuctionHasBids     = errors.New("cannot cancel an auction that received bids")
	ErrBidOverflow        = errors.New("cumulative bid overflows")
	ErrNoBids             = errors.New("the auction received no bids, cancel it instead")
	ErrZeroBid            = errors.New("bid amount must be positive")
	ErrInvalidPrizeAmount = errors.New("prize deposit must be exactly one unit")
	ErrPrizeNotUnique     = errors.New("prize asset must be indivisible")
	ErrSameAsset          = errors.New("prize and bid assets must differ")
	ErrAuctionExists      = errors.New("an auction with this seed already exists")
	ErrAuctionNotFound    = errors.New("auction not found")
	ErrBidNotFound        = errors.New("bid not found")
	ErrUnauthorized       = errors.New("caller is not allowed to perform this operation")
	ErrAddressMismatch    = errors.New("record does not derive to its address")
	ErrInvalidRecord      = errors.New("invalid record data")
	ErrCorruptState       = errors.New("auction state is inconsistent")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAuctionEnded, "auction_ended"},
	{ErrAuctionNotEnded, "auction_not_ended"},
	{ErrAlreadyResolved, "already_resolved"},
	{ErrCannotRefundWinner, "cannot_refund_winner"},
	{ErrAlreadyRefunded, "already_refunded"},
	{ErrAuctionHasBids, "auction_has_bids"},
	{ErrBidOverflow, "bid_overflow"},
	{ErrNoBids, "no_bids"},
	{ErrZeroBid, "zero_bid"},
	{ErrInvalidPrizeAmount, "invalid_prize_amount"},
	{ErrPrizeNotUnique, "prize_not_unique"},
	{ErrSameAsset, "same_asset"},
	{ErrAuctionExists, "auction_exists"},
	{ErrAuctionNotFound, "auction_not_found"},
	{ErrBidNotFound, "bid_not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrAddressMismatch, "address_mismatch"},
	{ErrInvalidRecord, "invalid_record"},
	{ErrCorruptState, "corrupt_state"},
}

// Code returns a stable short name for a protocol error, "internal" for
// anything else and "ok" for nil.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "internal"
}
