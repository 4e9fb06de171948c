package api

import (
	"errors"
	"net/http"

	"github.com/xtrntr/auctionhouse/internal/auction"
	"github.com/xtrntr/auctionhouse/internal/ledger"
)

var statusByError = []struct {
	err    error
	status int
}{
	{auction.ErrAuctionNotFound, http.StatusNotFound},
	{auction.ErrBidNotFound, http.StatusNotFound},

	{auction.ErrUnauthorized, http.StatusForbidden},

	{auction.ErrAuctionEnded, http.StatusConflict},
	{auction.ErrAuctionNotEnded, http.StatusConflict},
	{auction.ErrAlreadyResolved, http.StatusConflict},
	{auction.ErrCannotRefundWinner, http.StatusConflict},
	{auction.ErrAlreadyRefunded, http.StatusConflict},
	{auction.ErrAuctionHasBids, http.StatusConflict},
	{auction.ErrNoBids, http.StatusConflict},
	{auction.ErrAuctionExists, http.StatusConflict},

	{auction.ErrZeroBid, http.StatusBadRequest},
	{auction.ErrBidOverflow, http.StatusBadRequest},
	{auction.ErrInvalidPrizeAmount, http.StatusBadRequest},
	{auction.ErrPrizeNotUnique, http.StatusBadRequest},
	{auction.ErrSameAsset, http.StatusBadRequest},
	{auction.ErrAddressMismatch, http.StatusBadRequest},
	{auction.ErrInvalidRecord, http.StatusBadRequest},
	{ledger.ErrInsufficientFunds, http.StatusBadRequest},
	{ledger.ErrInsufficientLamports, http.StatusBadRequest},
	{ledger.ErrAccountNotFound, http.StatusBadRequest},
	{ledger.ErrIllegalOwner, http.StatusBadRequest},
}

// statusFor maps an operation error to an HTTP status
func statusFor(err error) int {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}
