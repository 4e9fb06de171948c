package auction

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/auctionhouse/internal/ledger"
	"github.com/xtrntr/auctionhouse/internal/models"
)

func TestRecordCodec(t *testing.T) {
	a := &models.Auction{
		Seed:             7,
		Maker:            newKey(t),
		PrizeMint:        newKey(t),
		BidMint:          newKey(t),
		EndTime:          startTime,
		Bump:             254,
		Resolved:         true,
		HighestBidder:    newKey(t),
		HighestBidAmount: 70,
	}
	data, err := encodeAuction(a)
	require.NoError(t, err)
	assert.Len(t, data, AuctionRecordSize)

	got, err := decodeAuction(data)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = decodeBid(data)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

// Scenario A: two bidders, resolve, loser refunds, auction disappears.
func TestScenario_ResolveAndRefund(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(50)
	y := h.wallet(70)
	crank := h.wallet(0)

	addr := h.makeAuction(maker, 1, startTime+100)
	assert.Equal(t, uint64(0), h.balance(maker, h.prizeMint))

	require.NoError(t, h.program.Bid(h.ctx, x, addr, 50))
	require.NoError(t, h.program.Bid(h.ctx, y, addr, 70))

	a := h.auction(addr)
	assert.Equal(t, y, a.HighestBidder)
	assert.Equal(t, uint64(70), a.HighestBidAmount)

	err := h.program.Resolve(h.ctx, crank, addr)
	assert.ErrorIs(t, err, ErrAuctionNotEnded)

	h.clock.Advance(100)
	crankBefore := h.lamports(crank)
	require.NoError(t, h.program.Resolve(h.ctx, crank, addr))

	// the crank paid for the winner's prize holding and the maker's proceeds holding
	assert.Equal(t, 2*ledger.RentExemptMinimum(ledger.HoldingSize), crankBefore-h.lamports(crank))
	assert.Equal(t, uint64(1), h.balance(y, h.prizeMint))
	assert.Equal(t, uint64(70), h.balance(maker, h.bidMint))
	assert.True(t, h.auction(addr).Resolved)

	_, err = h.program.BidOf(h.ctx, addr, y)
	assert.ErrorIs(t, err, ErrBidNotFound)

	require.NoError(t, h.program.ClaimRefund(h.ctx, x, addr))
	assert.Equal(t, uint64(50), h.balance(x, h.bidMint))

	_, err = h.program.Auction(h.ctx, addr)
	assert.ErrorIs(t, err, ErrAuctionNotFound)
	assert.False(t, h.exists(addr))
}

// Scenario B: nobody bids, the maker cancels and gets everything back.
func TestScenario_CancelWithoutBids(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	before := h.lamports(maker)

	addr := h.makeAuction(maker, 2, startTime+100)
	snap, err := h.program.Auction(h.ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.PrizeEscrowed)
	assert.Less(t, h.lamports(maker), before)

	h.clock.Advance(100)
	require.NoError(t, h.program.Cancel(h.ctx, maker, addr))

	assert.Equal(t, uint64(1), h.balance(maker, h.prizeMint))
	assert.Equal(t, before, h.lamports(maker))
	assert.False(t, h.exists(addr))
	assert.False(t, h.exists(snap.PrizeVault))
	assert.False(t, h.exists(snap.BidVault))
}

// Scenario C: a single bid blocks cancellation.
func TestScenario_CancelWithBids(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(50)

	addr := h.makeAuction(maker, 3, startTime+100)
	require.NoError(t, h.program.Bid(h.ctx, x, addr, 50))

	h.clock.Advance(100)
	err := h.program.Cancel(h.ctx, maker, addr)
	assert.ErrorIs(t, err, ErrAuctionHasBids)
	assert.Equal(t, uint64(1), h.balance(addr, h.prizeMint))
}

// Scenario D: top-ups accumulate.
func TestScenario_TopUp(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(25)

	addr := h.makeAuction(maker, 4, startTime+100)
	require.NoError(t, h.program.Bid(h.ctx, x, addr, 10))
	require.NoError(t, h.program.Bid(h.ctx, x, addr, 15))

	b, err := h.program.BidOf(h.ctx, addr, x)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), b.Amount)
	assert.False(t, b.Refunded)
	assert.Equal(t, uint64(25), h.auction(addr).HighestBidAmount)
	assert.Equal(t, uint64(25), h.balance(addr, h.bidMint))
}

func TestBid_TieKeepsIncumbent(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(50)
	y := h.wallet(51)

	addr := h.makeAuction(maker, 5, startTime+100)
	require.NoError(t, h.program.Bid(h.ctx, x, addr, 50))
	require.NoError(t, h.program.Bid(h.ctx, y, addr, 50))
	assert.Equal(t, x, h.auction(addr).HighestBidder)

	require.NoError(t, h.program.Bid(h.ctx, y, addr, 1))
	a := h.auction(addr)
	assert.Equal(t, y, a.HighestBidder)
	assert.Equal(t, uint64(51), a.HighestBidAmount)
}

func TestBid_Errors(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(100)
	poor := h.wallet(5)
	addr := h.makeAuction(maker, 6, startTime+100)

	tests := []struct {
		name      string
		bidder    solana.PublicKey
		auction   solana.PublicKey
		amount    uint64
		advance   int64
		expectErr error
	}{
		{
			name:      "ZeroAmount",
			bidder:    x,
			auction:   addr,
			amount:    0,
			expectErr: ErrZeroBid,
		},
		{
			name:      "UnknownAuction",
			bidder:    x,
			auction:   newKey(t),
			amount:    1,
			expectErr: ErrAuctionNotFound,
		},
		{
			name:      "InsufficientFunds",
			bidder:    poor,
			auction:   addr,
			amount:    6,
			expectErr: ledger.ErrInsufficientFunds,
		},
		{
			name:      "AtDeadline",
			bidder:    x,
			auction:   addr,
			amount:    1,
			advance:   100,
			expectErr: ErrAuctionEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.clock.Advance(tt.advance)
			err := h.program.Bid(h.ctx, tt.bidder, tt.auction, tt.amount)
			assert.True(t, errors.Is(err, tt.expectErr), "got %v", err)
		})
	}

	// failed bids leave no trace
	a := h.auction(addr)
	assert.Equal(t, uint64(0), a.HighestBidAmount)
	assert.True(t, a.HighestBidder.IsZero())
	_, err := h.program.BidOf(h.ctx, addr, poor)
	assert.ErrorIs(t, err, ErrBidNotFound)
	assert.Equal(t, uint64(5), h.balance(poor, h.bidMint))
}

func TestBid_Overflow(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(math.MaxUint64)
	addr := h.makeAuction(maker, 7, startTime+100)

	require.NoError(t, h.program.Bid(h.ctx, x, addr, math.MaxUint64))
	err := h.program.Bid(h.ctx, x, addr, 1)
	assert.ErrorIs(t, err, ErrBidOverflow)

	b, err := h.program.BidOf(h.ctx, addr, x)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), b.Amount)
}

func TestMakeAuction_Errors(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	divisible := newKey(t)
	require.NoError(t, h.ledger.Invoke(h.ctx, []solana.PublicKey{h.admin}, func(tx *ledger.Tx) error {
		return tx.CreateMint(h.admin, divisible, h.admin, 9)
	}))
	h.makeAuction(maker, 1, startTime+100)

	tests := []struct {
		name      string
		maker     solana.PublicKey
		params    MakeParams
		expectErr error
	}{
		{
			name:      "DepositTwoUnits",
			maker:     maker,
			params:    MakeParams{Seed: 2, EndTime: startTime + 100, PrizeMint: h.prizeMint, BidMint: h.bidMint, DepositAmount: 2},
			expectErr: ErrInvalidPrizeAmount,
		},
		{
			name:      "SameAsset",
			maker:     maker,
			params:    MakeParams{Seed: 2, EndTime: startTime + 100, PrizeMint: h.bidMint, BidMint: h.bidMint, DepositAmount: 1},
			expectErr: ErrSameAsset,
		},
		{
			name:      "DivisiblePrize",
			maker:     maker,
			params:    MakeParams{Seed: 2, EndTime: startTime + 100, PrizeMint: divisible, BidMint: h.bidMint, DepositAmount: 1},
			expectErr: ErrPrizeNotUnique,
		},
		{
			name:      "DuplicateSeed",
			maker:     maker,
			params:    MakeParams{Seed: 1, EndTime: startTime + 100, PrizeMint: h.prizeMint, BidMint: h.bidMint, DepositAmount: 1},
			expectErr: ErrAuctionExists,
		},
		{
			name:      "NoPrizeToDeposit",
			maker:     maker,
			params:    MakeParams{Seed: 3, EndTime: startTime + 100, PrizeMint: h.prizeMint, BidMint: h.bidMint, DepositAmount: 1},
			expectErr: ledger.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.lamports(tt.maker)
			_, err := h.program.MakeAuction(h.ctx, tt.maker, tt.params)
			assert.True(t, errors.Is(err, tt.expectErr), "got %v", err)

			// nothing was allocated
			assert.Equal(t, before, h.lamports(tt.maker))
			addr, _, err := h.program.AuctionAddress(tt.maker, tt.params.Seed)
			require.NoError(t, err)
			if tt.params.Seed != 1 {
				assert.False(t, h.exists(addr))
			}
		})
	}

	// seeds are scoped per maker
	other := h.maker()
	h.makeAuction(other, 1, startTime+100)
}

func TestResolve_Errors(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(50)
	y := h.wallet(60)
	crank := h.wallet(0)

	empty := h.makeAuction(maker, 1, startTime+100)
	h.mint(maker, h.prizeMint, 1)
	busy := h.makeAuction(maker, 2, startTime+100)
	require.NoError(t, h.program.Bid(h.ctx, x, busy, 50))
	require.NoError(t, h.program.Bid(h.ctx, y, busy, 60))

	h.clock.Advance(100)
	assert.ErrorIs(t, h.program.Resolve(h.ctx, crank, empty), ErrNoBids)

	require.NoError(t, h.program.Resolve(h.ctx, crank, busy))
	makerProceeds := h.balance(maker, h.bidMint)
	assert.Equal(t, uint64(60), makerProceeds)

	assert.ErrorIs(t, h.program.Resolve(h.ctx, crank, busy), ErrAlreadyResolved)
	assert.ErrorIs(t, h.program.Resolve(h.ctx, maker, busy), ErrAlreadyResolved)
	assert.Equal(t, makerProceeds, h.balance(maker, h.bidMint))
	assert.Equal(t, uint64(1), h.balance(y, h.prizeMint))
	assert.Equal(t, uint64(50), h.balance(busy, h.bidMint))

	// the no-bid auction is still recoverable through cancel
	require.NoError(t, h.program.Cancel(h.ctx, maker, empty))
}

func TestResolve_SoleBidderTerminates(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(40)
	addr := h.makeAuction(maker, 1, startTime+10)
	require.NoError(t, h.program.Bid(h.ctx, x, addr, 40))

	h.clock.Advance(10)
	require.NoError(t, h.program.Resolve(h.ctx, x, addr))

	assert.False(t, h.exists(addr))
	assert.Equal(t, uint64(40), h.balance(maker, h.bidMint))
	assert.Equal(t, uint64(1), h.balance(x, h.prizeMint))
}

func TestResolve_AfterAllRefunds(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(10)
	y := h.wallet(20)
	z := h.wallet(30)
	addr := h.makeAuction(maker, 1, startTime+10)
	for _, b := range []struct {
		who    solana.PublicKey
		amount uint64
	}{{x, 10}, {y, 20}, {z, 30}} {
		require.NoError(t, h.program.Bid(h.ctx, b.who, addr, b.amount))
	}

	h.clock.Advance(10)
	require.NoError(t, h.program.ClaimRefund(h.ctx, x, addr))
	require.NoError(t, h.program.ClaimRefund(h.ctx, y, addr))
	assert.True(t, h.exists(addr), "winner's deposit still escrowed")

	require.NoError(t, h.program.Resolve(h.ctx, maker, addr))
	assert.False(t, h.exists(addr))
	assert.Equal(t, uint64(30), h.balance(maker, h.bidMint))
	assert.Equal(t, uint64(10), h.balance(x, h.bidMint))
	assert.Equal(t, uint64(20), h.balance(y, h.bidMint))
}

func TestClaimRefund_Errors(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(50)
	y := h.wallet(70)
	z := h.wallet(10)
	stranger := h.wallet(0)
	addr := h.makeAuction(maker, 1, startTime+100)
	require.NoError(t, h.program.Bid(h.ctx, x, addr, 50))
	require.NoError(t, h.program.Bid(h.ctx, y, addr, 70))
	require.NoError(t, h.program.Bid(h.ctx, z, addr, 10))

	assert.ErrorIs(t, h.program.ClaimRefund(h.ctx, x, addr), ErrAuctionNotEnded)

	h.clock.Advance(100)
	assert.ErrorIs(t, h.program.ClaimRefund(h.ctx, y, addr), ErrCannotRefundWinner)
	assert.ErrorIs(t, h.program.ClaimRefund(h.ctx, stranger, addr), ErrBidNotFound)

	require.NoError(t, h.program.ClaimRefund(h.ctx, x, addr))
	assert.ErrorIs(t, h.program.ClaimRefund(h.ctx, x, addr), ErrBidNotFound)
	assert.Equal(t, uint64(50), h.balance(x, h.bidMint))

	// a refunded flag alone is enough to stop a second payout
	h.overwriteBid(addr, &models.Bid{Bidder: z, Amount: 10, Bump: bumpOf(t, h, addr, z), Refunded: true})
	assert.ErrorIs(t, h.program.ClaimRefund(h.ctx, z, addr), ErrAlreadyRefunded)
	assert.Equal(t, uint64(0), h.balance(z, h.bidMint))

	// the winner's record is gone once the auction resolves
	require.NoError(t, h.program.Resolve(h.ctx, stranger, addr))
	assert.ErrorIs(t, h.program.ClaimRefund(h.ctx, y, addr), ErrBidNotFound)
}

func bumpOf(t *testing.T, h *harness, auction, bidder solana.PublicKey) uint8 {
	_, bump, err := h.program.BidAddress(auction, bidder)
	require.NoError(t, err)
	return bump
}

func TestCancel_Errors(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	intruder := h.wallet(0)
	addr := h.makeAuction(maker, 1, startTime+100)

	assert.ErrorIs(t, h.program.Cancel(h.ctx, maker, addr), ErrAuctionNotEnded)

	h.clock.Advance(100)
	assert.ErrorIs(t, h.program.Cancel(h.ctx, intruder, addr), ErrUnauthorized)
	assert.ErrorIs(t, h.program.Cancel(h.ctx, maker, newKey(t)), ErrAuctionNotFound)

	require.NoError(t, h.program.Cancel(h.ctx, maker, addr))
	assert.ErrorIs(t, h.program.Cancel(h.ctx, maker, addr), ErrAuctionNotFound)
	assert.ErrorIs(t, h.program.Resolve(h.ctx, maker, addr), ErrAuctionNotFound)
}

func TestResolve_ConcurrentCranks(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	x := h.wallet(50)
	y := h.wallet(70)
	addr := h.makeAuction(maker, 1, startTime+100)
	require.NoError(t, h.program.Bid(h.ctx, x, addr, 50))
	require.NoError(t, h.program.Bid(h.ctx, y, addr, 70))
	h.clock.Advance(100)

	n := 10
	cranks := make([]solana.PublicKey, n)
	for i := range cranks {
		cranks[i] = h.wallet(0)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(crank solana.PublicKey) {
			defer wg.Done()
			err := h.program.Resolve(h.ctx, crank, addr)
			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyResolved)
		}(cranks[i])
	}
	wg.Wait()

	assert.Equal(t, 1, successCount)
	assert.Equal(t, uint64(70), h.balance(maker, h.bidMint))
	assert.Equal(t, uint64(1), h.balance(y, h.prizeMint))
}

func TestAuction_RejectsForeignRecord(t *testing.T) {
	h := newHarness(t)
	maker := h.maker()
	addr := h.makeAuction(maker, 1, startTime+100)
	a := h.auction(addr)

	// a copy of a valid record at an address it does not derive to
	data, err := encodeAuction(a)
	require.NoError(t, err)
	fake := newKey(t)
	require.NoError(t, h.ledger.Invoke(h.ctx, []solana.PublicKey{h.admin}, func(tx *ledger.Tx) error {
		return tx.CreateRecord(h.admin, fake, h.program.ID(), data)
	}))

	x := h.wallet(5)
	assert.ErrorIs(t, h.program.Bid(h.ctx, x, fake, 5), ErrAddressMismatch)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "ok", Code(nil))
	assert.Equal(t, "auction_ended", Code(ErrAuctionEnded))
	assert.Equal(t, "already_refunded", Code(errors.Join(errors.New("ctx"), ErrAlreadyRefunded)))
	assert.Equal(t, "internal", Code(ledger.ErrInsufficientFunds))
}

func TestAuction_RejectsForeignOwner(t *testing.T) {
	h := newHarness(t)
	_, err := h.program.Auction(h.ctx, h.bidMint)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
