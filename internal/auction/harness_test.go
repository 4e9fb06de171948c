package auction

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/auctionhouse/internal/ledger"
	"github.com/xtrntr/auctionhouse/internal/models"
)

const (
	startTime       = int64(1_700_000_000)
	walletLamports  = uint64(1_000_000_000)
	bidMintDecimals = uint8(6)
)

type harness struct {
	t         *testing.T
	ctx       context.Context
	clock     *ledger.ManualClock
	ledger    *ledger.Ledger
	program   *Program
	admin     solana.PublicKey
	prizeMint solana.PublicKey
	bidMint   solana.PublicKey
}

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	priv, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return priv.PublicKey()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		clock: ledger.NewManualClock(startTime),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.ledger = ledger.New(ledger.WithClock(h.clock), ledger.WithLogger(log))
	h.program = New(newKey(t), h.ledger, log)

	h.admin = newKey(t)
	h.prizeMint = newKey(t)
	h.bidMint = newKey(t)
	require.NoError(t, h.ledger.Airdrop(h.ctx, h.admin, 100*walletLamports))
	require.NoError(t, h.ledger.Invoke(h.ctx, []solana.PublicKey{h.admin}, func(tx *ledger.Tx) error {
		if err := tx.CreateMint(h.admin, h.prizeMint, h.admin, 0); err != nil {
			return err
		}
		return tx.CreateMint(h.admin, h.bidMint, h.admin, bidMintDecimals)
	}))
	return h
}

// mint funds owner's holding of mint with amount units, creating it if needed
func (h *harness) mint(owner, mint solana.PublicKey, amount uint64) {
	h.t.Helper()
	require.NoError(h.t, h.ledger.Invoke(h.ctx, []solana.PublicKey{h.admin}, func(tx *ledger.Tx) error {
		addr, err := tx.InitHoldingIfNeeded(h.admin, owner, mint)
		if err != nil {
			return err
		}
		if amount == 0 {
			return nil
		}
		return tx.MintTo(mint, addr, amount, ledger.Signer(h.admin))
	}))
}

// wallet returns a new identity with lamports and bidFunds of the bid asset
func (h *harness) wallet(bidFunds uint64) solana.PublicKey {
	h.t.Helper()
	pk := newKey(h.t)
	require.NoError(h.t, h.ledger.Airdrop(h.ctx, pk, walletLamports))
	if bidFunds > 0 {
		h.mint(pk, h.bidMint, bidFunds)
	}
	return pk
}

// maker returns a new identity holding one unit of a fresh prize
func (h *harness) maker() solana.PublicKey {
	h.t.Helper()
	pk := h.wallet(0)
	h.mint(pk, h.prizeMint, 1)
	return pk
}

func (h *harness) makeAuction(maker solana.PublicKey, seed uint64, end int64) solana.PublicKey {
	h.t.Helper()
	addr, err := h.program.MakeAuction(h.ctx, maker, MakeParams{
		Seed:          seed,
		EndTime:       end,
		PrizeMint:     h.prizeMint,
		BidMint:       h.bidMint,
		DepositAmount: 1,
	})
	require.NoError(h.t, err)
	return addr
}

func (h *harness) balance(owner, mint solana.PublicKey) uint64 {
	h.t.Helper()
	var amount uint64
	require.NoError(h.t, h.ledger.View(h.ctx, func(tx *ledger.Tx) error {
		var err error
		amount, err = tx.Balance(owner, mint)
		return err
	}))
	return amount
}

func (h *harness) lamports(pk solana.PublicKey) uint64 {
	h.t.Helper()
	var n uint64
	require.NoError(h.t, h.ledger.View(h.ctx, func(tx *ledger.Tx) error {
		n = tx.Lamports(pk)
		return nil
	}))
	return n
}

func (h *harness) exists(addr solana.PublicKey) bool {
	h.t.Helper()
	var ok bool
	require.NoError(h.t, h.ledger.View(h.ctx, func(tx *ledger.Tx) error {
		ok = tx.Exists(addr)
		return nil
	}))
	return ok
}

func (h *harness) auction(addr solana.PublicKey) *models.Auction {
	h.t.Helper()
	snap, err := h.program.Auction(h.ctx, addr)
	require.NoError(h.t, err)
	return &snap.Auction
}

// overwriteBid replaces a bid record in place, bypassing the protocol
func (h *harness) overwriteBid(auction solana.PublicKey, b *models.Bid) {
	h.t.Helper()
	addr, _, err := h.program.BidAddress(auction, b.Bidder)
	require.NoError(h.t, err)
	data, err := encodeBid(b)
	require.NoError(h.t, err)
	require.NoError(h.t, h.ledger.Invoke(h.ctx, nil, func(tx *ledger.Tx) error {
		return tx.WriteRecord(addr, h.program.ID(), data)
	}))
}
