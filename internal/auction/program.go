// Package auction implements the escrow-mediated auction protocol.
//
// A maker locks one unit of a unique prize asset in a vault owned by the
// auction's derived address. Until the deadline anyone may escrow the bid
// asset into a second vault; the record tracks the leader. After the
// deadline Resolve pays the prize to the leader and the winning amount to the
// maker, losers pull their deposits back with ClaimRefund, and an auction
// without bids is unwound with Cancel.
//
// Every operation is a single ledger invocation: it either applies fully or
// not at all. No operation trusts an address it was handed without
// re-deriving it from the stored record.
package auction

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/xtrntr/auctionhouse/internal/ledger"
	"github.com/xtrntr/auctionhouse/internal/models"
)

var (
	auctionSeed = []byte("auction")
	bidSeed     = []byte("bids")
)

// Program executes auction operations against a ledger
type Program struct {
	id     solana.PublicKey
	ledger *ledger.Ledger
	log    *slog.Logger
}

// New creates the auction program identified by id
func New(id solana.PublicKey, l *ledger.Ledger, log *slog.Logger) *Program {
	if log == nil {
		log = slog.Default()
	}
	return &Program{
		id:     id,
		ledger: l,
		log:    log.With("pkg", "auction"),
	}
}

// ID is the program id that owns every auction and bid record
func (p *Program) ID() solana.PublicKey { return p.id }

// Ledger returns the host ledger the program runs on
func (p *Program) Ledger() *ledger.Ledger { return p.ledger }

func seedBytes(seed uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, seed)
	return b
}

// AuctionAddress derives the record address of maker's auction with seed
func (p *Program) AuctionAddress(maker solana.PublicKey, seed uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{auctionSeed, maker.Bytes(), seedBytes(seed)}, p.id)
}

// BidAddress derives the record address of bidder's bid on auction
func (p *Program) BidAddress(auction, bidder solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{bidSeed, auction.Bytes(), bidder.Bytes()}, p.id)
}

// Vaults returns the prize and bid vault addresses of the auction at addr
func Vaults(addr solana.PublicKey, a *models.Auction) (prize, bid solana.PublicKey, err error) {
	if prize, err = ledger.HoldingAddress(addr, a.PrizeMint); err != nil {
		return
	}
	bid, err = ledger.HoldingAddress(addr, a.BidMint)
	return
}

// authority rebuilds the auction's signing capability from its stored seeds
func (p *Program) authority(a *models.Auction) (ledger.Authority, error) {
	return ledger.DeriveAuthority(p.id, auctionSeed, a.Maker.Bytes(), seedBytes(a.Seed), []byte{a.Bump})
}

// run executes fn as one invocation signed by signer and records the outcome
func (p *Program) run(ctx context.Context, op string, signer solana.PublicKey, fn func(tx *ledger.Tx) error) error {
	start := time.Now()
	err := p.ledger.Invoke(ctx, []solana.PublicKey{signer}, fn)
	observe(op, err, time.Since(start))
	if err != nil {
		p.log.Debug("operation rejected", "op", op, "signer", signer, "err", err)
	}
	return err
}

func (p *Program) loadAuction(tx *ledger.Tx, addr solana.PublicKey) (*models.Auction, error) {
	data, err := tx.Record(addr, p.id)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, ErrAuctionNotFound
	}
	if errors.Is(err, ledger.ErrIllegalOwner) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err != nil {
		return nil, err
	}
	a, err := decodeAuction(data)
	if err != nil {
		return nil, err
	}
	auth, err := p.authority(a)
	if err != nil || !auth.Address().Equals(addr) {
		return nil, fmt.Errorf("%w: auction %s", ErrAddressMismatch, addr)
	}
	return a, nil
}

func (p *Program) storeAuction(tx *ledger.Tx, addr solana.PublicKey, a *models.Auction) error {
	data, err := encodeAuction(a)
	if err != nil {
		return err
	}
	return tx.WriteRecord(addr, p.id, data)
}

// loadBid loads bidder's record on auction and returns it with its address
func (p *Program) loadBid(tx *ledger.Tx, auction, bidder solana.PublicKey) (*models.Bid, solana.PublicKey, error) {
	addr, bump, err := p.BidAddress(auction, bidder)
	if err != nil {
		return nil, addr, err
	}
	data, err := tx.Record(addr, p.id)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, addr, ErrBidNotFound
	}
	if errors.Is(err, ledger.ErrIllegalOwner) {
		return nil, addr, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err != nil {
		return nil, addr, err
	}
	b, err := decodeBid(data)
	if err != nil {
		return nil, addr, err
	}
	if !b.Bidder.Equals(bidder) || b.Bump != bump {
		return nil, addr, fmt.Errorf("%w: bid %s", ErrAddressMismatch, addr)
	}
	return b, addr, nil
}

func (p *Program) storeBid(tx *ledger.Tx, addr solana.PublicKey, b *models.Bid) error {
	data, err := encodeBid(b)
	if err != nil {
		return err
	}
	return tx.WriteRecord(addr, p.id, data)
}

// finishIfDrained terminates a resolved auction once its bid vault is empty:
// the vault is closed and the record destroyed, both deposits going to the
// maker. It reports whether the auction was terminated.
func (p *Program) finishIfDrained(tx *ledger.Tx, addr solana.PublicKey, a *models.Auction, auth ledger.Authority) (bool, error) {
	if !a.Resolved {
		return false, nil
	}
	_, bidVault, err := Vaults(addr, a)
	if err != nil {
		return false, err
	}
	h, err := tx.Holding(bidVault)
	if err != nil {
		return false, err
	}
	if h.Amount != 0 {
		return false, nil
	}
	if _, err := tx.CloseHolding(bidVault, a.Maker, auth); err != nil {
		return false, err
	}
	if _, err := tx.CloseRecord(addr, p.id, a.Maker); err != nil {
		return false, err
	}
	return true, nil
}
