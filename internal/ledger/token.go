package ledger

import (
	"bytes"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/xtrntr/auctionhouse/internal/models"
)

// TokenProgramID owns every mint and holding account
var TokenProgramID = solana.TokenProgramID

const (
	MintSize    = 32 + 8 + 1
	HoldingSize = 32 + 32 + 8
)

func encode(v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HoldingAddress is the deterministic holding account of owner for mint
func HoldingAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, errors.Wrap(err, "holding address")
	}
	return addr, nil
}

// CreateMint registers a new asset type at addr
func (tx *Tx) CreateMint(payer, addr, authority solana.PublicKey, decimals uint8) error {
	data, err := encode(&models.Mint{Authority: authority, Decimals: decimals})
	if err != nil {
		return errors.Wrap(err, "encode mint")
	}
	return tx.allocate(payer, addr, TokenProgramID, data)
}

// Mint loads the asset type at addr
func (tx *Tx) Mint(addr solana.PublicKey) (*models.Mint, error) {
	data, err := tx.Record(addr, TokenProgramID)
	if err != nil {
		return nil, err
	}
	if len(data) != MintSize {
		return nil, errors.Wrapf(ErrDataSize, "mint %s", addr)
	}
	var m models.Mint
	if err := bin.NewBorshDecoder(data).Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "decode mint %s", addr)
	}
	return &m, nil
}

// Holding loads the holding account at addr
func (tx *Tx) Holding(addr solana.PublicKey) (*models.Holding, error) {
	data, err := tx.Record(addr, TokenProgramID)
	if err != nil {
		return nil, err
	}
	if len(data) != HoldingSize {
		return nil, errors.Wrapf(ErrDataSize, "holding %s", addr)
	}
	var h models.Holding
	if err := bin.NewBorshDecoder(data).Decode(&h); err != nil {
		return nil, errors.Wrapf(err, "decode holding %s", addr)
	}
	return &h, nil
}

// Balance returns the balance of owner's holding for mint, zero if it has none
func (tx *Tx) Balance(owner, mint solana.PublicKey) (uint64, error) {
	addr, err := HoldingAddress(owner, mint)
	if err != nil {
		return 0, err
	}
	if !tx.Exists(addr) {
		return 0, nil
	}
	h, err := tx.Holding(addr)
	if err != nil {
		return 0, err
	}
	return h.Amount, nil
}

func (tx *Tx) writeHolding(addr solana.PublicKey, h *models.Holding) error {
	data, err := encode(h)
	if err != nil {
		return errors.Wrap(err, "encode holding")
	}
	return tx.WriteRecord(addr, TokenProgramID, data)
}

// InitHolding creates owner's holding for mint. It fails if it already exists.
func (tx *Tx) InitHolding(payer, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	if _, err := tx.Mint(mint); err != nil {
		return solana.PublicKey{}, err
	}
	addr, err := HoldingAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	data, err := encode(&models.Holding{Mint: mint, Owner: owner})
	if err != nil {
		return solana.PublicKey{}, errors.Wrap(err, "encode holding")
	}
	if err := tx.allocate(payer, addr, TokenProgramID, data); err != nil {
		return solana.PublicKey{}, err
	}
	return addr, nil
}

// InitHoldingIfNeeded returns owner's holding for mint, creating it at
// payer's expense when missing.
func (tx *Tx) InitHoldingIfNeeded(payer, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, err := HoldingAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !tx.Exists(addr) {
		return tx.InitHolding(payer, owner, mint)
	}
	h, err := tx.Holding(addr)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !h.Owner.Equals(owner) {
		return solana.PublicKey{}, errors.Wrapf(ErrOwnerMismatch, "%s", addr)
	}
	if !h.Mint.Equals(mint) {
		return solana.PublicKey{}, errors.Wrapf(ErrMintMismatch, "%s", addr)
	}
	return addr, nil
}

// MintTo issues amount new units of mint into dest
func (tx *Tx) MintTo(mint, dest solana.PublicKey, amount uint64, auth Authority) error {
	m, err := tx.Mint(mint)
	if err != nil {
		return err
	}
	if err := tx.authorize(m.Authority, auth); err != nil {
		return err
	}
	h, err := tx.Holding(dest)
	if err != nil {
		return err
	}
	if !h.Mint.Equals(mint) {
		return errors.Wrapf(ErrMintMismatch, "%s", dest)
	}
	if m.Supply > math.MaxUint64-amount || h.Amount > math.MaxUint64-amount {
		return errors.Wrapf(ErrOverflow, "mint %d to %s", amount, dest)
	}
	m.Supply += amount
	h.Amount += amount

	data, err := encode(m)
	if err != nil {
		return errors.Wrap(err, "encode mint")
	}
	if err := tx.WriteRecord(mint, TokenProgramID, data); err != nil {
		return err
	}
	return tx.writeHolding(dest, h)
}

// Transfer moves amount of mint from one holding to another. auth must be
// the owner of from, either as a signer or as a derived authority.
func (tx *Tx) Transfer(from, to, mint solana.PublicKey, amount uint64, auth Authority) error {
	src, err := tx.Holding(from)
	if err != nil {
		return err
	}
	dst, err := tx.Holding(to)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(mint) {
		return errors.Wrapf(ErrMintMismatch, "%s", from)
	}
	if !dst.Mint.Equals(mint) {
		return errors.Wrapf(ErrMintMismatch, "%s", to)
	}
	if err := tx.authorize(src.Owner, auth); err != nil {
		return err
	}
	if src.Amount < amount {
		return errors.Wrapf(ErrInsufficientFunds, "%s has %d, needs %d", from, src.Amount, amount)
	}
	if from.Equals(to) {
		return nil
	}
	if dst.Amount > math.MaxUint64-amount {
		return errors.Wrapf(ErrOverflow, "credit %s", to)
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := tx.writeHolding(from, src); err != nil {
		return err
	}
	return tx.writeHolding(to, dst)
}

// CloseHolding closes an empty holding and moves its deposit to dest
func (tx *Tx) CloseHolding(addr, dest solana.PublicKey, auth Authority) (uint64, error) {
	h, err := tx.Holding(addr)
	if err != nil {
		return 0, err
	}
	if err := tx.authorize(h.Owner, auth); err != nil {
		return 0, err
	}
	if h.Amount != 0 {
		return 0, errors.Wrapf(ErrNonZeroBalance, "%s holds %d", addr, h.Amount)
	}
	return tx.close(addr, tx.Lamports(addr), dest)
}
