package ledger

import (
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// Tx is the view of the ledger inside one invocation. Reads fall through to
// the committed state; writes stay in the overlay until the invocation
// commits.
type Tx struct {
	base    map[solana.PublicKey]*Account
	writes  map[solana.PublicKey]*Account
	now     int64
	signers map[solana.PublicKey]struct{}
}

func newTx(base map[solana.PublicKey]*Account, now int64, signers []solana.PublicKey) *Tx {
	tx := &Tx{
		base:    base,
		writes:  make(map[solana.PublicKey]*Account),
		now:     now,
		signers: make(map[solana.PublicKey]struct{}, len(signers)),
	}
	for _, s := range signers {
		tx.signers[s] = struct{}{}
	}
	return tx
}

// Now is the invocation time in unix seconds
func (tx *Tx) Now() int64 { return tx.now }

func (tx *Tx) IsSigner(pk solana.PublicKey) bool {
	_, ok := tx.signers[pk]
	return ok
}

func (tx *Tx) RequireSigner(pk solana.PublicKey) error {
	if !tx.IsSigner(pk) {
		return errors.Wrapf(ErrMissingSigner, "%s", pk)
	}
	return nil
}

func (tx *Tx) lookup(addr solana.PublicKey) (*Account, bool) {
	if acc, ok := tx.writes[addr]; ok {
		return acc, acc != nil
	}
	acc, ok := tx.base[addr]
	return acc, ok
}

// Exists reports whether addr holds an account
func (tx *Tx) Exists(addr solana.PublicKey) bool {
	_, ok := tx.lookup(addr)
	return ok
}

// Lamports returns the native balance of addr, zero if it does not exist
func (tx *Tx) Lamports(addr solana.PublicKey) uint64 {
	if acc, ok := tx.lookup(addr); ok {
		return acc.Lamports
	}
	return 0
}

func (tx *Tx) put(addr solana.PublicKey, acc *Account) {
	tx.writes[addr] = acc
}

func (tx *Tx) remove(addr solana.PublicKey) {
	tx.writes[addr] = nil
}

func (tx *Tx) credit(addr solana.PublicKey, lamports uint64) error {
	acc, ok := tx.lookup(addr)
	if !ok {
		tx.put(addr, &Account{Lamports: lamports, Owner: solana.SystemProgramID})
		return nil
	}
	if acc.Lamports > math.MaxUint64-lamports {
		return errors.Wrapf(ErrOverflow, "credit %s", addr)
	}
	acc = acc.clone()
	acc.Lamports += lamports
	tx.put(addr, acc)
	return nil
}

func (tx *Tx) debit(addr solana.PublicKey, lamports uint64) error {
	acc, ok := tx.lookup(addr)
	if !ok || acc.Lamports < lamports {
		return errors.Wrapf(ErrInsufficientLamports, "%s needs %d", addr, lamports)
	}
	acc = acc.clone()
	acc.Lamports -= lamports
	if acc.Lamports == 0 && acc.Owner.Equals(solana.SystemProgramID) && len(acc.Data) == 0 {
		tx.remove(addr)
		return nil
	}
	tx.put(addr, acc)
	return nil
}

// allocate creates an account at addr funded with its storage deposit by payer
func (tx *Tx) allocate(payer, addr, owner solana.PublicKey, data []byte) error {
	if err := tx.RequireSigner(payer); err != nil {
		return err
	}
	if tx.Exists(addr) {
		return errors.Wrapf(ErrAccountInUse, "%s", addr)
	}
	deposit := RentExemptMinimum(len(data))
	if err := tx.debit(payer, deposit); err != nil {
		return err
	}
	tx.put(addr, &Account{Lamports: deposit, Owner: owner, Data: append([]byte(nil), data...)})
	return nil
}

// CreateRecord allocates a program record at addr paid for by payer
func (tx *Tx) CreateRecord(payer, addr, program solana.PublicKey, data []byte) error {
	return tx.allocate(payer, addr, program, data)
}

// Record returns the data of a record owned by program
func (tx *Tx) Record(addr, program solana.PublicKey) ([]byte, error) {
	acc, ok := tx.lookup(addr)
	if !ok {
		return nil, errors.Wrapf(ErrAccountNotFound, "%s", addr)
	}
	if !acc.Owner.Equals(program) {
		return nil, errors.Wrapf(ErrIllegalOwner, "%s owned by %s", addr, acc.Owner)
	}
	return append([]byte(nil), acc.Data...), nil
}

// WriteRecord overwrites a record. The size of a record never changes.
func (tx *Tx) WriteRecord(addr, program solana.PublicKey, data []byte) error {
	acc, ok := tx.lookup(addr)
	if !ok {
		return errors.Wrapf(ErrAccountNotFound, "%s", addr)
	}
	if !acc.Owner.Equals(program) {
		return errors.Wrapf(ErrIllegalOwner, "%s owned by %s", addr, acc.Owner)
	}
	if len(data) != len(acc.Data) {
		return errors.Wrapf(ErrDataSize, "%s: %d != %d", addr, len(data), len(acc.Data))
	}
	acc = acc.clone()
	copy(acc.Data, data)
	tx.put(addr, acc)
	return nil
}

// CloseRecord destroys a record and moves its storage deposit to dest,
// returning the reclaimed amount. Any party may be the fee payer.
func (tx *Tx) CloseRecord(addr, program, dest solana.PublicKey) (uint64, error) {
	acc, ok := tx.lookup(addr)
	if !ok {
		return 0, errors.Wrapf(ErrAccountNotFound, "%s", addr)
	}
	if !acc.Owner.Equals(program) {
		return 0, errors.Wrapf(ErrIllegalOwner, "%s owned by %s", addr, acc.Owner)
	}
	return tx.close(addr, acc.Lamports, dest)
}

func (tx *Tx) close(addr solana.PublicKey, lamports uint64, dest solana.PublicKey) (uint64, error) {
	tx.remove(addr)
	if err := tx.credit(dest, lamports); err != nil {
		return 0, err
	}
	return lamports, nil
}

func (tx *Tx) changes() []Change {
	out := make([]Change, 0, len(tx.writes))
	for addr, acc := range tx.writes {
		if acc == nil {
			if _, existed := tx.base[addr]; !existed {
				continue
			}
			out = append(out, Change{Address: addr})
			continue
		}
		out = append(out, Change{Address: addr, Account: acc})
	}
	sortChanges(out)
	return out
}
