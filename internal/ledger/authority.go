package ledger

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// Authority authorizes moving funds out of a holding.
//
// A signer authority is an identity that signed the invocation. A derived
// authority is a program address computed from seeds; it carries no private
// key and is accepted whenever its seeds re-derive to the holding's owner.
type Authority struct {
	address solana.PublicKey
	program solana.PublicKey
	seeds   [][]byte
}

// Signer returns the authority of an identity that signed the invocation
func Signer(pk solana.PublicKey) Authority {
	return Authority{address: pk}
}

// DeriveAuthority builds the authority for the program address of seeds.
// The seeds must already include the bump.
func DeriveAuthority(program solana.PublicKey, seeds ...[]byte) (Authority, error) {
	addr, err := solana.CreateProgramAddress(seeds, program)
	if err != nil {
		return Authority{}, errors.Wrap(err, "derive authority")
	}
	return Authority{address: addr, program: program, seeds: copySeeds(seeds)}, nil
}

// FindAuthority searches for the canonical bump of seeds and returns the
// resulting authority together with the bump.
func FindAuthority(program solana.PublicKey, seeds ...[]byte) (Authority, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return Authority{}, 0, errors.Wrap(err, "find program address")
	}
	full := append(copySeeds(seeds), []byte{bump})
	return Authority{address: addr, program: program, seeds: full}, bump, nil
}

// Address is the account this authority speaks for
func (a Authority) Address() solana.PublicKey { return a.address }

// Derived reports whether this is a program-derived authority
func (a Authority) Derived() bool { return a.seeds != nil }

func copySeeds(seeds [][]byte) [][]byte {
	out := make([][]byte, len(seeds))
	for i, s := range seeds {
		out[i] = append([]byte(nil), s...)
	}
	return out
}

// authorize checks that a may act for owner within tx
func (tx *Tx) authorize(owner solana.PublicKey, a Authority) error {
	if !a.address.Equals(owner) {
		return errors.Wrapf(ErrOwnerMismatch, "authority %s for owner %s", a.address, owner)
	}
	if a.Derived() {
		addr, err := solana.CreateProgramAddress(a.seeds, a.program)
		if err != nil || !addr.Equals(owner) {
			return errors.Wrapf(ErrInvalidAuthority, "owner %s", owner)
		}
		return nil
	}
	return tx.RequireSigner(owner)
}
