package ledger

import (
	"github.com/gagliardetto/solana-go"
)

// Account is a host-allocated account. Data is only mutated by the Owner program.
type Account struct {
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
}

func (a *Account) clone() *Account {
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// Change is one account write produced by an invocation.
// A nil Account means the account was closed.
type Change struct {
	Address solana.PublicKey
	Account *Account
}

const (
	accountOverhead = 128
	lamportsPerByte = 6960
)

// RentExemptMinimum is the storage deposit held by an account of dataLen bytes.
// It is returned to whoever the account is closed into.
func RentExemptMinimum(dataLen int) uint64 {
	return uint64(dataLen+accountOverhead) * lamportsPerByte
}
