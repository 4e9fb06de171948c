package ledger

import "github.com/pkg/errors"

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountInUse         = errors.New("account already in use")
	ErrIllegalOwner         = errors.New("account not owned by program")
	ErrDataSize             = errors.New("account data size mismatch")
	ErrMissingSigner        = errors.New("missing required signature")
	ErrInvalidAuthority     = errors.New("authority does not derive to owner")
	ErrOwnerMismatch        = errors.New("holding owner mismatch")
	ErrMintMismatch         = errors.New("holding mint mismatch")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientLamports = errors.New("insufficient lamports for storage deposit")
	ErrNonZeroBalance       = errors.New("holding balance is not zero")
	ErrOverflow             = errors.New("arithmetic overflow")
)
