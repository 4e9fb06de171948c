package ledger

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// Journal persists the change set of a successful invocation. If Commit
// fails the invocation is aborted and no change becomes visible.
type Journal interface {
	Commit(ctx context.Context, changes []Change) error
}

// Ledger is the host that stores accounts and executes invocations.
// Invocations are serialized and all-or-nothing.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
	clock    Clock
	journal  Journal
	log      *slog.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithJournal(j Journal) Option {
	return func(l *Ledger) { l.journal = j }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// New creates an empty ledger
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts: make(map[solana.PublicKey]*Account),
		clock:    SystemClock{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With("pkg", "ledger")
	return l
}

// Restore replaces the ledger contents, typically with accounts loaded from
// the journal's backing store at startup.
func (l *Ledger) Restore(accounts map[solana.PublicKey]*Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = make(map[solana.PublicKey]*Account, len(accounts))
	for addr, acc := range accounts {
		l.accounts[addr] = acc.clone()
	}
	l.log.Info("ledger restored", "accounts", len(accounts))
}

// Now returns the ledger clock
func (l *Ledger) Now() int64 {
	return l.clock.Now()
}

// Invoke executes fn as one atomic invocation signed by signers.
// Time is sampled once, before fn runs.
func (l *Ledger) Invoke(ctx context.Context, signers []solana.PublicKey, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTx(l.accounts, l.clock.Now(), signers)
	if err := fn(tx); err != nil {
		return err
	}

	changes := tx.changes()
	if len(changes) == 0 {
		return nil
	}
	if l.journal != nil {
		if err := l.journal.Commit(ctx, changes); err != nil {
			return errors.Wrap(err, "journal commit")
		}
	}
	for _, c := range changes {
		if c.Account == nil {
			delete(l.accounts, c.Address)
			continue
		}
		l.accounts[c.Address] = c.Account
	}
	return nil
}

// View runs fn against the committed state. Writes made by fn are discarded.
func (l *Ledger) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(newTx(l.accounts, l.clock.Now(), nil))
}

// Airdrop credits lamports to an identity
func (l *Ledger) Airdrop(ctx context.Context, to solana.PublicKey, lamports uint64) error {
	return l.Invoke(ctx, nil, func(tx *Tx) error {
		return tx.credit(to, lamports)
	})
}

// Snapshot returns a copy of every account, ordered by address
func (l *Ledger) Snapshot() []Change {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Change, 0, len(l.accounts))
	for addr, acc := range l.accounts {
		out = append(out, Change{Address: addr, Account: acc.clone()})
	}
	sortChanges(out)
	return out
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		return bytes.Compare(changes[i].Address[:], changes[j].Address[:]) < 0
	})
}
