package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/xtrntr/auctionhouse/internal/auction"
	"github.com/xtrntr/auctionhouse/internal/auth"
	"github.com/xtrntr/auctionhouse/internal/config"
	"github.com/xtrntr/auctionhouse/internal/db"
	"github.com/xtrntr/auctionhouse/internal/ledger"
	"github.com/xtrntr/auctionhouse/internal/logging"
)

const (
	seedPassword    = "password123"
	bidDecimals     = 6
	bidFundsPerUser = 1_000 * 1_000_000
	walletLamports  = 10_000_000_000
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a .toml or .yaml config file",
	}
	migrationFlag = cli.StringFlag{
		Name:  "migration",
		Value: "migrations/001_init.sql",
		Usage: "schema script applied before seeding",
	}
	durationFlag = cli.DurationFlag{
		Name:  "duration",
		Value: time.Hour,
		Usage: "how long the demo auction accepts bids",
	}
)

type wallet struct {
	Username   string `json:"username"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

type summary struct {
	Program   string   `json:"program"`
	PrizeMint string   `json:"prize_mint"`
	BidMint   string   `json:"bid_mint"`
	Auction   string   `json:"auction"`
	Password  string   `json:"password"`
	Accounts  int      `json:"accounts"`
	Wallets   []wallet `json:"wallets"`
}

// Seed the ledger with two assets, funded users and one live auction
func main() {
	app := cli.App{
		Name:   "auction-seed",
		Usage:  "bootstrap a demo ledger",
		Flags:  []cli.Flag{configFlag, migrationFlag, durationFlag},
		Action: seed,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func seed(c *cli.Context) error {
	ctx := context.Background()
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logging.New(level, os.Stderr)
	programID, err := cfg.Program()
	if err != nil {
		return err
	}

	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(ctx)

	if path := c.String(migrationFlag.Name); path != "" {
		script, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read migration: %w", err)
		}
		if err := database.Migrate(ctx, string(script)); err != nil {
			return err
		}
	}

	// First check if the ledger already has state
	accounts, err := database.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) > 0 {
		fmt.Printf("Ledger already has %d accounts. No need to seed.\n", len(accounts))
		return nil
	}

	l := ledger.New(ledger.WithJournal(database), ledger.WithLogger(log))
	program := auction.New(programID, l, log)
	authService := auth.NewAuthService(database, cfg.JWTSecret, cfg.TokenTTL.Duration)

	admin, err := solana.NewRandomPrivateKey()
	if err != nil {
		return err
	}
	prizeMint, bidMint := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	if err := l.Airdrop(ctx, admin.PublicKey(), 100*walletLamports); err != nil {
		return err
	}
	err = l.Invoke(ctx, []solana.PublicKey{admin.PublicKey()}, func(tx *ledger.Tx) error {
		if err := tx.CreateMint(admin.PublicKey(), prizeMint, admin.PublicKey(), 0); err != nil {
			return err
		}
		return tx.CreateMint(admin.PublicKey(), bidMint, admin.PublicKey(), bidDecimals)
	})
	if err != nil {
		return fmt.Errorf("failed to create mints: %w", err)
	}

	out := summary{
		Program:   programID.String(),
		PrizeMint: prizeMint.String(),
		BidMint:   bidMint.String(),
		Password:  seedPassword,
	}
	var maker solana.PublicKey
	for i, name := range []string{"alice", "bob", "carol"} {
		priv, err := solana.NewRandomPrivateKey()
		if err != nil {
			return err
		}
		pk := priv.PublicKey()
		if err := fund(ctx, l, admin.PublicKey(), pk, prizeMint, bidMint, i == 0); err != nil {
			return fmt.Errorf("failed to fund %s: %w", name, err)
		}

		sig, err := priv.Sign(auth.RegistrationMessage(name))
		if err != nil {
			return err
		}
		if _, err := authService.Register(ctx, name, seedPassword, pk, sig); err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
		if i == 0 {
			maker = pk
		}
		out.Wallets = append(out.Wallets, wallet{Username: name, PublicKey: pk.String(), PrivateKey: priv.String()})
	}

	addr, err := program.MakeAuction(ctx, maker, auction.MakeParams{
		Seed:          1,
		EndTime:       time.Now().Add(c.Duration(durationFlag.Name)).Unix(),
		PrizeMint:     prizeMint,
		BidMint:       bidMint,
		DepositAmount: auction.PrizeUnit,
	})
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	out.Auction = addr.String()
	out.Accounts = len(l.Snapshot())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// fund gives pk lamports and bid funds, and the prize unit when withPrize is set
func fund(ctx context.Context, l *ledger.Ledger, admin, pk, prizeMint, bidMint solana.PublicKey, withPrize bool) error {
	if err := l.Airdrop(ctx, pk, walletLamports); err != nil {
		return err
	}
	return l.Invoke(ctx, []solana.PublicKey{admin}, func(tx *ledger.Tx) error {
		holding, err := tx.InitHolding(admin, pk, bidMint)
		if err != nil {
			return err
		}
		if err := tx.MintTo(bidMint, holding, bidFundsPerUser, ledger.Signer(admin)); err != nil {
			return err
		}
		if !withPrize {
			return nil
		}
		holding, err = tx.InitHolding(admin, pk, prizeMint)
		if err != nil {
			return err
		}
		return tx.MintTo(prizeMint, holding, auction.PrizeUnit, ledger.Signer(admin))
	})
}
