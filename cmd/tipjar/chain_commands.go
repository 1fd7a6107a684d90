package main

import (
	"fmt"

	"github.com/brojonat/tipjar/service/config"
	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/brojonat/tipjar/service/wallet"
	"github.com/urfave/cli/v2"
)

// accountOutput is the JSON shape of `tipjar account`, and the input to
// its jq filters.
type accountOutput struct {
	Address      string `json:"address"`
	ProgramID    string `json:"program_id"`
	Initialized  bool   `json:"initialized"`
	Owner        string `json:"owner,omitempty"`
	TotalTips    uint64 `json:"total_tips"`
	TipCount     uint64 `json:"tip_count"`
	Balance      uint64 `json:"balance"`
	RentFloor    uint64 `json:"rent_floor"`
	Available    uint64 `json:"available"`
	TotalTipsSOL string `json:"total_tips_sol"`
	AvailableSOL string `json:"available_sol"`
}

func programFromContext(c *cli.Context) (tipjar.Program, error) {
	id, err := tipjar.ParseProgramID(c.String("program-id"))
	if err != nil {
		return tipjar.Program{}, err
	}
	return tipjar.NewProgram(id)
}

func chainFromContext(c *cli.Context) (*solana.Client, tipjar.Program, error) {
	program, err := programFromContext(c)
	if err != nil {
		return nil, tipjar.Program{}, err
	}
	commitment, err := config.ParseCommitment(c.String("commitment"))
	if err != nil {
		return nil, tipjar.Program{}, err
	}
	rpcURL := c.String("rpc-url")
	client := solana.NewClient(solana.NewRPCClient(rpcURL), config.DetectNetwork(rpcURL), nil, newLogger(c),
		solana.WithCommitment(commitment),
	)
	return client, program, nil
}

func signerFromContext(c *cli.Context) (wallet.Signer, error) {
	path := c.String("keypair")
	if path == "" {
		return nil, fmt.Errorf("keypair is required (set WALLET_KEYPAIR_PATH env var or use --keypair)")
	}
	w, err := wallet.LoadKeypairWallet(path)
	if err != nil {
		return nil, err
	}
	if _, err := w.Connect(); err != nil {
		return nil, err
	}
	return w, nil
}

func addressCommand() *cli.Command {
	return &cli.Command{
		Name:  "address",
		Usage: "Print the tip jar address derived from the program id",
		Action: func(c *cli.Context) error {
			program, err := programFromContext(c)
			if err != nil {
				return err
			}
			addr, bump, err := tipjar.DeriveAddress(program.ID)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]interface{}{
					"address":    addr.String(),
					"bump":       bump,
					"program_id": program.ID.String(),
				})
			}
			fmt.Fprintln(c.App.Writer, addr.String())
			return nil
		},
	}
}

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "Read the tip jar account, balance and rent floor",
		Description: `Reads the tip jar over RPC and prints it.

With --jq the output is filtered through jq expressions. With --must-jq
every expression must evaluate truthy or the command fails, which makes it
usable as a check in scripts:

  tipjar account --must-jq '.tip_count > 0' --must-jq '.available >= 100000000'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression applied to the JSON output",
			},
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "jq expression that must be truthy (can be repeated)",
			},
		},
		Action: func(c *cli.Context) error {
			filter, err := compileJQ(c.String("jq"))
			if err != nil {
				return err
			}
			checks, err := compileJQChecks(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			client, program, err := chainFromContext(c)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(c)
			defer cancel()

			snap, err := client.ReadSnapshot(ctx, program.Address())
			if err != nil {
				return fmt.Errorf("failed to read tip jar: %w", err)
			}
			out := newAccountOutput(program, snap)

			if len(checks) > 0 {
				if err := mustMatch(checks, out); err != nil {
					return err
				}
			}
			switch {
			case filter != nil:
				return printJQ(c.App.Writer, filter, out)
			case c.Bool("json"):
				return printJSON(c.App.Writer, out)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Tip jar:    %s\n", out.Address)
			if !out.Initialized {
				fmt.Fprintf(w, "Status:     not initialized\n")
			} else {
				fmt.Fprintf(w, "Owner:      %s\n", out.Owner)
				fmt.Fprintf(w, "Total tips: %s SOL (%d tips)\n", out.TotalTipsSOL, out.TipCount)
			}
			fmt.Fprintf(w, "Balance:    %s SOL\n", tipjar.FormatSOL(out.Balance))
			fmt.Fprintf(w, "Available:  %s SOL\n", out.AvailableSOL)
			return nil
		},
	}
}

func newAccountOutput(program tipjar.Program, snap solana.Snapshot) accountOutput {
	out := accountOutput{
		Address:      snap.Address.String(),
		ProgramID:    program.ID.String(),
		Balance:      snap.Balance,
		RentFloor:    snap.RentFloor,
		Available:    snap.Available(),
		AvailableSOL: tipjar.FormatSOL(snap.Available()),
		TotalTipsSOL: tipjar.FormatSOL(0),
	}
	if snap.Account != nil {
		out.Initialized = true
		out.Owner = snap.Account.Owner.String()
		out.TotalTips = snap.Account.TotalTips
		out.TipCount = snap.Account.TipCount
		out.TotalTipsSOL = tipjar.FormatSOL(snap.Account.TotalTips)
	}
	return out
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Print the lamport balance of an address (the tip jar by default)",
		ArgsUsage: "[ADDRESS]",
		Action: func(c *cli.Context) error {
			client, program, err := chainFromContext(c)
			if err != nil {
				return err
			}
			address := program.Address()
			if c.NArg() > 0 {
				if address, err = parsePublicKey(c.Args().First()); err != nil {
					return err
				}
			}

			ctx, cancel := signalContext(c)
			defer cancel()
			balance, err := client.GetNativeBalance(ctx, address)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]interface{}{
					"address":     address.String(),
					"lamports":    balance,
					"balance_sol": tipjar.FormatSOLExact(balance),
				})
			}
			fmt.Fprintf(c.App.Writer, "%s SOL\n", tipjar.FormatSOLExact(balance))
			return nil
		},
	}
}

func initializeCommand() *cli.Command {
	return &cli.Command{
		Name:  "initialize",
		Usage: "Create the tip jar account with the keypair as owner",
		Action: func(c *cli.Context) error {
			return submitCommand(c, func(client *solana.Client, signer wallet.Signer, program tipjar.Program) (*solana.Receipt, error) {
				return client.Initialize(c.Context, signer, program)
			})
		},
	}
}

func tipCommand() *cli.Command {
	return &cli.Command{
		Name:      "tip",
		Usage:     "Send a tip from the keypair",
		ArgsUsage: "AMOUNT_SOL",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("amount is required")
			}
			amount, err := tipjar.ParseSOL(c.Args().First())
			if err != nil {
				return err
			}
			return submitCommand(c, func(client *solana.Client, signer wallet.Signer, program tipjar.Program) (*solana.Receipt, error) {
				return client.SendTip(c.Context, signer, program, amount)
			})
		},
	}
}

func withdrawCommand() *cli.Command {
	return &cli.Command{
		Name:      "withdraw",
		Usage:     "Withdraw to the keypair, which must own the tip jar",
		ArgsUsage: "[AMOUNT_SOL]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Withdraw everything above the rent floor",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 && !c.Bool("all") {
				return fmt.Errorf("amount or --all is required")
			}
			return submitCommand(c, func(client *solana.Client, signer wallet.Signer, program tipjar.Program) (*solana.Receipt, error) {
				if !c.Bool("all") {
					amount, err := tipjar.ParseSOL(c.Args().First())
					if err != nil {
						return nil, err
					}
					return client.Withdraw(c.Context, signer, program, amount)
				}
				snap, err := client.ReadSnapshot(c.Context, program.Address())
				if err != nil {
					return nil, err
				}
				if snap.Available() == 0 {
					return nil, fmt.Errorf("%w: nothing available to withdraw", tipjar.ErrInsufficientFunds)
				}
				return client.Withdraw(c.Context, signer, program, snap.Available())
			})
		},
	}
}

// submitCommand runs one signed submission and prints its receipt.
// c.Context is replaced with a signal-aware context for the duration.
func submitCommand(c *cli.Context, send func(*solana.Client, wallet.Signer, tipjar.Program) (*solana.Receipt, error)) error {
	signer, err := signerFromContext(c)
	if err != nil {
		return err
	}
	client, program, err := chainFromContext(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	c.Context = ctx

	receipt, err := send(client, signer, program)
	if err != nil {
		return err
	}
	return printReceipt(c.App.Writer, receipt, c.Bool("json"))
}
