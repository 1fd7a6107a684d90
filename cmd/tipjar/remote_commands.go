package main

import (
	"fmt"

	"github.com/brojonat/tipjar/client"
	"github.com/urfave/cli/v2"
)

func remoteCommands() *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Drive a running tip jar server over HTTP",
		Subcommands: []*cli.Command{
			remoteStatusCommand(),
			remoteConnectCommand(),
			remoteDisconnectCommand(),
			remoteTipCommand(),
			remoteWithdrawCommand(),
			remotePayURICommand(),
		},
	}
}

func remoteClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, newLogger(c))
}

func remoteStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the server's view of the tip jar",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Ask the server to re-read the chain first",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression applied to the JSON output",
			},
		},
		Action: func(c *cli.Context) error {
			filter, err := compileJQ(c.String("jq"))
			if err != nil {
				return err
			}
			v, err := remoteClient(c).Status(c.Context, c.Bool("refresh"))
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			switch {
			case filter != nil:
				return printJQ(c.App.Writer, filter, v)
			case c.Bool("json"):
				return printJSON(c.App.Writer, v)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Tip jar:    %s (%s)\n", v.Address, v.Network)
			fmt.Fprintf(w, "State:      %s\n", v.State)
			if v.Connected {
				fmt.Fprintf(w, "Wallet:     %s\n", v.Wallet)
			}
			if v.Initialized {
				fmt.Fprintf(w, "Total tips: %s SOL (%d tips)\n", v.TotalTipsSOL, v.TipCount)
				fmt.Fprintf(w, "Available:  %s SOL\n", v.AvailableSOL)
			} else {
				fmt.Fprintf(w, "Status:     not initialized\n")
			}
			if v.ReadError != "" {
				fmt.Fprintf(w, "Read error: %s\n", v.ReadError)
			}
			return nil
		},
	}
}

func remoteConnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect the server's wallet",
		Action: func(c *cli.Context) error {
			v, err := remoteClient(c).Connect(c.Context)
			if err != nil {
				return fmt.Errorf("failed to connect wallet: %w", err)
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, v)
			}
			fmt.Fprintf(c.App.Writer, "✓ Connected %s (%s)\n", v.Wallet, v.State)
			return nil
		},
	}
}

func remoteDisconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Disconnect the server's wallet",
		Action: func(c *cli.Context) error {
			v, err := remoteClient(c).Disconnect(c.Context)
			if err != nil {
				return fmt.Errorf("failed to disconnect wallet: %w", err)
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, v)
			}
			fmt.Fprintln(c.App.Writer, "✓ Disconnected")
			return nil
		},
	}
}

func remoteTipCommand() *cli.Command {
	return &cli.Command{
		Name:      "tip",
		Usage:     "Tip from the server's connected wallet",
		ArgsUsage: "AMOUNT_SOL",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("amount is required")
			}
			sub, err := remoteClient(c).SendTip(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to send tip: %w", err)
			}
			return printReceipt(c.App.Writer, sub.Receipt, c.Bool("json"))
		},
	}
}

func remoteWithdrawCommand() *cli.Command {
	return &cli.Command{
		Name:      "withdraw",
		Usage:     "Withdraw to the server's connected owner wallet",
		ArgsUsage: "[AMOUNT_SOL]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Withdraw everything above the rent floor",
			},
		},
		Action: func(c *cli.Context) error {
			cl := remoteClient(c)
			var (
				sub *client.Submission
				err error
			)
			switch {
			case c.Bool("all"):
				sub, err = cl.WithdrawAll(c.Context)
			case c.NArg() > 0:
				sub, err = cl.Withdraw(c.Context, c.Args().First())
			default:
				return fmt.Errorf("amount or --all is required")
			}
			if err != nil {
				return fmt.Errorf("failed to withdraw: %w", err)
			}
			return printReceipt(c.App.Writer, sub.Receipt, c.Bool("json"))
		},
	}
}

func remotePayURICommand() *cli.Command {
	return &cli.Command{
		Name:  "pay-uri",
		Usage: "Fetch the server's Solana Pay URI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "amount",
				Usage: "Override the suggested tip in SOL",
			},
			&cli.StringFlag{
				Name:  "label",
				Usage: "Override the label",
			},
		},
		Action: func(c *cli.Context) error {
			card, err := remoteClient(c).PayURI(c.Context, c.String("amount"), c.String("label"), false)
			if err != nil {
				return fmt.Errorf("failed to get pay URI: %w", err)
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, card)
			}
			fmt.Fprintln(c.App.Writer, card.PaymentURL)
			return nil
		},
	}
}
