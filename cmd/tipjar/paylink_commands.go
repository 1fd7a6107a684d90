package main

import (
	"fmt"
	"os"

	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/urfave/cli/v2"
)

func payLinkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "amount",
			Aliases: []string{"a"},
			Usage:   "Suggested tip in SOL",
			EnvVars: []string{"SUGGESTED_TIP_SOL"},
			Value:   "0.1",
		},
		&cli.StringFlag{
			Name:    "label",
			Usage:   "Label shown by the paying wallet",
			EnvVars: []string{"PAY_LABEL"},
			Value:   tipjar.DefaultPayLabel,
		},
		&cli.StringFlag{
			Name:    "message",
			Usage:   "Message shown by the paying wallet",
			EnvVars: []string{"PAY_MESSAGE"},
			Value:   tipjar.DefaultPayMessage,
		},
	}
}

// scanURIFromContext builds the Solana Pay URI offline from flags.
func scanURIFromContext(c *cli.Context) (string, error) {
	program, err := programFromContext(c)
	if err != nil {
		return "", err
	}
	amount, err := tipjar.ParseSOL(c.String("amount"))
	if err != nil {
		return "", err
	}
	return tipjar.BuildScanURI(program.Address(), amount, c.String("label"), c.String("message")), nil
}

func payURICommand() *cli.Command {
	return &cli.Command{
		Name:  "pay-uri",
		Usage: "Print the Solana Pay URI for the tip jar",
		Flags: payLinkFlags(),
		Action: func(c *cli.Context) error {
			uri, err := scanURIFromContext(c)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				req, err := tipjar.ParseScanURI(uri)
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, map[string]interface{}{
					"payment_url": uri,
					"request":     req,
				})
			}
			fmt.Fprintln(c.App.Writer, uri)
			return nil
		},
	}
}

func qrCommand() *cli.Command {
	flags := append(payLinkFlags(),
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "PNG file to write",
			Value:   "tipjar-qr.png",
		},
		&cli.IntFlag{
			Name:  "size",
			Usage: "Image width and height in pixels",
			Value: 280,
		},
	)
	return &cli.Command{
		Name:  "qr",
		Usage: "Write the Solana Pay QR code as a PNG",
		Flags: flags,
		Action: func(c *cli.Context) error {
			uri, err := scanURIFromContext(c)
			if err != nil {
				return err
			}
			png, err := tipjar.QRCodePNG(uri, c.Int("size"))
			if err != nil {
				return err
			}
			out := c.String("out")
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(c.App.Writer, "✓ Wrote %s\n", out)
			fmt.Fprintf(c.App.Writer, "  URI: %s\n", uri)
			return nil
		},
	}
}
