package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/brojonat/tipjar/service/nats"
	"github.com/urfave/cli/v2"
)

func eventsCommands() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Follow confirmed tips and withdrawals",
		Subcommands: []*cli.Command{
			eventsSubscribeCommand(),
			eventsStreamCommand(),
			eventsInspectCommand(),
		},
	}
}

func eventsSubscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to tip jar events on NATS JetStream",
		ArgsUsage: "[TIPJAR_ADDRESS]",
		Description: `Streams events published by the tip jar server to NATS.

Events are published to the subject tipjar.{address}. Without an address
the configured program's tip jar is used; pass "all" for every tip jar.

Example:
  tipjar events subscribe --replay --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "replay",
				Usage: "Deliver retained history before new events",
			},
		},
		Action: func(c *cli.Context) error {
			address := c.Args().First()
			switch address {
			case "":
				program, err := programFromContext(c)
				if err != nil {
					return err
				}
				address = program.Address().String()
			case "all":
				address = ""
			}

			sub, err := nats.NewSubscriber(c.String("nats-url"), newLogger(c))
			if err != nil {
				return err
			}
			defer sub.Close()

			ctx, cancel := signalContext(c)
			defer cancel()

			events, err := sub.Stream(ctx, address, c.Bool("replay"))
			if err != nil {
				return err
			}
			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "Subscribed to %s (Ctrl+C to stop)\n\n", subjectLabel(address))
			}
			for event := range events {
				if err := printEvent(c.App.Writer, event, jsonOutput); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func subjectLabel(address string) string {
	if address == "" {
		return nats.StreamSubjects
	}
	return nats.Subject(address)
}

func eventsStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Stream tip jar events from the server via SSE (HTTP)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "replay",
				Usage: "Deliver retained history before new events",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := signalContext(c)
			defer cancel()

			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "Streaming events from %s (Ctrl+C to stop)\n\n", c.String("server-url"))
			}
			return remoteClient(c).StreamEvents(ctx, c.Bool("replay"), func(e *nats.Event) error {
				return printEvent(c.App.Writer, e, jsonOutput)
			})
		},
	}
}

func eventsInspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the TIPJAR JetStream stream",
		Action: func(c *cli.Context) error {
			sub, err := nats.NewSubscriber(c.String("nats-url"), newLogger(c))
			if err != nil {
				return err
			}
			defer sub.Close()

			info, err := sub.StreamInfo(c.Context)
			if err != nil {
				return err
			}

			w := c.App.Writer
			if c.Bool("json") {
				data, _ := json.MarshalIndent(info, "", "  ")
				fmt.Fprintln(w, string(data))
				return nil
			}
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
