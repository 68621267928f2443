package cli

import (
	"context"
	"fmt"

	cli3 "github.com/urfave/cli/v3"

	"github.com/laofahai/linch-mind-sub000/internal/discovery"
	"github.com/laofahai/linch-mind-sub000/internal/ipc"
	"github.com/laofahai/linch-mind-sub000/internal/transport"
)

func buildStatusCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "status",
		Usage: "Query a connector's current status from the daemon",
		Flags: []cli3.Flag{
			&cli3.StringFlag{Name: "connector-id", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			env := cmd.Root().String("environment")
			connectorID := cmd.String("connector-id")

			ep, err := discovery.Discover(env, nil)
			if err != nil {
				return fmt.Errorf("discovering daemon: %w", err)
			}

			conn, err := transport.Connect(transport.DialDefault, ep.SocketType, ep.SocketPath, "cli", transport.DefaultTimeout, nil)
			if err != nil {
				return fmt.Errorf("connecting to daemon: %w", err)
			}
			client := ipc.New(conn)
			defer client.Close()

			raw, err := client.Get(fmt.Sprintf("/connectors/%s/status", connectorID))
			if err != nil {
				return fmt.Errorf("fetching status: %w", err)
			}

			fmt.Printf("%s %s\n", styledLabel("connector"), connectorID)
			fmt.Printf("%s %s\n", styledLabel("raw"), string(raw))
			return nil
		},
	}
}
