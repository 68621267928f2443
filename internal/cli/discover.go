package cli

import (
	"context"
	"fmt"
	"time"

	cli3 "github.com/urfave/cli/v3"

	"github.com/laofahai/linch-mind-sub000/internal/discovery"
)

func buildDiscoverCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "discover",
		Usage: "Locate the daemon's IPC endpoint and print its reachability",
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			env := cmd.Root().String("environment")
			ep, err := discovery.Discover(env, nil)
			if err != nil {
				fmt.Printf("%s daemon unreachable: %v\n", styledLabel("status"), err)
				return err
			}
			fmt.Printf("%s %s\n", styledLabel("socket"), ep.SocketPath)
			fmt.Printf("%s %v\n", styledLabel("reachable"), ep.Reachable)
			return nil
		},
	}
}

func buildWaitCommand() *cli3.Command {
	return &cli3.Command{
		Name:  "wait",
		Usage: "Block until the daemon is reachable or the timeout elapses",
		Flags: []cli3.Flag{
			&cli3.DurationFlag{Name: "timeout", Value: 10 * time.Second},
		},
		Action: func(ctx context.Context, cmd *cli3.Command) error {
			env := cmd.Root().String("environment")
			timeout := cmd.Duration("timeout")
			c, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			ep, err := discovery.WaitForDaemon(c, env, timeout, nil)
			if err != nil {
				fmt.Printf("%s timed out waiting for daemon: %v\n", styledLabel("status"), err)
				return err
			}
			fmt.Printf("%s daemon reachable at %s\n", styledLabel("status"), ep.SocketPath)
			return nil
		},
	}
}
