package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"maestro/internal/sender"
)

// newChatCmd runs the same Conversation interactively over stdin/stdout
// instead of the webhook/sender pair -- useful for local development
// without a live SMS/WhatsApp driver configured.
func newChatCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to Maestro interactively over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.store.Close()

			a.startHeartbeat(ctx, sender.LoggingSender{Log: a.log})

			fmt.Println("Maestro is listening. Type a message and press enter (Ctrl+C to quit).")
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				reply, err := a.conv.Send(ctx, line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				fmt.Printf("maestro> %s\n", reply)
			}
			return scanner.Err()
		},
	}
}
