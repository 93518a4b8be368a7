package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"maestro/internal/httpapi"
	"maestro/internal/sender"
)

func newServeCmd(configPath *string) *cobra.Command {
	var introNumber string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket server, heartbeat loop, and webhook listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.store.Close()

			snd := sender.LoggingSender{Log: a.log}
			a.startHeartbeat(ctx, snd)

			if introNumber != "" {
				if reply, err := a.conv.Send(ctx, introSystemMessage); err != nil {
					a.log.WithError(err).Warn("failed to send introductory message")
				} else if err := snd.Send(ctx, introNumber, reply); err != nil {
					a.log.WithError(err).Warn("failed to deliver introductory text")
				}
			}

			srv := httpapi.New(httpapi.Options{
				Store:         a.store,
				Knowledge:     a.kb,
				Bus:           a.bus,
				Conversation:  a.conv,
				Thumbnails:    a.thumbs,
				ProjectID:     a.proj.ID,
				Engine:        func() string { return a.cfg.DefaultEngine },
				ToolCount:     a.toolCount,
				WebhookUser:   a.cfg.UserPhoneNumber,
				WebhookSender: a.cfg.SenderNumber,
				Log:           a.log,
			})

			e := echo.New()
			e.HideBanner = true
			srv.Register(e)

			addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)
			go func() {
				a.log.Infof("maestro listening on %s", addr)
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					a.log.WithError(err).Fatal("server stopped unexpectedly")
				}
			}()

			<-ctx.Done()
			a.log.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&introNumber, "intro-to", "", "send one introductory text to this phone number on startup")
	return cmd
}

const introSystemMessage = "You have just started up for this work session. Briefly introduce yourself to the superintendent in one or two sentences, in your own voice, and mention you're ready to help."
