package cli

import (
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"noteenvelope-sync/internal/handler"
	"noteenvelope-sync/internal/websocket"

	"github.com/spf13/cobra"
)

func NewRelayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Run the websocket relay devices sync through",
		Long: `Run the relay server. The relay only fans sealed frames out to the
devices on the same topic; it never sees keys or plaintext.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, logger := rootOpts.Config, rootOpts.Logger
			manager := websocket.NewManager(websocket.ManagerConfig{
				MaxConnPerTopic: cfg.WebSocket.MaxConnPerTopic,
				EchoToSender:    cfg.Relay.Echo,
				WriteWait:       cfg.WebSocket.WriteWait,
				PongWait:        cfg.WebSocket.PongWait,
				PingPeriod:      cfg.WebSocket.PingPeriod,
				MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
			}, logger)
			go manager.Run(ctx)

			relayHandler := handler.NewRelayHandler(manager, cfg.Relay.Secret, logger)
			srv := &http.Server{
				Addr:              cfg.Relay.Addr(),
				Handler:           handler.NewRelayRouter(relayHandler, logger),
				ReadHeaderTimeout: 15 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			logger.Info("starting relay", "addr", srv.Addr, "echo", cfg.Relay.Echo)
			return listenUntilDone(ctx, srv, rootOpts)
		},
	}
}
