package serve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/masaar/masaar-node/pkg/api"
	"github.com/masaar/masaar-node/pkg/config"
	"github.com/masaar/masaar-node/pkg/metrics"
	"github.com/masaar/masaar-node/pkg/network"
	"github.com/masaar/masaar-node/pkg/reliability"
)

func NewServeCommand() *cobra.Command {
	var (
		id        string
		host      string
		port      int
		cors      bool
		rateLimit int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a node with its HTTP bridge",
		Long: `Runs a node with the HTTP bridge and the resend loop. Settings come from
MASAAR_* environment variables; flags override them.`,
		Example: `  masaar serve
  MASAAR_ACK_TIMEOUT=5s masaar serve --id N1 --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("id") {
				cfg.NodeID = id
			}
			if flags.Changed("host") {
				cfg.API.Host = host
			}
			if flags.Changed("port") {
				cfg.API.Port = port
			}
			if flags.Changed("cors") {
				cfg.API.EnableCORS = cors
			}
			if flags.Changed("rate-limit") {
				cfg.API.RateLimit = rateLimit
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Node identifier (env MASAAR_NODE_ID)")
	cmd.Flags().StringVar(&host, "host", "", "API listen host (env MASAAR_API_HOST)")
	cmd.Flags().IntVar(&port, "port", 8080, "API port (env MASAAR_API_PORT)")
	cmd.Flags().BoolVar(&cors, "cors", true, "Enable CORS headers (env MASAAR_CORS)")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 100, "Requests per minute per client (env MASAAR_RATE_LIMIT)")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	fmt.Println("🛰️  masaar mesh node")
	fmt.Println("===================")

	m := metrics.New()
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	n, err := network.NewNode(cfg.NodeID, network.Options{
		Tracker:       cfg.TrackerConfig(),
		DedupEntries:  cfg.Reliability.DedupEntries,
		RetryInterval: cfg.Reliability.RetryInterval,
		Metrics:       m,
	})
	if err != nil {
		return err
	}

	// No transport is attached; replies and resends are surfaced in the log
	n.OnReply = func(dst, wire string) {
		log.Printf("↩️  Reply for %s: %s", dst, wire)
	}
	n.OnResend = func(e reliability.Entry) {
		log.Printf("🔁 Resend for %s: %s", e.Dst, e.Wire)
	}

	server, err := api.NewServer(n, &api.Config{
		Host:         cfg.API.Host,
		Port:         cfg.API.Port,
		EnableCORS:   cfg.API.EnableCORS,
		RateLimit:    cfg.API.RateLimit,
		ReadTimeout:  api.DefaultConfig().ReadTimeout,
		WriteTimeout: api.DefaultConfig().WriteTimeout,
	}, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Node Information:")
	fmt.Printf("  ID: %s\n", n.ID())
	fmt.Printf("  API: http://%s\n", cfg.Addr())
	fmt.Printf("  Ack timeout: %v, max attempts: %d\n", cfg.Reliability.AckTimeout, cfg.Reliability.MaxAttempts)
	fmt.Println()

	retryDone := make(chan error, 1)
	go func() {
		retryDone <- n.RunRetryLoop(ctx)
	}()

	serveErr := server.Start(ctx)
	if serveErr != nil {
		log.Printf("❌ API server error: %v", serveErr)
	}

	// Listen failure; the caller's deferred stop ends the retry loop
	if ctx.Err() == nil {
		return serveErr
	}

	if err := <-retryDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Println("✅ Shutdown complete")
	return serveErr
}
