package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the trending content endpoint",
	Long: paragraph(fmt.Sprintf("\n%s the content endpoint other trendcast clients read from. "+
		"It answers GET /trending from the content store, regenerates on POST /refresh "+
		"and purges expired batches on a schedule.", keyword("Serve"))),
	Example: paragraph("trendcast serve\ntrendcast serve --addr :9000"),
	Args:    cobra.NoArgs,
	Annotations: map[string]string{
		logToStderr: "true",
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		scfg := server.DefaultConfig()
		scfg.Addr = cfg.Server.Addr
		scfg.Secret = cfg.Secrets.RefreshSecret
		scfg.MemoTTL = cfg.Server.MemoTTL
		scfg.PurgeSchedule = cfg.Server.PurgeSchedule
		scfg.PrewarmSchedule = cfg.Server.PrewarmSchedule

		opts := []server.Option{
			server.WithConfig(scfg),
			server.WithMetrics(a.metrics),
			server.WithLogger(log.WithPrefix("server")),
		}
		if a.generator != nil {
			opts = append(opts, server.WithGenerator(a.generator))
		} else {
			log.Warn("OPENAI_API_KEY is not set; the endpoint will only serve stored batches")
		}
		if scfg.Secret == "" {
			log.Warn("TRENDCAST_REFRESH_SECRET is not set; POST /refresh is open")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(a.store, opts...).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8787)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
