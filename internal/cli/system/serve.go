package system

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/julianstephens/daybook/internal/auth"
	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/web"
)

type ServeCmd struct {
	Addr     string `help:"Listen address; overrides server.addr."`
	DevLogin bool   `help:"Enable password-less POST /auth/login for local development."`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	cfg := ctx.Config.Server
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}

	key, err := auth.LoadOrCreateKey(cfg.SecretKeyPath)
	if err != nil {
		return err
	}
	signer, err := auth.NewSigner(key, cfg.SessionTTL)
	if err != nil {
		return err
	}

	ctx.PerformAutomaticBackup()

	srv, err := web.NewServer(web.Config{
		Addr:     cfg.Addr,
		Store:    ctx.Store,
		Signer:   signer,
		Policy:   ctx.Policy(),
		Metrics:  ctx.Metrics,
		Location: ctx.Location(),
		DevLogin: cfg.DevLogin || c.DevLogin,
	})
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DevLogin || c.DevLogin {
		logger.Warn("development login is enabled; anyone can sign in as any e-mail address")
	}
	ctx.Printf("Serving daybook on http://%s\n", srv.Addr())
	return srv.ListenAndServe(sigCtx)
}
