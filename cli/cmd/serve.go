package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/iox"
	"github.com/justapithecus/screener/relay"
)

// ServeCommand returns the serve command, which runs the same-origin relay.
func ServeCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "Listen address (default: " + relay.DefaultAddr + ")"},
	}
	flags = append(flags, storeFlags()...)
	flags = append(flags, notifyFlags()...)

	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the backend relay and the test scorecard endpoint",
		Flags:  flags,
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	e, err := newEnv(c, "serve")
	if err != nil {
		return err
	}
	defer iox.DiscardErr(e.close)

	addr := c.String("listen")
	if addr == "" {
		addr = e.cfg.Relay.Listen
	}
	if addr == "" {
		addr = relay.DefaultAddr
	}

	notifier, err := buildNotifier(notifyConfig(c, e.cfg.Notify))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if notifier != nil {
		defer iox.DiscardClose(notifier)
	}

	store, err := openStore(c, e)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(store)

	srv, err := relay.NewServer(relay.Config{
		BackendURL: e.backendURL,
		Store:      store,
		Notifier:   notifier,
		Logger:     e.logger,
		Metrics:    e.metrics,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	e.logger.Info("relay listening", map[string]any{
		"addr":    addr,
		"backend": e.backendURL,
	})
	if err := srv.ListenAndServe(c.Context, addr); err != nil {
		return cli.Exit(err.Error(), exitTransport)
	}
	return nil
}
