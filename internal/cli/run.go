package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/spf13/cobra"

	"github.com/soyeahso/shaperelay/internal/activation"
	"github.com/soyeahso/shaperelay/internal/admin"
	"github.com/soyeahso/shaperelay/internal/channel"
	"github.com/soyeahso/shaperelay/internal/channel/discord"
	"github.com/soyeahso/shaperelay/internal/channel/guilded"
	"github.com/soyeahso/shaperelay/internal/channel/irc"
	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/format"
	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/soyeahso/shaperelay/internal/media"
	"github.com/soyeahso/shaperelay/internal/routing"
	"github.com/soyeahso/shaperelay/internal/shapes"
	"github.com/soyeahso/shaperelay/internal/store"
	"github.com/soyeahso/shaperelay/internal/version"
)

const shutdownTimeout = 15 * time.Second

func newRunCmd() *cobra.Command {
	var adminPort int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the configured platforms and relay messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if adminPort != 0 {
				cfg.Admin.Enabled = true
				cfg.Admin.Port = adminPort
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}
			if err := config.RequireSecrets(&cfg); err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			runLog, logCloser, err := logging.NewFromOptions(logging.Options{
				Level: cfg.Logging.Level,
				Style: cfg.Logging.ConsoleStyle,
				File:  cfg.Logging.File,
			})
			if err != nil {
				return err
			}
			defer logCloser.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r, err := buildRelay(cfg, paths, runLog)
			if err != nil {
				return err
			}
			return r.run(ctx)
		},
	}

	cmd.Flags().IntVar(&adminPort, "admin-port", 0, "enable the admin HTTP server on this port")
	return cmd
}

// relay holds the wired components of a running relay.
type relay struct {
	cfg       config.Config
	log       *logging.Logger
	active    *activation.Store
	dbCloser  io.Closer
	platforms *channel.Registry
	router    *routing.Router
	admin     *admin.Server
}

// buildRelay wires the activation store, platforms, shape gateway,
// formatter and router from cfg. Nothing connects until run.
func buildRelay(cfg config.Config, p config.Paths, log *logging.Logger) (*relay, error) {
	storePath := p.ActivationPath(cfg.Activation)
	backend, dbCloser, err := store.OpenBackend(cfg.Activation.Store, storePath, log)
	if err != nil {
		return nil, fmt.Errorf("opening activation store: %w", err)
	}
	log.Info().Str("store", cfg.Activation.Store).Str("path", storePath).Msg("activation store opened")

	active := activation.New(backend, log)

	platforms := channel.NewRegistry(log)
	if g := cfg.Channels.Guilded; g != nil && g.Token != "" {
		platforms.Register(guilded.New(*g, log))
	}
	if d := cfg.Channels.Discord; d != nil && d.Token != "" {
		platforms.Register(discord.New(*d, log))
	}
	if cfg.Channels.IRC != nil {
		platforms.Register(irc.New(*cfg.Channels.IRC, log))
	}

	provider := shapes.New(cfg.Shapes, log)

	var validator format.ImageValidator = media.TrustValidator{}
	if !cfg.Media.DisableProbe {
		timeout := time.Duration(cfg.Media.ProbeTimeoutSeconds) * time.Second
		validator = media.NewHTTPValidator(cleanhttp.DefaultPooledClient(), timeout, log)
	}
	extractor := media.NewExtractor(media.NewClassifier(cfg.Media.ImageHosts))
	formatter := format.New(extractor, validator)

	router := routing.NewRouter(platforms, active, provider, formatter, routing.Config{
		Shape:  cfg.Shapes.Username,
		Prefix: cfg.Commands.Prefix,
	}, log)

	r := &relay{
		cfg:       cfg,
		log:       log,
		active:    active,
		dbCloser:  dbCloser,
		platforms: platforms,
		router:    router,
	}
	if cfg.Admin.Enabled {
		r.admin = admin.New(cfg.Admin, cfg.Shapes.Username, log,
			admin.WithPlatforms(platforms),
			admin.WithActivation(active),
			admin.WithStats(router),
		)
	}
	return r, nil
}

// run loads the activation set, starts every platform and blocks until
// ctx is cancelled, then drains in-flight messages and flushes state.
func (r *relay) run(ctx context.Context) error {
	r.active.Load(ctx)

	r.router.Wire(ctx)
	if err := r.platforms.StartAll(ctx); err != nil {
		r.shutdown()
		return fmt.Errorf("starting platforms: %w", err)
	}

	if r.admin != nil {
		go func() {
			if err := r.admin.Start(ctx); err != nil {
				r.log.Error().Err(err).Msg("admin server failed")
			}
		}()
	}

	r.log.Info().
		Str("version", version.Version).
		Str("shape", r.cfg.Shapes.Username).
		Strs("platforms", r.platforms.List()).
		Int("active", r.active.Count()).
		Msg("relay running")

	<-ctx.Done()
	r.log.Info().Msg("shutting down")
	r.shutdown()
	return nil
}

func (r *relay) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	r.platforms.StopAll(ctx)
	r.router.Wait()
	if err := r.active.Flush(ctx); err != nil {
		r.log.Error().Err(err).Msg("failed to save active channels")
	}
	if err := r.active.Close(ctx); err != nil {
		r.log.Error().Err(err).Msg("failed to save active channels")
	}
	if err := r.dbCloser.Close(); err != nil {
		r.log.Warn().Err(err).Msg("closing activation database")
	}
}
