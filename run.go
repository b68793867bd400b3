package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thiccaxe/DAAPRemoteServer/arrow"
	"github.com/thiccaxe/DAAPRemoteServer/config"
	"github.com/thiccaxe/DAAPRemoteServer/dacp"
	"github.com/thiccaxe/DAAPRemoteServer/daap"
	"github.com/thiccaxe/DAAPRemoteServer/discovery"
	"github.com/thiccaxe/DAAPRemoteServer/logger"
	"github.com/thiccaxe/DAAPRemoteServer/metrics"
	"github.com/thiccaxe/DAAPRemoteServer/session"
	"github.com/thiccaxe/DAAPRemoteServer/storage"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type runOptions struct {
	dataDir   string
	address   string
	httpPort  int
	arrowPort int
	dacpFile  string
	verbosity string
	noMDNS    bool
}

func newRootCommand(log *logger.Logger) *cobra.Command {
	opts := &runOptions{}
	rootCmd := &cobra.Command{
		Use:   "daap-remote",
		Short: "Bridges DAAP remote apps to an AirPlay receiver's DACP interface",
		Long: `daap-remote pretends to be a media library so that remote control apps can
pair with it, then forwards their buttons and trackpad arrows to the AirPlay
receiver named in the identity file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, log, opts)
		},
	}
	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	flags := rootCmd.Flags()
	flags.StringVar(&opts.dataDir, "data-dir", "", "Directory holding config.json and the credential database (default: $"+config.DataDirEnv+" or the user config directory)")
	flags.StringVar(&opts.address, "address", "", "Address to listen on and advertise")
	flags.IntVar(&opts.httpPort, "http-port", config.DefaultHTTPPort, "Port serving the DAAP endpoints")
	flags.IntVar(&opts.arrowPort, "arrow-port", config.DefaultArrowPort, "Port serving the trackpad stream")
	flags.StringVar(&opts.dacpFile, "dacp-file", config.DefaultDACPFile, "Receiver identity file")
	flags.StringVarP(&opts.verbosity, "verbosity", "v", "", "Logging level: debug, info, error, or a verbosity number")
	flags.BoolVar(&opts.noMDNS, "no-mdns", false, "Disable service advertisement and discovery")

	return rootCmd
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cmd *cobra.Command, opts *runOptions, cfg *config.DeviceConfig) {
	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Address = opts.address
	}
	if flags.Changed("http-port") {
		cfg.HTTPPort = opts.httpPort
	}
	if flags.Changed("arrow-port") {
		cfg.ArrowPort = opts.arrowPort
	}
	if flags.Changed("dacp-file") {
		cfg.DACPFile = opts.dacpFile
	}
}

func run(cmd *cobra.Command, rootLog *logger.Logger, opts *runOptions) error {
	if opts.verbosity != "" {
		level, err := logger.StringToLevel(opts.verbosity)
		if err != nil {
			return err
		}
		rootLog.SetLevel(level)
	}
	log := rootLog.Logger

	cfg, cfgPath, err := config.LoadOrCreate(opts.dataDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	dataDir := filepath.Dir(cfgPath)

	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(err, "Failed to close database")
		}
	}()

	log.Info("Starting",
		"serverName", cfg.ServerName,
		"serverID", cfg.ServerID,
		"httpPort", cfg.HTTPPort,
		"arrowPort", cfg.ArrowPort,
		"identityFile", cfg.DACPFile,
		"config", cfgPath,
		"database", dbPath,
	)

	m := metrics.New()
	registry := discovery.NewRegistry()
	sessions := session.NewStore()
	forwarder := dacp.NewForwarder(dacp.Options{
		Path:     cfg.DACPFile,
		Resolver: registry,
		Logger:   log.WithName("dacp"),
		Metrics:  m,
	})

	arrowServer, err := arrow.Listen(net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.ArrowPort)), arrow.Options{
		Sessions:  sessions,
		Forwarder: forwarder,
		Logger:    log.WithName("arrow"),
		Metrics:   m,
	})
	if err != nil {
		return err
	}

	httpAddr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.HTTPPort))
	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		_ = arrowServer.Close()
		return fmt.Errorf("listen on %q: %w", httpAddr, err)
	}
	daapServer := daap.NewServer(daap.Options{
		Config:      *cfg,
		Sessions:    sessions,
		Registry:    registry,
		Credentials: store,
		Forwarder:   forwarder,
		Logger:      log.WithName("daap"),
		Metrics:     m,
	})
	httpServer := &http.Server{
		Handler:           daapServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var discoveryService *discovery.Service
	if !opts.noMDNS {
		discoveryService, err = discovery.Start(discovery.Config{
			ServerID:   cfg.ServerID,
			ServerName: cfg.ServerName,
			DatabaseID: cfg.DatabaseID,
			Address:    cfg.Address,
			Port:       cfg.HTTPPort,
			Logger:     log.WithName("discovery"),
		}, registry)
		if err != nil {
			log.Error(err, "Discovery startup failed, pairing and forwarding will not find peers")
		}
	}

	group, ctx := errgroup.WithContext(cmd.Context())
	group.Go(func() error {
		log.Info("Serving DAAP", "address", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdown(log, httpServer, arrowServer, discoveryService, forwarder)
		return nil
	})

	return group.Wait()
}

func shutdown(log logr.Logger, httpServer *http.Server, arrowServer *arrow.Server, discoveryService *discovery.Service, forwarder *dacp.Forwarder) {
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "HTTP shutdown did not complete")
		_ = httpServer.Close()
	}
	if err := arrowServer.Close(); err != nil {
		log.Error(err, "Failed to close trackpad listener")
	}
	discoveryService.Stop()
	forwarder.Wait()
}
