// Command bucketd runs a bucketmesh peer: it serves the peer protocol and
// the blob transport, and periodically pulls known buckets from their
// known peers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bucketmesh/bucketd/blob"
	"github.com/bucketmesh/bucketd/config"
	"github.com/bucketmesh/bucketd/identity"
	"github.com/bucketmesh/bucketd/metastore"
	"github.com/bucketmesh/bucketd/peer"
	"github.com/bucketmesh/bucketd/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bucketd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dataDir = flag.String("datadir", config.DefaultDataDir(), "data directory")
		listen  = flag.String("listen", "", "peer protocol listen address, overrides config")
		blobLn  = flag.String("blob-listen", "", "blob transport listen address, overrides config")
		logLvl  = flag.String("loglevel", "", "log level: debug, info, warn, error, overrides config")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(config.ConfigPath(*dataDir))
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = config.DefaultConfig()
		cfg.DataDir = *dataDir
		if err := config.SaveConfig(config.ConfigPath(*dataDir), cfg); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *blobLn != "" {
		cfg.BlobListenAddr = *blobLn
	}
	if *logLvl != "" {
		cfg.LogLevel = *logLvl
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	sk, pub, err := loadOrCreateIdentity(filepath.Join(cfg.DataDir, "identity.key"))
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	defer sk.Destroy()
	logger.Info("identity loaded", "pubkey", pub.String())

	store, err := blob.NewFileStore(filepath.Join(cfg.DataDir, "blobs"))
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	meta, err := metastore.OpenBoltStore(filepath.Join(cfg.DataDir, "meta.db"))
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer meta.Close()

	book, err := loadAddressBook(filepath.Join(cfg.DataDir, "peers"))
	if err != nil {
		return fmt.Errorf("load address book: %w", err)
	}

	resolver := blob.NewResolver(store, blob.NewHTTPFetcher(book))
	dialer := &peer.TCPDialer{Self: sk, SelfPub: pub, Book: book}
	client := peer.NewClient(dialer)
	mgr := sync.NewManager(resolver, meta, client)

	handler := &bucketdHandler{Mgr: mgr, Log: logger}
	ln, err := peer.ListenTCP(cfg.ListenAddr, sk, pub, handler)
	if err != nil {
		return fmt.Errorf("listen (peer): %w", err)
	}
	defer ln.Close()

	blobSrv := &http.Server{Addr: cfg.BlobListenAddr, Handler: &blob.HTTPHandler{Store: store}}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("peer protocol listening", "addr", ln.Addr().String())
		if err := ln.Serve(); err != nil {
			logger.Error("peer listener stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("blob transport listening", "addr", cfg.BlobListenAddr)
		if err := blobSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("blob listener stopped", "error", err)
		}
	}()

	go runPullLoop(ctx, mgr, meta, logger, cfg.PullInterval)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = blobSrv.Shutdown(shutdownCtx)
	_ = ln.Close()

	return nil
}

// loadOrCreateIdentity loads the identity key at path, generating and
// persisting a fresh one if none exists yet.
func loadOrCreateIdentity(path string) (identity.SecretKey, identity.PublicKey, error) {
	sk, err := identity.LoadSecretKey(path)
	if err == nil {
		pub, err := sk.Public()
		return sk, pub, err
	}
	if !os.IsNotExist(errors.Unwrap(err)) {
		return identity.SecretKey{}, identity.PublicKey{}, err
	}

	sk, pub, err := identity.Generate()
	if err != nil {
		return identity.SecretKey{}, identity.PublicKey{}, err
	}
	if err := identity.SaveSecretKey(path, sk); err != nil {
		return identity.SecretKey{}, identity.PublicKey{}, err
	}
	return sk, pub, nil
}

// runPullLoop periodically pulls every tracked bucket until ctx is
// cancelled. ErrNoPeerAhead is the common, unremarkable outcome of a pull
// and is logged at debug level; any other failure is a warning.
func runPullLoop(ctx context.Context, mgr *sync.Manager, meta metastore.Store, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recs, err := meta.ListBuckets()
			if err != nil {
				logger.Warn("list buckets for pull sweep", "error", err)
				continue
			}
			for _, rec := range recs {
				err := mgr.Pull(ctx, rec.ID)
				switch {
				case err == nil:
					logger.Debug("pull applied update", "bucket", rec.ID)
				case errors.Is(err, sync.ErrNoPeerAhead):
					logger.Debug("pull found no peer ahead", "bucket", rec.ID)
				default:
					logger.Warn("pull failed", "bucket", rec.ID, "error", err)
				}
			}
		}
	}
}
