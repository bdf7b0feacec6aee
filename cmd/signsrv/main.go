package main

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/inkform/inkform/internal/common/logtrace"
	"github.com/inkform/inkform/internal/signsrv/auditlog"
	"github.com/inkform/inkform/internal/signsrv/config"
	"github.com/inkform/inkform/internal/signsrv/db"
	"github.com/inkform/inkform/internal/signsrv/db/memory"
	"github.com/inkform/inkform/internal/signsrv/db/postgresql"
	"github.com/inkform/inkform/internal/signsrv/docsign"
	"github.com/inkform/inkform/internal/signsrv/keymanager"
	"github.com/inkform/inkform/internal/signsrv/server"
	"github.com/inkform/inkform/internal/signsrv/workflow"
)

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile  string
	memoryStore bool
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()

	// a .env file may override secrets kept out of the config file
	_ = godotenv.Load()

	slog.Info().Str("config_file", opt.configFile).Msg("loading config file")
	if err := config.LoadConfig(opt.configFile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	applyEnvOverrides()
	if config.Config().ServerPort == "" {
		return fmt.Errorf("server port not defined")
	}

	stores, pinger, closeStores, err := createStores(opt)
	if err != nil {
		return fmt.Errorf("creating stores: %w", err)
	}
	defer closeStores()

	audit, closeAudit, err := createAuditLog()
	if err != nil {
		return fmt.Errorf("creating audit log: %w", err)
	}
	defer closeAudit()

	keys := keymanager.New(stores.keys, config.Config().Signing.KeyEncryptionPasswd)
	keys.SetAuditLog(audit)
	requests := workflow.NewRequestService(stores.requests, config.Config().Requests.TokenSecret, config.Config().Requests.MaxExpirationHours)
	requests.SetAuditLog(audit)
	docs := docsign.New(keys, stores.signatures, requests, audit)

	serverErrors, shutdownServer, err := createSignServer(ctx, docs, keys, requests, pinger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	stopMaintenance := startMaintenance(ctx, keys, requests)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		stopMaintenance()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		stopMaintenance()
		shutdownServer()
	}

	slog.Info().Msg("server stopped")
	return nil
}

// applyEnvOverrides lets deployment secrets come from the environment
// instead of the config file.
func applyEnvOverrides() {
	cfg := config.Config()
	if v := os.Getenv("SIGNSRV_DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("SIGNSRV_TOKEN_SECRET"); v != "" {
		cfg.Requests.TokenSecret = v
	}
	if v := os.Getenv("SIGNSRV_KEY_ENCRYPTION_PASSWD"); v != "" {
		cfg.Signing.KeyEncryptionPasswd = v
	}
}

type storeSet struct {
	keys       db.KeyStore
	signatures db.SignatureStore
	requests   db.RequestStore
}

func createStores(opt cmdoptions) (*storeSet, server.Pinger, func(), error) {
	if opt.memoryStore {
		log.Info().Msg("using in-memory stores")
		return &storeSet{
			keys:       memory.NewKeyStore(),
			signatures: memory.NewSignatureStore(),
			requests:   memory.NewRequestStore(),
		}, nil, func() {}, nil
	}

	store, err := postgresql.New(config.Config().DSN())
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("closing store")
		}
	}
	return &storeSet{
		keys:       store,
		signatures: store,
		requests:   store,
	}, store, closeFn, nil
}

// createAuditLog opens the tamper-evident audit log when a path is
// configured. The log signing key is derived from the key-encryption
// password so verification needs no extra key material.
func createAuditLog() (*auditlog.Writer, func(), error) {
	path := config.Config().AuditLog.GetPath()
	if path == "" {
		return nil, func() {}, nil
	}

	seed := sha256.Sum256([]byte(config.Config().Signing.KeyEncryptionPasswd))
	privKey := ed25519.NewKeyFromSeed(seed[:])

	writer, err := auditlog.NewWriter(path, 1, privKey)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := writer.Close(); err != nil {
			log.Error().Err(err).Msg("closing audit log")
		}
	}
	return writer, closeFn, nil
}

func createSignServer(ctx context.Context, docs *docsign.Service, keys *keymanager.KeyManager, requests *workflow.RequestService, pinger server.Pinger) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()

	s := server.CreateNewServer(docs, keys, requests, pinger)
	s.MountHandlers()

	srv := &http.Server{
		Addr:              config.Config().ServerHostName + ":" + config.Config().ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info().Str("port", config.Config().ServerPort).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete and initiate the shutdown.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown, nil
}

// startMaintenance runs the retention cleanup for revoked keys and the
// expired-request sweep in the background.
func startMaintenance(ctx context.Context, keys *keymanager.KeyManager, requests *workflow.RequestService) func() {
	maintCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-maintCtx.Done():
				return
			case <-ticker.C:
				retention := config.Config().Signing.GetRevokedKeyRetentionOrDefault()
				if removed, err := keys.Cleanup(maintCtx, retention); err != nil {
					log.Error().Err(err).Msg("key cleanup failed")
				} else if removed > 0 {
					log.Info().Int("removed", removed).Msg("key cleanup completed")
				}

				if swept, err := requests.SweepExpired(maintCtx); err != nil {
					log.Error().Err(err).Msg("request sweep failed")
				} else if swept > 0 {
					log.Info().Int("swept", swept).Msg("request sweep completed")
				}
			}
		}
	}()

	return cancel
}

const DefaultConfigFile = "/etc/inkform/signsrv.conf"

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.configFile, "config", DefaultConfigFile, "Path to the config file")
	flag.BoolVar(&opt.memoryStore, "memory", false, "Use in-memory stores instead of PostgreSQL")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
