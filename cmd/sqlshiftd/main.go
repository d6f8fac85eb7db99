package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	"github.com/modoterra/sqlshift/internal/buildinfo"
	"github.com/modoterra/sqlshift/pkg/logging"
	"github.com/modoterra/sqlshift/pkg/stubapi"
)

const defaultAddr = "127.0.0.1:8080"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("sqlshiftd %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return
	}

	addr := defaultAddr
	if len(os.Args) > 2 && os.Args[1] == "--addr" {
		addr = os.Args[2]
	} else if v := os.Getenv("SQLSHIFTD_ADDR"); v != "" {
		addr = v
	}

	logger, closer, err := logging.New(logging.Options{Level: os.Getenv("SQLSHIFTD_LOG_LEVEL"), Sink: "stderr"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	ttl := time.Hour
	if v := os.Getenv("SQLSHIFTD_TOKEN_TTL"); v != "" {
		if ttl, err = time.ParseDuration(v); err != nil {
			logger.Error("bad SQLSHIFTD_TOKEN_TTL", "value", v, "err", err)
			os.Exit(2)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// An unset secret gives each run its own signing key, so tokens do not
	// survive a restart.
	srv := stubapi.New(stubapi.Options{
		Secret:   []byte(os.Getenv("SQLSHIFTD_SECRET")),
		TokenTTL: ttl,
		Logger:   logger,
	})
	httpSrv, errc := stubapi.ListenAndServe(addr, srv)

	logger.Info("starting sqlshiftd", "version", buildinfo.Version, "addr", addr, "token_ttl", ttl)
	if _, err := sddaemon.SdNotify(false, sddaemon.SdNotifyReady); err != nil {
		logger.Debug("sd_notify failed", "err", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		if err != nil {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
