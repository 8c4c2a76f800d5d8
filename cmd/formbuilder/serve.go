package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adiatmad/xlsformbuilderku/internal/formfile"
	"github.com/adiatmad/xlsformbuilderku/internal/handler"
	"github.com/adiatmad/xlsformbuilderku/internal/metrics"
	"github.com/adiatmad/xlsformbuilderku/internal/model"
	"github.com/adiatmad/xlsformbuilderku/internal/session"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP form builder API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /forms)")
	f.Int64("max-body-bytes", 1<<20, "Maximum request body size")
	f.Bool("strict", false, "Refuse exports that produce warnings")
	f.StringSlice("preload", nil, "Definition files or globs to open as sessions at startup")
	addCommonFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, _, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	cfg := model.BuilderConfig{
		Lang:          v.GetString("lang"),
		BasePath:      v.GetString("base-path"),
		MaxBodyBytes:  v.GetInt64("max-body-bytes"),
		StrictExports: v.GetBool("strict"),
	}

	mgr := session.NewManager(session.Options{Logger: slog.Default(), Metrics: metrics.New()})
	if err := preload(mgr, v.GetStringSlice("preload")); err != nil {
		return fmt.Errorf("preload definitions: %w", err)
	}

	server := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           handler.New(mgr, cfg).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		_ = server.Close()
	}()

	slog.Info("starting server",
		"addr", server.Addr,
		"lang", cfg.Lang,
		"base_path", cfg.BasePath,
		"strict", cfg.StrictExports,
		"sessions", mgr.Len(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server closed")
	return nil
}

func preload(mgr *session.Manager, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}
	paths, err := formfile.Expand(patterns)
	if err != nil {
		return err
	}
	for _, path := range paths {
		def, err := formfile.Load(path)
		if err != nil {
			return err
		}
		s := mgr.Create()
		if err := def.Apply(s); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		slog.Info("preloaded definition", "path", path, "session", s.ID)
	}
	return nil
}
