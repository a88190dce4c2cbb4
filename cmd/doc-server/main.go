package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/apidoc-io/openapi-discovery/pkg/server"
)

const (
	defaultCacheDir      = "/tmp/openapi-cache"
	defaultDiscoveryPath = "/etc/config/discovery.json"
	defaultListenAddr    = ":8080"
)

var (
	listenAddr string

	rootCmd = &cobra.Command{
		Use:   "doc-server",
		Short: "OpenAPI documentation viewer",
		Long: `doc-server renders the API catalogue published by the discovery operator.
It refreshes its cache from the mounted discovery document on an interval and
serves the specs through configurable documentation frontends.`,
		RunE: runServer,
	}
)

func main() {
	klog.InitFlags(nil)

	rootCmd.Flags().StringVar(&listenAddr, "listen-address", defaultListenAddr, "Address to serve the documentation UI on")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cacheDir := os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		cacheDir = defaultCacheDir
	}
	discoveryPath := os.Getenv("DISCOVERY_PATH")
	if discoveryPath == "" {
		discoveryPath = defaultDiscoveryPath
	}

	klog.Infof("Starting doc-server (discovery: %s, cache: %s)", discoveryPath, cacheDir)

	cache, err := server.NewCache(discoveryPath, cacheDir)
	if err != nil {
		return err
	}

	frontends := server.NewFrontendManagerFromEnv()
	srv := server.NewServer(cache, frontends, nil)

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		klog.Infof("Received signal %v, shutting down", sig)
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cache.Run(ctx, server.DefaultRefreshInterval)
		return nil
	})
	g.Go(func() error {
		klog.Infof("Listening on %s", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
