package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/apidoc-io/openapi-discovery/pkg/config"
	"github.com/apidoc-io/openapi-discovery/pkg/controller"
)

var (
	kubeconfig  string
	metricsAddr string

	rootCmd = &cobra.Command{
		Use:   "discovery-operator",
		Short: "Kubernetes OpenAPI discovery operator",
		Long: `discovery-operator watches Services annotated with api-doc.io annotations,
probes their OpenAPI documentation endpoints, and publishes a deduplicated
catalogue of documented APIs into a discovery ConfigMap.`,
		RunE: runOperator,
	}
)

func main() {
	klog.InitFlags(nil)

	rootCmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig file (for local development)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-bind-address", ":8081", "Address for the prometheus metrics endpoint (0 to disable)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runOperator(cmd *cobra.Command, args []string) error {
	klog.Info("Starting openapi-discovery operator")

	// Set up controller-runtime logger to use klog
	ctrl.SetLogger(klog.NewKlogr())

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	klog.Infof("Watch namespaces: %v", cfg.WatchNamespaces)
	klog.Infof("Discovery ConfigMap: %s/%s", cfg.DiscoveryNamespace, cfg.DiscoveryConfigMap)

	restConfig, err := buildRestConfig(kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to build REST config: %w", err)
	}

	c, err := controller.NewController(cfg, restConfig, metricsAddr)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
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

	if err := c.Run(ctx); err != nil {
		klog.Errorf("Controller error: %v", err)
		return err
	}

	return nil
}

// buildRestConfig creates a REST config from kubeconfig or in-cluster config
func buildRestConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	}

	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get in-cluster config: %w", err)
	}
	return config, nil
}
