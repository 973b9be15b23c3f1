// Command yat-server runs the YAT relay server: it listens for tracker and
// monitor connections on both TCP and UDP, on the configured port, and
// appends accepted telemetry to the configured storage directory.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yat-project/yat/internal/config"
	"github.com/yat-project/yat/internal/server"
)

var (
	storagePath string
	port        int
)

var rootCmd = &cobra.Command{
	Use:           "yat-server",
	Short:         "YAT location-tracking relay server",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&storagePath, "storage", "s", "", "storage directory (required)")
	rootCmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "listen port")
}

// run validates flags in the same order and with the same messages as the
// original server's Main.main, then opens and serves until an interrupt or
// terminate signal arrives.
func run(cmd *cobra.Command, args []string) error {
	if storagePath == "" {
		fmt.Println("Missing storage path")
		os.Exit(1)
	}

	cfg := config.New(storagePath)
	cfg.Port = port

	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	srv := server.New(cfg)
	if err := srv.Open(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		srv.Stop()
	}()

	if err := srv.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		fmt.Print(rootCmd.UsageString())
		os.Exit(1)
	}
}
