package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	server string
	token  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "payreconctl",
		Short:         "Operator tooling for the payment reconciliation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.server, "server", "s", envOr("PAYRECON_SERVER", "http://localhost:8080"), "Base URL of the payrecon service")
	rootCmd.PersistentFlags().StringVarP(&opts.token, "token", "t", os.Getenv("PAYRECON_ADMIN_TOKEN"), "Admin bearer token")

	rootCmd.AddCommand(hashTokenCmd())
	rootCmd.AddCommand(probeCmd(opts))
	rootCmd.AddCommand(reconcileCmd(opts))

	return rootCmd
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
