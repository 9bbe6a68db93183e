package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const requestTimeout = 30 * time.Second

var errMissingToken = errors.New("admin token required: pass --token or set PAYRECON_ADMIN_TOKEN")

func probeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe [paypal-order-id]",
		Short: "Show the provider's current view of a PayPal order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAdmin(cmd, opts, http.MethodGet, "/api/admin/paypal/orders/"+url.PathEscape(args[0]))
		},
	}
}

func reconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [order-id]",
		Short: "Resolve a ledger order against the provider now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callAdmin(cmd, opts, http.MethodPost, "/api/admin/orders/"+url.PathEscape(args[0])+"/reconcile")
		},
	}
}

func callAdmin(cmd *cobra.Command, opts *rootOptions, method, path string) error {
	if opts.token == "" {
		return errMissingToken
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(opts.server, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+opts.token)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %s %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(body)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}
