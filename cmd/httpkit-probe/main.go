// httpkit-probe issues a single HTTP request through the client façade.
// It is both a smoke-test tool for endpoints and a reference wiring of the
// façade with config loading, zap logging hooks and the fasthttp engine.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lgc202/httpkit/client"
	"github.com/lgc202/httpkit/config"
	"github.com/lgc202/httpkit/fasthttpx"
	"github.com/lgc202/httpkit/logging"
	"github.com/lgc202/httpkit/version"
)

var (
	flagConfig   string
	flagMethod   string
	flagData     string
	flagJSON     bool
	flagHeaders  []string
	flagTimeout  time.Duration
	flagNoFollow bool
	flagMaxHops  int
	flagFasthttp bool
	flagVerbose  bool

	flagVersionOutput string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "httpkit-probe <url>",
		Short: "Issue one HTTP request through the httpkit client façade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return probe(cmd.Context(), args[0])
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "client config file (yaml/json)")
	rootCmd.Flags().StringVarP(&flagMethod, "method", "X", "GET", "request method")
	rootCmd.Flags().StringVarP(&flagData, "data", "d", "", "request body")
	rootCmd.Flags().BoolVar(&flagJSON, "json", false, "send --data as application/json")
	rootCmd.Flags().StringArrayVarP(&flagHeaders, "header", "H", nil, "request header, key:value (repeatable)")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "overall request timeout")
	rootCmd.Flags().BoolVar(&flagNoFollow, "no-follow", false, "do not follow redirects")
	rootCmd.Flags().IntVar(&flagMaxHops, "max-hops", client.DefaultMaxHops, "redirect hop limit")
	rootCmd.Flags().BoolVar(&flagFasthttp, "fasthttp", false, "use the fasthttp transport engine")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			switch flagVersionOutput {
			case "json":
				s, err := info.ToJSON()
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
				fmt.Println(s)
			default:
				fmt.Println(info.Text())
			}
		},
	}
	versionCmd.Flags().StringVarP(&flagVersionOutput, "output", "o", "text", "output format (text, json)")
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func probe(ctx context.Context, url string) error {
	// .env is optional; flags and env still apply without it.
	_ = godotenv.Load()

	level := "info"
	if flagVerbose {
		level = "debug"
	}
	logger, err := logging.Setup(logging.Config{Level: level, Development: true})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := client.DefaultConfig()
	if flagConfig != "" {
		loader, err := config.Load(flagConfig, config.WithEnv("HTTPKIT"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loader.Config()
	}
	cfg.Timeout = flagTimeout
	if flagNoFollow {
		cfg.Redirect = client.NoRedirects()
	} else {
		cfg.Redirect = client.FollowRedirects(flagMaxHops)
	}

	c := client.NewWithConfig(&cfg)
	if flagFasthttp {
		c.RegisterProvider(fasthttpx.Provider)
	}
	defer func() { _ = c.Close() }()

	before, after := logging.Hooks(logger, cfg.RequestID.Header)
	c.WithHooks(before, after)

	opts := make([]client.RequestOption, 0, len(flagHeaders)+1)
	for _, h := range flagHeaders {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid header %q, want key:value", h)
		}
		opts = append(opts, client.WithHeader(strings.TrimSpace(k), strings.TrimSpace(v)))
	}
	if flagData != "" {
		if flagJSON {
			opts = append(opts, client.WithBodyBytes([]byte(flagData)),
				client.WithHeader("Content-Type", "application/json; charset=utf-8"))
		} else {
			opts = append(opts, client.WithBodyBytes([]byte(flagData)))
		}
	}

	req, err := c.NewRequest(ctx, flagMethod, url, opts...)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	fmt.Println(renderStatus(resp.StatusCode, resp.Header))

	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		return err
	}
	return nil
}
