package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ajayykmr/shortcode-marketing-go/internal/config"
	"github.com/ajayykmr/shortcode-marketing-go/internal/logger"
	"github.com/ajayykmr/shortcode-marketing-go/internal/providers/factory"
	"github.com/ajayykmr/shortcode-marketing-go/internal/shortcode"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("marketing-send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	from := fs.String("from", "", "shared short code to send from")
	keyword := fs.String("keyword", "", "keyword the recipient signed up with")
	to := fs.String("to", "", "recipient number in international format")
	text := fs.String("text", "", "message body")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadSender()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	timeout := time.Duration(cfg.Timeouts.ProviderTimeoutSeconds) * time.Second
	transport, err := factory.Transport(cfg.Providers, timeout, logger.Component(*log, "shortcode-transport"))
	if err != nil {
		log.Error().Err(err).Msg("failed to initialise short-code transport")
		return 1
	}
	sender, err := shortcode.NewSender(transport)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialise short-code sender")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := sender.Send(ctx, *from, *keyword, *to, *text)
	if err != nil {
		log.Error().Err(err).Msg("send failed")
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to write response")
		return 1
	}
	return 0
}
