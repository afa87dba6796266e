package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"

	"github.com/ptgott/mailprovider/sendmail"
	"github.com/ptgott/mailprovider/userconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Log with filename and line number. This writes to stderr, so it should
	// be thread safe.
	// https://github.com/rs/zerolog/blob/7ccd4c940bf8a02fcc5f10e5475f9d3daff04d57/log/log.go#L13
	log.Logger = log.With().Caller().Logger()

	// Intercept interrupts so we can get more visibility into them.
	// Messages already handed to the worker pool are not cancelled.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := flag.String(
		"config",
		"./config.yaml",
		"path to a JSON or YAML file containing your configuration",
	)
	to := flag.String(
		"to",
		"",
		"comma-separated recipients (default: toAddress from the config)",
	)
	subject := flag.String(
		"subject",
		"",
		"subject line of the message",
	)
	bodyPath := flag.String(
		"body",
		"-",
		`path to a file containing the message body, or "-" for stdin`,
	)
	attach := flag.String(
		"attach",
		"",
		"path to a file to attach (HTML messages only)",
	)
	attachType := flag.String(
		"attach-type",
		"",
		"media type of the attachment (default: guessed from the extension)",
	)
	issuer := flag.String(
		"issuer",
		"",
		"display name of the sender (default: fromName from the config)",
	)
	noEmail := flag.Bool(
		"noemail",
		false,
		"print the rendered message to stdout instead of sending it",
	)
	level := flag.String(
		"level",
		"info",
		`log level: "info", "debug", or "warn"`,
	)
	flag.Parse()

	switch *level {
	case "debug":
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "warn":
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Info().
		Str("configPath", *configPath).
		Msg("starting the application")

	f, err := os.Open(*configPath)

	if err != nil {
		log.Error().
			Str("config-path", *configPath).
			Err(err).
			Msg("We can't open the application config file")
		os.Exit(1)
	}

	config, err := userconfig.Parse(f)
	f.Close()

	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem parsing your config")
		os.Exit(1)
	}

	checkedConfig, err := config.CheckAndSetDefaults()
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem validating your config")
		os.Exit(1)
	}

	log.Info().Str("configPath", *configPath).Msg("successfully validated the config")

	var body io.Reader = os.Stdin
	if *bodyPath != "-" {
		bf, err := os.Open(*bodyPath)
		if err != nil {
			log.Error().
				Str("body-path", *bodyPath).
				Err(err).
				Msg("We can't open the message body")
			os.Exit(1)
		}
		defer bf.Close()
		body = bf
	}

	err = sendmail.Run(ctx, sendmail.Options{
		To:             sendmail.ParseRecipients(*to),
		Subject:        *subject,
		Issuer:         *issuer,
		Body:           body,
		AttachmentPath: *attach,
		AttachmentType: *attachType,
		DryRun:         *noEmail,
		Output:         os.Stdout,
	}, &checkedConfig)

	if err != nil {
		log.Error().Err(err).Msg("not every message was sent")
		stop()
		os.Exit(1)
	}

	log.Info().Msg("done")
}
