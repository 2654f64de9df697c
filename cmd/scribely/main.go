package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"scribely/internal/app"
	"scribely/internal/config"
	"scribely/internal/logging"
)

var cli struct {
	LogLevel string `env:"LOG_LEVEL" default:"warn" enum:"debug,info,warn,error" help:"Log level"`

	Transcribe TranscribeCmd `cmd:"" help:"Transcribe an audio file and run post-processing tasks"`
	Records    RecordsCmd    `cmd:"" help:"List stored records, newest first"`
	Query      QueryCmd      `cmd:"" help:"Ask a free-form question over stored records"`
}

// Context is passed to every command's Run method.
type Context struct {
	context.Context
	App    *app.App
	Logger *zap.Logger
}

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	kctx := kong.Parse(&cli,
		kong.Name("scribely"),
		kong.Description("Transcribe long recordings and derive summaries, action items and more."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// Console logs go to stderr and stay out of the command output.
	logger, err := logging.New(cli.LogLevel, "console")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	kctx.FatalIfErrorf(err)

	err = kctx.Run(&Context{Context: ctx, App: a, Logger: logger})
	a.Close(context.Background())
	kctx.FatalIfErrorf(err)
}
