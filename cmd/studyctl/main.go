// Command studyctl browses and manages study materials through the REST API.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studymaterials/backend/internal/client"
	"github.com/studymaterials/backend/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultAPIURL  = "http://localhost:8080/api/v1"
	defaultTimeout = "30s"
)

const usage = `usage: studyctl <command> [flags]

commands:
  login    -email E -password P       sign in and print an access token
  forgot-password <email>             email a password reset code
  reset-password -token T -password P set a new password with the emailed code
  classes  <category>                 print the class levels a category allows
  list     -category C -type T [-class N]
  show     <id>
  delete   <id>                       requires a token
  upload   -name ... -category ... -type ... -file-type ... [-file F | -youtube URL]
  shell                               interactive browser

environment:
  STUDYCTL_API     API base URL (default ` + defaultAPIURL + `)
  STUDYCTL_TOKEN   access token used by delete, upload and shell
  STUDYCTL_TIMEOUT request timeout (default ` + defaultTimeout + `)
  LOG_LEVEL        log level written to stderr (default warn)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := logger.Init(envOr("LOG_LEVEL", "warn")); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	timeout, err := time.ParseDuration(envOr("STUDYCTL_TIMEOUT", defaultTimeout))
	if err != nil || timeout <= 0 {
		fmt.Fprintf(os.Stderr, "studyctl: invalid STUDYCTL_TIMEOUT %q\n", os.Getenv("STUDYCTL_TIMEOUT"))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &app{
		client: client.New(
			envOr("STUDYCTL_API", defaultAPIURL),
			logger.Logger,
			client.WithHTTPClient(&http.Client{Timeout: timeout}),
		),
		token:  os.Getenv("STUDYCTL_TOKEN"),
		in:     os.Stdin,
		out:    os.Stdout,
		logger: logger.Logger,
	}

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Logger.Debug("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		fmt.Fprintf(os.Stderr, "studyctl: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// app holds what every command needs
type app struct {
	client *client.Client
	token  string
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx, args)
	case "forgot-password":
		return a.forgotPassword(ctx, args)
	case "reset-password":
		return a.resetPassword(ctx, args)
	case "classes":
		return a.classes(args)
	case "list":
		return a.list(ctx, args)
	case "show":
		return a.show(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	case "upload":
		return a.upload(ctx, args)
	case "shell":
		return a.shell(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
