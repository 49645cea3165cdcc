package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/face-count-mcp/internal/annotate"
	"github.com/ironsheep/face-count-mcp/internal/config"
	"github.com/ironsheep/face-count-mcp/internal/detection"
	"github.com/ironsheep/face-count-mcp/internal/imaging"
	"github.com/ironsheep/face-count-mcp/internal/logging"
	"github.com/ironsheep/face-count-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	flagEnvFile    = "env-file"
	flagLogLevel   = "log-level"
	flagConfidence = "confidence"
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		printVersion()
	}

	app := &cli.App{
		Name:    "face-count-mcp",
		Usage:   "count and mark faces in images over MCP",
		Version: Version,
		Description: "Without a command, serves MCP over stdin/stdout. Settings come from\n" +
			"FACECOUNT_* environment variables or a .env file.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagEnvFile,
				Usage: "load settings from `FILE` instead of ./.env",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "override FACECOUNT_LOG_LEVEL",
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve MCP over stdin/stdout",
				Action: serveAction,
			},
			{
				Name:      "detect",
				Usage:     "print face detections for an image as JSON",
				ArgsUsage: "<image>",
				Flags:     []cli.Flag{confidenceFlag()},
				Action:    detectAction,
			},
			{
				Name:      "annotate",
				Usage:     "draw numbered face boxes onto a copy of an image",
				ArgsUsage: "<image> <output>",
				Flags:     []cli.Flag{confidenceFlag()},
				Action:    annotateAction,
			},
			{
				Name:  "version",
				Usage: "print version information",
				Action: func(c *cli.Context) error {
					printVersion()
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "face-count-mcp: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("face-count-mcp %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func confidenceFlag() cli.Flag {
	return &cli.Float64Flag{
		Name:    flagConfidence,
		Aliases: []string{"c"},
		Usage:   "minimum detection confidence in (0, 1]; 0 uses FACECOUNT_CONFIDENCE",
	}
}

// environment is what every command needs before it can do work.
type environment struct {
	cfg *config.Config
	log *logrus.Logger
}

func setup(c *cli.Context) (*environment, error) {
	var files []string
	if f := c.String(flagEnvFile); f != "" {
		files = append(files, f)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	if lvl := c.String(flagLogLevel); lvl != "" {
		cfg.LogLevel = lvl
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, log: log}, nil
}

func (e *environment) openDetector(ctx context.Context) (*detection.Detector, error) {
	return detection.New(ctx, e.cfg.ModelConfig(), detection.Options{
		Heuristic:         e.cfg.Heuristic(),
		DefaultConfidence: e.cfg.Confidence,
		Logger:            e.log,
	})
}

func (e *environment) annotator() *annotate.Annotator {
	return annotate.New(annotate.NewFontLoader(e.cfg.FontSearchPaths()))
}

func serveAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	det, err := env.openDetector(ctx)
	if err != nil {
		return err
	}
	defer det.Close()

	env.log.WithFields(logrus.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
		"model":   det.ModelName(),
		"kind":    det.Kind(),
	}).Info("face-count-mcp starting")

	srv := server.New(server.Config{
		Detector:  det,
		Annotator: env.annotator(),
		Logger:    env.log,
		Version:   Version,
	})

	// Run blocks on stdin, so a signal must not wait for the next request.
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		env.log.Info("shutting down")
		return nil
	}
}

func detectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: face-count-mcp detect [--confidence N] <image>", 2)
	}
	env, err := setup(c)
	if err != nil {
		return err
	}

	det, err := env.openDetector(c.Context)
	if err != nil {
		return err
	}
	defer det.Close()

	path := c.Args().Get(0)
	dets, err := det.Detect(c.Context, path, c.Float64(flagConfidence))
	if err != nil {
		return err
	}

	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(map[string]interface{}{
		"path":       path,
		"count":      len(dets),
		"model":      det.ModelName(),
		"model_kind": det.Kind(),
		"detections": dets,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func annotateAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: face-count-mcp annotate [--confidence N] <image> <output>", 2)
	}
	env, err := setup(c)
	if err != nil {
		return err
	}

	det, err := env.openDetector(c.Context)
	if err != nil {
		return err
	}
	defer det.Close()

	in, out := c.Args().Get(0), c.Args().Get(1)
	img, err := imaging.Decode(in)
	if err != nil {
		return err
	}
	dets, err := det.DetectImage(c.Context, img, c.Float64(flagConfidence))
	if err != nil {
		return err
	}

	if err := imaging.Save(env.annotator().Render(img, dets), out); err != nil {
		return err
	}
	env.log.WithFields(logrus.Fields{"input": in, "output": out}).Debug("annotated image written")
	fmt.Printf("%d face(s) marked in %s\n", len(dets), out)
	return nil
}
