package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/identity-scan/internal/bootstrap"
	"github.com/kirillkom/identity-scan/internal/config"
	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/observability/logging"
	"github.com/kirillkom/identity-scan/internal/render"
)

const serviceName = "idscan-cli"

type options struct {
	strategy string
	format   string
	out      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "idscan",
		Short:        "Extract identity-document fields from images or recognized text",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.strategy, "strategy", "", "extraction strategy: pattern or model (default from EXTRACTION_STRATEGY)")
	root.PersistentFlags().StringVar(&opts.format, "format", render.FormatJSON, "output format: json, html or xlsx")
	root.PersistentFlags().StringVarP(&opts.out, "out", "o", "", "write output to a file instead of stdout")

	root.AddCommand(newExtractCmd(opts), newParseCmd(opts))
	return root
}

func newExtractCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <image>",
		Short: "Run OCR and field extraction on an image or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := selectRenderer(opts.format)
			if err != nil {
				return err
			}
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open image: %w", err)
			}
			defer f.Close()

			app, cleanup, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := app.Scanner.Scan(cmd.Context(), filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), f)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.out, renderer, result.Record)
		},
	}
}

func newParseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <textfile|->",
		Short: "Extract fields from already recognized text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := selectRenderer(opts.format)
			if err != nil {
				return err
			}
			text, err := readText(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			app, cleanup, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := app.Extractor.Extract(cmd.Context(), text)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.out, renderer, rec)
		},
	}
}

// newApp wires the pipeline against a throwaway upload directory and without
// scan history.
func newApp(ctx context.Context, opts *options, logOut io.Writer) (*bootstrap.App, func(), error) {
	cfg, err := config.Resolve()
	if err != nil {
		return nil, nil, err
	}
	if s := strings.TrimSpace(opts.strategy); s != "" {
		cfg.ExtractionStrategy = strings.ToLower(s)
	}
	cfg.PostgresDSN = ""
	cfg.StorageKeepUploads = false
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	dir, err := os.MkdirTemp("", "idscan-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create work dir: %w", err)
	}
	cfg.StoragePath = dir

	logger := logging.NewJSONLoggerTo(logOut, serviceName, cfg.LogLevel)
	app, err := bootstrap.New(ctx, cfg, serviceName, logger)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, nil, err
	}
	return app, func() {
		app.Close()
		_ = os.RemoveAll(dir)
	}, nil
}

func selectRenderer(format string) (render.Renderer, error) {
	renderer, ok := render.ForFormat(format, "")
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "select format", fmt.Errorf("unknown format %q", format))
	}
	return renderer, nil
}

func readText(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	return string(raw), nil
}

func writeOutput(stdout io.Writer, path string, renderer render.Renderer, rec domain.Record) (err error) {
	if path == "" {
		return renderer.Render(stdout, rec)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return renderer.Render(f, rec)
}
