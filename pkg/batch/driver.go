// Package batch captions every image in a directory and writes one text file per image.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/menta2k/image-captioner/internal/utils"
	"github.com/menta2k/image-captioner/pkg/types"
)

// DefaultSuffix is appended to the input file name to form the output name
const DefaultSuffix = "_caption.txt"

// Provider produces a caption from raw image bytes
type Provider interface {
	Caption(ctx context.Context, data []byte) (string, error)
}

// Options configures a Driver
type Options struct {
	InputDir   string
	OutputDir  string
	Extensions []string
	Suffix     string
	Out        io.Writer
	Logger     *slog.Logger
}

// Driver runs a provider over an input directory
type Driver struct {
	provider Provider
	opts     Options
}

// New creates a driver; Out defaults to stdout and Logger to slog.Default()
func New(provider Provider, opts Options) *Driver {
	if len(opts.Extensions) == 0 {
		opts.Extensions = utils.DefaultImageExtensions
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{provider: provider, opts: opts}
}

// Run captions every qualifying file. Per-image failures are written in place of the
// caption and never abort the batch; the returned error covers setup and cancellation only.
func (d *Driver) Run(ctx context.Context) (*types.Summary, error) {
	summary := &types.Summary{}

	if err := utils.EnsureDir(d.opts.OutputDir); err != nil {
		return summary, fmt.Errorf("failed to create output directory: %w", err)
	}

	files, err := utils.ListImageFiles(d.opts.InputDir, d.opts.Extensions)
	if err != nil {
		return summary, fmt.Errorf("failed to list input directory: %w", err)
	}

	d.opts.Logger.Info("batch started",
		slog.String("input", d.opts.InputDir),
		slog.String("output", d.opts.OutputDir),
		slog.Int("images", len(files)))

	for _, name := range files {
		if ctx.Err() != nil {
			break
		}
		res := d.ProcessFile(ctx, name)
		if res.Cancelled {
			break
		}
		summary.Add(res)
	}

	if err := ctx.Err(); err != nil {
		d.opts.Logger.Warn("batch interrupted",
			slog.Int("done", summary.Total),
			slog.Int("remaining", len(files)-summary.Total))
		return summary, err
	}

	d.opts.Logger.Info("batch finished",
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed))
	return summary, nil
}

// ProcessFile captions one file from the input directory and persists the result.
// If ctx is cancelled while the caption is generated nothing is written, so an
// existing output file from an earlier run stays intact.
func (d *Driver) ProcessFile(ctx context.Context, name string) types.Result {
	res := types.Result{
		Name:       name,
		OutputPath: filepath.Join(d.opts.OutputDir, utils.CaptionFilename(name, d.opts.Suffix)),
	}

	res.Caption, res.Err = d.caption(ctx, filepath.Join(d.opts.InputDir, name))
	if err := ctx.Err(); err != nil {
		res.Caption, res.Err, res.Cancelled = "", err, true
		d.opts.Logger.Debug("caption cancelled", slog.String("file", name))
		return res
	}
	if res.Err != nil {
		d.opts.Logger.Debug("caption failed", slog.String("file", name), slog.String("error", res.Err.Error()))
	}

	text := res.Text()
	if err := os.WriteFile(res.OutputPath, []byte(text), 0o644); err != nil {
		d.opts.Logger.Error("failed to write caption",
			slog.String("file", res.OutputPath),
			slog.String("error", err.Error()))
		if res.Err == nil {
			res.Err = fmt.Errorf("write %s: %w", res.OutputPath, err)
		}
	}

	fmt.Fprintf(d.opts.Out, "Processed %s: %s\n", name, text)
	return res
}

func (d *Driver) caption(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	d.opts.Logger.Debug("captioning",
		slog.String("file", filepath.Base(path)),
		slog.String("size", utils.FormatFileSize(int64(len(data)))))
	return d.provider.Caption(ctx, data)
}
