package captioner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/menta2k/image-captioner/pkg/client"
	"github.com/menta2k/image-captioner/pkg/processing"
	"github.com/menta2k/image-captioner/pkg/types"
)

// DefaultPrompt asks for the kind of short caption an image-captioning checkpoint produces
const DefaultPrompt = `Write a caption for this image.

RULES
- One short sentence, at most 16 words.
- Describe what is visible. Do not guess real identities.
- Plain text only. No markdown, no quotes, no preamble.`

const (
	DefaultMaxTokens   = 16
	DefaultNumBeams    = 4
	DefaultSendSize    = 768
	DefaultSendQuality = 90
)

// ErrEmptyCaption is returned when the model answers with nothing usable
var ErrEmptyCaption = errors.New("model returned an empty caption")

// Options configures a Captioner; zero values fall back to the defaults above
type Options struct {
	Model       string
	Prompt      string
	Decoding    types.Decoding
	SendSize    int
	SendQuality int
	// Timeout bounds one caption request; zero leaves it to the client
	Timeout time.Duration
}

// Captioner turns raw image bytes into a caption using a vision model.
// It is immutable after New and safe to share.
type Captioner struct {
	client    client.CaptionClient
	processor *processing.Processor
	opts      Options
}

// New creates a captioner backed by the given client
func New(c client.CaptionClient, opts Options) *Captioner {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.Decoding.MaxTokens <= 0 {
		opts.Decoding.MaxTokens = DefaultMaxTokens
	}
	if opts.Decoding.NumBeams <= 0 {
		opts.Decoding.NumBeams = DefaultNumBeams
	}
	if opts.SendSize <= 0 {
		opts.SendSize = DefaultSendSize
	}
	if opts.SendQuality < 1 || opts.SendQuality > 100 {
		opts.SendQuality = DefaultSendQuality
	}
	return &Captioner{
		client:    c,
		processor: processing.NewProcessor(),
		opts:      opts,
	}
}

// Model returns the checkpoint identifier
func (c *Captioner) Model() string {
	return c.opts.Model
}

// Decoding returns the fixed decoding settings
func (c *Captioner) Decoding() types.Decoding {
	return c.opts.Decoding
}

// Load resolves the checkpoint. Any error here means the model cannot be used at all.
func (c *Captioner) Load(ctx context.Context) error {
	if c.opts.Model == "" {
		return fmt.Errorf("no model configured")
	}
	if err := c.client.Resolve(ctx, c.opts.Model); err != nil {
		return fmt.Errorf("failed to load model %s: %w", c.opts.Model, err)
	}
	return nil
}

// Caption decodes the image and asks the model to describe it
func (c *Captioner) Caption(ctx context.Context, data []byte) (string, error) {
	img, err := c.processor.DecodeBytes(data)
	if err != nil {
		return "", err
	}

	payload, err := c.processor.PrepareForModel(img, c.opts.SendSize, c.opts.SendQuality)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	raw, err := c.client.Caption(ctx, c.opts.Model, c.opts.Prompt, payload, c.opts.Decoding)
	if err != nil {
		return "", err
	}

	caption := normalizeCaption(raw)
	if caption == "" {
		return "", ErrEmptyCaption
	}
	return caption, nil
}

// normalizeCaption strips fences and quotes and folds the text onto one line
func normalizeCaption(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		} else {
			raw = strings.TrimPrefix(raw, "```")
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}

	raw = strings.Join(strings.Fields(raw), " ")
	return strings.TrimSpace(unquote(raw))
}

// quotePairs maps an opening quote to its closing quote
var quotePairs = map[string]string{
	"\"": "\"",
	"'":  "'",
	"`":  "`",
	"“":  "”",
}

// unquote removes quotes wrapped around the whole caption. A lone quote at
// either end, like a trailing possessive apostrophe, is kept.
func unquote(s string) string {
	for {
		s = strings.TrimSpace(s)
		stripped := false
		for open, closing := range quotePairs {
			if len(s) >= len(open)+len(closing) && strings.HasPrefix(s, open) && strings.HasSuffix(s, closing) {
				s = s[len(open) : len(s)-len(closing)]
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}
