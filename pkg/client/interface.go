package client

import (
	"context"

	"github.com/menta2k/image-captioner/pkg/types"
)

// CaptionClient is the transport to a vision model server
type CaptionClient interface {
	// Resolve makes sure the named model is available, fetching it if the backend supports that.
	Resolve(ctx context.Context, model string) error
	// Caption sends one JPEG-encoded image with the prompt and returns the raw model text.
	Caption(ctx context.Context, model, prompt string, img []byte, decoding types.Decoding) (string, error)
}
