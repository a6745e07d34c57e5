package types

import (
	"context"
	"time"
)

// FetchRequest describes one remote-to-local transfer.
type FetchRequest struct {
	// URL is the remote source
	URL string `json:"url"`

	// Filename is the local name to store under; empty means derived from URL
	Filename string `json:"filename,omitempty"`

	// Decompress requests archive decompression during the transfer
	Decompress bool `json:"decompress,omitempty"`

	// Dir is the destination directory, already resolved and created
	Dir string `json:"dir"`

	// Timeout bounds the transfer; zero uses the fetcher's default
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Fetcher transfers a remote source to a local file and returns its path.
// Implementations report network and protocol failures as *TransportError.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (string, error)
}
