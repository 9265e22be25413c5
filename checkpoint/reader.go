package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrFormat reports an unreadable or unsupported checkpoint file.
var ErrFormat = errors.New("checkpoint: unsupported format")

// Extensions lists the recognised checkpoint extensions in lookup order.
var Extensions = []string{".pt", ".pth", ".bin", ".safetensors"}

// Read loads a checkpoint, choosing the decoder from the file extension.
func Read(path string) (*StateDict, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pt", ".pth", ".bin":
		return ReadTorch(path)
	case ".safetensors":
		return ReadSafetensors(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrFormat, path)
	}
}

// Channel suffixes of per-channel checkpoints.
const (
	ChannelRed   = "r"
	ChannelGreen = "g"
	ChannelBlue  = "b"
)

// Channels lists the colour channel suffixes in image channel order.
var Channels = []string{ChannelRed, ChannelGreen, ChannelBlue}

// Path resolves root/<name><ext> for the first extension that exists. If
// none exists, the error wraps fs.ErrNotExist and names the .pt candidate.
func Path(root, name string) (string, error) {
	for _, ext := range Extensions {
		p := filepath.Join(root, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("checkpoint %s: %w", filepath.Join(root, name+Extensions[0]), fs.ErrNotExist)
}

// ChannelPath resolves the checkpoint of a per-channel model, e.g.
// root/ConvVAEGMN_r.pt.
func ChannelPath(root, model, channel string) (string, error) {
	return Path(root, model+"_"+channel)
}
