// Package fetch resolves model artifacts to local files, downloading them
// into a shared cache when needed. Downloads are all-or-nothing: any failure
// removes the partial file and surfaces a typed error. There is no retry.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"llamad/internal/common/fsutil"
)

// DefaultModelURL is the artifact fetched when neither a URL nor a local
// path is configured.
const DefaultModelURL = "https://huggingface.co/TheBloke/Llama-2-13B-chat-GGML/resolve" +
	"/main/llama-2-13b-chat.ggmlv3.q4_0.bin"

const (
	// defaultChunkSize is the unit for streaming the artifact to disk.
	defaultChunkSize = 1 << 20
	// defaultMinSize rejects bodies too small to be a real model artifact.
	defaultMinSize = 1000 * 1000
	// progressEvery controls how often chunk progress is logged.
	progressEvery = 32
)

// Fetcher downloads model artifacts into a cache directory.
type Fetcher struct {
	// Client used for downloads. Defaults to http.DefaultClient.
	Client *http.Client
	// MinSize is the minimum acceptable artifact size in bytes.
	MinSize int64
	// ChunkSize is the copy buffer size in bytes.
	ChunkSize int
	// Progress, if set, is invoked after each chunk with bytes written so
	// far and the total expected size.
	Progress func(done, total int64)

	log zerolog.Logger
}

// New returns a Fetcher with default sizing.
func New(log zerolog.Logger) *Fetcher {
	return &Fetcher{
		Client:    http.DefaultClient,
		MinSize:   defaultMinSize,
		ChunkSize: defaultChunkSize,
		log:       log,
	}
}

// Resolve ensures a usable local model file exists and returns its path.
//
// If modelPath is non-empty it must already exist; a missing explicit path
// is a configuration error and no download is attempted. Otherwise the
// artifact is located at <cacheRoot>/models/<basename-of-url> and downloaded
// on first use. Re-invocation with a populated cache performs no network
// access.
func (f *Fetcher) Resolve(ctx context.Context, modelURL, modelPath, cacheRoot string) (string, error) {
	if modelPath != "" {
		p, err := fsutil.ExpandHome(modelPath)
		if err != nil {
			return "", err
		}
		if !fsutil.PathExists(p) {
			return "", ErrPathNotFound(p)
		}
		return p, nil
	}

	name, err := artifactName(modelURL)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(cacheRoot, "models", name)
	if fsutil.PathExists(dest) {
		f.log.Debug().Str("path", dest).Msg("model already cached")
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	if err := f.download(ctx, modelURL, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// artifactName derives the cache file name from the URL path.
func artifactName(modelURL string) (string, error) {
	u, err := url.Parse(modelURL)
	if err != nil {
		return "", fmt.Errorf("parse model url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("model url has no file name: %s", modelURL)
	}
	return name, nil
}

// download streams the remote artifact to dest in fixed-size chunks. On any
// failure the partially written file is removed and an incomplete-download
// error is returned.
func (f *Fetcher) download(ctx context.Context, modelURL, dest string) error {
	f.log.Info().Str("url", modelURL).Str("path", dest).Msg("downloading model")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelURL, nil)
	if err != nil {
		return incompleteError{cause: err}
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return incompleteError{cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return incompleteError{cause: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	// Validate size before anything is written so a rejected source never
	// leaves a file behind.
	total := resp.ContentLength
	if total < f.MinSize {
		return tooSmallError{size: total, min: f.MinSize}
	}
	f.log.Info().Str("size", humanize.Bytes(uint64(total))).Msg("download started")

	file, err := os.Create(dest)
	if err != nil {
		return incompleteError{cause: err}
	}
	if err := f.copyChunks(ctx, file, resp.Body, total); err != nil {
		_ = file.Close()
		f.log.Warn().Err(err).Str("path", dest).Msg("download incomplete, removing partial file")
		_ = os.Remove(dest)
		return incompleteError{cause: err}
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(dest)
		return incompleteError{cause: err}
	}
	f.log.Info().Str("path", dest).Msg("download complete")
	return nil
}

func (f *Fetcher) copyChunks(ctx context.Context, dst io.Writer, src io.Reader, total int64) error {
	size := f.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	buf := make([]byte, size)
	var done int64
	var chunks int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			done += int64(n)
			chunks++
			if f.Progress != nil {
				f.Progress(done, total)
			}
			if chunks%progressEvery == 0 {
				f.log.Info().
					Str("done", humanize.Bytes(uint64(done))).
					Str("total", humanize.Bytes(uint64(total))).
					Msg("downloading")
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			if done < total {
				return fmt.Errorf("short body: got %d of %d bytes", done, total)
			}
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
