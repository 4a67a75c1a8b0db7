// Package media runs the local processing steps of video productions:
// downloading sources, concatenating scenes and muxing audio tracks.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type MuxMode string

const (
	MUX_REPLACE MuxMode = "replace"
	MUX_MIX     MuxMode = "mix"
)

// Runner executes an external command.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(msg))
	}
	return nil
}

type Processor struct {
	ffmpeg  string
	workDir string
	run     Runner
	client  *http.Client
}

type Option func(*Processor)

func WithRunner(r Runner) Option {
	return func(p *Processor) { p.run = r }
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Processor) { p.client = c }
}

func NewProcessor(ffmpegPath, workDir string, opts ...Option) *Processor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	p := &Processor{
		ffmpeg:  ffmpegPath,
		workDir: workDir,
		run:     execRunner,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workspace creates a scratch directory; the returned func removes it.
func (p *Processor) Workspace() (string, func(), error) {
	dir, err := os.MkdirTemp(p.workDir, "atelier-media-")
	if err != nil {
		return "", nil, err
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

// Download fetches url into dir and returns the local path.
func (p *Processor) Download(ctx context.Context, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: %s", url, resp.Status)
	}

	ext := filepath.Ext(strings.SplitN(filepath.Base(url), "?", 2)[0])
	if ext == "" || len(ext) > 5 {
		ext = ".bin"
	}
	path := filepath.Join(dir, uuid.NewString()+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err = io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}

// Fetch reads url into memory, up to limit bytes, and returns the body with
// its content type.
func (p *Processor) Fetch(ctx context.Context, url string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: %s", url, resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(raw)) > limit {
		return nil, "", fmt.Errorf("fetch %s: larger than %d bytes", url, limit)
	}
	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return raw, strings.TrimSpace(mime), nil
}

// DownloadAll fetches urls concurrently and returns local paths in input order.
func (p *Processor) DownloadAll(ctx context.Context, dir string, urls ...string) ([]string, error) {
	paths := make([]string, len(urls))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for i, u := range urls {
		eg.Go(func() error {
			path, err := p.Download(ctx, u, dir)
			if err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// Concat joins clips into out. Stream copy is tried first; clips from
// different vendors usually need a re-encode.
func (p *Processor) Concat(ctx context.Context, clips []string, out string) error {
	if len(clips) == 0 {
		return fmt.Errorf("concat: no clips")
	}
	list := filepath.Join(filepath.Dir(out), "concat-"+uuid.NewString()+".txt")
	var sb strings.Builder
	for _, c := range clips {
		sb.WriteString("file '")
		sb.WriteString(strings.ReplaceAll(c, "'", `'\''`))
		sb.WriteString("'\n")
	}
	if err := os.WriteFile(list, []byte(sb.String()), 0o600); err != nil {
		return err
	}
	defer os.Remove(list)

	err := p.run(ctx, p.ffmpeg, "-y", "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", out)
	if err == nil {
		return nil
	}
	return p.run(ctx, p.ffmpeg, "-y", "-f", "concat", "-safe", "0", "-i", list,
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p", "-c:a", "aac", out)
}

// Mux puts audio onto video. MUX_REPLACE drops the original track, MUX_MIX
// blends both.
func (p *Processor) Mux(ctx context.Context, video, audio, out string, mode MuxMode) error {
	args := []string{"-y", "-i", video, "-i", audio}
	switch mode {
	case MUX_MIX:
		args = append(args,
			"-filter_complex", "[0:a][1:a]amix=inputs=2:duration=first:dropout_transition=2[a]",
			"-map", "0:v:0", "-map", "[a]")
	default:
		args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	}
	args = append(args, "-c:v", "copy", "-c:a", "aac", "-shortest", out)
	return p.run(ctx, p.ffmpeg, args...)
}
