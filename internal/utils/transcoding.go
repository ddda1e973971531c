package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/webitel/wlog"

	"github.com/webitel/video_converter/config"
	"github.com/webitel/video_converter/internal/model"
)

const (
	terminateDelay = 5 * time.Second
	stderrTailSize = 2048
)

// InputError marks a broken input that no amount of retrying will fix.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %s: %s", e.Path, e.Err.Error())
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// FFmpeg invokes the external transcoder for one job at a time and
// reports parsed progress through a callback.
type FFmpeg struct {
	bin              string
	probeBin         string
	progressInterval time.Duration
	log              *wlog.Logger
}

func NewFFmpeg(cfg *config.Config, log *wlog.Logger) *FFmpeg {
	return &FFmpeg{
		bin:              cfg.Ffmpeg.Bin,
		probeBin:         cfg.Ffmpeg.ProbeBin,
		progressInterval: cfg.Ffmpeg.ProgressInterval,
		log:              log.With(wlog.String("scope", "ffmpeg")),
	}
}

// BuildArgs maps the job parameters onto the transcoder command line.
func BuildArgs(j *model.Job) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-progress", "pipe:1",
		"-y",
		"-i", j.SourcePath,
	}

	if p := j.Params; p != nil {
		if p.Resolution != "" {
			args = append(args, "-vf", "scale="+strings.Replace(p.Resolution, "x", ":", 1))
		}

		if p.Quality != nil {
			args = append(args, "-crf", strconv.Itoa(*p.Quality))
		}

		args = append(args,
			"-b:v", fmt.Sprintf("%dk", p.VideoBitrate),
			"-b:a", fmt.Sprintf("%dk", p.AudioBitrate),
		)
	}

	return append(args, j.DestinationPath)
}

// Run blocks until the process exits or ctx is cancelled. On ctx
// cancellation the process receives SIGTERM and is killed after a grace
// period, so a handle is never leaked. The returned error wraps the
// context error when the run was cut short.
func (f *FFmpeg) Run(ctx context.Context, job *model.Job, progress func(int)) error {
	if _, err := os.Stat(job.SourcePath); err != nil {
		return &InputError{Path: job.SourcePath, Err: err}
	}

	total := f.probeDuration(ctx, job.SourcePath)

	cmd := exec.CommandContext(ctx, f.bin, BuildArgs(job)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = terminateDelay

	tail := &tailWriter{limit: stderrTailSize}
	cmd.Stderr = tail

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err = cmd.Start(); err != nil {
		return err
	}

	go f.readProgress(stdout, total, progress)

	err = cmd.Wait()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if msg := tail.String(); msg != "" {
			return fmt.Errorf("%s: %s", err.Error(), msg)
		}

		return err
	}

	return nil
}

// readProgress parses the key=value stream of -progress pipe:1.
// Updates are throttled so a chatty process does not turn into a
// write storm on the job store.
func (f *FFmpeg) readProgress(r io.Reader, total time.Duration, progress func(int)) {
	if progress == nil {
		return
	}

	var (
		lastReport time.Time
		lastPct    int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		pct, ok := parseProgressLine(scanner.Text(), total)
		if !ok || pct <= lastPct {
			continue
		}

		if time.Since(lastReport) < f.progressInterval {
			continue
		}

		lastReport = time.Now()
		lastPct = pct
		progress(pct)
	}
}

func parseProgressLine(line string, total time.Duration) (int, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found || total <= 0 {
		return 0, false
	}

	// out_time_us and the misnamed out_time_ms are both microseconds
	if key != "out_time_us" && key != "out_time_ms" {
		return 0, false
	}

	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}

	pct := int(time.Duration(us) * time.Microsecond * 100 / total)
	if pct > 100 {
		pct = 100
	}

	return pct, true
}

func (f *FFmpeg) probeDuration(ctx context.Context, src string) time.Duration {
	out, err := exec.CommandContext(ctx, f.probeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src,
	).Output()
	if err != nil {
		f.log.Warn("probe failed, progress reporting disabled", wlog.String("source", src), wlog.Err(err))
		return 0
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// tailWriter keeps the last limit bytes written to it.
type tailWriter struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	if len(w.buf) > w.limit {
		w.buf = w.buf[len(w.buf)-w.limit:]
	}

	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return strings.TrimSpace(string(w.buf))
}
