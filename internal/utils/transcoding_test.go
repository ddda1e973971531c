package utils

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/wlog"

	"github.com/webitel/video_converter/config"
	"github.com/webitel/video_converter/internal/model"
)

func TestBuildArgs(t *testing.T) {
	quality := 23
	j := &model.Job{
		SourcePath:      "/in/a.mkv",
		DestinationPath: "/out/a.mp4",
		Params: &model.ConvertParams{
			Quality:      &quality,
			Resolution:   "1280x720",
			VideoBitrate: 1000,
			AudioBitrate: 96,
		},
	}

	args := strings.Join(BuildArgs(j), " ")

	assert.Contains(t, args, "-i /in/a.mkv")
	assert.Contains(t, args, "-vf scale=1280:720")
	assert.Contains(t, args, "-crf 23")
	assert.Contains(t, args, "-b:v 1000k")
	assert.Contains(t, args, "-b:a 96k")
	assert.Contains(t, args, "-progress pipe:1")
	assert.True(t, strings.HasSuffix(args, "/out/a.mp4"))
}

func TestBuildArgsLosslessQuality(t *testing.T) {
	quality := 0
	j := &model.Job{
		SourcePath:      "/in/a.mkv",
		DestinationPath: "/out/a.mp4",
		Params:          &model.ConvertParams{Quality: &quality},
	}

	assert.Contains(t, strings.Join(BuildArgs(j), " "), "-crf 0")
}

func TestBuildArgsWithoutParams(t *testing.T) {
	j := &model.Job{SourcePath: "/in/a.mkv", DestinationPath: "/out/a.mp4"}

	args := strings.Join(BuildArgs(j), " ")

	assert.NotContains(t, args, "-vf")
	assert.NotContains(t, args, "-crf")
	assert.True(t, strings.HasSuffix(args, "/out/a.mp4"))
}

func TestParseProgressLine(t *testing.T) {
	total := 10 * time.Second

	tests := []struct {
		line string
		want int
		ok   bool
	}{
		{"out_time_us=5000000", 50, true},
		{"out_time_ms=5000000", 50, true}, // same unit despite the name
		{"out_time_us=2500000", 25, true},
		{"out_time_us=20000000", 100, true}, // clamped
		{"out_time_us=-1", 0, false},
		{"out_time_us=bogus", 0, false},
		{"frame=120", 0, false},
		{"progress=continue", 0, false},
		{"no equals sign", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseProgressLine(tt.line, total)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	// unknown duration disables percentage reporting entirely
	_, ok := parseProgressLine("out_time_us=5000000", 0)
	assert.False(t, ok)
}

func TestReadProgressReportsMonotonically(t *testing.T) {
	f := &FFmpeg{} // zero interval: every increase is reported

	stream := strings.Join([]string{
		"frame=10",
		"out_time_us=1000000",
		"out_time_us=500000", // went backwards, skipped
		"out_time_us=3000000",
		"progress=continue",
		"out_time_us=9000000",
		"progress=end",
	}, "\n")

	var got []int

	f.readProgress(strings.NewReader(stream), 10*time.Second, func(p int) {
		got = append(got, p)
	})

	assert.Equal(t, []int{10, 30, 90}, got)
}

func TestRunMissingInput(t *testing.T) {
	log := wlog.NewLogger(&wlog.LoggerConfiguration{EnableConsole: false})
	f := NewFFmpeg(&config.Config{Ffmpeg: config.FfmpegSettings{Bin: "ffmpeg", ProbeBin: "ffprobe"}}, log)

	j := &model.Job{
		SourcePath:      filepath.Join(t.TempDir(), "missing.mkv"),
		DestinationPath: "/out/a.mp4",
	}

	err := f.Run(context.Background(), j, nil)

	var inputErr *InputError

	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, j.SourcePath, inputErr.Path)
}

func TestTailWriter(t *testing.T) {
	w := &tailWriter{limit: 10}

	_, err := w.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, "hello", w.String())

	_, err = w.Write([]byte("a very long error message"))
	require.NoError(t, err)

	out := w.String()
	assert.LessOrEqual(t, len(out), 10)
	assert.True(t, strings.HasSuffix("a very long error message", out))
}
