package config

import (
	"time"
)

type Config struct {
	Service     Service
	Log         LogSettings
	SQLSettings SQLSettings
	HTTP        HTTPSettings
	Scheduler   SchedulerSettings
	Limits      LimitSettings
	Ffmpeg      FfmpegSettings
}

type Service struct {
	ID     string
	Consul string
}

type HTTPSettings struct {
	Address string
}

type SQLSettings struct {
	DSN string
}

// SchedulerSettings controls the conversion queue: how many external
// processes may run at once, how often the loop wakes up and the retry
// budget for failed jobs.
type SchedulerSettings struct {
	MaxConcurrent int
	Queue         int
	Tick          time.Duration
	JobTimeout    time.Duration
	MaxRetry      int
	RetryDelayMin time.Duration
	RetryDelayMax time.Duration
}

// LimitSettings are the resource ceilings consulted before admitting a
// new conversion. DiskPath is the volume destination files are written to.
type LimitSettings struct {
	CPUPercent     float64
	MemoryPercent  float64
	MinFreeMemMB   int
	MinFreeDiskGB  int
	SampleInterval time.Duration
	DiskPath       string
}

type FfmpegSettings struct {
	Bin              string
	ProbeBin         string
	ProgressInterval time.Duration
}

type LogSettings struct {
	Lvl     string
	JSON    bool
	Otel    bool
	File    string
	Console bool
}
