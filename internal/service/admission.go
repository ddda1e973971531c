package service

import (
	"github.com/webitel/video_converter/config"
	"github.com/webitel/video_converter/infra/sysmon"
)

// Limits are the static admission ceilings. Memory and disk floors are
// in bytes.
type Limits struct {
	MaxConcurrent int
	CPUPercent    float64
	MemoryPercent float64
	MinFreeMemory uint64
	MinFreeDisk   uint64
}

func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		CPUPercent:    cfg.Limits.CPUPercent,
		MemoryPercent: cfg.Limits.MemoryPercent,
		MinFreeMemory: uint64(cfg.Limits.MinFreeMemMB) * 1024 * 1024,
		MinFreeDisk:   uint64(cfg.Limits.MinFreeDiskGB) * 1024 * 1024 * 1024,
	}
}

// Allowance converts a resource snapshot into the number of conversions
// that may run concurrently. Under pressure the queue degrades to
// serial execution rather than halting, so pending work is never
// starved indefinitely; submissions simply wait longer. Pure function,
// no store access.
func Allowance(snap sysmon.Snapshot, lim Limits, pending int) int {
	max := lim.MaxConcurrent
	if max < 1 {
		max = 1
	}

	if !underPressure(snap, lim) {
		return max
	}

	if pending > 0 {
		return 1
	}

	return 0
}

func underPressure(snap sysmon.Snapshot, lim Limits) bool {
	// no reading yet, or a stale one, counts as worst case
	if snap.At.IsZero() || snap.Stale {
		return true
	}

	if lim.CPUPercent > 0 && snap.CPUPercent > lim.CPUPercent {
		return true
	}

	if lim.MemoryPercent > 0 && snap.MemoryPercent > lim.MemoryPercent {
		return true
	}

	if lim.MinFreeMemory > 0 && snap.MemoryFree < lim.MinFreeMemory {
		return true
	}

	if lim.MinFreeDisk > 0 && snap.DiskFree < lim.MinFreeDisk {
		return true
	}

	return false
}
