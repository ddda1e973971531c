package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/webitel/video_converter/infra/sysmon"
)

func testLimits() Limits {
	return Limits{
		MaxConcurrent: 8,
		CPUPercent:    80,
		MemoryPercent: 80,
		MinFreeMemory: 2 << 30,
		MinFreeDisk:   5 << 30,
	}
}

func okSnapshot() sysmon.Snapshot {
	return sysmon.Snapshot{
		CPUPercent:    35,
		MemoryPercent: 50,
		MemoryFree:    16 << 30,
		DiskFree:      200 << 30,
		At:            time.Now(),
	}
}

func TestAllowance(t *testing.T) {
	lim := testLimits()

	tests := []struct {
		name    string
		snap    sysmon.Snapshot
		pending int
		want    int
	}{
		{"healthy", okSnapshot(), 5, 8},
		{"healthy idle", okSnapshot(), 0, 8},
		{"cpu exactly at limit", func() sysmon.Snapshot {
			s := okSnapshot()
			s.CPUPercent = 80

			return s
		}(), 3, 8},
		{"cpu over limit degrades to serial", func() sysmon.Snapshot {
			s := okSnapshot()
			s.CPUPercent = 80.1

			return s
		}(), 3, 1},
		{"memory over limit", func() sysmon.Snapshot {
			s := okSnapshot()
			s.MemoryPercent = 91

			return s
		}(), 3, 1},
		{"free memory below floor", func() sysmon.Snapshot {
			s := okSnapshot()
			s.MemoryFree = 1 << 30

			return s
		}(), 3, 1},
		{"free disk below floor", func() sysmon.Snapshot {
			s := okSnapshot()
			s.DiskFree = 4 << 30

			return s
		}(), 3, 1},
		{"pressure with empty queue admits nothing", func() sysmon.Snapshot {
			s := okSnapshot()
			s.CPUPercent = 95

			return s
		}(), 0, 0},
		{"no reading yet is worst case", sysmon.Snapshot{}, 3, 1},
		{"stale reading is worst case", func() sysmon.Snapshot {
			s := okSnapshot()
			s.Stale = true

			return s
		}(), 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowance(tt.snap, lim, tt.pending))
		})
	}
}

func TestAllowanceZeroLimitsDisableChecks(t *testing.T) {
	lim := Limits{MaxConcurrent: 4}

	snap := okSnapshot()
	snap.CPUPercent = 99
	snap.MemoryFree = 0
	snap.DiskFree = 0

	assert.Equal(t, 4, Allowance(snap, lim, 10))
}

func TestAllowanceMinimumConcurrency(t *testing.T) {
	lim := testLimits()
	lim.MaxConcurrent = 0

	assert.Equal(t, 1, Allowance(okSnapshot(), lim, 0))
}
