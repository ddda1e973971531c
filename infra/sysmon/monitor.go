package sysmon

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/atomic"

	"github.com/webitel/wlog"
)

// Snapshot is a point-in-time reading of host utilization. It is not
// persisted; each sample supersedes the previous one. Stale is set when
// the OS query failed and the previous values were carried over.
type Snapshot struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryFree    uint64
	DiskFree      uint64
	Stale         bool
	At            time.Time
}

// readSystem is swappable in tests.
var readSystem = func(ctx context.Context, diskPath string) (Snapshot, error) {
	var s Snapshot

	cpuPct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return s, err
	}

	if len(cpuPct) > 0 {
		s.CPUPercent = cpuPct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, err
	}

	s.MemoryPercent = vm.UsedPercent
	s.MemoryFree = vm.Available

	du, err := disk.UsageWithContext(ctx, diskPath)
	if err != nil {
		return s, err
	}

	s.DiskFree = du.Free
	s.At = time.Now()

	return s, nil
}

// Monitor samples CPU, memory and disk utilization on a fixed interval.
// Sample never blocks beyond reading the stored value.
type Monitor struct {
	interval  time.Duration
	diskPath  string
	last      atomic.Value
	startOnce sync.Once
	stop      chan struct{}
	ctx       context.Context
	log       *wlog.Logger
}

func NewMonitor(ctx context.Context, interval time.Duration, diskPath string, log *wlog.Logger) *Monitor {
	if diskPath == "" {
		diskPath = "/"
	}

	return &Monitor{
		interval: interval,
		diskPath: diskPath,
		stop:     make(chan struct{}),
		ctx:      ctx,
		log:      log.With(wlog.String("scope", "sysmon")),
	}
}

func (m *Monitor) Start() error {
	var err error

	m.startOnce.Do(func() {
		var s Snapshot

		s, err = readSystem(m.ctx, m.diskPath)
		if err != nil {
			return
		}

		m.last.Store(s)

		go m.loop()
	})

	return err
}

func (m *Monitor) Stop() {
	close(m.stop)
}

// Sample returns the most recent snapshot.
func (m *Monitor) Sample() Snapshot {
	s, _ := m.last.Load().(Snapshot)
	return s
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)

	defer func() {
		ticker.Stop()
		m.log.Debug("monitor loop closed")
	}()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			s, err := readSystem(m.ctx, m.diskPath)
			if err != nil {
				// keep serving the previous reading, flagged stale, so
				// admission degrades instead of the scheduler erroring out
				m.log.Error(err.Error(), wlog.Err(err))

				prev := m.Sample()
				prev.Stale = true
				m.last.Store(prev)

				continue
			}

			m.last.Store(s)
		}
	}
}
