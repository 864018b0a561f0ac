package hub4com

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Usage reports the running process's CPU percentage and resident memory.
func (p *Process) Usage() (cpu float64, rssBytes uint64, err error) {
	pid := p.Pid()
	if pid == 0 {
		return 0, 0, errors.New("hub4com is not running")
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, 0, fmt.Errorf("inspect pid %d: %w", pid, err)
	}
	cpu, err = proc.CPUPercent()
	if err != nil {
		return 0, 0, fmt.Errorf("cpu usage: %w", err)
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return 0, 0, fmt.Errorf("memory usage: %w", err)
	}
	return cpu, mem.RSS, nil
}
