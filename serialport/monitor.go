package serialport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// rateWindow is how far back received byte counts feed the rate figure.
const rateWindow = 2 * time.Second

// portHandle is the slice of the serial driver used by the monitor and
// tester, separated so tests can script a fake port.
type portHandle interface {
	SetReadTimeout(t time.Duration) error
	Read(p []byte) (int, error)
	GetModemStatusBits() (*serial.ModemStatusBits, error)
	Close() error
}

// openPort is swapped out by tests.
var openPort = func(name string, mode *serial.Mode) (portHandle, error) {
	return serial.Open(name, mode)
}

// Stats is a snapshot of the monitor counters.
type Stats struct {
	RxBytes   int64
	RxRate    float64 // bytes per second over the rate window
	Errors    int
	Running   time.Duration
	Open      bool
	LastError string
}

// Monitor holds a serial port open and counts what arrives on it. Data is
// counted, never interpreted. A port that cannot be opened does not fail
// the monitor: it keeps reporting zero rates and the open error until
// stopped, matching how flaky Moxa network ports come and go.
type Monitor struct {
	port string
	baud int
	log  *logrus.Logger

	statusCh chan Stats
	statCh   chan Stats

	ctx      context.Context
	cancelFn func()
	wg       sync.WaitGroup
	started  bool
	stopped  bool
}

func NewMonitor(port string, baud int, log *logrus.Logger) *Monitor {
	m := &Monitor{
		port:     port,
		baud:     baud,
		log:      log,
		statusCh: make(chan Stats, 1),
		statCh:   make(chan Stats, 1),
	}
	m.statusCh <- Stats{}
	return m
}

// Port returns the monitored port name.
func (m *Monitor) Port() string { return m.port }

// Stats returns the channel snapshots are delivered on, one per second while
// the monitor runs. It always returns the same channel; Stop closes it after
// a final snapshot with Open set to false.
func (m *Monitor) Stats() <-chan Stats { return m.statCh }

// Last will return the most recent snapshot.
func (m *Monitor) Last() Stats {
	s := <-m.statusCh
	m.statusCh <- s
	return s
}

func (m *Monitor) updateStats(update func(*Stats)) Stats {
	s := <-m.statusCh
	update(&s)
	m.statusCh <- s
	return s
}

func (m *Monitor) publish(s Stats) {
	select {
	case m.statCh <- s:
	default:
	}
}

// Start begins monitoring in the background.
func (m *Monitor) Start() error {
	if m.started {
		return errors.New("already started")
	}
	m.started = true
	m.ctx, m.cancelFn = context.WithCancel(context.Background())

	m.wg.Add(1)
	go m.run()
	return nil
}

// Stop will stop monitoring and wait for the port to be released. Safe to
// call more than once and before Start.
func (m *Monitor) Stop() {
	if !m.started || m.stopped {
		return
	}
	m.stopped = true
	m.cancelFn()
	m.wg.Wait()

	// Drop any stale snapshot so the closing one is the last received.
	select {
	case <-m.statCh:
	default:
	}
	m.statCh <- m.updateStats(func(s *Stats) { s.Open = false })
	close(m.statCh)
}

type rateSample struct {
	at time.Time
	n  int
}

func (m *Monitor) run() {
	defer m.wg.Done()

	start := time.Now()

	port, err := openPort(m.port, &serial.Mode{BaudRate: m.baud})
	if err != nil {
		desc := describePortErr(m.port, err)
		m.log.Warnf("monitor %s: %s", m.port, desc)
		m.publish(m.updateStats(func(s *Stats) { s.LastError = desc }))
	} else {
		defer port.Close()
		// Short read timeout keeps Stop responsive on a quiet line.
		port.SetReadTimeout(100 * time.Millisecond)
		m.updateStats(func(s *Stats) { s.Open = true })
	}

	var window []rateSample
	buf := make([]byte, 4096)
	lastEmit := time.Now()

	for m.ctx.Err() == nil {
		if port == nil {
			if !m.sleep(100 * time.Millisecond) {
				return
			}
		} else {
			n, err := port.Read(buf)
			if n > 0 {
				window = append(window, rateSample{at: time.Now(), n: n})
				m.updateStats(func(s *Stats) { s.RxBytes += int64(n) })
			}
			if err != nil {
				if m.ctx.Err() != nil {
					return
				}
				m.log.Warnf("monitor %s: read: %v", m.port, err)
				m.updateStats(func(s *Stats) {
					s.Errors++
					s.LastError = err.Error()
				})
				if !m.sleep(500 * time.Millisecond) {
					return
				}
			}
		}

		if now := time.Now(); now.Sub(lastEmit) >= time.Second {
			window = pruneWindow(window, now)
			m.publish(m.updateStats(func(s *Stats) {
				s.RxRate = windowRate(window, now)
				s.Running = now.Sub(start)
			}))
			lastEmit = now
		}
	}
}

func (m *Monitor) sleep(d time.Duration) bool {
	select {
	case <-m.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func pruneWindow(window []rateSample, now time.Time) []rateSample {
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(window) && window[i].at.Before(cutoff) {
		i++
	}
	return window[i:]
}

// windowRate averages over the span the samples actually cover, not the
// full window width.
func windowRate(window []rateSample, now time.Time) float64 {
	if len(window) == 0 {
		return 0
	}
	var total int
	for _, s := range window {
		total += s.n
	}
	span := now.Sub(window[0].at)
	if span <= 0 {
		return 0
	}
	return float64(total) / span.Seconds()
}

// describePortErr maps driver open errors to operator-facing descriptions.
func describePortErr(port string, err error) string {
	var pe *serial.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case serial.PortBusy, serial.PermissionDenied:
			return fmt.Sprintf("port %s is busy or in use by another application", port)
		case serial.PortNotFound:
			return fmt.Sprintf("port %s does not exist or is not available", port)
		}
	}
	return fmt.Sprintf("port %s: %v", port, err)
}
