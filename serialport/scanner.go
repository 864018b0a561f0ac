package serialport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial/enumerator"
)

var (
	// ErrAccessDenied indicates the serial device map exists but cannot be
	// read with the current privileges.
	ErrAccessDenied = errors.New("registry access denied")

	// ErrUnavailable indicates the platform has no serial device map.
	ErrUnavailable = errors.New("port scanning is not available on this platform")
)

// readPorts returns the raw device map, keyed by driver device name. The
// real implementation is per-platform; tests swap it out.
var readPorts = readDeviceMap

// listDetails is swapped out by tests.
var listDetails = enumerator.GetDetailedPortsList

// Result is one completed scan. Seq increases with every scan started so
// callers can drop results that arrive out of order.
type Result struct {
	Seq   uint64
	Ports []Info
	Err   error
}

// Scanner enumerates serial ports from the SERIALCOMM device map.
type Scanner struct {
	log *logrus.Logger
	seq atomic.Uint64
}

func NewScanner(log *logrus.Logger) *Scanner {
	return &Scanner{log: log}
}

// Scan will run one scan in the background and deliver its result on the
// returned channel. A failed scan carries an empty port list and the error
// rather than panicking into the caller.
func (s *Scanner) Scan(ctx context.Context) <-chan Result {
	seq := s.seq.Add(1)
	ch := make(chan Result, 1)

	go func() {
		ports, err := s.scan(ctx)
		if err != nil {
			s.log.Errorf("port scan %d failed: %v", seq, err)
		} else {
			s.log.Debugf("port scan %d found %d ports", seq, len(ports))
		}
		ch <- Result{Seq: seq, Ports: ports, Err: err}
	}()

	return ch
}

func (s *Scanner) scan(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devices, err := readPorts()
	if err != nil {
		return nil, fmt.Errorf("read device map: %w", err)
	}

	ports := make([]Info, 0, len(devices))
	for device, port := range devices {
		ports = append(ports, Classify(device, port))
	}

	s.enrich(ports)
	SortPorts(ports)
	return ports, nil
}

// enrich fills USB metadata into physical port descriptions. The registry
// scan alone is authoritative; enumeration failures are ignored.
func (s *Scanner) enrich(ports []Info) {
	details, err := listDetails()
	if err != nil {
		s.log.Debugf("usb enumeration skipped: %v", err)
		return
	}

	byName := make(map[string]*enumerator.PortDetails, len(details))
	for _, d := range details {
		byName[d.Name] = d
	}

	for i := range ports {
		d := byName[ports[i].Port]
		if d == nil || !d.IsUSB || ports[i].Type != Physical {
			continue
		}
		if d.Product != "" {
			ports[i].Desc = fmt.Sprintf("%s (USB %s:%s)", d.Product, d.VID, d.PID)
		} else {
			ports[i].Desc = fmt.Sprintf("USB serial device %s:%s", d.VID, d.PID)
		}
	}
}
