package serialport

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// TestReport holds the outcome of a one-shot port probe.
type TestReport struct {
	Port  string
	Mode  serial.Mode
	Modem *serial.ModemStatusBits // nil when the driver cannot report lines
}

// TestPort opens the port briefly to verify it is usable and capture its
// modem line state, then releases it. Busy and missing ports come back as
// descriptive errors rather than raw driver codes.
func TestPort(port string) (*TestReport, error) {
	mode := &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	h, err := openPort(port, mode)
	if err != nil {
		return nil, errors.New(describePortErr(port, err))
	}
	defer h.Close()

	rep := &TestReport{Port: port, Mode: *mode}
	if bits, err := h.GetModemStatusBits(); err == nil {
		rep.Modem = bits
	}
	return rep, nil
}

// Format renders the report as the text shown in the port test dialog.
func (r *TestReport) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Port %s is available and ready\n\n", r.Port)

	fmt.Fprintf(&b, "Probe Configuration:\n")
	fmt.Fprintf(&b, "  Baud Rate: %d\n", r.Mode.BaudRate)
	fmt.Fprintf(&b, "  Data Bits: %d\n", r.Mode.DataBits)
	fmt.Fprintf(&b, "  Parity: %s\n", parityName(r.Mode.Parity))
	fmt.Fprintf(&b, "  Stop Bits: %s\n", stopBitsName(r.Mode.StopBits))

	if r.Modem != nil {
		fmt.Fprintf(&b, "\nModem Status:\n")
		fmt.Fprintf(&b, "  CTS: %s\n", onOff(r.Modem.CTS))
		fmt.Fprintf(&b, "  DSR: %s\n", onOff(r.Modem.DSR))
		fmt.Fprintf(&b, "  RI: %s\n", onOff(r.Modem.RI))
		fmt.Fprintf(&b, "  DCD: %s\n", onOff(r.Modem.DCD))
	} else {
		fmt.Fprintf(&b, "\nModem Status: not available\n")
	}

	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func parityName(p serial.Parity) string {
	switch p {
	case serial.NoParity:
		return "none"
	case serial.OddParity:
		return "odd"
	case serial.EvenParity:
		return "even"
	case serial.MarkParity:
		return "mark"
	case serial.SpaceParity:
		return "space"
	}
	return "unknown"
}

func stopBitsName(s serial.StopBits) string {
	switch s {
	case serial.OneStopBit:
		return "1"
	case serial.OnePointFiveStopBits:
		return "1.5"
	case serial.TwoStopBits:
		return "2"
	}
	return "unknown"
}
