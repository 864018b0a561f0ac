package serialport

import (
	"sort"
	"strconv"
	"strings"
)

// Type classifies where a serial port comes from.
type Type int

const (
	Physical Type = iota
	VirtualCom0com
	VirtualMoxa
	VirtualOther
)

func (t Type) String() string {
	switch t {
	case VirtualCom0com:
		return "Virtual (COM0COM)"
	case VirtualMoxa:
		return "Virtual (Moxa)"
	case VirtualOther:
		return "Virtual (Other)"
	}
	return "Physical"
}

// Virtual reports whether the port is backed by a driver instead of hardware.
func (t Type) Virtual() bool { return t != Physical }

// Info describes one entry of the serial device map.
type Info struct {
	Port   string // COM name, e.g. "COM3"
	Device string // driver device name, e.g. "\Device\com0com10"
	Type   Type
	Desc   string
}

// Classify will determine the port type from its driver device name. Vendor
// patterns are checked before the generic virtual keywords so Moxa and
// com0com ports are never filed under "other".
func Classify(device, port string) Info {
	inf := Info{Port: port, Device: device}

	switch {
	case strings.HasPrefix(device, "Npdrv"):
		inf.Type = VirtualMoxa
		inf.Desc = "Moxa RealCOM virtual port"
	case strings.Contains(device, "CNCA") || strings.Contains(device, "CNCB"):
		inf.Type = VirtualCom0com
		inf.Desc = "com0com virtual null-modem pair"
	case containsAny(strings.ToLower(device), "com0com", "vspe", "virtual", "vspd"):
		inf.Type = VirtualOther
		inf.Desc = "virtual serial port"
	default:
		inf.Type = Physical
		inf.Desc = "physical serial port"
	}

	return inf
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// SortPorts will order COM-numbered ports numerically ahead of everything
// else; ports without a parsable COM number sort lexically after them.
func SortPorts(ports []Info) {
	sort.Slice(ports, func(i, j int) bool {
		ni, iok := comNumber(ports[i].Port)
		nj, jok := comNumber(ports[j].Port)
		if iok && jok {
			return ni < nj
		}
		if iok != jok {
			return iok
		}
		return ports[i].Port < ports[j].Port
	})
}

func comNumber(port string) (int, bool) {
	if !strings.HasPrefix(port, "COM") {
		return 0, false
	}
	n, err := strconv.Atoi(port[3:])
	if err != nil {
		return 0, false
	}
	return n, true
}
