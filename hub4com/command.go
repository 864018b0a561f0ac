package hub4com

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RouteMode selects how data moves between the incoming port and the outputs.
type RouteMode int

const (
	// RouteOneWay forwards incoming data to every output; replies are dropped.
	RouteOneWay RouteMode = iota

	// RouteTwoWay forwards incoming data to every output and routes replies
	// back to the incoming port.
	RouteTwoWay

	// RouteAll connects every port to every other port.
	RouteAll
)

func (m RouteMode) String() string {
	switch m {
	case RouteOneWay:
		return "one-way"
	case RouteTwoWay:
		return "two-way"
	case RouteAll:
		return "all-to-all"
	}
	return fmt.Sprintf("RouteMode(%d)", int(m))
}

// PortConfig describes one port on the hub4com command line.
type PortConfig struct {
	Name   string
	Baud   int
	UseCTS bool
}

// Options tune the generated command line beyond the port list.
type Options struct {
	Mode RouteMode

	// Echo loops incoming data back to the incoming port.
	Echo bool

	// FCRoute propagates flow control from the incoming port to the outputs.
	FCRoute bool

	// NoDefaultFC disables hub4com's implicit flow control routes.
	NoDefaultFC bool
}

// BuildArgs renders the hub4com argument list for one incoming port fanned
// out to the given outputs. Ports keep their caller order: the incoming port
// is index 0 and the outputs are 1..N in the routing directives.
func BuildArgs(input PortConfig, outputs []PortConfig, opts Options) ([]string, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("incoming port name is empty")
	}
	if len(outputs) == 0 {
		return nil, errors.New("at least one output port is required")
	}
	if input.Baud <= 0 {
		return nil, fmt.Errorf("incoming port %s: invalid baud rate %d", input.Name, input.Baud)
	}
	for _, out := range outputs {
		if strings.TrimSpace(out.Name) == "" {
			return nil, errors.New("output port name is empty")
		}
		if out.Baud <= 0 {
			return nil, fmt.Errorf("output port %s: invalid baud rate %d", out.Name, out.Baud)
		}
	}

	outIdx := make([]string, len(outputs))
	for i := range outputs {
		outIdx[i] = strconv.Itoa(i + 1)
	}
	outList := strings.Join(outIdx, ",")

	var args []string
	switch opts.Mode {
	case RouteOneWay:
		args = append(args, "--route=0:"+outList)
	case RouteTwoWay:
		args = append(args, "--bi-route=0:"+outList)
	case RouteAll:
		args = append(args, "--route=All:All")
	default:
		return nil, fmt.Errorf("unknown route mode %d", int(opts.Mode))
	}
	if opts.Echo {
		args = append(args, "--echo-route=0")
	}
	if opts.FCRoute {
		args = append(args, "--fc-route=0:"+outList)
	}
	if opts.NoDefaultFC {
		args = append(args, "--no-default-fc-route=0:"+outList)
	}

	// --octs is sticky: it applies to every port listed after it until
	// changed, and hub4com defaults it to on. Emit it only on transitions.
	ctsOn := true
	for _, port := range append([]PortConfig{input}, outputs...) {
		if port.UseCTS != ctsOn {
			if port.UseCTS {
				args = append(args, "--octs=on")
			} else {
				args = append(args, "--octs=off")
			}
			ctsOn = port.UseCTS
		}
		name, err := FormatPortName(port.Name)
		if err != nil {
			return nil, err
		}
		args = append(args, "--baud="+strconv.Itoa(port.Baud), name)
	}

	return args, nil
}

// FormatPortName renders a port name the way hub4com expects: uppercased,
// with the \\.\ device prefix. A bare number is shorthand for the COM port
// of that number.
func FormatPortName(name string) (string, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return "", errors.New("port name is empty")
	}
	if strings.HasPrefix(name, `\\.\`) {
		return name, nil
	}
	if isDigits(name) {
		return `\\.\COM` + name, nil
	}
	return `\\.\` + name, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// CommandLine renders exe and args as one copy-pasteable string, quoting
// tokens that contain whitespace.
func CommandLine(exe string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, tok := range append([]string{exe}, args...) {
		if strings.ContainsAny(tok, " \t") {
			tok = `"` + tok + `"`
		}
		parts = append(parts, tok)
	}
	return strings.Join(parts, " ")
}
