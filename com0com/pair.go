package com0com

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PairPort is one endpoint of a com0com pair.
type PairPort struct {
	// ID is the driver identifier, e.g. "CNCA31".
	ID string

	// Params holds the driver parameters reported for the endpoint,
	// e.g. PortName, RealPortName, EmuBR.
	Params map[string]string
}

// ComName resolves the name applications open the endpoint under.
// RealPortName wins over PortName; the "-" and "COM#" placeholders fall
// through to the driver identifier.
func (p PairPort) ComName() string {
	if v := p.Params["RealPortName"]; v != "" && v != "-" {
		return v
	}
	if v := p.Params["PortName"]; v != "" && v != "-" && v != "COM#" {
		return v
	}
	return p.ID
}

// PortPair is one installed com0com null-modem pair.
type PortPair struct {
	Number int
	A, B   PairPort
}

func (p PortPair) String() string {
	return fmt.Sprintf("%s<->%s", p.A.ComName(), p.B.ComName())
}

// PairSpec describes a pair to install. Number -1 lets the driver pick the
// next free pair number; empty port names leave the CNCA/CNCB identifiers
// in place.
type PairSpec struct {
	Number     int
	PortNameA  string
	PortNameB  string
	EmuBR      bool
	EmuOverrun bool
}

func (spec PairSpec) installArgs() []string {
	args := []string{"install"}
	if spec.Number >= 0 {
		args = append(args, strconv.Itoa(spec.Number))
	}
	return append(args, spec.portParams(spec.PortNameA), spec.portParams(spec.PortNameB))
}

// portParams renders one endpoint's parameter list for install, or "-" when
// everything is left at driver defaults.
func (spec PairSpec) portParams(portName string) string {
	var parts []string
	if portName != "" {
		parts = append(parts, "PortName="+portName)
	}
	if spec.EmuBR {
		parts = append(parts, "EmuBR=yes")
	}
	if spec.EmuOverrun {
		parts = append(parts, "EmuOverrun=yes")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

var pairLineRe = regexp.MustCompile(`^CNC([AB])(\d+)\s*(.*)$`)

// parsePairs extracts pairs from setupc list or install output. Lines that
// do not describe a CNCA/CNCB endpoint are ignored, as are the echoed
// "command>" prompts.
func parsePairs(output string) []PortPair {
	byNumber := map[int]*PortPair{}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "command>") {
			continue
		}
		m := pairLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}

		pp := byNumber[num]
		if pp == nil {
			pp = &PortPair{Number: num}
			byNumber[num] = pp
		}
		port := PairPort{ID: "CNC" + m[1] + m[2], Params: parseParams(m[3])}
		if m[1] == "A" {
			pp.A = port
		} else {
			pp.B = port
		}
	}

	numbers := make([]int, 0, len(byNumber))
	for num := range byNumber {
		numbers = append(numbers, num)
	}
	sort.Ints(numbers)

	pairs := make([]PortPair, 0, len(numbers))
	for _, num := range numbers {
		pairs = append(pairs, *byNumber[num])
	}
	return pairs
}

func parseParams(s string) map[string]string {
	params := map[string]string{}
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		if k, v, ok := strings.Cut(kv, "="); ok {
			params[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return params
}
