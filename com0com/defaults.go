package com0com

import (
	"context"
	"strings"
)

// DefaultPairs returns the pairs provisioned on first launch: one pair per
// routed application, with baud rate timing and buffer overrun emulation
// enabled on both ends.
func DefaultPairs() []PairSpec {
	return []PairSpec{
		{Number: -1, PortNameA: "COM131", PortNameB: "COM132", EmuBR: true, EmuOverrun: true},
		{Number: -1, PortNameA: "COM141", PortNameB: "COM142", EmuBR: true, EmuOverrun: true},
	}
}

// EnsureDefaultPairs installs any default pair whose COM names are not both
// present yet. It lists once up front and reports what was created and what
// was already there.
func (s *Setupc) EnsureDefaultPairs(ctx context.Context) (created, existing []PortPair, err error) {
	pairs, err := s.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	names := map[string]bool{}
	for _, p := range pairs {
		names[strings.ToUpper(p.A.ComName())] = true
		names[strings.ToUpper(p.B.ComName())] = true
	}

	for _, spec := range DefaultPairs() {
		if names[strings.ToUpper(spec.PortNameA)] && names[strings.ToUpper(spec.PortNameB)] {
			existing = append(existing, findPairByName(pairs, spec.PortNameA))
			continue
		}
		p, err := s.install(ctx, spec, pairs)
		if err != nil {
			return created, existing, err
		}
		created = append(created, p)
	}
	return created, existing, nil
}

func findPairByName(pairs []PortPair, name string) PortPair {
	for _, p := range pairs {
		if strings.EqualFold(p.A.ComName(), name) || strings.EqualFold(p.B.ComName(), name) {
			return p
		}
	}
	return PortPair{Number: -1}
}
