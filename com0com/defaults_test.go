package com0com

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPairs(t *testing.T) {
	specs := DefaultPairs()
	require.Len(t, specs, 2)
	for _, spec := range specs {
		assert.Equal(t, -1, spec.Number)
		assert.True(t, spec.EmuBR)
		assert.True(t, spec.EmuOverrun)
	}
	assert.Equal(t, "COM131", specs[0].PortNameA)
	assert.Equal(t, "COM132", specs[0].PortNameB)
	assert.Equal(t, "COM141", specs[1].PortNameA)
	assert.Equal(t, "COM142", specs[1].PortNameB)
}

func TestEnsureDefaultPairs(t *testing.T) {
	// COM131/COM132 are installed, COM141/COM142 are not.
	installOut := "       CNCA4 PortName=COM141,EmuBR=yes,EmuOverrun=yes\n" +
		"       CNCB4 PortName=COM142,EmuBR=yes,EmuOverrun=yes\n"
	rec := stubSetupc(t, script{
		"list":    {{output: listTwoPairs}},
		"install": {{output: installOut}},
	})
	s := New("", testLogger())

	created, existing, err := s.EnsureDefaultPairs(context.Background())
	require.NoError(t, err)

	require.Len(t, created, 1)
	assert.Equal(t, "COM141", created[0].A.ComName())
	assert.Equal(t, "COM142", created[0].B.ComName())

	require.Len(t, existing, 1)
	assert.Equal(t, 31, existing[0].Number)

	require.Equal(t, 2, rec.count())
	assert.Equal(t, "install", rec.call(1)[0])
}

func TestEnsureDefaultPairsAllPresent(t *testing.T) {
	out := `       CNCA31 PortName=COM131
       CNCB31 PortName=COM132
       CNCA41 PortName=COM141
       CNCB41 PortName=COM142
`
	rec := stubSetupc(t, script{"list": {{output: out}}})
	s := New("", testLogger())

	created, existing, err := s.EnsureDefaultPairs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, existing, 2)
	assert.Equal(t, 1, rec.count(), "nothing to install when both pairs exist")
}

func TestEnsureDefaultPairsInstallFails(t *testing.T) {
	stubSetupc(t, script{
		"list":    {{output: "command> list\n"}},
		"install": {{output: "install: access denied\n", exit: 5}},
	})
	s := New("", testLogger())

	created, _, err := s.EnsureDefaultPairs(context.Background())
	require.Error(t, err)
	assert.Empty(t, created)

	var cmdErr *CommandError
	assert.ErrorAs(t, err, &cmdErr)
}
