package hub4com

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgsOneWay(t *testing.T) {
	input := PortConfig{Name: "COM10", Baud: 115200, UseCTS: true}
	outputs := []PortConfig{
		{Name: "COM131", Baud: 115200, UseCTS: true},
		{Name: "COM141", Baud: 9600, UseCTS: false},
	}

	args, err := BuildArgs(input, outputs, Options{Mode: RouteOneWay})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--route=0:1,2",
		"--baud=115200", `\\.\COM10`,
		"--baud=115200", `\\.\COM131`,
		"--octs=off",
		"--baud=9600", `\\.\COM141`,
	}, args)
}

func TestBuildArgsTwoWay(t *testing.T) {
	input := PortConfig{Name: "COM3", Baud: 9600, UseCTS: true}
	outputs := []PortConfig{{Name: "COM131", Baud: 9600, UseCTS: true}}

	args, err := BuildArgs(input, outputs, Options{Mode: RouteTwoWay})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--bi-route=0:1",
		"--baud=9600", `\\.\COM3`,
		"--baud=9600", `\\.\COM131`,
	}, args)
}

func TestBuildArgsAll(t *testing.T) {
	input := PortConfig{Name: "COM3", Baud: 9600, UseCTS: true}
	outputs := []PortConfig{
		{Name: "COM131", Baud: 9600, UseCTS: true},
		{Name: "COM141", Baud: 9600, UseCTS: true},
	}

	args, err := BuildArgs(input, outputs, Options{Mode: RouteAll})
	require.NoError(t, err)
	assert.Equal(t, "--route=All:All", args[0])
}

func TestBuildArgsOctsTransitions(t *testing.T) {
	input := PortConfig{Name: "COM3", Baud: 9600, UseCTS: false}
	outputs := []PortConfig{
		{Name: "COM4", Baud: 9600, UseCTS: true},
		{Name: "COM5", Baud: 9600, UseCTS: false},
	}

	args, err := BuildArgs(input, outputs, Options{Mode: RouteTwoWay})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--bi-route=0:1,2",
		"--octs=off", "--baud=9600", `\\.\COM3`,
		"--octs=on", "--baud=9600", `\\.\COM4`,
		"--octs=off", "--baud=9600", `\\.\COM5`,
	}, args)
}

func TestBuildArgsEchoAndFlowControl(t *testing.T) {
	input := PortConfig{Name: "COM7", Baud: 115200, UseCTS: true}
	outputs := []PortConfig{{Name: "COM131", Baud: 115200, UseCTS: true}}
	opts := Options{Mode: RouteTwoWay, Echo: true, FCRoute: true, NoDefaultFC: true}

	args, err := BuildArgs(input, outputs, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--bi-route=0:1",
		"--echo-route=0",
		"--fc-route=0:1",
		"--no-default-fc-route=0:1",
		"--baud=115200", `\\.\COM7`,
		"--baud=115200", `\\.\COM131`,
	}, args)
}

func TestBuildArgsValidation(t *testing.T) {
	good := PortConfig{Name: "COM1", Baud: 9600, UseCTS: true}

	_, err := BuildArgs(PortConfig{Baud: 9600}, []PortConfig{good}, Options{})
	assert.ErrorContains(t, err, "incoming port name")

	_, err = BuildArgs(good, nil, Options{})
	assert.ErrorContains(t, err, "at least one output")

	_, err = BuildArgs(PortConfig{Name: "COM1"}, []PortConfig{good}, Options{})
	assert.ErrorContains(t, err, "invalid baud rate")

	_, err = BuildArgs(good, []PortConfig{{Name: "COM2", Baud: -5}}, Options{})
	assert.ErrorContains(t, err, "invalid baud rate")

	_, err = BuildArgs(good, []PortConfig{{Name: "   ", Baud: 9600}}, Options{})
	assert.ErrorContains(t, err, "output port name")

	_, err = BuildArgs(good, []PortConfig{good}, Options{Mode: RouteMode(42)})
	assert.ErrorContains(t, err, "unknown route mode")
}

func TestFormatPortName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"COM10", `\\.\COM10`},
		{"com10", `\\.\COM10`},
		{"CNCB31", `\\.\CNCB31`},
		{"131", `\\.\COM131`},
		{`\\.\COM5`, `\\.\COM5`},
		{"  COM7  ", `\\.\COM7`},
	}
	for _, tc := range cases {
		got, err := FormatPortName(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	_, err := FormatPortName("")
	assert.Error(t, err)
	_, err = FormatPortName("   ")
	assert.Error(t, err)
}

func TestCommandLine(t *testing.T) {
	cl := CommandLine(`C:\Program Files (x86)\com0com\hub4com.exe`, []string{"--route=0:1", `\\.\COM10`})
	assert.Equal(t, `"C:\Program Files (x86)\com0com\hub4com.exe" --route=0:1 \\.\COM10`, cl)

	cl = CommandLine("hub4com.exe", nil)
	assert.Equal(t, "hub4com.exe", cl)
}

func TestRouteModeString(t *testing.T) {
	assert.Equal(t, "one-way", RouteOneWay.String())
	assert.Equal(t, "two-way", RouteTwoWay.String())
	assert.Equal(t, "all-to-all", RouteAll.String())
	assert.Equal(t, "RouteMode(9)", RouteMode(9).String())
}
