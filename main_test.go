package main

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serialsplit/splitgui/com0com"
	"github.com/serialsplit/splitgui/hub4com"
	"github.com/serialsplit/splitgui/serialport"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testPair(number int, nameA, nameB string) com0com.PortPair {
	return com0com.PortPair{
		Number: number,
		A:      com0com.PairPort{ID: "CNCA" + itoa(number), Params: map[string]string{"PortName": nameA}},
		B:      com0com.PairPort{ID: "CNCB" + itoa(number), Params: map[string]string{"PortName": nameB}},
	}
}

func itoa(n int) string { return string(rune('0'+n/10)) + string(rune('0'+n%10)) }

func TestRouteModeFromLabel(t *testing.T) {
	assert.Equal(t, hub4com.RouteOneWay, routeModeFromLabel(modeOneWay))
	assert.Equal(t, hub4com.RouteTwoWay, routeModeFromLabel(modeTwoWay))
	assert.Equal(t, hub4com.RouteAll, routeModeFromLabel(modeAll))
	assert.Equal(t, hub4com.RouteTwoWay, routeModeFromLabel("anything else"))
}

func TestPairLabelRoundTrip(t *testing.T) {
	p := testPair(31, "COM131", "COM132")
	label := pairLabel(p)
	assert.Equal(t, "Pair 31: COM131<->COM132", label)

	n, ok := pairNumberFromLabel(label)
	require.True(t, ok)
	assert.Equal(t, 31, n)
}

func TestPairNumberFromLabelRejectsGarbage(t *testing.T) {
	for _, label := range []string{"", "garbage", "Pair x: y", "Pair 31"} {
		_, ok := pairNumberFromLabel(label)
		assert.False(t, ok, "label %q", label)
	}
}

func TestDescribePair(t *testing.T) {
	p := com0com.PortPair{
		Number: 31,
		A: com0com.PairPort{ID: "CNCA31", Params: map[string]string{
			"PortName": "COM131", "EmuBR": "yes",
		}},
		B: com0com.PairPort{ID: "CNCB31", Params: map[string]string{}},
	}
	assert.Equal(t, "CNCA31  EmuBR=yes,PortName=COM131\nCNCB31  defaults", describePair(p))
}

func TestDescribePortConfig(t *testing.T) {
	assert.Equal(t, "COM10 @ 115200 baud",
		describePortConfig(hub4com.PortConfig{Name: "COM10", Baud: 115200, UseCTS: true}))
	assert.Equal(t, "COM141 @ 9600 baud, CTS off",
		describePortConfig(hub4com.PortConfig{Name: "COM141", Baud: 9600}))

	outs := []hub4com.PortConfig{
		{Name: "COM131", Baud: 115200, UseCTS: true},
		{Name: "COM141", Baud: 9600},
	}
	assert.Equal(t, "COM131 @ 115200 baud; COM141 @ 9600 baud, CTS off", describeOutputs(outs))
}

func TestPortNamesAndFindPort(t *testing.T) {
	ports := []serialport.Info{
		{Port: "COM3", Type: serialport.Physical},
		{Port: "COM131", Type: serialport.VirtualCom0com},
	}

	assert.Equal(t, []string{"COM3", "COM131"}, portNames(ports))

	info, ok := findPort(ports, "com131")
	require.True(t, ok)
	assert.Equal(t, serialport.VirtualCom0com, info.Type)

	_, ok = findPort(ports, "COM9")
	assert.False(t, ok)
}

func TestMixedBaud(t *testing.T) {
	in := hub4com.PortConfig{Name: "COM10", Baud: 115200}
	same := []hub4com.PortConfig{{Baud: 115200}, {Baud: 115200}}
	mixed := []hub4com.PortConfig{{Baud: 115200}, {Baud: 9600}}

	assert.False(t, mixedBaud(in, same))
	assert.True(t, mixedBaud(in, mixed))
	assert.False(t, mixedBaud(in, nil))
}

func TestAtoiDefault(t *testing.T) {
	assert.Equal(t, 115200, atoiDefault("115200", 9600))
	assert.Equal(t, 9600, atoiDefault("", 9600))
	assert.Equal(t, 9600, atoiDefault("junk", 9600))
	assert.Equal(t, 9600, atoiDefault("-5", 9600))
}

func TestContainsString(t *testing.T) {
	assert.True(t, containsString(baudRates, "115200"))
	assert.False(t, containsString(baudRates, "31337"))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "0 B/s", formatRate(0))
	assert.Equal(t, "512 B/s", formatRate(512))
	assert.Equal(t, "1.5 K/s", formatRate(1536))
	assert.Equal(t, "2.0 M/s", formatRate(2*1024*1024))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "100 B", formatBytes(100))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(3*1024*1024/2))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", formatDuration(5*time.Second))
	assert.Equal(t, "59s", formatDuration(59*time.Second))
	assert.Equal(t, "1:00", formatDuration(time.Minute))
	assert.Equal(t, "2:05", formatDuration(125*time.Second))
}

func TestFormatMonitorStats(t *testing.T) {
	st := serialport.Stats{
		RxBytes:   2048,
		RxRate:    512,
		Errors:    1,
		Running:   65 * time.Second,
		Open:      true,
		LastError: "line glitch",
	}
	got := formatMonitorStats("COM7", st)
	assert.Contains(t, got, "COM7 (open)")
	assert.Contains(t, got, "2.0 KB")
	assert.Contains(t, got, "512 B/s")
	assert.Contains(t, got, "1:05")
	assert.Contains(t, got, "Errors: 1")
	assert.Contains(t, got, "line glitch")

	closed := formatMonitorStats("COM7", serialport.Stats{})
	assert.Contains(t, closed, "COM7 (closed)")
	assert.NotContains(t, closed, "Last error")
}

func TestScanReport(t *testing.T) {
	ports := []serialport.Info{
		{Port: "COM3", Device: `\Device\Serial0`, Type: serialport.Physical},
		{Port: "COM131", Device: `\Device\com0com10`, Type: serialport.VirtualCom0com},
	}
	pairs := []com0com.PortPair{testPair(31, "COM131", "COM132")}

	rep := scanReport(ports, pairs)
	assert.Contains(t, rep, "Ports (2):")
	assert.Contains(t, rep, "COM3")
	assert.Contains(t, rep, "Physical")
	assert.Contains(t, rep, `\Device\com0com10`)
	assert.Contains(t, rep, "com0com pairs (1):")
	assert.Contains(t, rep, "Pair 31: COM131<->COM132")

	empty := scanReport(nil, nil)
	assert.Contains(t, empty, "Ports (0):")
	assert.Contains(t, empty, "none")
}

func TestLaunchSummary(t *testing.T) {
	created := []com0com.PortPair{testPair(31, "COM131", "COM132")}
	existing := []com0com.PortPair{testPair(41, "COM141", "COM142")}

	sum := launchSummary(created, existing, 115200)
	assert.Contains(t, sum, "Created: COM131<->COM132")
	assert.Contains(t, sum, "Existing: COM141<->COM142")
	assert.Contains(t, sum, "COM131 & COM141 @ 115200 baud")
	assert.Contains(t, sum, "Connect external applications to COM132 & COM142.")
}

func TestDispatchLoop(t *testing.T) {
	ui := make(chan func(), 16)
	var got []string
	refresh := []func(){func() { got = append(got, "refresh") }}

	done := make(chan struct{})
	go func() {
		dispatchLoop(ui, refresh)
		close(done)
	}()

	ui <- func() { got = append(got, "first") }
	ui <- func() { got = append(got, "second") }
	close(ui)
	<-done

	assert.Equal(t, []string{"first", "refresh", "second", "refresh"}, got)
}

// shutdown runs the Stops on the caller's goroutine; the dispatcher only
// hands over the handles and must still be draining afterwards.
func TestShutdown(t *testing.T) {
	ui := make(chan func(), 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for fn := range ui {
			fn()
		}
	}()

	shutdown(ui, func() (*hub4com.Process, *serialport.Monitor) { return nil, nil }, testLogger())

	p := hub4com.NewProcess(`C:\missing\hub4com.exe`, nil, testLogger())
	m := serialport.NewMonitor("COM199", 115200, testLogger())
	shutdown(ui, func() (*hub4com.Process, *serialport.Monitor) { return p, m }, testLogger())
	assert.False(t, p.Running())

	alive := make(chan struct{})
	ui <- func() { close(alive) }
	select {
	case <-alive:
	case <-time.After(time.Second):
		t.Fatal("dispatcher stopped draining after shutdown")
	}

	close(ui)
	<-done
}
