package serialport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestTestPort(t *testing.T) {
	fake := &fakePort{modem: &serial.ModemStatusBits{CTS: true, DSR: true}}
	stubOpenPort(t, fake, nil)

	rep, err := TestPort("COM5")
	require.NoError(t, err)
	require.NotNil(t, rep)

	assert.Equal(t, "COM5", rep.Port)
	assert.Equal(t, 9600, rep.Mode.BaudRate)
	require.NotNil(t, rep.Modem)
	assert.True(t, rep.Modem.CTS)
	assert.False(t, rep.Modem.RI)
	assert.True(t, fake.wasClosed(), "probe must release the port")
}

func TestTestPortOpenFailure(t *testing.T) {
	stubOpenPort(t, nil, errors.New("no such device"))

	rep, err := TestPort("COM5")
	require.Error(t, err)
	assert.Nil(t, rep)
	assert.Contains(t, err.Error(), "COM5")
}

func TestTestPortNoModemLines(t *testing.T) {
	stubOpenPort(t, &fakePort{}, nil)

	rep, err := TestPort("COM5")
	require.NoError(t, err)
	assert.Nil(t, rep.Modem)
	assert.Contains(t, rep.Format(), "Modem Status: not available")
}

func TestTestReportFormat(t *testing.T) {
	rep := &TestReport{
		Port: "COM9",
		Mode: serial.Mode{
			BaudRate: 9600,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		Modem: &serial.ModemStatusBits{CTS: true, DCD: true},
	}

	text := rep.Format()
	assert.Contains(t, text, "Port COM9 is available and ready")
	assert.Contains(t, text, "Baud Rate: 9600")
	assert.Contains(t, text, "Parity: none")
	assert.Contains(t, text, "CTS: on")
	assert.Contains(t, text, "DSR: off")
	assert.Contains(t, text, "DCD: on")
}
