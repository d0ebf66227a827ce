package relay_test

import (
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	gpio "github.com/temoto/gpio-cdev-go"
	gpio_mock "github.com/temoto/gpio-cdev-go/mock"
	"github.com/temoto/growbox/hardware/relay"
)

var testPins = relay.Pins{Light: 4, Humidifier: 7, Fan: 8}

func mockLines(t testing.TB, flag gpio.RequestFlag, initial [3]byte, pending *[3]byte) (*gpio_mock.MockChip, *gpio_mock.MockLines) {
	chip := &gpio_mock.MockChip{}
	lines := &gpio_mock.MockLines{}
	chip.On("OpenLines", flag, "growbox", uint32(4), uint32(7), uint32(8)).Return(lines, nil)
	for i, offset := range []uint32{4, 7, 8} {
		i := i
		lines.On("SetFunc", offset).Return(gpio.LineSetFunc(func(v byte) { pending[i] = v }))
	}
	data := gpio.HandleData{}
	copy(data.Values[:], initial[:])
	lines.On("Read").Return(data, nil).Once()
	lines.On("SetBulk", initial[0], initial[1], initial[2]).Run(func(args mock.Arguments) {
		for i := range pending {
			pending[i] = args.Get(i).(byte)
		}
	}).Return()
	return chip, lines
}

func TestGPIOPowerOnState(t *testing.T) {
	t.Parallel()

	pending := [3]byte{}
	chip, lines := mockLines(t, gpio.GPIOHANDLE_REQUEST_OUTPUT, [3]byte{1, 0, 1}, &pending)
	g, err := relay.New(chip, testPins)
	require.NoError(t, err)
	// internal buffer follows hardware, so next flush keeps light and fan on
	assert.Equal(t, [3]byte{1, 0, 1}, pending)

	lines.On("Flush").Return(nil).Once()
	require.NoError(t, g.Write(relay.Humidifier, true))
	assert.Equal(t, [3]byte{1, 1, 1}, pending)

	after := gpio.HandleData{}
	copy(after.Values[:], []byte{1, 1, 1})
	lines.On("Read").Return(after, nil).Once()
	on, err := g.Read(relay.Humidifier)
	require.NoError(t, err)
	assert.True(t, on)

	chip.AssertExpectations(t)
	lines.AssertExpectations(t)
}

func TestGPIOActiveLow(t *testing.T) {
	t.Parallel()

	pending := [3]byte{}
	chip, _ := mockLines(t, gpio.GPIOHANDLE_REQUEST_OUTPUT|gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW, [3]byte{0, 0, 0}, &pending)
	pins := testPins
	pins.ActiveLow = true
	_, err := relay.New(chip, pins)
	require.NoError(t, err)
	chip.AssertExpectations(t)
}

func TestGPIOWriteError(t *testing.T) {
	t.Parallel()

	pending := [3]byte{}
	chip, lines := mockLines(t, gpio.GPIOHANDLE_REQUEST_OUTPUT, [3]byte{}, &pending)
	g, err := relay.New(chip, testPins)
	require.NoError(t, err)
	lines.On("Flush").Return(fmt.Errorf("EBUSY")).Once()
	err = g.Write(relay.Fan, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gpio write FAN=1")

	assert.Error(t, g.Write(relay.Count, true))
}

func TestOpenLinesError(t *testing.T) {
	t.Parallel()

	chip := &gpio_mock.MockChip{}
	chip.On("OpenLines", gpio.GPIOHANDLE_REQUEST_OUTPUT, "growbox", uint32(4), uint32(7), uint32(8)).
		Return((*gpio_mock.MockLines)(nil), fmt.Errorf("EINVAL"))
	_, err := relay.New(chip, testPins)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EINVAL")
}

func TestNegativeLine(t *testing.T) {
	t.Parallel()

	chip := &gpio_mock.MockChip{}
	_, err := relay.New(chip, relay.Pins{Light: -1, Humidifier: 7, Fan: 8})
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err), errors.ErrorStack(err))
	chip.AssertNotCalled(t, "OpenLines")
}

func TestMock(t *testing.T) {
	t.Parallel()

	m := &relay.Mock{}
	m.Stuck[relay.Fan] = true
	require.NoError(t, m.Write(relay.Light, true))
	require.NoError(t, m.Write(relay.Fan, true))
	on, _ := m.Read(relay.Light)
	assert.True(t, on)
	on, _ = m.Read(relay.Fan)
	assert.False(t, on)
	assert.Equal(t, "HUMIDIFIER", relay.Humidifier.String())
}
