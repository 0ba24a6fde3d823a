package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gopromax/compute"
	"github.com/gogpu/gopromax/compute/computetest"
)

type closingDevice struct {
	*computetest.Device
	closed int
}

func (d *closingDevice) Close() error {
	d.closed++
	return nil
}

func withRegistry(t *testing.T, registered map[string]Factory) {
	t.Helper()
	registryMu.Lock()
	saved := factories
	factories = make(map[string]Factory)
	for name, f := range registered {
		factories[name] = f
	}
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		factories = saved
		registryMu.Unlock()
	})
}

func fake() (compute.Device, error) { return computetest.NewDevice(), nil }

func failing() (compute.Device, error) { return nil, errors.New("no adapter") }

func TestRegisterAndAvailable(t *testing.T) {
	withRegistry(t, nil)

	assert.Empty(t, Available())
	Register("zeta", fake)
	Register("alpha", fake)
	assert.Equal(t, []string{"alpha", "zeta"}, Available())
	assert.True(t, IsRegistered("alpha"))

	Unregister("alpha")
	assert.False(t, IsRegistered("alpha"))
	assert.Equal(t, []string{"zeta"}, Available())
}

func TestOpen(t *testing.T) {
	withRegistry(t, map[string]Factory{"fake": fake, "broken": failing})

	dev, err := Open("fake")
	require.NoError(t, err)
	assert.Equal(t, "computetest", dev.Name())

	_, err = Open("broken")
	assert.ErrorContains(t, err, "no adapter")

	_, err = Open("missing")
	assert.ErrorIs(t, err, ErrBackendNotAvailable)
}

func TestDefaultPrefersPriority(t *testing.T) {
	var opened []string
	open := func(name string) Factory {
		return func() (compute.Device, error) {
			opened = append(opened, name)
			return computetest.NewDevice(), nil
		}
	}
	withRegistry(t, map[string]Factory{"aaa": open("aaa"), BackendWGPU: open(BackendWGPU)})

	_, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []string{BackendWGPU}, opened)
}

func TestDefaultFallsBack(t *testing.T) {
	withRegistry(t, map[string]Factory{BackendWGPU: failing, "fake": fake})

	dev, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "computetest", dev.Name())
}

func TestDefaultNothingAvailable(t *testing.T) {
	withRegistry(t, nil)
	_, err := Default()
	assert.ErrorIs(t, err, ErrBackendNotAvailable)

	withRegistry(t, map[string]Factory{BackendWGPU: failing})
	_, err = Default()
	assert.ErrorIs(t, err, ErrBackendNotAvailable)
	assert.ErrorContains(t, err, "no adapter")
}

func TestClose(t *testing.T) {
	d := &closingDevice{Device: computetest.NewDevice()}
	require.NoError(t, Close(d))
	assert.Equal(t, 1, d.closed)
	require.NoError(t, Close(computetest.NewDevice()))
}
