package compute_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gopromax/compute"
	"github.com/gogpu/gopromax/compute/computetest"
)

func TestWorkSizeFromPlane(t *testing.T) {
	dev := computetest.NewDevice()
	p, err := dev.AllocPlane(31, 16, 1)
	require.NoError(t, err)

	ws, err := compute.WorkSizeFromPlane(p)
	require.NoError(t, err)
	assert.Equal(t, compute.WorkSize{X: 31, Y: 16}, ws)
	assert.Equal(t, "31x16", ws.String())

	empty, err := dev.AllocPlane(0, 16, 1)
	require.NoError(t, err)
	_, err = compute.WorkSizeFromPlane(empty)
	assert.ErrorIs(t, err, compute.ErrEmptyWorkSize)

	_, err = compute.WorkSizeFromPlane(nil)
	assert.ErrorIs(t, err, compute.ErrEmptyWorkSize)
}

func TestReleaseSkipsNil(t *testing.T) {
	dev := computetest.NewDevice()
	prog, err := dev.CompileProgram(compute.Source{Label: "p"})
	require.NoError(t, err)
	q, err := dev.CreateQueue()
	require.NoError(t, err)

	compute.Release(prog, nil, q)
	assert.Equal(t, 1, prog.(*computetest.Program).Released())
	assert.Equal(t, 1, q.(*computetest.Queue).Released())
	assert.Equal(t, []string{"compile p", "create queue", "release program", "release queue"}, dev.Events)
}

func TestFakeEnqueueChecks(t *testing.T) {
	dev := computetest.NewDevice()
	prog, err := dev.CompileProgram(compute.Source{})
	require.NoError(t, err)
	k, err := dev.CreateKernel(prog, compute.EntryStack)
	require.NoError(t, err)
	q, err := dev.CreateQueue()
	require.NoError(t, err)
	p, err := dev.AllocPlane(2, 2, 1)
	require.NoError(t, err)

	ws := compute.WorkSize{X: 2, Y: 2}
	assert.ErrorIs(t, q.Enqueue(k, ws), compute.ErrArgsUnset)
	assert.ErrorIs(t, k.SetArg(compute.NumArgs, p), compute.ErrArgIndex)

	other := computetest.NewDevice()
	foreign, err := other.AllocPlane(2, 2, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, k.SetArg(0, foreign), compute.ErrForeignHandle)

	for i := 0; i < compute.NumArgs; i++ {
		require.NoError(t, k.SetArg(i, p))
	}
	assert.ErrorIs(t, q.Enqueue(k, compute.WorkSize{}), compute.ErrEmptyWorkSize)
	require.NoError(t, q.Enqueue(k, ws))
	require.NoError(t, q.Finish())
	require.Len(t, dev.Dispatches, 1)
	assert.Equal(t, compute.EntryStack, dev.Dispatches[0].Entry)

	prog.Release()
	_, err = dev.CreateKernel(prog, compute.EntryStack)
	assert.ErrorIs(t, err, compute.ErrReleased)
}
