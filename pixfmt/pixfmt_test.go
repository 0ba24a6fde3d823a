package pixfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaneCount(t *testing.T) {
	tests := []struct {
		f    Format
		want int
	}{
		{Gray8, 1},
		{YUV420P, 3},
		{YUV444P, 3},
		{YUVA420P, 4},
		{NV12, 2},
		{RGBA, 1},
		{BGRA, 1},
		{GBRP, 3},
		{None, 0},
		{Format(99), 0},
	}
	for _, tt := range tests {
		t.Run(tt.f.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.PlaneCount())
		})
	}
}

func TestPlaneSizeRoundsUp(t *testing.T) {
	d, ok := Describe(YUV420P)
	require.True(t, ok)

	w, h := d.PlaneSize(0, 5, 3)
	assert.Equal(t, [2]int{5, 3}, [2]int{w, h})
	w, h = d.PlaneSize(1, 5, 3)
	assert.Equal(t, [2]int{3, 2}, [2]int{w, h})
	w, h = d.PlaneSize(2, 4, 4)
	assert.Equal(t, [2]int{2, 2}, [2]int{w, h})

	a, _ := Describe(YUVA420P)
	w, h = a.PlaneSize(3, 5, 3)
	assert.Equal(t, [2]int{5, 3}, [2]int{w, h}, "alpha is full resolution")
}

func TestSubsampling(t *testing.T) {
	tests := []struct {
		f      Format
		sx, sy int
	}{
		{YUV420P, 2, 2},
		{YUV422P, 2, 1},
		{YUV440P, 1, 2},
		{YUV444P, 1, 1},
		{NV12, 2, 2},
		{RGBA, 1, 1},
	}
	for _, tt := range tests {
		d, ok := Describe(tt.f)
		require.True(t, ok, tt.f)
		assert.Equal(t, tt.sx, d.SubsampleX(), tt.f)
		assert.Equal(t, tt.sy, d.SubsampleY(), tt.f)
	}
}

func TestRGBPlanesAreNotChroma(t *testing.T) {
	d, _ := Describe(GBRP)
	for p := 0; p < 3; p++ {
		assert.False(t, d.IsChromaPlane(p))
	}
	y, _ := Describe(YUV420P)
	assert.False(t, y.IsChromaPlane(0))
	assert.True(t, y.IsChromaPlane(1))
	assert.True(t, y.IsChromaPlane(2))
}

func TestPlaneStep(t *testing.T) {
	rgba, _ := Describe(RGBA)
	assert.Equal(t, 4, rgba.PlaneStep(0))
	nv12, _ := Describe(NV12)
	assert.Equal(t, 1, nv12.PlaneStep(0))
	assert.Equal(t, 2, nv12.PlaneStep(1))
	assert.Equal(t, 0, nv12.PlaneStep(2))
}

func TestParse(t *testing.T) {
	f, err := Parse(" YUV420P ")
	require.NoError(t, err)
	assert.Equal(t, YUV420P, f)

	for f := range descriptors {
		got, err := Parse(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err = Parse("p010")
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "yuv420p", YUV420P.String())
	assert.Equal(t, "Format(-1)", None.String())
}
