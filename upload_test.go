package vkframe_test

import (
	"testing"

	"github.com/andewx/vkframe"
	"github.com/andewx/vkframe/internal/gputest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadMesh(t *testing.T) {
	gpu, dev := newDevice(t)
	vertices := make([]byte, 36)
	indices := make([]byte, 12)

	mesh, err := dev.UploadMesh(vertices, indices)
	require.NoError(t, err)
	assert.EqualValues(t, 3, mesh.IndexCount)
	assert.EqualValues(t, 36, mesh.Vertices.Size)
	assert.EqualValues(t, 12, mesh.Indices.Size)
	assert.Equal(t, vkframe.ResidencyGPUOnly, mesh.Vertices.Residency)
	assert.NotZero(t, mesh.Vertices.Usage&vkframe.BufferUsageVertex)
	assert.NotZero(t, mesh.Indices.Usage&vkframe.BufferUsageIndex)

	require.Len(t, gpu.Submitted, 1)
	cmd := gpu.Submitted[0].CommandBuffers[0].(*gputest.CommandBuffer)
	require.Len(t, cmd.Copies, 2)
	assert.Equal(t, vkframe.BufferCopy{Size: 36}, cmd.Copies[0].Region)
	assert.Equal(t, vkframe.BufferCopy{SrcOffset: 36, Size: 12}, cmd.Copies[1].Region)
	assert.Same(t, cmd.Copies[0].Src, cmd.Copies[1].Src, "one staging buffer")
	assert.EqualValues(t, 48, cmd.Copies[0].Src.Size)
	assert.Same(t, mesh.Vertices.Buffer, cmd.Copies[0].Dst)
	assert.Same(t, mesh.Indices.Buffer, cmd.Copies[1].Dst)

	assert.Equal(t, 1, gpu.Count("DestroyBuffer"), "staging is gone")
	assert.Equal(t, 3, dev.Deletions().Len())

	require.NoError(t, dev.Destroy())
	assert.Equal(t, 0, gpu.Live())
}

func TestUploadMeshValidation(t *testing.T) {
	_, dev := newDevice(t)

	_, err := dev.UploadMesh(nil, make([]byte, 4))
	assert.Equal(t, vkframe.ErrInvalidArgument, errors.Cause(err))
	_, err = dev.UploadMesh(make([]byte, 4), make([]byte, 6))
	assert.Equal(t, vkframe.ErrInvalidArgument, errors.Cause(err))
}

func TestUploadMeshFailureReleasesBuffers(t *testing.T) {
	gpu, dev := newDevice(t)
	base := gpu.Live()
	gpu.FailNext("Submit", errors.New("queue lost"))

	_, err := dev.UploadMesh(make([]byte, 16), make([]byte, 8))
	require.Error(t, err)
	assert.Equal(t, base, gpu.Live())
	assert.Equal(t, 1, dev.Deletions().Len())
}
