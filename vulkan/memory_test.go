package vulkan

import (
	"testing"

	"github.com/andewx/vkframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestFindMemoryType(t *testing.T) {
	types := []vk.MemoryPropertyFlags{
		deviceLocal,
		hostShared,
		deviceLocal | hostShared,
	}

	i, ok := findMemoryType(types, 0b111, deviceLocal)
	require.True(t, ok)
	assert.Equal(t, uint32(0), i)

	// type bits exclude index 0
	i, ok = findMemoryType(types, 0b110, deviceLocal)
	require.True(t, ok)
	assert.Equal(t, uint32(2), i)

	_, ok = findMemoryType(types, 0b001, hostShared)
	assert.False(t, ok)
}

func TestPickMemoryType(t *testing.T) {
	discrete := []vk.MemoryPropertyFlags{deviceLocal, hostShared}

	i, host, err := pickMemoryType(discrete, 0b11, vkframe.ResidencyGPUOnly)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), i)
	assert.False(t, host)

	i, host, err = pickMemoryType(discrete, 0b11, vkframe.ResidencyCPUToGPU)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), i)
	assert.True(t, host)

	// no device-local type allowed: fall back to whatever is
	i, host, err = pickMemoryType(discrete, 0b10, vkframe.ResidencyGPUOnly)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), i)
	assert.True(t, host)

	_, _, err = pickMemoryType(discrete, 0b01, vkframe.ResidencyCPUToGPU)
	assert.ErrorIs(t, err, vkframe.ErrOutOfMemory)

	_, _, err = pickMemoryType(discrete, 0b11, vkframe.Residency(9))
	assert.ErrorIs(t, err, vkframe.ErrInvalidArgument)
}
