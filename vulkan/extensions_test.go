package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionSetEnabled(t *testing.T) {
	actual := []string{"VK_KHR_surface", "VK_KHR_xcb_surface", "VK_EXT_debug_report"}
	set := NewExtensionSet("instance extensions", actual,
		[]string{"VK_KHR_surface", "VK_KHR_xcb_surface\x00"},
		[]string{"VK_EXT_debug_report", "VK_EXT_debug_utils", "VK_KHR_surface"})

	assert.Empty(t, set.Missing())
	assert.Equal(t, []string{"VK_EXT_debug_utils"}, set.MissingWanted())

	enabled, err := set.Enabled()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"VK_KHR_surface\x00",
		"VK_KHR_xcb_surface\x00",
		"VK_EXT_debug_report\x00",
	}, enabled)
}

func TestExtensionSetMissingRequired(t *testing.T) {
	set := NewExtensionSet("device extensions", []string{"VK_KHR_maintenance1"},
		[]string{"VK_KHR_swapchain"}, nil)
	_, err := set.Enabled()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VK_KHR_swapchain")
}

func TestSafeString(t *testing.T) {
	assert.Equal(t, "a\x00", safeString("a"))
	assert.Equal(t, "a\x00", safeString("a\x00"))
	assert.Equal(t, "a", trimNull("a\x00"))
}
