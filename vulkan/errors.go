package vulkan

import (
	"fmt"

	"github.com/andewx/vkframe"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewError converts a failed vk.Result into an error carrying a stack trace.
// Results that map onto engine conditions wrap the matching vkframe
// sentinel so callers can test them with errors.Cause.
func NewError(ret vk.Result) error {
	switch ret {
	case vk.Success:
		return nil
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory:
		return errors.Wrap(vkframe.ErrOutOfMemory, vk.Error(ret).Error())
	case vk.ErrorDeviceLost:
		return errors.Wrap(vkframe.ErrDeviceLost, vk.Error(ret).Error())
	}
	return errors.WithStack(fmt.Errorf("vulkan error: %s (%d)", vk.Error(ret).Error(), ret))
}

// check wraps a failed result with the name of the call that produced it.
func check(ret vk.Result, op string) error {
	if !isError(ret) {
		return nil
	}
	return errors.WithMessage(NewError(ret), op)
}

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(vkframe.ErrInvalidArgument, format, args...)
}
