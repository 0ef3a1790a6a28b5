// Package vulkan implements vkframe.Driver on top of github.com/vulkan-go/vulkan.
//
// The driver owns the instance, the optional debug report callback, the
// window surface, the logical device and one queue that does both graphics
// and present. vk.Init must have been called (see package window) before New.
package vulkan

import (
	"context"
	"log/slog"
	"unsafe"

	"github.com/andewx/vkframe"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const (
	ValidationLayer       = "VK_LAYER_KHRONOS_validation"
	debugReportExtension  = "VK_EXT_debug_report"
	swapchainExtension    = "VK_KHR_swapchain"
	defaultEngineName     = "vkframe"
	defaultApplicationTag = "vkframe app"
)

type Config struct {
	AppName    string
	AppVersion vk.Version
	APIVersion vk.Version
	// Validation enables the validation layers and routes debug reports
	// into the logger.
	Validation bool
	Layers     []string
	// InstanceExtensions must all be present, usually the set the window
	// system asks for.
	InstanceExtensions []string
	// DeviceExtensions are required in addition to VK_KHR_swapchain.
	DeviceExtensions []string
	Logger           *slog.Logger
}

// SurfaceFunc creates the presentation surface for a freshly created instance.
type SurfaceFunc func(instance vk.Instance) (vk.Surface, error)

// Driver is the vulkan-go graphics driver. Methods must be called from the
// render goroutine.
type Driver struct {
	cfg Config
	log *slog.Logger

	instance         vk.Instance
	layers           []string
	debugReport      bool
	debugCallback    vk.DebugReportCallback
	surface          vk.Surface
	gpu              vk.PhysicalDevice
	gpuProperties    vk.PhysicalDeviceProperties
	memoryProperties vk.PhysicalDeviceMemoryProperties
	queueFamily      uint32
	device           vk.Device
	queue            vk.Queue

	teardown *vkframe.DeletionQueue
}

// New brings the driver up: instance, debug callback, surface, physical
// device, then logical device and queue. A failing step undoes the steps
// before it.
func New(cfg Config, surface SurfaceFunc) (*Driver, error) {
	if surface == nil {
		return nil, errors.Wrap(vkframe.ErrInvalidArgument, "nil surface function")
	}
	if cfg.AppName == "" {
		cfg.AppName = defaultApplicationTag
	}
	if cfg.APIVersion == 0 {
		cfg.APIVersion = vk.Version(vk.MakeVersion(1, 0, 0))
	}
	if cfg.AppVersion == 0 {
		cfg.AppVersion = vk.Version(vk.MakeVersion(1, 0, 0))
	}
	if cfg.Validation && len(cfg.Layers) == 0 {
		cfg.Layers = []string{ValidationLayer}
	}
	d := &Driver{cfg: cfg, log: cfg.Logger}
	if d.log == nil {
		d.log = slog.Default()
	}

	teardown, err := vkframe.NewInitPipeline(d.log).
		Add("instance", d.createInstance).
		Add("debug callback", d.createDebugCallback).
		Add("surface", func(rollback *vkframe.DeletionQueue) error {
			s, err := surface(d.instance)
			if err != nil {
				return err
			}
			if s == vk.NullSurface {
				return errors.New("window returned a null surface")
			}
			d.surface = s
			rollback.PushFunc(func() { vk.DestroySurface(d.instance, s, nil) })
			return nil
		}).
		Add("physical device", d.selectGPU).
		Add("device", d.createDevice).
		Run()
	if err != nil {
		return nil, err
	}
	d.teardown = teardown
	d.log.Info("vulkan driver ready",
		"gpu", vk.ToString(d.gpuProperties.DeviceName[:]),
		"queue_family", d.queueFamily,
		"layers", len(d.layers))
	return d, nil
}

func (d *Driver) createInstance(rollback *vkframe.DeletionQueue) error {
	actual, err := InstanceExtensions()
	if err != nil {
		return err
	}
	var wanted []string
	if d.cfg.Validation {
		wanted = append(wanted, debugReportExtension)
	}
	set := NewExtensionSet("instance extensions", actual, d.cfg.InstanceExtensions, wanted)
	extensions, err := set.Enabled()
	if err != nil {
		return err
	}
	if missing := set.MissingWanted(); len(missing) > 0 {
		d.log.Warn("vulkan: optional instance extensions unavailable", "extensions", missing)
	}
	d.debugReport = d.cfg.Validation && contains(extensions, debugReportExtension)

	if d.cfg.Validation {
		available, err := ValidationLayers()
		if err != nil {
			return err
		}
		layers := NewExtensionSet("validation layers", available, nil, d.cfg.Layers)
		if missing := layers.MissingWanted(); len(missing) > 0 {
			d.log.Warn("vulkan: validation layers unavailable", "layers", missing)
		}
		d.layers, _ = layers.Enabled()
	}
	d.log.Debug("vulkan: enabling instance extensions", "count", len(extensions), "layers", len(d.layers))

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(d.cfg.APIVersion),
			ApplicationVersion: uint32(d.cfg.AppVersion),
			PApplicationName:   safeString(d.cfg.AppName),
			PEngineName:        safeString(defaultEngineName),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(d.layers)),
		PpEnabledLayerNames:     d.layers,
	}, nil, &instance)
	if err := check(ret, "vkCreateInstance"); err != nil {
		return err
	}
	d.instance = instance
	rollback.PushFunc(func() { vk.DestroyInstance(instance, nil) })
	return errors.Wrap(vk.InitInstance(instance), "load instance functions")
}

func (d *Driver) createDebugCallback(rollback *vkframe.DeletionQueue) error {
	if !d.debugReport {
		return nil
	}
	var callback vk.DebugReportCallback
	ret := vk.CreateDebugReportCallback(d.instance, &vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit),
		PfnCallback: d.debugReportFunc,
	}, nil, &callback)
	if err := check(ret, "vkCreateDebugReportCallbackEXT"); err != nil {
		return err
	}
	d.debugCallback = callback
	rollback.PushFunc(func() { vk.DestroyDebugReportCallback(d.instance, callback, nil) })
	return nil
}

// selectGPU takes the first GPU with a queue family that can both render
// and present to the surface and that supports swapchains, preferring
// discrete GPUs.
func (d *Driver) selectGPU(rollback *vkframe.DeletionQueue) error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if count == 0 {
		return errors.New("no GPU devices found")
	}
	gpus := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, gpus), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	found := false
	for _, gpu := range gpus {
		family, ok := d.queueFamilyFor(gpu)
		if !ok || !d.supportsSwapchain(gpu) {
			continue
		}
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()
		if found && props.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
			continue
		}
		d.gpu, d.gpuProperties, d.queueFamily, found = gpu, props, family, true
		if props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			break
		}
	}
	if !found {
		return errors.New("no GPU with a graphics queue that can present to the surface")
	}
	vk.GetPhysicalDeviceMemoryProperties(d.gpu, &d.memoryProperties)
	d.memoryProperties.Deref()
	return nil
}

func (d *Driver) queueFamilyFor(gpu vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, families)
	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(gpu, i, d.surface, &present)
		if present.B() {
			return i, true
		}
	}
	return 0, false
}

func (d *Driver) supportsSwapchain(gpu vk.PhysicalDevice) bool {
	actual, err := DeviceExtensions(gpu)
	if err != nil {
		return false
	}
	return contains(actual, swapchainExtension)
}

func (d *Driver) createDevice(rollback *vkframe.DeletionQueue) error {
	actual, err := DeviceExtensions(d.gpu)
	if err != nil {
		return err
	}
	required := append([]string{swapchainExtension}, d.cfg.DeviceExtensions...)
	extensions, err := NewExtensionSet("device extensions", actual, required, nil).Enabled()
	if err != nil {
		return err
	}

	var device vk.Device
	ret := vk.CreateDevice(d.gpu, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.queueFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(d.layers)),
		PpEnabledLayerNames:     d.layers,
	}, nil, &device)
	if err := check(ret, "vkCreateDevice"); err != nil {
		return err
	}
	d.device = device
	rollback.PushFunc(func() {
		vk.DeviceWaitIdle(device)
		vk.DestroyDevice(device, nil)
	})

	var queue vk.Queue
	vk.GetDeviceQueue(device, d.queueFamily, 0, &queue)
	d.queue = queue
	return nil
}

func (d *Driver) debugReportFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	level := slog.LevelInfo
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		level = slog.LevelError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		level = slog.LevelWarn
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		level = slog.LevelDebug
	}
	d.log.Log(context.Background(), level, pMessage, "layer", pLayerPrefix, "code", messageCode)
	return vk.Bool32(vk.False)
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if trimNull(s) == name {
			return true
		}
	}
	return false
}
