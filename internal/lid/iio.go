package lid

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultIIORoot is where the kernel exposes IIO devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

// iioDeviceName is the EC sensor fusion device that reports the hinge
// angle directly, already in degrees.
const iioDeviceName = "cros-ec-lid-angle"

// iioAngleAttrs are the sysfs attributes that may carry the angle value,
// in probe order. Older kernels index the channel.
var iioAngleAttrs = []string{"in_angl_raw", "in_angl0_raw"}

// IIOSensor reads the lid angle from the kernel IIO subsystem. It probes
// for a cros-ec-lid-angle device at construction and then reads its angle
// attribute on demand.
type IIOSensor struct {
	anglePath string
	device    string
}

// NewIIOSensor scans root (DefaultIIORoot when empty) for a lid angle
// device. Probe failure is permanent: no device means this machine cannot
// use the IIO backend.
func NewIIOSensor(root string) (*IIOSensor, error) {
	if root == "" {
		root = DefaultIIORoot
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan IIO devices: %w", err)
	}

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "iio:device") {
			continue
		}
		devDir := filepath.Join(root, entry.Name())
		name, err := os.ReadFile(filepath.Join(devDir, "name"))
		if err != nil || strings.TrimSpace(string(name)) != iioDeviceName {
			continue
		}
		for _, attr := range iioAngleAttrs {
			anglePath := filepath.Join(devDir, attr)
			if _, err := os.Stat(anglePath); err == nil {
				return &IIOSensor{
					anglePath: anglePath,
					device:    strings.TrimPrefix(entry.Name(), "iio:"),
				}, nil
			}
		}
		return nil, fmt.Errorf("device %s has no angle attribute", entry.Name())
	}

	return nil, fmt.Errorf("no %s device under %s", iioDeviceName, root)
}

// ReadAngle reads the angle attribute. Read and parse failures are
// transient: the EC occasionally returns EAGAIN mid-update.
func (s *IIOSensor) ReadAngle() (float64, error) {
	data, err := os.ReadFile(s.anglePath)
	if err != nil {
		return 0, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, s.anglePath, err)
	}

	angle, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing %s value %q: %v", ErrUnavailable, s.anglePath, strings.TrimSpace(string(data)), err)
	}
	return angle, nil
}

// Name identifies the kernel device backing this sensor.
func (s *IIOSensor) Name() string {
	return "iio:" + s.device
}
