package resource

import (
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/tjper/yash/internal/device"
	"github.com/tjper/yash/internal/errors"
)

// controller enables and applies one cgroup2 control file for a Group.
type controller interface {
	enable() error
	apply() error
}

const (
	diskMajor          = 8
	diskPartitionEvery = 16
)

func newCPUController(g Group, cpus float32) *cpuController {
	return &cpuController{baseController: baseController{name: cpu, group: g}, cpus: cpus}
}

type cpuController struct {
	baseController
	cpus float32
}

func (c cpuController) apply() error {
	const period = 100000
	limit := c.cpus * period
	value := fmt.Sprintf("%.0f %d", limit, period)
	return errors.Wrap(c.baseController.apply(cpuMax, value))
}

func newMemoryController(g Group, limit uint64) *memoryController {
	return &memoryController{baseController: baseController{name: memory, group: g}, limit: limit}
}

type memoryController struct {
	baseController
	limit uint64
}

func (c memoryController) apply() error {
	return errors.Wrap(c.baseController.apply(memoryHigh, strconv.FormatUint(c.limit, 10)))
}

func newDiskReadBpsController(g Group, limit uint64) *diskReadBpsController {
	return &diskReadBpsController{baseController: baseController{name: io, group: g}, limit: limit}
}

type diskReadBpsController struct {
	baseController
	limit uint64
}

func (c diskReadBpsController) apply() error {
	minors, err := device.ReadDeviceMinors(diskMajor, diskPartitionEvery)
	if err != nil {
		return errors.Wrap(err)
	}
	for _, minor := range minors {
		value := fmt.Sprintf("%d:%d rbps=%d", diskMajor, minor, c.limit)
		if err := c.baseController.apply(ioMax, value); err != nil {
			return errors.Wrap(err)
		}
	}
	return nil
}

func newDiskWriteBpsController(g Group, limit uint64) *diskWriteBpsController {
	return &diskWriteBpsController{baseController: baseController{name: io, group: g}, limit: limit}
}

type diskWriteBpsController struct {
	baseController
	limit uint64
}

func (c diskWriteBpsController) apply() error {
	minors, err := device.ReadDeviceMinors(diskMajor, diskPartitionEvery)
	if err != nil {
		return errors.Wrap(err)
	}
	for _, minor := range minors {
		value := fmt.Sprintf("%d:%d wbps=%d", diskMajor, minor, c.limit)
		if err := c.baseController.apply(ioMax, value); err != nil {
			return errors.Wrap(err)
		}
	}
	return nil
}

// baseController owns the file-write plumbing shared by every controller.
type baseController struct {
	name  string
	group Group
}

func (c baseController) enable() error {
	file := path.Join(c.group.path, cgroupSubtreeControl)
	fd, err := os.OpenFile(file, os.O_WRONLY, fileMode)
	if err != nil {
		return errors.Wrap(err)
	}
	defer fd.Close()

	_, err = fd.WriteString(fmt.Sprintf("+%s\n", c.name))
	return errors.Wrap(err)
}

func (c baseController) apply(control, value string) error {
	file := path.Join(c.group.path, control)
	fd, err := os.OpenFile(file, os.O_WRONLY, fileMode)
	if err != nil {
		return errors.Wrap(err)
	}
	defer fd.Close()

	_, err = fd.WriteString(value)
	return errors.Wrap(err)
}
