package resource

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/tjper/yash/internal/device"
)

func isRoot() bool { return os.Geteuid() == 0 }

func TestServiceSetupAndCleanup(t *testing.T) {
	if !isRoot() {
		t.Skip("must be root to run")
	}

	dir := t.TempDir()
	service, err := NewService(dir)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if _, err := os.Stat(service.path); err != nil {
		t.Fatalf("stat service cgroup; path: %s, error: %s", service.path, err)
	}

	expected := []string{cpu, io, memory}
	controllers, err := readControllers(service.path)
	if err != nil {
		t.Fatalf("read service controllers; path: %s, error: %s", service.path, err)
	}
	if !reflect.DeepEqual(controllers, expected) {
		t.Fatalf("unexpected controllers; actual: %v, expected: %v", controllers, expected)
	}

	if err := service.Cleanup(); err != nil {
		t.Fatalf("service cleanup; error: %s", err)
	}
	if _, err := os.Stat(service.path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected cgroup to not exist; path: %s, error: %v", service.path, err)
	}
}

func TestCreateGroup(t *testing.T) {
	if !isRoot() {
		t.Skip("must be root to run")
	}

	dir := t.TempDir()
	service, err := NewService(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := service.Cleanup(); err != nil {
			t.Fatal(err)
		}
	}()

	tests := map[string]struct {
		options []GroupOption
	}{
		"no options":              {},
		"w/ memory limit":         {options: []GroupOption{WithMemory(1000000000)}},
		"w/ cpu limit":            {options: []GroupOption{WithCpus(1.5)}},
		"w/ disk write bps limit": {options: []GroupOption{WithDiskWriteBps(100000)}},
		"w/ disk read bps limit":  {options: []GroupOption{WithDiskReadBps(100000)}},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			group, err := service.CreateGroup(uuid.New(), test.options...)
			if err != nil {
				t.Fatalf("create group error: %s", err)
			}
			if _, err := os.Stat(group.path); err != nil {
				t.Fatalf("expected group to exist; path: %s", group.path)
			}
		})
	}
}

func TestPlaceAndRelease(t *testing.T) {
	if !isRoot() {
		t.Skip("must be root to run")
	}

	dir := t.TempDir()
	service, err := NewService(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := service.Cleanup(); err != nil {
			t.Fatal(err)
		}
	}()

	group, err := service.CreateGroup(uuid.New())
	if err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("exec sleep 30: %s", err)
	}
	defer cmd.Process.Kill()

	if err := group.Place(cmd.Process.Pid); err != nil {
		t.Fatalf("place in group; pid: %d, error: %s", cmd.Process.Pid, err)
	}

	pids, err := group.readPids()
	if err != nil {
		t.Fatal(err)
	}
	if len(pids) != 1 || pids[0] != cmd.Process.Pid {
		t.Fatalf("unexpected pids; actual: %v, expected: [%d]", pids, cmd.Process.Pid)
	}

	if err := group.Release(); err != nil {
		t.Fatalf("release group: %s", err)
	}
	if _, err := os.Stat(group.path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected group to not exist; path: %s, err: %v", group.path, err)
	}

	// Release must be idempotent.
	if err := group.Release(); err != nil {
		t.Fatalf("second release must be a no-op, got: %s", err)
	}
}

func TestReleaseNeverPlacedSucceeds(t *testing.T) {
	if !isRoot() {
		t.Skip("must be root to run")
	}

	dir := t.TempDir()
	service, err := NewService(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := service.Cleanup(); err != nil {
			t.Fatal(err)
		}
	}()

	group, err := service.CreateGroup(uuid.New())
	if err != nil {
		t.Fatal(err)
	}

	if err := group.Release(); err != nil {
		t.Fatalf("release of an unplaced group must succeed, got: %s", err)
	}
}

func TestControllers(t *testing.T) {
	dir := t.TempDir()
	group := Group{path: dir}

	type expected struct {
		enabled string
		values  string
	}
	tests := map[string]struct {
		file       string
		controller controller
		exp        expected
	}{
		"memory": {
			file:       "memory.high",
			controller: newMemoryController(group, 1024),
			exp:        expected{enabled: "+memory\n", values: "1024"},
		},
		"cpu": {
			file:       "cpu.max",
			controller: newCPUController(group, 1.5),
			exp:        expected{enabled: "+cpu\n", values: "150000 100000"},
		},
		"disk rbps": {
			file:       "io.max",
			controller: newDiskReadBpsController(group, 2048),
			exp:        expected{enabled: "+io\n", values: ioMaxValue(t, "rbps", "2048")},
		},
		"disk wbps": {
			file:       "io.max",
			controller: newDiskWriteBpsController(group, 4096),
			exp:        expected{enabled: "+io\n", values: ioMaxValue(t, "wbps", "4096")},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if err := test.controller.enable(); err != nil {
				t.Fatalf("enable controller; error: %s", err)
			}
			if err := test.controller.apply(); err != nil {
				t.Fatalf("apply controller; error: %s", err)
			}

			b, err := os.ReadFile(path.Join(dir, cgroupSubtreeControl))
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != test.exp.enabled {
				t.Fatalf("controllers unexpected; actual: %s, expected: %s", b, test.exp.enabled)
			}

			b, err = os.ReadFile(path.Join(dir, test.file))
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != test.exp.values {
				t.Fatalf("control values unexpected; actual: %s, expected: %s", b, test.exp.values)
			}
		})
	}
}

func readControllers(dir string) ([]string, error) {
	fd, err := os.Open(path.Join(dir, cgroupSubtreeControl))
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	scanner := bufio.NewScanner(fd)
	scanner.Split(bufio.ScanWords)

	var controllers []string
	for scanner.Scan() {
		controllers = append(controllers, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return controllers, nil
}

func ioMaxValue(t *testing.T, key, value string) string {
	minors, err := device.ReadDeviceMinors(diskMajor, diskPartitionEvery)
	if err != nil {
		t.Fatal(err)
	}

	var max uint32
	for _, minor := range minors {
		if minor > max {
			max = minor
		}
	}
	return fmt.Sprintf("%d:%d %s=%s", diskMajor, max, key, value)
}
