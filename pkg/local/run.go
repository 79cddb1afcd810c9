// Package local executes a task's work in-process, skipping the scheduler.
// Meant for debugging on hosts without a queue.
package local

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pbauer/gridq/pkg/logging"
	"github.com/pbauer/gridq/pkg/task"
)

// Execute looks the task's work up in the registry and runs it here. The
// requested slot count is clamped to the host's logical CPUs; a laptop should
// not pretend to be a cluster node.
func Execute(ctx context.Context, d *task.Descriptor, reg *task.Registry, log *logging.Logger) error {
	work, err := reg.Lookup(d.Kind)
	if err != nil {
		return err
	}

	slots := d.Resources.Slots
	if slots <= 0 {
		slots = 1
	}
	if hostCPUs, err := cpu.Counts(true); err == nil && slots > hostCPUs {
		log.Warn("Clamping slot request to host CPUs", map[string]interface{}{
			"requested": slots, "host_cpus": hostCPUs,
		})
		slots = hostCPUs
	}
	if slots != d.Resources.Slots {
		clamped := *d
		clamped.Resources.Slots = slots
		d = &clamped
	}

	log.Info("Running work locally", HostSnapshot(slots))
	return work.Execute(ctx, d)
}

// HostSnapshot captures the host's capacity for attempt diagnostics.
func HostSnapshot(slots int) map[string]interface{} {
	fields := map[string]interface{}{"slots": strconv.Itoa(slots)}
	if n, err := cpu.Counts(true); err == nil {
		fields["host_cpus"] = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields["host_mem_free"] = fmt.Sprintf("%.1fGiB", float64(vm.Available)/(1<<30))
	}
	return fields
}
