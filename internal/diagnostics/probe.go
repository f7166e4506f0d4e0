// Package diagnostics inspects the local host so the router can tell which
// local models are actually runnable: free memory against a model's minimum,
// and GPU presence when a model requires one. Probing is best-effort; a
// failed reading never blocks a model that declares no requirements.
package diagnostics

import (
	"strings"
	"sync"
	"time"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/logging"
)

// probeCacheTTL bounds how often hardware is re-read. GPU enumeration in
// particular is slow enough to matter on the routing path.
const probeCacheTTL = 15 * time.Second

// HostCapabilities is one snapshot of the local hardware.
type HostCapabilities struct {
	TotalMemoryMB     uint64
	AvailableMemoryMB uint64
	GPUs              []string
	HasGPU            bool
}

// SystemProber reads host capabilities with a short-lived cache.
type SystemProber struct {
	logger *logging.Logger

	mu     sync.Mutex
	cached HostCapabilities
	readAt time.Time

	// GPU list is read once; cards do not come and go.
	gpuOnce sync.Once
	gpus    []string
}

// NewSystemProber creates a prober. The logger may be nil.
func NewSystemProber(logger *logging.Logger) *SystemProber {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SystemProber{logger: logger}
}

// Capabilities returns the current host snapshot.
func (p *SystemProber) Capabilities() HostCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.readAt) < probeCacheTTL {
		return p.cached
	}

	caps := HostCapabilities{}
	if vm, err := mem.VirtualMemory(); err == nil {
		caps.TotalMemoryMB = vm.Total / 1024 / 1024
		caps.AvailableMemoryMB = vm.Available / 1024 / 1024
	} else {
		p.logger.Warn("memory probe failed", "error", err.Error())
	}

	caps.GPUs = p.gpuNames()
	caps.HasGPU = len(caps.GPUs) > 0

	p.cached = caps
	p.readAt = time.Now()
	return caps
}

// CanRun reports whether this host satisfies a model's declared resource
// requirements. Cloud and simulated models always pass; their resources are
// not ours.
func (p *SystemProber) CanRun(model core.ModelDescriptor) bool {
	if model.Kind != core.BackendLocal {
		return true
	}
	if model.MinMemoryMB == 0 && !model.RequiresGPU {
		return true
	}

	caps := p.Capabilities()
	if model.MinMemoryMB > 0 {
		// Unknown memory passes: refusing every local model on a probe
		// failure is worse than optimism plus a runtime error.
		if caps.AvailableMemoryMB > 0 && caps.AvailableMemoryMB < model.MinMemoryMB {
			p.logger.Debug("model rejected by memory probe",
				"model", model.Name, "required_mb", model.MinMemoryMB, "available_mb", caps.AvailableMemoryMB)
			return false
		}
	}
	if model.RequiresGPU && !caps.HasGPU {
		p.logger.Debug("model rejected by gpu probe", "model", model.Name)
		return false
	}
	return true
}

func (p *SystemProber) gpuNames() []string {
	p.gpuOnce.Do(func() {
		info, err := ghw.GPU()
		if err != nil || info == nil {
			return
		}
		for _, card := range info.GraphicsCards {
			name := ""
			if card.DeviceInfo != nil {
				switch {
				case card.DeviceInfo.Vendor != nil && card.DeviceInfo.Product != nil:
					name = strings.TrimSpace(card.DeviceInfo.Vendor.Name + " " + card.DeviceInfo.Product.Name)
				case card.DeviceInfo.Product != nil:
					name = strings.TrimSpace(card.DeviceInfo.Product.Name)
				case card.DeviceInfo.Vendor != nil:
					name = strings.TrimSpace(card.DeviceInfo.Vendor.Name)
				}
			}
			if name == "" {
				continue
			}
			p.gpus = append(p.gpus, name)
		}
	})
	return p.gpus
}
