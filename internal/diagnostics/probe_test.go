package diagnostics

import (
	"testing"

	"github.com/deckhand-ai/deckhand/internal/core"
	"github.com/deckhand-ai/deckhand/internal/logging"
)

func TestCanRun_NonLocalAlwaysPasses(t *testing.T) {
	p := NewSystemProber(logging.NewNop())

	cloud := core.ModelDescriptor{Name: "c", Kind: core.BackendCloud, MinMemoryMB: 1 << 40, RequiresGPU: true}
	if !p.CanRun(cloud) {
		t.Error("cloud models must pass regardless of local resources")
	}
	sim := core.ModelDescriptor{Name: "s", Kind: core.BackendSimulated, RequiresGPU: true}
	if !p.CanRun(sim) {
		t.Error("simulated models must pass regardless of local resources")
	}
}

func TestCanRun_NoRequirementsPasses(t *testing.T) {
	p := NewSystemProber(nil)
	local := core.ModelDescriptor{Name: "l", Kind: core.BackendLocal}
	if !p.CanRun(local) {
		t.Error("local model without requirements must pass")
	}
}

func TestCanRun_ImpossibleMemoryRejected(t *testing.T) {
	p := NewSystemProber(nil)
	if p.Capabilities().AvailableMemoryMB == 0 {
		t.Skip("memory probe unavailable on this host")
	}

	// No host has an exabyte free.
	huge := core.ModelDescriptor{Name: "huge", Kind: core.BackendLocal, MinMemoryMB: 1 << 40}
	if p.CanRun(huge) {
		t.Error("model demanding an exabyte of memory must be rejected")
	}
}

func TestCapabilities_Cached(t *testing.T) {
	p := NewSystemProber(nil)
	a := p.Capabilities()
	b := p.Capabilities()
	if a.TotalMemoryMB != b.TotalMemoryMB {
		t.Error("snapshot should be served from cache within the TTL")
	}
}
