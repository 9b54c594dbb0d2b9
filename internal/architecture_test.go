package internal

import (
	"testing"

	"github.com/kcmvp/archunit"
)

func TestArchitecture(t *testing.T) {
	core := archunit.Packages("core", []string{".../internal/core/..."})
	adapters := archunit.Packages("adapters", []string{".../internal/adapters/..."})
	modules := archunit.Packages("modules", []string{".../internal/modules/..."})

	if err := core.ShouldNotReferLayers(adapters); err != nil {
		t.Errorf("core depends on adapters: %v", err)
	}
	if err := core.ShouldNotReferLayers(modules); err != nil {
		t.Errorf("core depends on modules: %v", err)
	}
	if err := adapters.ShouldNotReferLayers(modules); err != nil {
		t.Errorf("adapters depend on modules: %v", err)
	}
}

func TestWireProtocolIsStandalone(t *testing.T) {
	wire := archunit.Packages("wire", []string{".../pkg/..."})
	if len(wire.Packages()) == 0 {
		t.Fatal("no wire packages found")
	}
	internal := archunit.Packages("internal", []string{".../internal/..."})
	if err := wire.ShouldNotReferLayers(internal); err != nil {
		t.Errorf("pkg depends on internal: %v", err)
	}
}
