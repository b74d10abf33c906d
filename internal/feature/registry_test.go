package feature

import (
	"strings"
	"testing"
)

type fakeFeature struct{ name string }

func (f fakeFeature) Name() string        { return f.name }
func (f fakeFeature) Description() string { return f.name + " feature" }

func register(t *testing.T, r *Registry, name string) {
	t.Helper()
	err := r.Register(name, func() (Feature, error) {
		return fakeFeature{name: name}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	register(t, r, "backup")
	if err := r.Register("backup", func() (Feature, error) { return nil, nil }); err == nil {
		t.Error("Register() accepted a duplicate name")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	register(t, r, "sweep")
	register(t, r, "backup")

	names := r.Names()
	if len(names) != 2 || names[0] != "backup" || names[1] != "sweep" {
		t.Errorf("Names() = %v, want [backup sweep]", names)
	}
}

func TestEnable(t *testing.T) {
	r := NewRegistry()
	register(t, r, "backup")
	register(t, r, "sweep")

	// List order wins over registration order, repeats collapse.
	features, err := r.Enable([]string{"sweep", "backup", "sweep"})
	if err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if len(features) != 2 || features[0].Name() != "sweep" || features[1].Name() != "backup" {
		t.Errorf("Enable() = %v, want [sweep backup]", features)
	}
}

func TestEnableUnknownFeature(t *testing.T) {
	r := NewRegistry()
	register(t, r, "backup")

	_, err := r.Enable([]string{"backup", "telemetry"})
	if err == nil {
		t.Fatal("Enable() accepted an unknown feature name")
	}
	if !strings.Contains(err.Error(), `"telemetry"`) {
		t.Errorf("error %q does not name the unknown feature", err)
	}
}
