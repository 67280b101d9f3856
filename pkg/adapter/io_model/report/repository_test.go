// 指示: miu200521358
package report

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/miu200521358/mu_autorig/pkg/domain/model/merrors"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/moutput"
)

func sampleReport() *moutput.RigReport {
	return &moutput.RigReport{
		RunID:     "run-1",
		Character: "akona",
		Nodes: []moutput.RigReportNode{
			{
				Name:   "akona_root_main_ctr",
				Kind:   "control",
				Matrix: [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
			},
			{
				Name:       "akona_leg_left_switch_ctr",
				Kind:       "control",
				Parent:     "akona_root_main_ctr",
				Attributes: map[string]float64{"ikFk": 1},
				ShapeType:  "switch",
				ColorIndex: 6,
			},
		},
		Operators: []moutput.RigReportOperator{
			{Name: "akona_leg_left_blend_01", Kind: "blend", Inputs: []string{"a.rotate"}, Outputs: []string{"b.rotate"}},
		},
		Switches: []moutput.RigReportSwitch{{Name: "akona_leg_left_switch_ctr", Zone: "leg", Side: "left", IkFk: 1, Blends: 3}},
		Warnings: []string{"OptionalZoneAbsent"},
	}
}

func TestRigReportRepositorySaveAndLoad(t *testing.T) {
	repository := NewRigReportRepository()
	for _, name := range []string{"out/akona_rig.json", "out/akona_rig.yaml"} {
		name := name
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := sampleReport()
			if err := repository.Save(path, want); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			got, err := repository.Load(path)
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("report mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRigReportRepositorySaveRejectsInvalidInput(t *testing.T) {
	repository := NewRigReportRepository()
	if err := repository.Save("akona_rig.pmx", sampleReport()); merrors.ExtractErrorID(err) != "14102" {
		t.Fatalf("expected error id 14102, got %v", err)
	}
	if err := repository.Save(filepath.Join(t.TempDir(), "akona_rig.json"), nil); merrors.ExtractErrorID(err) != "14201" {
		t.Fatalf("expected error id 14201, got %v", err)
	}
	if _, err := repository.Load(filepath.Join(t.TempDir(), "missing.json")); merrors.ExtractErrorID(err) != "14101" {
		t.Fatalf("expected error id 14101, got %v", err)
	}
}
