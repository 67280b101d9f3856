// 指示: miu200521358
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_model/report"
)

func TestParseOptionsWithFlags(t *testing.T) {
	errBuf := bytes.NewBuffer(nil)
	opts, err := parseOptions([]string{"-in", "akona.gltf", "-out", "akona_rig.yaml", "-config", "rig.yaml", "-verbose"}, errBuf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if opts.inputPath != "akona.gltf" || opts.outputPath != "akona_rig.yaml" || opts.configPath != "rig.yaml" || !opts.verbose {
		t.Fatalf("options mismatch: %+v", opts)
	}
}

func TestParseOptionsWithPositionals(t *testing.T) {
	errBuf := bytes.NewBuffer(nil)
	opts, err := parseOptions([]string{"akona.glb", "result.json"}, errBuf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if opts.inputPath != "akona.glb" {
		t.Fatalf("inputPath mismatch: %s", opts.inputPath)
	}
	if opts.outputPath != "result.json" {
		t.Fatalf("outputPath mismatch: %s", opts.outputPath)
	}
}

func TestParseOptionsRejectsInput(t *testing.T) {
	errBuf := bytes.NewBuffer(nil)
	if _, err := parseOptions([]string{}, errBuf); err == nil || !strings.Contains(err.Error(), "-in") {
		t.Fatalf("missing input expected: %v", err)
	}
	if _, err := parseOptions([]string{"-in", "akona.vrm"}, errBuf); err == nil || !strings.Contains(err.Error(), "akona.vrm") {
		t.Fatalf("unsupported input expected: %v", err)
	}
}

func TestResolveOutputPathDefault(t *testing.T) {
	out, err := resolveOutputPath(filepath.Join("work", "akona.gltf"), "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if filepath.Dir(filepath.Dir(out)) != "work" || filepath.Base(out) != "akona_rig.json" {
		t.Fatalf("output mismatch: %s", out)
	}
}

func TestResolveOutputPathRequireReportExt(t *testing.T) {
	_, err := resolveOutputPath("akona.gltf", "akona.pmx")
	if err == nil || !strings.Contains(err.Error(), ".json") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunBuildsRig(t *testing.T) {
	tempDir := t.TempDir()
	inPath := filepath.Join(tempDir, "akona.gltf")
	outPath := filepath.Join(tempDir, "out", "akona_rig.json")
	writeAkonaDocument(t, inPath)

	outBuf := bytes.NewBuffer(nil)
	errBuf := bytes.NewBuffer(nil)
	if err := run([]string{"-in", inPath, "-out", outPath}, outBuf, errBuf); err != nil {
		t.Fatalf("run failed: %v\n%s", err, errBuf.String())
	}
	saved, err := report.NewRigReportRepository().Load(outPath)
	if err != nil {
		t.Fatalf("output not loadable: %v", err)
	}
	if saved.Character != "akona" || len(saved.Switches) != 4 || len(saved.Operators) == 0 {
		t.Fatalf("report mismatch: character=%s switches=%d operators=%d", saved.Character, len(saved.Switches), len(saved.Operators))
	}
	if !strings.Contains(outBuf.String(), "構築完了") {
		t.Fatalf("summary not printed: %s", outBuf.String())
	}
}

// writeAkonaDocument は胴・首・左右の腕脚を持つglTFを保存する。
func writeAkonaDocument(t *testing.T, path string) {
	t.Helper()
	type joint struct {
		name     string
		parent   string
		position [3]float64
	}
	joints := []joint{
		{name: "spine_spine_01", position: [3]float64{0, 10, 0}},
		{name: "spine_spine_02", parent: "spine_spine_01", position: [3]float64{0, 11, 0.1}},
		{name: "spine_spine_03", parent: "spine_spine_02", position: [3]float64{0, 12, 0.1}},
		{name: "spine_spine_04", parent: "spine_spine_03", position: [3]float64{0, 13, 0}},
		{name: "neck_neck_01", parent: "spine_spine_04", position: [3]float64{0, 14, 0}},
		{name: "neck_head", parent: "neck_neck_01", position: [3]float64{0, 15, 0.1}},
	}
	for _, side := range []struct {
		name string
		sign float64
	}{{"left", 1}, {"right", -1}} {
		s := side.sign
		leg := "leg_" + side.name + "_"
		arm := "arm_" + side.name + "_"
		foot := "foot_" + side.name + "_"
		joints = append(joints,
			joint{name: leg + "upperLeg", parent: "spine_spine_01", position: [3]float64{s, 9.5, 0}},
			joint{name: leg + "lowerLeg", parent: leg + "upperLeg", position: [3]float64{s, 5, 0.2}},
			joint{name: leg + "foot", parent: leg + "lowerLeg", position: [3]float64{s, 1, 0}},
			joint{name: foot + "ball", parent: leg + "foot", position: [3]float64{s, 0, 1}},
			joint{name: foot + "heel", parent: leg + "foot", position: [3]float64{s, 0, -0.3}},
			joint{name: arm + "upperArm", parent: "spine_spine_04", position: [3]float64{2 * s, 13, 0}},
			joint{name: arm + "lowerArm", parent: arm + "upperArm", position: [3]float64{5 * s, 13, -0.2}},
			joint{name: arm + "hand", parent: arm + "lowerArm", position: [3]float64{8 * s, 13, 0}},
		)
	}

	indexes := map[string]int{}
	positions := map[string][3]float64{}
	nodes := make([]map[string]any, 0, len(joints))
	for i, j := range joints {
		local := j.position
		if j.parent != "" {
			parent := positions[j.parent]
			local = [3]float64{local[0] - parent[0], local[1] - parent[1], local[2] - parent[2]}
			children := nodes[indexes[j.parent]]["children"].([]int)
			nodes[indexes[j.parent]]["children"] = append(children, i)
		}
		indexes[j.name] = i
		positions[j.name] = j.position
		nodes = append(nodes, map[string]any{
			"name":        fmt.Sprintf("akona_%s_skin_joint", j.name),
			"translation": local[:],
			"children":    []int{},
		})
	}
	b, err := json.Marshal(map[string]any{"asset": map[string]any{"version": "2.0"}, "nodes": nodes})
	if err != nil {
		t.Fatalf("json marshal failed: %v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write gltf failed: %v", err)
	}
}
