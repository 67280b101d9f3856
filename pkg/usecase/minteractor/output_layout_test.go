// 指示: miu200521358
package minteractor

import (
	"path/filepath"
	"testing"
	"time"
)

func TestBuildDefaultOutputPathAt(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "gltf", input: filepath.Join("work", "akona.gltf"), want: filepath.Join("work", "akona_20260304050607", "akona_rig.json")},
		{name: "glb", input: "mika.glb", want: filepath.Join("mika_20260304050607", "mika_rig.json")},
		{name: "blank", input: filepath.Join("work", " .json"), want: ""},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := buildDefaultOutputPathAt(tc.input, now); got != tc.want {
				t.Fatalf("output path mismatch: got=%s want=%s", got, tc.want)
			}
		})
	}
}

func TestBuildDefaultOutputPathUsesNow(t *testing.T) {
	previous := nowFunc
	t.Cleanup(func() { nowFunc = previous })
	nowFunc = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	want := filepath.Join("akona_20260102030405", "akona_rig.json")
	if got := BuildDefaultOutputPath("akona.json"); got != want {
		t.Fatalf("output path mismatch: got=%s want=%s", got, want)
	}
}
