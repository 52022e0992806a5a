package merge

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/proteindock/api/internal/pdb"
)

func atomLine(chain byte, resSeq int, x, y, z float64) string {
	return fmt.Sprintf("ATOM      1  CA  ALA %c%4d    %8.3f%8.3f%8.3f  1.00  0.00           C",
		chain, resSeq, x, y, z)
}

// octahedron builds a structure of six atoms at distance r from center, so
// centroid = center and radius = r.
func octahedron(t *testing.T, center pdb.Vec3, r float64) *pdb.Structure {
	t.Helper()
	lines := []string{
		atomLine('X', 1, center.X+r, center.Y, center.Z),
		atomLine('X', 2, center.X-r, center.Y, center.Z),
		atomLine('X', 3, center.X, center.Y+r, center.Z),
		atomLine('X', 4, center.X, center.Y-r, center.Z),
		atomLine('X', 5, center.X, center.Y, center.Z+r),
		atomLine('X', 6, center.X, center.Y, center.Z-r),
	}
	s, err := pdb.Parse(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("failed to build test structure: %v", err)
	}
	return s
}

func TestMerge_CoincidentCentroids(t *testing.T) {
	receptor := octahedron(t, pdb.Vec3{}, 10)
	binder := octahedron(t, pdb.Vec3{}, 8)

	m := New(2.0, 25)
	combined, err := m.Merge(receptor, binder)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	// Coincident centroids fall back to the +X axis, so the binder centroid
	// lands exactly at r1+r2+gap = 20 along X.
	bc := binder.Centroid()
	if math.Abs(bc.X-20) > 1e-6 || math.Abs(bc.Y) > 1e-6 || math.Abs(bc.Z) > 1e-6 {
		t.Errorf("expected binder centroid at (20,0,0), got %+v", bc)
	}

	if d := pdb.MinDistance(receptor, binder); d < 2.0-1e-6 {
		t.Errorf("gap invariant violated: min distance %f", d)
	}

	if len(combined.Atoms) != 12 {
		t.Fatalf("expected 12 atoms in complex, got %d", len(combined.Atoms))
	}
	for _, a := range combined.Atoms[:6] {
		if a.Chain != 'A' {
			t.Fatalf("receptor atom not on chain A: %c", a.Chain)
		}
	}
	for _, a := range combined.Atoms[6:] {
		if a.Chain != 'B' {
			t.Fatalf("binder atom not on chain B: %c", a.Chain)
		}
	}
}

func TestMerge_PlacementAxisFollowsCentroids(t *testing.T) {
	receptor := octahedron(t, pdb.Vec3{}, 5)
	binder := octahedron(t, pdb.Vec3{Y: 3}, 4)

	m := New(1.5, 25)
	if _, err := m.Merge(receptor, binder); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	bc := binder.Centroid()
	if math.Abs(bc.Y-10.5) > 1e-6 || math.Abs(bc.X) > 1e-6 || math.Abs(bc.Z) > 1e-6 {
		t.Errorf("expected binder centroid at (0,10.5,0), got %+v", bc)
	}
}

func TestMerge_GapInvariantAcrossSizes(t *testing.T) {
	for _, gap := range []float64{0.5, 2.0, 10.0} {
		receptor := octahedron(t, pdb.Vec3{X: 1, Y: -2, Z: 3}, 7)
		binder := octahedron(t, pdb.Vec3{X: 4, Y: 4, Z: -1}, 3)

		m := New(gap, 25)
		if _, err := m.Merge(receptor, binder); err != nil {
			t.Fatalf("gap %.1f: merge failed: %v", gap, err)
		}
		if d := pdb.MinDistance(receptor, binder); d < gap-1e-6 {
			t.Errorf("gap %.1f: min distance %f below gap", gap, d)
		}
	}
}

func TestMerge_Renumbers(t *testing.T) {
	receptor := octahedron(t, pdb.Vec3{}, 6)
	binder := octahedron(t, pdb.Vec3{}, 4)

	m := New(2.0, 25)
	combined, err := m.Merge(receptor, binder)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if combined.Atoms[0].ResSeq != 1 {
		t.Errorf("receptor numbering does not start at 1: %d", combined.Atoms[0].ResSeq)
	}
	if combined.Atoms[6].ResSeq != 1 {
		t.Errorf("binder numbering does not restart at 1: %d", combined.Atoms[6].ResSeq)
	}
}

func TestMergeFiles_WritesComplex(t *testing.T) {
	dir := t.TempDir()
	writeStructure(t, filepath.Join(dir, "receptor.pdb"), octahedron(t, pdb.Vec3{}, 10))
	writeStructure(t, filepath.Join(dir, "binder.pdb"), octahedron(t, pdb.Vec3{}, 8))

	out := filepath.Join(dir, "complex_input.pdb")
	m := New(2.0, 25)
	if err := m.MergeFiles(filepath.Join(dir, "receptor.pdb"), filepath.Join(dir, "binder.pdb"), out); err != nil {
		t.Fatalf("merge files failed: %v", err)
	}

	combined, err := pdb.ParseFile(out)
	if err != nil {
		t.Fatalf("output unreadable: %v", err)
	}
	if len(combined.Atoms) != 12 {
		t.Errorf("expected 12 atoms in written complex, got %d", len(combined.Atoms))
	}
}

func TestMergeFiles_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.pdb")
	if err := os.WriteFile(bad, []byte("ATOM garbage\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeStructure(t, filepath.Join(dir, "binder.pdb"), octahedron(t, pdb.Vec3{}, 8))

	m := New(2.0, 25)
	err := m.MergeFiles(bad, filepath.Join(dir, "binder.pdb"), filepath.Join(dir, "out.pdb"))
	if !errors.Is(err, pdb.ErrInvalidStructure) {
		t.Errorf("expected ErrInvalidStructure, got %v", err)
	}

	err = m.MergeFiles(filepath.Join(dir, "missing.pdb"), filepath.Join(dir, "binder.pdb"), filepath.Join(dir, "out.pdb"))
	if !errors.Is(err, pdb.ErrInvalidStructure) {
		t.Errorf("expected ErrInvalidStructure for missing file, got %v", err)
	}
}

func writeStructure(t *testing.T, path string, s *pdb.Structure) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := s.Write(f); err != nil {
		t.Fatal(err)
	}
}
