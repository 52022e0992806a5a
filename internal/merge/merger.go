package merge

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/proteindock/api/internal/model"
	"github.com/proteindock/api/internal/pdb"
)

// ErrPlacementFailed marks a pair whose minimum-gap invariant could not be
// satisfied within the retry bound.
var ErrPlacementFailed = errors.New("placement failed")

// distTolerance absorbs floating-point noise in the post-placement check.
const distTolerance = 1e-6

// defaultAxis is used when the two centroids coincide.
var defaultAxis = pdb.Vec3{X: 1, Y: 0, Z: 0}

// Merger positions two rigid bodies with a guaranteed minimum separation and
// relabels them into a two-chain complex.
type Merger struct {
	Gap        float64
	MaxRetries int
}

func New(gap float64, maxRetries int) *Merger {
	return &Merger{Gap: gap, MaxRetries: maxRetries}
}

// Merge translates the binder along the placement axis so that its centroid
// sits at receptorRadius + binderRadius + Gap from the receptor centroid,
// verifies the separation by a direct minimum-pairwise-distance check, then
// relabels the receptor as chain A and the binder as chain B and renumbers
// both from residue 1. Both inputs are modified in place; the returned
// structure shares their atoms.
func (m *Merger) Merge(receptor, binder *pdb.Structure) (*pdb.Structure, error) {
	recCentroid := receptor.Centroid()
	binCentroid := binder.Centroid()

	axis, ok := binCentroid.Sub(recCentroid).Unit()
	if !ok {
		axis = defaultAxis
	}

	separation := receptor.Radius() + binder.Radius() + m.Gap
	step := math.Max(m.Gap, 1.0)

	placed := false
	for attempt := 0; attempt <= m.MaxRetries; attempt++ {
		target := recCentroid.Add(axis.Scale(separation))
		binder.Translate(target.Sub(binder.Centroid()))
		if pdb.MinDistance(receptor, binder) >= m.Gap-distTolerance {
			placed = true
			break
		}
		separation += step
	}
	if !placed {
		return nil, fmt.Errorf("%w: gap %.2f not reachable in %d attempts", ErrPlacementFailed, m.Gap, m.MaxRetries+1)
	}

	receptor.SetChain(model.ChainReceptor)
	binder.SetChain(model.ChainBinder)
	receptor.Renumber()
	binder.Renumber()

	complexStruct := &pdb.Structure{}
	complexStruct.Atoms = append(complexStruct.Atoms, receptor.Atoms...)
	complexStruct.Atoms = append(complexStruct.Atoms, binder.Atoms...)
	return complexStruct, nil
}

// MergeFiles parses both inputs, merges them and writes the complex to
// outPath atomically, so a concurrent reader never observes a partial file.
func (m *Merger) MergeFiles(receptorPath, binderPath, outPath string) error {
	receptor, err := pdb.ParseFile(receptorPath)
	if err != nil {
		return fmt.Errorf("receptor: %w", err)
	}
	binder, err := pdb.ParseFile(binderPath)
	if err != nil {
		return fmt.Errorf("binder: %w", err)
	}

	merged, err := m.Merge(receptor, binder)
	if err != nil {
		return err
	}
	return writeAtomic(merged, outPath)
}

func writeAtomic(s *pdb.Structure, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if err := s.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
