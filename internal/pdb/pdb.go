package pdb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidStructure marks input that cannot be used as a rigid body:
// empty files, files without coordinate records, or unparseable records.
var ErrInvalidStructure = errors.New("invalid structure")

// Vec3 is a 3-D coordinate or displacement.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v.X * f, v.Y * f, v.Z * f}
}

func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Unit returns the normalized vector. ok is false when the vector is too
// short to define a direction.
func (v Vec3) Unit() (unit Vec3, ok bool) {
	n := v.Norm()
	if n < 1e-9 {
		return Vec3{}, false
	}
	return v.Scale(1 / n), true
}

// Atom is one ATOM/HETATM record. The original line is retained so that
// serialization preserves every column we do not rewrite.
type Atom struct {
	Chain  byte
	ResSeq int
	ICode  byte
	Coord  Vec3

	line string
}

// Structure is an ordered list of atoms from a single PDB file.
type Structure struct {
	Atoms []Atom
}

// PDB fixed-column offsets (0-based, half-open)
const (
	colChain     = 21
	colResSeqLo  = 22
	colResSeqHi  = 26
	colICode     = 26
	colCoordLo   = 30
	colCoordHi   = 54
	minLineWidth = 54
)

// ParseFile reads a structure from disk.
func ParseFile(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads ATOM and HETATM records; all other record types are dropped.
func Parse(r io.Reader) (*Structure, error) {
	s := &Structure{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !strings.HasPrefix(line, "ATOM") && !strings.HasPrefix(line, "HETATM") {
			continue
		}
		atom, err := parseAtom(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidStructure, lineNo, err)
		}
		s.Atoms = append(s.Atoms, atom)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if len(s.Atoms) == 0 {
		return nil, fmt.Errorf("%w: no coordinate records", ErrInvalidStructure)
	}
	return s, nil
}

func parseAtom(line string) (Atom, error) {
	if len(line) < minLineWidth {
		return Atom{}, fmt.Errorf("record too short (%d columns)", len(line))
	}
	resSeq, err := strconv.Atoi(strings.TrimSpace(line[colResSeqLo:colResSeqHi]))
	if err != nil {
		return Atom{}, fmt.Errorf("residue number: %v", err)
	}
	x, err := parseCoord(line[30:38])
	if err != nil {
		return Atom{}, err
	}
	y, err := parseCoord(line[38:46])
	if err != nil {
		return Atom{}, err
	}
	z, err := parseCoord(line[46:54])
	if err != nil {
		return Atom{}, err
	}
	return Atom{
		Chain:  line[colChain],
		ResSeq: resSeq,
		ICode:  line[colICode],
		Coord:  Vec3{x, y, z},
		line:   line,
	}, nil
}

func parseCoord(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, fmt.Errorf("coordinate %q: %v", field, err)
	}
	return v, nil
}

// Centroid returns the mean atom position.
func (s *Structure) Centroid() Vec3 {
	var sum Vec3
	for _, a := range s.Atoms {
		sum = sum.Add(a.Coord)
	}
	return sum.Scale(1 / float64(len(s.Atoms)))
}

// Radius returns the maximum atom-to-centroid distance.
func (s *Structure) Radius() float64 {
	c := s.Centroid()
	var max float64
	for _, a := range s.Atoms {
		if d := a.Coord.Sub(c).Norm(); d > max {
			max = d
		}
	}
	return max
}

// Translate moves every atom by v.
func (s *Structure) Translate(v Vec3) {
	for i := range s.Atoms {
		s.Atoms[i].Coord = s.Atoms[i].Coord.Add(v)
	}
}

// SetChain assigns one chain label to every atom.
func (s *Structure) SetChain(label byte) {
	for i := range s.Atoms {
		s.Atoms[i].Chain = label
	}
}

// Renumber assigns sequential residue numbers starting at 1, preserving the
// original residue order. Insertion codes are folded into the sequence: a new
// (resSeq, iCode) pair starts a new residue and the code itself is cleared.
func (s *Structure) Renumber() {
	next := 0
	var lastSeq, lastNew int
	var lastICode byte
	first := true
	for i := range s.Atoms {
		a := &s.Atoms[i]
		if first || a.ResSeq != lastSeq || a.ICode != lastICode {
			next++
			lastSeq, lastICode = a.ResSeq, a.ICode
			lastNew = next
			first = false
		}
		a.ResSeq = lastNew
		a.ICode = ' '
	}
}

// MinDistance returns the minimum pairwise atom distance between a and b.
func MinDistance(a, b *Structure) float64 {
	min := math.Inf(1)
	for i := range a.Atoms {
		for j := range b.Atoms {
			if d := a.Atoms[i].Coord.Sub(b.Atoms[j].Coord).Norm(); d < min {
				min = d
			}
		}
	}
	return min
}

// Write serializes the structure, emitting a TER record at each chain break
// and a terminating END.
func (s *Structure) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var lastChain byte
	for i, a := range s.Atoms {
		if i > 0 && a.Chain != lastChain {
			if _, err := bw.WriteString("TER\n"); err != nil {
				return err
			}
		}
		lastChain = a.Chain
		if _, err := bw.WriteString(a.format() + "\n"); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("TER\nEND\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// format rewrites the chain, residue number, insertion code and coordinate
// columns of the original record, leaving everything else untouched.
func (a Atom) format() string {
	line := a.line
	if len(line) < 80 {
		line += strings.Repeat(" ", 80-len(line))
	}
	b := []byte(line)
	b[colChain] = a.Chain
	copy(b[colResSeqLo:colResSeqHi], fmt.Sprintf("%4d", a.ResSeq))
	b[colICode] = a.ICode
	copy(b[colCoordLo:colCoordHi], fmt.Sprintf("%8.3f%8.3f%8.3f", a.Coord.X, a.Coord.Y, a.Coord.Z))
	return strings.TrimRight(string(b), " ")
}
