package engine

import "path/filepath"

// Layout maps a project to the files of its working directory. The service
// and the worker must agree on these names, so they are derived in one place.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout { return Layout{Root: root} }

func (l Layout) ProjectDir(project string) string {
	return filepath.Join(l.Root, project)
}

// ComplexPath is the merged two-chain input the engine docks.
func (l Layout) ComplexPath(project string) string {
	return filepath.Join(l.ProjectDir(project), "complex_input.pdb")
}

// ScoreFile is the tabular score file the engine appends to per replicate.
func (l Layout) ScoreFile(project string) string {
	return filepath.Join(l.ProjectDir(project), "score_"+project+".fasc")
}

// OutSuffix tags every output model with the project, keeping reruns of
// different projects in shared tooling distinguishable.
func (l Layout) OutSuffix(project string) string {
	return "_" + project
}

// PDBGlob matches the model coordinate files the engine writes, named
// <input stem><suffix>_NNNN.pdb.
func (l Layout) PDBGlob(project string) string {
	return filepath.Join(l.ProjectDir(project), "complex_input_"+project+"_*.pdb")
}

// LogPath is the combined stdout+stderr capture of the engine run.
func (l Layout) LogPath(project string) string {
	return filepath.Join(l.ProjectDir(project), "docking_"+project+".log")
}
