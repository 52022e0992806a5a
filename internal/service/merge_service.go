package service

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/proteindock/api/internal/config"
	"github.com/proteindock/api/internal/engine"
	"github.com/proteindock/api/internal/merge"
	"github.com/proteindock/api/internal/model"
)

// ErrInputNotFound means a named structure file is absent from the project
// working directory.
var ErrInputNotFound = errors.New("input structure not found")

// MergeService prepares the engine input complex from two structures already
// present in the project working directory. Synchronous: all failure modes
// are pre-flight and reported on the request.
type MergeService struct {
	cfg    *config.Config
	layout engine.Layout
}

func NewMergeService(cfg *config.Config) *MergeService {
	return &MergeService{cfg: cfg, layout: engine.NewLayout(cfg.WorkDir)}
}

// Merge combines the receptor and binder into complex_input.pdb. File names
// are reduced to their base so a request can never escape the project
// directory.
func (s *MergeService) Merge(req *model.MergeRequest) (*model.MergeResponse, error) {
	dir := s.layout.ProjectDir(req.Project)
	receptorPath := filepath.Join(dir, filepath.Base(req.Receptor))
	binderPath := filepath.Join(dir, filepath.Base(req.Binder))

	for _, p := range []string{receptorPath, binderPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, filepath.Base(p))
		}
	}

	gap := s.cfg.Merge.Gap
	if req.Gap != nil {
		gap = *req.Gap
	}

	merger := merge.New(gap, s.cfg.Merge.MaxRetries)
	outPath := s.layout.ComplexPath(req.Project)
	if err := merger.MergeFiles(receptorPath, binderPath, outPath); err != nil {
		return nil, err
	}

	log.Printf("Merged complex written for project %s (gap=%.2f)", req.Project, gap)

	return &model.MergeResponse{
		Project:     req.Project,
		ComplexPath: outPath,
		Gap:         gap,
	}, nil
}
