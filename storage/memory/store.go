package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"contract-guard/types"
)

type analysisEntry struct {
	artifact *types.AnalysisArtifact
	text     string
}

// Store 进程内存储，未配置 PostgreSQL 时使用
type Store struct {
	mu        sync.RWMutex
	analyses  map[string]analysisEntry
	fixes     map[string][]types.FixRecord
	templates []types.Template
}

func NewStore(templates []types.Template) *Store {
	return &Store{
		analyses:  make(map[string]analysisEntry),
		fixes:     make(map[string][]types.FixRecord),
		templates: append([]types.Template(nil), templates...),
	}
}

func (s *Store) SaveAnalysis(_ context.Context, a *types.AnalysisArtifact, contractText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[a.AnalysisID] = analysisEntry{artifact: a.Clone(), text: contractText}
	return nil
}

func (s *Store) GetAnalysis(_ context.Context, analysisID string) (*types.AnalysisArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.analyses[analysisID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrArtifactNotFound, analysisID)
	}
	return e.artifact.Clone(), nil
}

func (s *Store) GetSubmission(_ context.Context, analysisID string) (*types.ContractSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.analyses[analysisID]
	if !ok || e.text == "" {
		return nil, fmt.Errorf("%w: %s", types.ErrArtifactNotFound, analysisID)
	}
	return &types.ContractSubmission{
		Text:       e.text,
		Industry:   e.artifact.Industry,
		Categories: append([]types.Category(nil), e.artifact.Categories...),
	}, nil
}

func (s *Store) SaveFix(_ context.Context, fix *types.FixRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixes[fix.AnalysisID] = append(s.fixes[fix.AnalysisID], *fix)
	return nil
}

func (s *Store) ListFixes(_ context.Context, analysisID string) ([]types.FixRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.FixRecord(nil), s.fixes[analysisID]...), nil
}

func (s *Store) ListTemplates(_ context.Context, industry types.Industry, contractType string) ([]types.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Template
	for _, t := range s.templates {
		if t.Industry != industry {
			continue
		}
		if contractType != "" && !strings.EqualFold(t.ContractType, contractType) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteAnalysesBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, e := range s.analyses {
		if e.artifact.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
			delete(s.analyses, id)
			delete(s.fixes, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Ping(context.Context) error { return nil }
