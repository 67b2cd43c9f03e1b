package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	RepositoryType string `json:"repository_type"`
	ReadOnly       bool   `json:"read_only"`
	Watching       bool   `json:"watching"`
	Publishing     bool   `json:"publishing"`
	Created        int64  `json:"created"`
	Updated        int64  `json:"updated"`
	Deleted        int64  `json:"deleted"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repoType := "unknown"
	if s.repo != nil {
		repoType = "repository"
		if comp, ok := s.repo.(introspection.Component); ok {
			repoType = comp.ComponentType()
		}
	}

	return ServiceState{
		RepositoryType: repoType,
		ReadOnly:       s.readOnly,
		Watching:       s.watching,
		Publishing:     s.publisher != nil,
		Created:        s.created.Load(),
		Updated:        s.updated.Load(),
		Deleted:        s.deleted.Load(),
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
var _ Store = (*Service)(nil)
