// Package registry keeps the locally held view of provisioned projects,
// partitioned by session token.
package registry

import (
	"sync"

	"site-creator/internal/domain"
	"site-creator/internal/session"
)

// Registry holds, per session, the project list from the latest successful
// list call. Contents are only ever swapped wholesale.
type Registry struct {
	mu       sync.RWMutex
	projects map[session.Token][]domain.Project
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{projects: make(map[session.Token][]domain.Project)}
}

// Replace atomically swaps the held sequence for token. Each project is
// normalized so ready always pairs with a url.
func (r *Registry) Replace(token session.Token, projects []domain.Project) {
	next := make([]domain.Project, len(projects))
	for i, p := range projects {
		next[i] = p.Normalize()
	}
	r.mu.Lock()
	r.projects[token] = next
	r.mu.Unlock()
}

// Current returns a copy of the held sequence in service-reported order.
func (r *Registry) Current(token session.Token) []domain.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	held := r.projects[token]
	out := make([]domain.Project, len(held))
	copy(out, held)
	return out
}

// IsEmpty reports whether token has no projects, including when no list call
// has succeeded yet.
func (r *Registry) IsEmpty(token session.Token) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.projects[token]) == 0
}

// Drop forgets everything held for token.
func (r *Registry) Drop(token session.Token) {
	r.mu.Lock()
	delete(r.projects, token)
	r.mu.Unlock()
}
