package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ProjectStatus is the provisioning state reported by the service.
type ProjectStatus string

const (
	StatusCreating ProjectStatus = "creating"
	StatusReady    ProjectStatus = "ready"
	StatusFailed   ProjectStatus = "failed"
)

// MaxProjectNameLen is the rune length cap for names derived from user text.
const MaxProjectNameLen = 50

const nameEllipsis = "..."

// ParseProjectStatus maps a wire status to a ProjectStatus. Unknown values are
// treated as not yet confirmed.
func ParseProjectStatus(s string) ProjectStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusReady), "active":
		return StatusReady
	case string(StatusFailed):
		return StatusFailed
	default:
		return StatusCreating
	}
}

// Project is one provisioned site as reported by the list operation.
type Project struct {
	ID          int64
	Name        string
	Description string
	Status      ProjectStatus
	URL         string
	CreatedAt   *time.Time
}

// Normalize enforces the status/url pairing: a ready project always has a url
// and a creating project never has one.
func (p Project) Normalize() Project {
	switch p.Status {
	case StatusReady:
		if strings.TrimSpace(p.URL) == "" {
			p.Status = StatusCreating
			p.URL = ""
		}
	case StatusCreating:
		p.URL = ""
	}
	return p
}

// ProvisioningRequest is the create call derived from one user intent.
type ProvisioningRequest struct {
	Session     string
	Name        string
	Description string
}

// CreateResult is what the create operation confirms about a new project.
type CreateResult struct {
	ID  int64
	URL string
}

// DeriveProjectName shortens free text to at most MaxProjectNameLen runes,
// ending in an ellipsis when truncated.
func DeriveProjectName(text string) string {
	if utf8.RuneCountInString(text) <= MaxProjectNameLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxProjectNameLen-len(nameEllipsis)]) + nameEllipsis
}
