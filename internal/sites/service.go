// Package sites is the provisioning service behind the create and list
// endpoints.
package sites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"site-creator/internal/domain"
	"site-creator/internal/integrations/paramstore"
)

const (
	DefaultSiteDomain = "poehali.dev"
	createdMessage    = "Сайт успешно создан!"
	sessionPrefixLen  = 8
)

type ProjectStore interface {
	InsertProject(ctx context.Context, sessionToken string, p domain.Project) (domain.Project, error)
	ListProjects(ctx context.Context, sessionToken string) ([]domain.Project, error)
}

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type CreateInput struct {
	Session     string
	ProjectName string
	Description string
}

type CreateOutput struct {
	ProjectID int64
	Status    domain.ProjectStatus
	Message   string
	URL       string
}

type Service struct {
	store         ProjectStore
	params        ParamGetter
	paramPrefix   string
	defaultDomain string
	logger        *slog.Logger

	cacheMu     sync.RWMutex
	cacheLoaded bool
	siteDomain  string
}

type Option func(*Service)

// WithParamStore makes the site domain come from <prefix>/config/site_domain.
func WithParamStore(p ParamGetter, prefix string) Option {
	return func(s *Service) {
		s.params = p
		s.paramPrefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	}
}

func WithSiteDomain(d string) Option {
	return func(s *Service) {
		if d = strings.TrimSpace(d); d != "" {
			s.defaultDomain = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(store ProjectStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("sites: project store must not be nil")
	}
	s := &Service{
		store:         store,
		defaultDomain: DefaultSiteDomain,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.params != nil && s.paramPrefix == "" {
		return nil, errors.New("sites: parameter prefix must not be empty")
	}
	return s, nil
}

// Create stores a new project for the session. Sites are published
// immediately, so the project is stored as ready with its url.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateOutput, error) {
	sessionToken := strings.TrimSpace(in.Session)
	name := strings.TrimSpace(in.ProjectName)
	if sessionToken == "" || name == "" {
		return CreateOutput{}, newError(ErrorInvalidInput, "missing_fields", "user_session and project_name required", nil)
	}

	siteDomain, err := s.ensureConfig(ctx)
	if err != nil {
		return CreateOutput{}, newError(ErrorInternal, "ssm_load_error", err.Error(), err)
	}

	url := SiteURL(sessionToken, siteDomain)
	p, err := s.store.InsertProject(ctx, sessionToken, domain.Project{
		Name:        name,
		Description: in.Description,
		Status:      domain.StatusReady,
		URL:         url,
	})
	if err != nil {
		return CreateOutput{}, newError(ErrorInternal, "store_write_error", err.Error(), err)
	}
	s.logger.Info("project created", "project_id", p.ID, "url", url)

	return CreateOutput{
		ProjectID: p.ID,
		Status:    p.Status,
		Message:   createdMessage,
		URL:       url,
	}, nil
}

// List returns the session's projects, newest first.
func (s *Service) List(ctx context.Context, sessionToken string) ([]domain.Project, error) {
	sessionToken = strings.TrimSpace(sessionToken)
	if sessionToken == "" {
		return nil, newError(ErrorInvalidInput, "missing_session", "user_session required", nil)
	}
	projects, err := s.store.ListProjects(ctx, sessionToken)
	if err != nil {
		return nil, newError(ErrorInternal, "store_read_error", err.Error(), err)
	}
	return projects, nil
}

// SiteURL derives the public address from the first characters of the
// session token.
func SiteURL(sessionToken, siteDomain string) string {
	runes := []rune(sessionToken)
	if len(runes) > sessionPrefixLen {
		runes = runes[:sessionPrefixLen]
	}
	return fmt.Sprintf("https://project-%s.%s", string(runes), siteDomain)
}

func (s *Service) ensureConfig(ctx context.Context) (string, error) {
	if s.params == nil {
		return s.defaultDomain, nil
	}

	s.cacheMu.RLock()
	if s.cacheLoaded {
		d := s.siteDomain
		s.cacheMu.RUnlock()
		return d, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return s.siteDomain, nil
	}

	d, err := s.params.GetParameter(ctx, paramstore.Key(s.paramPrefix, "config", "site_domain"))
	switch {
	case errors.Is(err, paramstore.ErrNotFound):
		s.logger.Warn("site domain parameter not set, using default", "domain", s.defaultDomain)
		d = ""
	case err != nil:
		return "", fmt.Errorf("sites: load site domain: %w", err)
	}
	d = strings.TrimSpace(d)
	if d == "" {
		d = s.defaultDomain
	}
	s.siteDomain = d
	s.cacheLoaded = true
	return d, nil
}
