package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"site-creator/internal/conversation"
	"site-creator/internal/domain"
	"site-creator/internal/integrations/provisioning"
	"site-creator/internal/registry"
	"site-creator/internal/session"
)

type Provisioner interface {
	Create(ctx context.Context, in domain.ProvisioningRequest) (domain.CreateResult, error)
	List(ctx context.Context, sessionToken string) ([]domain.Project, error)
}

type Notifier interface {
	Notify(n domain.Notification)
}

// State is the orchestrator's single-flight state.
type State int32

const (
	StateIdle State = iota
	StateSubmitting
)

func (s State) String() string {
	if s == StateSubmitting {
		return "submitting"
	}
	return "idle"
}

type OutcomeStatus string

const (
	OutcomeRejected  OutcomeStatus = "rejected"
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome reports how one submission ended. Remote failures are reported
// here and never returned as errors.
type Outcome struct {
	Status  OutcomeStatus
	Project domain.CreateResult
	Err     *Error
	// RefreshErr is set when create succeeded but the follow-up list failed.
	RefreshErr *Error
}

// Orchestrator turns user intents into provisioning requests for one session.
// At most one request is in flight at a time; intents arriving meanwhile are
// rejected without touching the conversation.
type Orchestrator struct {
	identity session.Identity
	client   Provisioner
	log      *conversation.Log
	registry *registry.Registry
	notifier Notifier
	logger   *slog.Logger

	state atomic.Int32

	// endMu orders End against the writes a request makes after its
	// remote call returns.
	endMu sync.Mutex
	ended bool
}

func NewOrchestrator(id session.Identity, client Provisioner, log *conversation.Log, reg *registry.Registry, n Notifier, logger *slog.Logger) (*Orchestrator, error) {
	if !id.Valid() {
		return nil, errors.New("usecase: session identity must be issued")
	}
	if client == nil {
		return nil, errors.New("usecase: provisioning client must not be nil")
	}
	if log == nil {
		return nil, errors.New("usecase: conversation log must not be nil")
	}
	if reg == nil {
		return nil, errors.New("usecase: project registry must not be nil")
	}
	if n == nil {
		return nil, errors.New("usecase: notifier must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		identity: id,
		client:   client,
		log:      log,
		registry: reg,
		notifier: n,
		logger:   logger.With("session", id.Token().String()),
	}, nil
}

// Submit provisions a site described by free text.
func (o *Orchestrator) Submit(ctx context.Context, text string) Outcome {
	if strings.TrimSpace(text) == "" {
		return rejected(newError(ErrorValidation, "empty_input", nil))
	}
	if !o.acquire() {
		return rejected(newError(ErrorBusy, "request_in_flight", nil))
	}
	defer o.release()

	return o.provision(ctx, nil, text, domain.ProvisioningRequest{
		Session:     o.identity.Token().String(),
		Name:        domain.DeriveProjectName(text),
		Description: text,
	})
}

// SubmitFromTemplate resets the conversation and provisions a site from one
// of the fixed templates, named after the template.
func (o *Orchestrator) SubmitFromTemplate(ctx context.Context, name string) Outcome {
	tpl, ok := LookupTemplate(name)
	if !ok {
		return rejected(newError(ErrorUnknownTemplate, "unknown_template", nil))
	}
	if !o.acquire() {
		return rejected(newError(ErrorBusy, "request_in_flight", nil))
	}
	defer o.release()

	reset := func() {
		o.log.Clear()
		o.log.Append(domain.AssistantTurn(templateChosenText(tpl.Name)))
	}
	return o.provision(ctx, reset, tpl.Description, domain.ProvisioningRequest{
		Session:     o.identity.Token().String(),
		Name:        tpl.Name,
		Description: tpl.Description,
	})
}

// Refresh replaces the registry from a list call. A failed call leaves the
// registry as it was.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	if !o.acquire() {
		return newError(ErrorBusy, "request_in_flight", nil)
	}
	defer o.release()
	if o.isEnded() {
		return newError(ErrorSessionEnded, "session_ended", nil)
	}

	if err := o.reconcile(ctx); err != nil {
		return err
	}
	return nil
}

// provision runs with the single-flight slot held. The in-flight call is not
// cancelled by the caller's context. prepare, when set, runs before the user
// turn is appended.
func (o *Orchestrator) provision(ctx context.Context, prepare func(), userText string, req domain.ProvisioningRequest) Outcome {
	ctx = context.WithoutCancel(ctx)

	started := o.whileActive(func() {
		if prepare != nil {
			prepare()
		}
		o.log.Append(domain.UserTurn(userText))
		o.log.Append(domain.AssistantTurn(workingText))
	})
	if !started {
		return rejected(newError(ErrorSessionEnded, "session_ended", nil))
	}
	o.logger.Info("create requested", "project_name", req.Name)

	res, err := o.client.Create(ctx, req)
	if err != nil {
		uerr := classifyRemoteError("create", err)
		o.logger.Warn("create failed", "code", uerr.Code, "reason", uerr.Reason, "err", err)
		o.whileActive(func() {
			o.log.Append(domain.AssistantTurn(apologyText))
			o.notifier.Notify(failedNotification(uerr))
		})
		return Outcome{Status: OutcomeFailed, Err: uerr}
	}

	o.logger.Info("create succeeded", "project_id", res.ID, "url", res.URL)
	recorded := o.whileActive(func() {
		o.log.Append(domain.AssistantTurn(createdText(req.Name, res.URL)))
		o.notifier.Notify(createdNotification(req.Name))
	})
	if !recorded {
		o.logger.Info("session ended during create, result not recorded", "project_id", res.ID)
		return Outcome{Status: OutcomeSucceeded, Project: res}
	}

	out := Outcome{Status: OutcomeSucceeded, Project: res}
	if rerr := o.reconcile(ctx); rerr != nil {
		out.RefreshErr = rerr
	}
	return out
}

func (o *Orchestrator) reconcile(ctx context.Context) *Error {
	projects, err := o.client.List(ctx, o.identity.Token().String())
	if err != nil {
		uerr := classifyRemoteError("list", err)
		o.logger.Warn("list failed, keeping previous projects", "code", uerr.Code, "reason", uerr.Reason, "err", err)
		return uerr
	}
	if o.whileActive(func() { o.registry.Replace(o.identity.Token(), projects) }) {
		o.logger.Debug("projects reconciled", "count", len(projects))
	}
	return nil
}

// End clears the conversation and forgets the session's projects. A request
// still in flight finishes its remote call but records nothing afterwards,
// and later intents are rejected.
func (o *Orchestrator) End() {
	o.endMu.Lock()
	defer o.endMu.Unlock()
	o.ended = true
	o.log.Clear()
	o.registry.Drop(o.identity.Token())
	o.logger.Info("session ended")
}

// whileActive runs fn unless the session has ended and reports whether it ran.
func (o *Orchestrator) whileActive(fn func()) bool {
	o.endMu.Lock()
	defer o.endMu.Unlock()
	if o.ended {
		return false
	}
	fn()
	return true
}

func (o *Orchestrator) isEnded() bool {
	o.endMu.Lock()
	defer o.endMu.Unlock()
	return o.ended
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Busy reports whether a request is in flight. Input boundaries use it to
// ignore intents early; Submit enforces the same rule on its own.
func (o *Orchestrator) Busy() bool {
	return o.State() == StateSubmitting
}

func (o *Orchestrator) Identity() session.Identity {
	return o.identity
}

func (o *Orchestrator) Conversation() []domain.ConversationTurn {
	return o.log.All()
}

func (o *Orchestrator) Projects() []domain.Project {
	return o.registry.Current(o.identity.Token())
}

func (o *Orchestrator) HasProjects() bool {
	return !o.registry.IsEmpty(o.identity.Token())
}

func (o *Orchestrator) acquire() bool {
	return o.state.CompareAndSwap(int32(StateIdle), int32(StateSubmitting))
}

func (o *Orchestrator) release() {
	o.state.Store(int32(StateIdle))
}

func rejected(err *Error) Outcome {
	return Outcome{Status: OutcomeRejected, Err: err}
}

// classifyRemoteError sorts a client error into the service or transport
// bucket and picks the text shown to the user.
func classifyRemoteError(op string, err error) *Error {
	var statusErr *provisioning.HTTPStatusError
	if errors.As(err, &statusErr) {
		e := newError(ErrorService, op+"_rejected", err)
		e.Detail = statusErr.Message
		if e.Detail == "" {
			// Unstructured bodies (proxy error pages) are not shown to users.
			e.Detail = serviceDetail
		}
		return e
	}
	if errors.Is(err, provisioning.ErrMalformedResponse) {
		e := newError(ErrorService, op+"_malformed_response", err)
		e.Detail = malformedDetail
		return e
	}
	e := newError(ErrorTransport, op+"_transport_error", err)
	e.Detail = transportDetail
	return e
}
