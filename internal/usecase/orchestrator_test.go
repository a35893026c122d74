package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"site-creator/internal/conversation"
	"site-creator/internal/domain"
	"site-creator/internal/integrations/provisioning"
	"site-creator/internal/registry"
	"site-creator/internal/session"
)

type listResponse struct {
	projects []domain.Project
	err      error
}

type mockProvisioner struct {
	mu sync.Mutex

	createRes domain.CreateResult
	createErr error
	lists     []listResponse

	createCalls  int
	listCalls    int
	lastRequest  domain.ProvisioningRequest
	lastListSess string

	// gate, when set, blocks Create until it is closed.
	gate    chan struct{}
	entered chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *mockProvisioner) Create(_ context.Context, in domain.ProvisioningRequest) (domain.CreateResult, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	m.mu.Lock()
	m.createCalls++
	m.lastRequest = in
	gate, entered := m.gate, m.entered
	res, err := m.createRes, m.createErr
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return res, err
}

func (m *mockProvisioner) List(_ context.Context, sessionToken string) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastListSess = sessionToken
	if len(m.lists) == 0 {
		m.listCalls++
		return nil, errors.New("no list response configured")
	}
	idx := m.listCalls
	if idx >= len(m.lists) {
		idx = len(m.lists) - 1
	}
	m.listCalls++
	return m.lists[idx].projects, m.lists[idx].err
}

func (m *mockProvisioner) calls() (create, list int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls, m.listCalls
}

type mockNotifier struct {
	mu  sync.Mutex
	got []domain.Notification
}

func (m *mockNotifier) Notify(n domain.Notification) {
	m.mu.Lock()
	m.got = append(m.got, n)
	m.mu.Unlock()
}

func (m *mockNotifier) all() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.got...)
}

type harness struct {
	orch     *Orchestrator
	client   *mockProvisioner
	log      *conversation.Log
	registry *registry.Registry
	notifier *mockNotifier
	identity session.Identity
}

func newHarness(t *testing.T, client *mockProvisioner) *harness {
	t.Helper()
	id, err := session.FromToken("sess-coffee")
	require.NoError(t, err)
	h := &harness{
		client:   client,
		log:      conversation.New(),
		registry: registry.New(),
		notifier: &mockNotifier{},
		identity: id,
	}
	h.orch, err = NewOrchestrator(id, client, h.log, h.registry, h.notifier, nil)
	require.NoError(t, err)
	return h
}

func readyProject(id int64, name, url string) domain.Project {
	return domain.Project{ID: id, Name: name, Description: name, Status: domain.StatusReady, URL: url}
}

func expectOutcomeError(t *testing.T, out Outcome, status OutcomeStatus, code ErrorCode, reason string) {
	t.Helper()
	require.Equal(t, status, out.Status)
	require.NotNil(t, out.Err)
	require.Equal(t, code, out.Err.Code)
	require.Equal(t, reason, out.Err.Reason)
}

func TestNewOrchestrator_ValidatesDependencies(t *testing.T) {
	id, err := session.FromToken("s")
	require.NoError(t, err)
	c, l, r, n := &mockProvisioner{}, conversation.New(), registry.New(), &mockNotifier{}

	_, err = NewOrchestrator(session.Identity{}, c, l, r, n, nil)
	require.Error(t, err)
	_, err = NewOrchestrator(id, nil, l, r, n, nil)
	require.Error(t, err)
	_, err = NewOrchestrator(id, c, nil, r, n, nil)
	require.Error(t, err)
	_, err = NewOrchestrator(id, c, l, nil, n, nil)
	require.Error(t, err)
	_, err = NewOrchestrator(id, c, l, r, nil, nil)
	require.Error(t, err)
}

func TestSubmit_HappyPath(t *testing.T) {
	client := &mockProvisioner{
		createRes: domain.CreateResult{ID: 1, URL: "coffee.site"},
		lists: []listResponse{{projects: []domain.Project{
			readyProject(1, "Сайт для кофейни с меню", "coffee.site"),
		}}},
	}
	h := newHarness(t, client)

	out := h.orch.Submit(context.Background(), "Сайт для кофейни с меню")
	require.Equal(t, OutcomeSucceeded, out.Status)
	require.Nil(t, out.Err)
	require.Equal(t, "coffee.site", out.Project.URL)

	turns := h.log.All()
	require.Len(t, turns, 3)
	require.Equal(t, domain.UserTurn("Сайт для кофейни с меню"), turns[0])
	require.Equal(t, domain.RoleAssistant, turns[1].Role)
	require.Equal(t, domain.RoleAssistant, turns[2].Role)
	require.Contains(t, turns[2].Text, "coffee.site")

	projects := h.registry.Current(h.identity.Token())
	require.Len(t, projects, 1)
	require.Equal(t, "coffee.site", projects[0].URL)
	require.Equal(t, domain.StatusReady, projects[0].Status)

	require.Equal(t, "sess-coffee", client.lastRequest.Session)
	require.Equal(t, "Сайт для кофейни с меню", client.lastRequest.Name)
	require.Equal(t, "Сайт для кофейни с меню", client.lastRequest.Description)
	require.Equal(t, "sess-coffee", client.lastListSess)

	notes := h.notifier.all()
	require.Len(t, notes, 1)
	require.Equal(t, domain.VariantDefault, notes[0].Variant)
	require.Equal(t, StateIdle, h.orch.State())
}

func TestSubmit_EmptyInputIsRejected(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		client := &mockProvisioner{}
		h := newHarness(t, client)

		out := h.orch.Submit(context.Background(), text)
		expectOutcomeError(t, out, OutcomeRejected, ErrorValidation, "empty_input")
		require.Zero(t, h.log.Len())
		create, list := client.calls()
		require.Zero(t, create)
		require.Zero(t, list)
		require.Empty(t, h.notifier.all())
		require.Equal(t, StateIdle, h.orch.State())
	}
}

func TestSubmit_DerivesTruncatedName(t *testing.T) {
	client := &mockProvisioner{
		createRes: domain.CreateResult{URL: "long.site"},
		lists:     []listResponse{{projects: nil}},
	}
	h := newHarness(t, client)
	text := strings.Repeat("Лендинг ", 10)

	out := h.orch.Submit(context.Background(), text)
	require.Equal(t, OutcomeSucceeded, out.Status)
	require.Equal(t, text, client.lastRequest.Description)
	require.Equal(t, string([]rune(text)[:47])+"...", client.lastRequest.Name)
	require.Equal(t, text, h.log.All()[0].Text)
}

func TestSubmit_TransportFailure(t *testing.T) {
	prior := []domain.Project{readyProject(9, "old", "old.site")}
	client := &mockProvisioner{createErr: errors.New("dial tcp: connection refused")}
	h := newHarness(t, client)
	h.registry.Replace(h.identity.Token(), prior)

	out := h.orch.Submit(context.Background(), "Магазин игрушек")
	expectOutcomeError(t, out, OutcomeFailed, ErrorTransport, "create_transport_error")

	turns := h.log.All()
	require.Len(t, turns, 3)
	require.Equal(t, domain.RoleAssistant, turns[2].Role)
	require.Equal(t, apologyText, turns[2].Text)
	require.NotContains(t, turns[2].Text, "connection refused")

	notes := h.notifier.all()
	require.Len(t, notes, 1)
	require.Equal(t, domain.VariantDestructive, notes[0].Variant)
	require.Equal(t, transportDetail, notes[0].Description)

	require.Equal(t, StateIdle, h.orch.State())
	require.Equal(t, prior, h.registry.Current(h.identity.Token()))
	_, list := client.calls()
	require.Zero(t, list)
}

func TestSubmit_ServiceErrorForwardsMessage(t *testing.T) {
	client := &mockProvisioner{createErr: fmt.Errorf("provisioning: create failed: %w", &provisioning.HTTPStatusError{
		StatusCode: http.StatusBadRequest,
		Message:    "user_session and project_name required",
	})}
	h := newHarness(t, client)

	out := h.orch.Submit(context.Background(), "Сайт")
	expectOutcomeError(t, out, OutcomeFailed, ErrorService, "create_rejected")

	notes := h.notifier.all()
	require.Len(t, notes, 1)
	require.Equal(t, "user_session and project_name required", notes[0].Description)
	require.Equal(t, apologyText, h.log.All()[2].Text)
}

func TestSubmit_UnstructuredErrorBodyIsNotShown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html><body>502 Bad Gateway nginx</body></html>"))
	}))
	defer srv.Close()

	client, err := provisioning.NewClient(srv.URL+"/create", srv.URL+"/list")
	require.NoError(t, err)
	id, err := session.FromToken("sess-502")
	require.NoError(t, err)
	notifier := &mockNotifier{}
	log := conversation.New()
	orch, err := NewOrchestrator(id, client, log, registry.New(), notifier, nil)
	require.NoError(t, err)

	out := orch.Submit(context.Background(), "Сайт")
	expectOutcomeError(t, out, OutcomeFailed, ErrorService, "create_rejected")
	require.Equal(t, serviceDetail, out.Err.Detail)

	notes := notifier.all()
	require.Len(t, notes, 1)
	require.Equal(t, serviceDetail, notes[0].Description)
	require.NotContains(t, notes[0].Description, "<html>")
	require.NotContains(t, notes[0].Description, srv.URL)
	require.Equal(t, apologyText, log.All()[2].Text)
}

func TestSubmit_MalformedResponseIsServiceError(t *testing.T) {
	client := &mockProvisioner{createErr: fmt.Errorf("%w: decode create response", provisioning.ErrMalformedResponse)}
	h := newHarness(t, client)

	out := h.orch.Submit(context.Background(), "Сайт")
	expectOutcomeError(t, out, OutcomeFailed, ErrorService, "create_malformed_response")
	require.Equal(t, malformedDetail, h.notifier.all()[0].Description)
}

func TestSubmit_ListFailureKeepsRegistry(t *testing.T) {
	prior := []domain.Project{readyProject(1, "first", "first.site")}
	client := &mockProvisioner{
		createRes: domain.CreateResult{ID: 2, URL: "second.site"},
		lists:     []listResponse{{err: errors.New("timeout")}},
	}
	h := newHarness(t, client)
	h.registry.Replace(h.identity.Token(), prior)

	out := h.orch.Submit(context.Background(), "second")
	require.Equal(t, OutcomeSucceeded, out.Status)
	require.NotNil(t, out.RefreshErr)
	require.Equal(t, ErrorTransport, out.RefreshErr.Code)
	require.Equal(t, "list_transport_error", out.RefreshErr.Reason)
	require.Equal(t, prior, h.registry.Current(h.identity.Token()))
	require.Contains(t, h.log.All()[2].Text, "second.site")
}

func TestSubmit_RegistryTracksLatestSuccessfulList(t *testing.T) {
	first := []domain.Project{readyProject(1, "a", "a.site")}
	second := []domain.Project{readyProject(2, "b", "b.site"), readyProject(1, "a", "a.site")}
	client := &mockProvisioner{
		createRes: domain.CreateResult{URL: "x.site"},
		lists: []listResponse{
			{projects: first},
			{projects: second},
			{err: errors.New("boom")},
		},
	}
	h := newHarness(t, client)

	h.orch.Submit(context.Background(), "a")
	require.Equal(t, first, h.orch.Projects())
	h.orch.Submit(context.Background(), "b")
	require.Equal(t, second, h.orch.Projects())
	h.orch.Submit(context.Background(), "c")
	require.Equal(t, second, h.orch.Projects())
}

func TestSubmit_NeverMarksReadyWithoutList(t *testing.T) {
	client := &mockProvisioner{
		createRes: domain.CreateResult{ID: 5, URL: "fresh.site"},
		lists: []listResponse{{projects: []domain.Project{
			{ID: 5, Name: "fresh", Status: domain.StatusCreating},
		}}},
	}
	h := newHarness(t, client)

	out := h.orch.Submit(context.Background(), "fresh")
	require.Equal(t, OutcomeSucceeded, out.Status)
	projects := h.orch.Projects()
	require.Len(t, projects, 1)
	require.Equal(t, domain.StatusCreating, projects[0].Status)
	require.Empty(t, projects[0].URL)
}

func TestSubmit_LogIsAppendOnlyAcrossCalls(t *testing.T) {
	client := &mockProvisioner{
		createRes: domain.CreateResult{URL: "x.site"},
		lists:     []listResponse{{projects: nil}},
	}
	h := newHarness(t, client)

	prefix := []domain.ConversationTurn{}
	for i := 0; i < 5; i++ {
		out := h.orch.Submit(context.Background(), fmt.Sprintf("site %d", i))
		require.Equal(t, OutcomeSucceeded, out.Status)
		all := h.log.All()
		require.GreaterOrEqual(t, len(all), 2*(i+1))
		require.Equal(t, prefix, all[:len(prefix)])
		prefix = all
	}
}

func TestSubmit_RejectsWhileInFlight(t *testing.T) {
	client := &mockProvisioner{
		createRes: domain.CreateResult{URL: "slow.site"},
		lists:     []listResponse{{projects: nil}},
		gate:      make(chan struct{}),
		entered:   make(chan struct{}, 1),
	}
	h := newHarness(t, client)

	done := make(chan Outcome, 1)
	go func() { done <- h.orch.Submit(context.Background(), "first") }()
	<-client.entered
	require.True(t, h.orch.Busy())
	before := h.log.All()

	out := h.orch.Submit(context.Background(), "second")
	expectOutcomeError(t, out, OutcomeRejected, ErrorBusy, "request_in_flight")
	out = h.orch.SubmitFromTemplate(context.Background(), "Блог")
	expectOutcomeError(t, out, OutcomeRejected, ErrorBusy, "request_in_flight")
	require.Error(t, h.orch.Refresh(context.Background()))
	require.Equal(t, before, h.log.All())

	close(client.gate)
	require.Equal(t, OutcomeSucceeded, (<-done).Status)
	create, list := client.calls()
	require.Equal(t, 1, create)
	require.Equal(t, 1, list)
	require.False(t, h.orch.Busy())
}

func TestSubmit_ConcurrentCallersSingleFlight(t *testing.T) {
	gate := make(chan struct{})
	client := &mockProvisioner{
		createRes: domain.CreateResult{URL: "x.site"},
		lists:     []listResponse{{projects: nil}},
		gate:      gate,
	}
	h := newHarness(t, client)

	const callers = 20
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes <- h.orch.Submit(context.Background(), fmt.Sprintf("site %d", i))
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(outcomes)

	succeeded, rejectedCount := 0, 0
	for out := range outcomes {
		switch out.Status {
		case OutcomeSucceeded:
			succeeded++
		case OutcomeRejected:
			rejectedCount++
		}
	}
	create, _ := client.calls()
	require.Equal(t, succeeded, create)
	require.Equal(t, callers, succeeded+rejectedCount)
	require.Equal(t, int32(1), client.maxInFlight.Load())
	require.Equal(t, 3*succeeded, h.log.Len())
}

func TestSubmit_IgnoresCallerCancellation(t *testing.T) {
	client := &mockProvisioner{
		createRes: domain.CreateResult{URL: "x.site"},
		lists:     []listResponse{{projects: []domain.Project{readyProject(1, "x", "x.site")}}},
	}
	h := newHarness(t, client)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := h.orch.Submit(ctx, "x")
	require.Equal(t, OutcomeSucceeded, out.Status)
	require.True(t, h.orch.HasProjects())
}

func TestSubmitFromTemplate_Blog(t *testing.T) {
	client := &mockProvisioner{
		createRes: domain.CreateResult{URL: "blog.site"},
		lists:     []listResponse{{projects: []domain.Project{readyProject(1, "Блог", "blog.site")}}},
	}
	h := newHarness(t, client)
	h.log.Append(domain.UserTurn("earlier chat"))

	out := h.orch.SubmitFromTemplate(context.Background(), "Блог")
	require.Equal(t, OutcomeSucceeded, out.Status)

	tpl, ok := LookupTemplate("Блог")
	require.True(t, ok)
	require.Equal(t, "Блог", client.lastRequest.Name)
	require.Equal(t, tpl.Description, client.lastRequest.Description)

	turns := h.log.All()
	require.Len(t, turns, 4)
	require.Equal(t, domain.RoleAssistant, turns[0].Role)
	require.Contains(t, turns[0].Text, "Блог")
	require.Equal(t, domain.UserTurn(tpl.Description), turns[1])
	require.Contains(t, turns[3].Text, "blog.site")
}

func TestSubmitFromTemplate_Unknown(t *testing.T) {
	client := &mockProvisioner{}
	h := newHarness(t, client)
	h.log.Append(domain.UserTurn("keep me"))

	out := h.orch.SubmitFromTemplate(context.Background(), "Форум")
	expectOutcomeError(t, out, OutcomeRejected, ErrorUnknownTemplate, "unknown_template")
	require.Equal(t, 1, h.log.Len())
	create, _ := client.calls()
	require.Zero(t, create)
}

func TestRefresh(t *testing.T) {
	projects := []domain.Project{readyProject(1, "a", "a.site")}
	client := &mockProvisioner{lists: []listResponse{
		{projects: projects},
		{err: &provisioning.HTTPStatusError{StatusCode: http.StatusInternalServerError, Message: "db down"}},
	}}
	h := newHarness(t, client)
	require.False(t, h.orch.HasProjects())

	require.NoError(t, h.orch.Refresh(context.Background()))
	require.Equal(t, projects, h.orch.Projects())

	err := h.orch.Refresh(context.Background())
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, ErrorService, uerr.Code)
	require.Equal(t, "list_rejected", uerr.Reason)
	require.Equal(t, projects, h.orch.Projects())
	require.Zero(t, h.log.Len())
}

func TestEnd_ClearsSessionState(t *testing.T) {
	client := &mockProvisioner{
		createRes: domain.CreateResult{URL: "x.site"},
		lists:     []listResponse{{projects: []domain.Project{readyProject(1, "x", "x.site")}}},
	}
	h := newHarness(t, client)
	h.orch.Submit(context.Background(), "x")
	require.NotZero(t, h.log.Len())

	h.orch.End()
	require.Zero(t, h.log.Len())
	require.False(t, h.orch.HasProjects())
}

func TestEnd_WhileInFlightRecordsNothing(t *testing.T) {
	client := &mockProvisioner{
		createRes: domain.CreateResult{URL: "late.site"},
		lists:     []listResponse{{projects: []domain.Project{readyProject(1, "late", "late.site")}}},
		gate:      make(chan struct{}),
		entered:   make(chan struct{}, 1),
	}
	h := newHarness(t, client)

	done := make(chan Outcome, 1)
	go func() { done <- h.orch.Submit(context.Background(), "late") }()
	<-client.entered

	h.orch.End()
	close(client.gate)
	out := <-done

	require.Equal(t, OutcomeSucceeded, out.Status)
	require.Zero(t, h.log.Len())
	require.False(t, h.orch.HasProjects())
	require.Empty(t, h.notifier.all())
	_, list := client.calls()
	require.Zero(t, list)
	require.False(t, h.orch.Busy())
}

func TestEnd_RejectsLaterIntents(t *testing.T) {
	client := &mockProvisioner{lists: []listResponse{{projects: nil}}}
	h := newHarness(t, client)
	h.orch.End()

	out := h.orch.Submit(context.Background(), "after end")
	expectOutcomeError(t, out, OutcomeRejected, ErrorSessionEnded, "session_ended")
	out = h.orch.SubmitFromTemplate(context.Background(), "Блог")
	expectOutcomeError(t, out, OutcomeRejected, ErrorSessionEnded, "session_ended")

	var uerr *Error
	require.ErrorAs(t, h.orch.Refresh(context.Background()), &uerr)
	require.Equal(t, ErrorSessionEnded, uerr.Code)

	create, list := client.calls()
	require.Zero(t, create)
	require.Zero(t, list)
	require.Zero(t, h.log.Len())
	require.False(t, h.orch.Busy())
}

func TestTemplates_SixInDisplayOrder(t *testing.T) {
	names := make([]string, 0, 6)
	for _, tpl := range Templates() {
		require.NotEmpty(t, tpl.Description)
		names = append(names, tpl.Name)
	}
	require.Equal(t, []string{"Лендинг", "Интернет-магазин", "Блог", "Портфолио", "Визитка", "Квиз"}, names)

	_, ok := LookupTemplate(" Квиз ")
	require.True(t, ok)
}

func TestErrorFormatting(t *testing.T) {
	var nilErr *Error
	require.Equal(t, "", nilErr.Error())
	require.Nil(t, nilErr.Unwrap())

	e := newError(ErrorTransport, "create_transport_error", errors.New("boom"))
	require.Equal(t, "usecase: TRANSPORT_ERROR (create_transport_error): boom", e.Error())
	require.Equal(t, "usecase: BUSY (request_in_flight)", newError(ErrorBusy, "request_in_flight", nil).Error())
}
