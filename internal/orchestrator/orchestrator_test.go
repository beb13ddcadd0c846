package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ShayCichocki/taskweave/internal/decompose"
	"github.com/ShayCichocki/taskweave/internal/dispatch"
	"github.com/ShayCichocki/taskweave/internal/graph"
	"github.com/ShayCichocki/taskweave/internal/metrics"
	"github.com/ShayCichocki/taskweave/internal/reasoning/reasoningtest"
	"github.com/ShayCichocki/taskweave/internal/synthesis"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

func researchReply(topic string) reasoningtest.Reply {
	return reasoningtest.Reply{
		Content: fmt.Sprintf(`{"findings": ["%s trend"], "sources": ["survey"], "confidence": 0.9, "confidence_reasoning": "ok"}`, topic),
		Usage:   models.Usage{InputTokens: 100, OutputTokens: 50, Cost: 0.1},
	}
}

var analysisReply = reasoningtest.Reply{
	Content: `{"patterns": [{"name": "growth"}], "insights": ["up"], "recommendations": [{"action": "invest"}], "confidence": 0.7, "confidence_reasoning": "partial data"}`,
	Usage:   models.Usage{InputTokens: 300, OutputTokens: 80, Cost: 0.2},
}

var synthesisReply = reasoningtest.Reply{
	Content: "Markets are growing.",
	Usage:   models.Usage{InputTokens: 400, OutputTokens: 60, Cost: 0.05},
}

// scenarioA is three independent research subtasks and one analysis that
// depends on all three.
func scenarioA() []models.Subtask {
	return []models.Subtask{
		{ID: "r1", Objective: "Research topic one", Capability: models.CapabilityResearch},
		{ID: "r2", Objective: "Research topic two", Capability: models.CapabilityResearch},
		{ID: "r3", Objective: "Research topic three", Capability: models.CapabilityResearch},
		{ID: "a1", Objective: "Analyze all topics", Capability: models.CapabilityAnalysis, DependsOn: []string{"r1", "r2", "r3"}},
	}
}

func scriptedStub() *reasoningtest.Stub {
	return reasoningtest.New().
		On("Synthesize the results", synthesisReply).
		On("Analyze all topics", analysisReply).
		On("Research topic one", researchReply("one")).
		On("Research topic two", researchReply("two")).
		On("Research topic three", researchReply("three"))
}

func newTestOrchestrator(stub *reasoningtest.Stub, subtasks []models.Subtask, cfg Config, opts ...Option) *Orchestrator {
	disp := dispatch.New(stub, dispatch.WithRetryPolicy(dispatch.RetryPolicy{MaxAttempts: 2, RetryTransport: true}))
	return New(cfg, decompose.NewPlanDecomposer(subtasks), disp, synthesis.New(stub), opts...)
}

func dependencyOutputs(t *testing.T, stub *reasoningtest.Stub, taskID string) []models.DependencyOutput {
	t.Helper()
	for _, req := range stub.Requests() {
		if req.TaskID != taskID {
			continue
		}
		deps, ok := req.Data[models.DependencyResultsKey].([]models.DependencyOutput)
		if !ok {
			t.Fatalf("%s data has no dependency results: %v", taskID, req.Data)
		}
		return deps
	}
	t.Fatalf("no request for %s", taskID)
	return nil
}

func TestSubmit_ScenarioA(t *testing.T) {
	stub := scriptedStub()
	collector := metrics.New()
	o := newTestOrchestrator(stub, scenarioA(), DefaultConfig(), WithMetrics(collector))

	out, err := o.Submit(context.Background(), "Compare topics", map[string]any{"market": "EU"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if out.Status != models.RunStatusSuccess {
		t.Errorf("Status = %s", out.Status)
	}
	if out.Plan.Strategy != models.StrategyParallel {
		t.Errorf("Strategy = %s", out.Plan.Strategy)
	}
	wantLevels := [][]string{{"r1", "r2", "r3"}, {"a1"}}
	if !reflect.DeepEqual(out.Plan.Levels, wantLevels) {
		t.Errorf("Levels = %v, want %v", out.Plan.Levels, wantLevels)
	}

	if got := out.Cost.Tasks.Cost; got < 0.4999 || got > 0.5001 {
		t.Errorf("task cost = %v, want sum of four subtasks 0.5", got)
	}
	if got := out.Cost.ByPhase[PhaseSynthesis].Cost; got != 0.05 {
		t.Errorf("synthesis overhead = %v", got)
	}
	if out.Confidence.Overall != 0.7 {
		t.Errorf("Overall confidence = %v, want minimum 0.7", out.Confidence.Overall)
	}
	if out.Synthesis.Text != "Markets are growing." || out.Synthesis.Degraded {
		t.Errorf("Synthesis = %+v", out.Synthesis)
	}

	deps := dependencyOutputs(t, stub, "a1")
	if len(deps) != 3 {
		t.Fatalf("analysis got %d dependency results, want 3", len(deps))
	}
	for i, d := range deps {
		if d.Missing || d.Result == nil || d.TaskID != fmt.Sprintf("r%d", i+1) {
			t.Errorf("dependency %d = %+v", i, d)
		}
	}

	for _, req := range stub.Requests() {
		if req.TaskID == "r1" && req.Data["market"] != "EU" {
			t.Errorf("request data not passed to subtask: %v", req.Data)
		}
	}

	if n := len(out.Summary.ByCapability[models.CapabilityResearch]); n != 3 {
		t.Errorf("summary research rows = %d", n)
	}
	if got, err := testutil.GatherAndCount(collector.Registry(), "taskweave_tasks_total"); err != nil || got != 2 {
		t.Errorf("tasks_total series = %d, %v", got, err)
	}
}

func TestSubmit_ScenarioB_ContinueWithMissingMarker(t *testing.T) {
	stub := reasoningtest.New().
		On("Synthesize the results", synthesisReply).
		On("Analyze all topics", analysisReply).
		On("Research topic one", researchReply("one")).
		On("Research topic two", reasoningtest.Reply{Err: errors.New("connection refused")}).
		On("Research topic three", researchReply("three"))
	o := newTestOrchestrator(stub, scenarioA(), DefaultConfig())

	out, err := o.Submit(context.Background(), "Compare topics", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	r2, _ := out.Result("r2")
	if r2.Status != models.TaskStatusFailed || r2.ErrorKind != models.ErrorKindReasoningService {
		t.Errorf("r2 = %s / %s", r2.Status, r2.ErrorKind)
	}
	if r2.Attempts != 2 {
		t.Errorf("r2 attempts = %d, want retries exhausted", r2.Attempts)
	}

	a1, _ := out.Result("a1")
	if a1.Status != models.TaskStatusComplete {
		t.Errorf("analysis should still run, status = %s", a1.Status)
	}

	deps := dependencyOutputs(t, stub, "a1")
	var ok, missing int
	for _, d := range deps {
		if d.Missing {
			missing++
			if d.TaskID != "r2" || d.Kind != models.ErrorKindReasoningService || d.Result != nil {
				t.Errorf("missing marker = %+v", d)
			}
		} else {
			ok++
		}
	}
	if ok != 2 || missing != 1 {
		t.Errorf("dependency results: %d ok, %d missing; want 2 and 1", ok, missing)
	}

	if out.Status != models.RunStatusPartialSuccess {
		t.Errorf("Status = %s", out.Status)
	}
}

func TestSubmit_ScenarioC_CycleBeforeDispatch(t *testing.T) {
	stub := scriptedStub()
	subtasks := []models.Subtask{
		{ID: "A", Objective: "Research topic one", Capability: models.CapabilityResearch, DependsOn: []string{"B"}},
		{ID: "B", Objective: "Research topic two", Capability: models.CapabilityResearch, DependsOn: []string{"A"}},
	}
	o := newTestOrchestrator(stub, subtasks, DefaultConfig())

	h := o.Start(context.Background(), "cycle", nil)
	out, err := h.Wait()
	if out != nil {
		t.Error("no outcome expected")
	}
	var cycle *graph.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("err = %v, want *graph.CycleError", err)
	}
	if !reflect.DeepEqual(cycle.Residual, []string{"A", "B"}) {
		t.Errorf("Residual = %v", cycle.Residual)
	}
	if n := len(stub.Requests()); n != 0 {
		t.Errorf("%d reasoning calls made, want none", n)
	}

	for e := range h.Events() {
		if e.Type == EventTaskStarted {
			t.Errorf("no task may start: %+v", e)
		}
	}
}

func TestSubmit_ScenarioD_AbortSkipsLaterLevels(t *testing.T) {
	stub := reasoningtest.New().
		On("Synthesize the results", synthesisReply).
		On("Research topic one", reasoningtest.Reply{Content: `{"findings": "oops"}`}).
		On("Research topic two", researchReply("two")).
		On("Research topic three", researchReply("three"))
	subtasks := append(scenarioA(), models.Subtask{
		ID: "v1", Objective: "Validate the analysis", Capability: models.CapabilityValidation, DependsOn: []string{"a1"},
	})
	cfg := DefaultConfig()
	cfg.FailurePolicy = FailureAbort
	o := newTestOrchestrator(stub, subtasks, cfg)

	out, err := o.Submit(context.Background(), "Compare topics", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	r1, _ := out.Result("r1")
	if r1.ErrorKind != models.ErrorKindSchemaValidation {
		t.Errorf("r1 kind = %s", r1.ErrorKind)
	}
	r2, _ := out.Result("r2")
	if r2.Status != models.TaskStatusComplete {
		t.Errorf("siblings in the failing level still finish, r2 = %s", r2.Status)
	}
	for _, id := range []string{"a1", "v1"} {
		res, _ := out.Result(id)
		if res.Status != models.TaskStatusSkipped || res.SkipReason != models.SkipReasonUpstreamFailure {
			t.Errorf("%s = %s (%q), want skipped with upstream failure", id, res.Status, res.SkipReason)
		}
	}
	if stub.Calls("Analyze all topics")+stub.Calls("Validate the analysis") != 0 {
		t.Error("skipped subtasks must not be dispatched")
	}
	if out.Status != models.RunStatusAborted || out.HaltReason == "" {
		t.Errorf("Status = %s, HaltReason = %q", out.Status, out.HaltReason)
	}
	if len(out.Results) != 5 {
		t.Errorf("every subtask needs a result, got %d", len(out.Results))
	}
}

func TestSubmit_DecompositionErrors(t *testing.T) {
	stub := scriptedStub()

	_, err := newTestOrchestrator(stub, nil, DefaultConfig()).Submit(context.Background(), "x", nil)
	if !errors.Is(err, decompose.ErrDecomposition) || !errors.Is(err, decompose.ErrEmptyDecomposition) {
		t.Errorf("empty decomposition err = %v", err)
	}

	dangling := []models.Subtask{{ID: "a", Objective: "Research topic one", DependsOn: []string{"ghost"}}}
	_, err = newTestOrchestrator(stub, dangling, DefaultConfig()).Submit(context.Background(), "x", nil)
	var missing *graph.MissingDependencyError
	if !errors.As(err, &missing) || missing.DependencyID != "ghost" {
		t.Errorf("dangling err = %v", err)
	}

	failing := decomposerFunc(func(context.Context, string, map[string]any) (*decompose.Decomposition, error) {
		return nil, errors.New("service down")
	})
	o := New(DefaultConfig(), failing, dispatch.New(stub), synthesis.New(stub))
	if _, err := o.Submit(context.Background(), "x", nil); !errors.Is(err, decompose.ErrDecomposition) {
		t.Errorf("service failure should surface as a decomposition error, got %v", err)
	}

	if n := len(stub.Requests()); n != 0 {
		t.Errorf("%d reasoning calls made, want none", n)
	}
}

func TestSubmit_AllFailedSkipsSynthesisCall(t *testing.T) {
	stub := reasoningtest.New().On("Research", reasoningtest.Reply{Err: errors.New("down")})
	subtasks := []models.Subtask{{ID: "r1", Objective: "Research topic one", Capability: models.CapabilityResearch}}
	o := newTestOrchestrator(stub, subtasks, DefaultConfig())

	out, err := o.Submit(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Status != models.RunStatusFailed {
		t.Errorf("Status = %s", out.Status)
	}
	if out.Synthesis.Text != synthesis.NoResultsText {
		t.Errorf("Synthesis = %q", out.Synthesis.Text)
	}
	if stub.Calls("Synthesize the results") != 0 {
		t.Error("synthesis must not be called without results")
	}
}

func TestSubmit_DegradedSynthesisKeepsResults(t *testing.T) {
	stub := reasoningtest.New().
		On("Synthesize the results", reasoningtest.Reply{Err: errors.New("overloaded")}).
		On("Research topic one", researchReply("one"))
	subtasks := []models.Subtask{{ID: "r1", Objective: "Research topic one", Capability: models.CapabilityResearch}}

	out, err := newTestOrchestrator(stub, subtasks, DefaultConfig()).Submit(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Synthesis.Degraded || out.Status != models.RunStatusSuccess {
		t.Errorf("Synthesis = %+v, Status = %s", out.Synthesis, out.Status)
	}
	if len(out.Results) != 1 || out.Cost.Tasks.Cost != 0.1 {
		t.Errorf("results and rollups must survive: %+v", out.Cost)
	}
}

func TestSubmit_DoesNotMutateRequestData(t *testing.T) {
	stub := scriptedStub()
	data := map[string]any{"market": "EU", "nested": map[string]any{"k": []any{"v"}}}
	want := map[string]any{"market": "EU", "nested": map[string]any{"k": []any{"v"}}}

	if _, err := newTestOrchestrator(stub, scenarioA(), DefaultConfig()).Submit(context.Background(), "x", data); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("request data mutated: %v", data)
	}
}

func TestSubmit_DeterministicAggregation(t *testing.T) {
	var prev *models.RunOutcome
	for i := 0; i < 5; i++ {
		stub := reasoningtest.New().
			On("Synthesize the results", synthesisReply).
			On("Analyze all topics", analysisReply)
		for n, topic := range []string{"one", "two", "three"} {
			reply := researchReply(topic)
			reply.Delay = time.Duration((n+i)%3) * 5 * time.Millisecond
			stub.On("Research topic "+topic, reply)
		}

		out, err := newTestOrchestrator(stub, scenarioA(), DefaultConfig()).Submit(context.Background(), "x", nil)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if prev != nil {
			if !reflect.DeepEqual(ids(out.Results), ids(prev.Results)) {
				t.Errorf("result order differs: %v vs %v", ids(out.Results), ids(prev.Results))
			}
			if out.Confidence != prev.Confidence || out.Cost.Tasks != prev.Cost.Tasks {
				t.Errorf("rollups differ: %+v vs %+v", out.Confidence, prev.Confidence)
			}
		}
		prev = out
	}
}

func ids(results []models.TaskResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.TaskID
	}
	return out
}

// fakeDispatcher records timing and concurrency of dispatches.
type fakeDispatcher struct {
	delay time.Duration
	cost  float64

	inflight atomic.Int64
	peak     atomic.Int64

	mu     sync.Mutex
	starts map[string]time.Time
	ends   map[string]time.Time
}

func newFakeDispatcher(delay time.Duration, cost float64) *fakeDispatcher {
	return &fakeDispatcher{delay: delay, cost: cost, starts: map[string]time.Time{}, ends: map[string]time.Time{}}
}

func (f *fakeDispatcher) Dispatch(_ context.Context, t models.Subtask) models.TaskResult {
	n := f.inflight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.starts[t.ID] = time.Now()
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.ends[t.ID] = time.Now()
	f.mu.Unlock()
	f.inflight.Add(-1)

	return models.TaskResult{
		TaskID:     t.ID,
		Capability: t.Capability,
		Status:     models.TaskStatusComplete,
		Payload:    &models.GenericPayload{Output: []byte(`"ok"`), Assessment: models.Assessment{Confidence: 1}},
		Confidence: 1,
		Usage:      models.Usage{Cost: f.cost},
	}
}

func independent(n int, prefix string, deps ...string) []models.Subtask {
	out := make([]models.Subtask, n)
	for i := range out {
		out[i] = models.Subtask{ID: fmt.Sprintf("%s%d", prefix, i), Objective: "do", DependsOn: deps}
	}
	return out
}

func TestSubmit_ConcurrencyBound(t *testing.T) {
	fake := newFakeDispatcher(10*time.Millisecond, 0)
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 3
	stub := reasoningtest.New().Default(synthesisReply)
	o := New(cfg, decompose.NewPlanDecomposer(independent(10, "t")), fake, synthesis.New(stub))

	out, err := o.Submit(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Status != models.RunStatusSuccess {
		t.Errorf("Status = %s", out.Status)
	}
	if p := fake.peak.Load(); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
}

func TestSubmit_LevelBarrier(t *testing.T) {
	fake := newFakeDispatcher(5*time.Millisecond, 0)
	subtasks := append(independent(4, "a"), independent(2, "b", "a0")...)
	stub := reasoningtest.New().Default(synthesisReply)
	o := New(DefaultConfig(), decompose.NewPlanDecomposer(subtasks), fake, synthesis.New(stub))

	if _, err := o.Submit(context.Background(), "x", nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for _, b := range []string{"b0", "b1"} {
		for i := 0; i < 4; i++ {
			a := fmt.Sprintf("a%d", i)
			if fake.starts[b].Before(fake.ends[a]) {
				t.Errorf("%s started before %s finished", b, a)
			}
		}
	}
}

func TestSubmit_RunTimeoutLetsInFlightFinish(t *testing.T) {
	fake := newFakeDispatcher(50*time.Millisecond, 0)
	subtasks := append(independent(2, "a"), independent(1, "b", "a0")...)
	cfg := DefaultConfig()
	cfg.RunTimeout = 20 * time.Millisecond
	stub := reasoningtest.New().Default(synthesisReply)
	o := New(cfg, decompose.NewPlanDecomposer(subtasks), fake, synthesis.New(stub))

	out, err := o.Submit(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for _, id := range []string{"a0", "a1"} {
		if r, _ := out.Result(id); r.Status != models.TaskStatusComplete {
			t.Errorf("in-flight %s = %s, want complete", id, r.Status)
		}
	}
	if r, _ := out.Result("b0"); r.SkipReason != models.SkipReasonRunTimeout {
		t.Errorf("b0 = %s (%q)", r.Status, r.SkipReason)
	}
	if out.Status != models.RunStatusAborted {
		t.Errorf("Status = %s", out.Status)
	}
}

func TestStart_HaltLetsInFlightFinish(t *testing.T) {
	stub := reasoningtest.New().
		On("Synthesize the results", synthesisReply).
		On("Analyze all topics", analysisReply)
	for _, topic := range []string{"one", "two", "three"} {
		reply := researchReply(topic)
		reply.Delay = 100 * time.Millisecond
		stub.On("Research topic "+topic, reply)
	}
	o := newTestOrchestrator(stub, scenarioA(), DefaultConfig())

	h := o.Start(context.Background(), "markets", nil)
	go func() {
		for range h.Events() {
		}
	}()
	time.Sleep(20 * time.Millisecond)
	h.Halt()
	h.Halt()

	out, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for _, id := range []string{"r1", "r2", "r3"} {
		if r, _ := out.Result(id); r.Status != models.TaskStatusComplete {
			t.Errorf("in-flight %s = %s (%s), want complete", id, r.Status, r.Error)
		}
	}
	if r, _ := out.Result("a1"); r.Status != models.TaskStatusSkipped || r.SkipReason != models.SkipReasonHalted {
		t.Errorf("a1 = %s (%q), want skipped as halted", r.Status, r.SkipReason)
	}
	for _, req := range stub.Requests() {
		if req.TaskID == "a1" {
			t.Error("a1 must not be dispatched after halt")
		}
	}
	if out.Status != models.RunStatusAborted {
		t.Errorf("Status = %s, want aborted", out.Status)
	}
	if out.Synthesis.Text == "" {
		t.Error("synthesis must still run over the finished subtasks")
	}
}

func TestStart_EventsArePerRun(t *testing.T) {
	fake := newFakeDispatcher(5*time.Millisecond, 0)
	stub := reasoningtest.New().Default(synthesisReply)
	o := New(DefaultConfig(), decompose.NewPlanDecomposer(independent(3, "t")), fake, synthesis.New(stub))

	handles := []*Handle{
		o.Start(context.Background(), "first", nil),
		o.Start(context.Background(), "second", nil),
	}
	if handles[0].ID() == handles[1].ID() {
		t.Fatal("runs share an id")
	}

	var wg sync.WaitGroup
	counts := make([]int, len(handles))
	for i, h := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range h.Events() {
				if e.RunID != h.ID() {
					t.Errorf("run %s received event of run %s", h.ID(), e.RunID)
				}
				if e.Type == EventTaskStarted {
					counts[i]++
				}
			}
		}()
	}
	for _, h := range handles {
		out, err := h.Wait()
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if out.RunID != h.ID() {
			t.Errorf("outcome run id = %q, want %q", out.RunID, h.ID())
		}
	}
	wg.Wait()
	for i, n := range counts {
		if n != 3 {
			t.Errorf("run %d saw %d task_started events, want 3", i, n)
		}
	}
}

func TestRun_RecordsPendingAndRunning(t *testing.T) {
	subtasks := append(independent(1, "a"), independent(1, "b", "a0")...)
	_, plan, err := graph.Analyze(subtasks, graph.DefaultRules)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var r *run
	var seen map[string]models.TaskStatus
	disp := dispatcherFunc(func(_ context.Context, t models.Subtask) models.TaskResult {
		seen = map[string]models.TaskStatus{"a0": r.status("a0"), "b0": r.status("b0")}
		return models.TaskResult{TaskID: t.ID, Status: models.TaskStatusFailed, ErrorKind: models.ErrorKindInternal, Error: "boom"}
	})
	cfg := DefaultConfig()
	cfg.FailurePolicy = FailureAbort
	stub := reasoningtest.New().Default(synthesisReply)
	o := New(cfg, decompose.NewPlanDecomposer(subtasks), disp, synthesis.New(stub))
	r = o.newRun("x", nil, nil)

	halted, _ := r.execute(context.Background(), context.Background(), plan, subtasks)
	if !halted {
		t.Fatal("abort policy must halt the run")
	}
	if seen["a0"] != models.TaskStatusRunning || seen["b0"] != models.TaskStatusPending {
		t.Errorf("statuses during dispatch = %v, want a0 running and b0 pending", seen)
	}
	if s := r.status("b0"); s != models.TaskStatusSkipped {
		t.Errorf("b0 = %s, want skipped", s)
	}
	for id, res := range r.results {
		if !res.Status.Terminal() {
			t.Errorf("%s left in %s", id, res.Status)
		}
	}
}

func TestSubmit_BudgetExhaustion(t *testing.T) {
	fake := newFakeDispatcher(0, 0.1)
	subtasks := append(independent(2, "a"), independent(1, "b", "a0")...)
	cfg := DefaultConfig()
	cfg.MaxCost = 0.15
	stub := reasoningtest.New().Default(synthesisReply)
	o := New(cfg, decompose.NewPlanDecomposer(subtasks), fake, synthesis.New(stub), WithEventBuffer(256))

	h := o.Start(context.Background(), "x", nil)
	out, err := h.Wait()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r, _ := out.Result("b0"); r.SkipReason != models.SkipReasonBudgetExhausted {
		t.Errorf("b0 = %s (%q)", r.Status, r.SkipReason)
	}

	var types []EventType
	for e := range h.Events() {
		if e.RunID != out.RunID {
			t.Errorf("event run id = %q, want %q", e.RunID, out.RunID)
		}
		types = append(types, e.Type)
	}
	if types[0] != EventRunStarted || types[len(types)-1] != EventRunCompleted {
		t.Errorf("events = %v", types)
	}
	if !containsEvent(types, EventBudgetWarning) || !containsEvent(types, EventTaskSkipped) {
		t.Errorf("events = %v, want budget_warning and task_skipped", types)
	}
}

func containsEvent(types []EventType, want EventType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func TestSubmit_PriorityOrderWithinLevel(t *testing.T) {
	var mu sync.Mutex
	var order []string
	disp := dispatcherFunc(func(_ context.Context, t models.Subtask) models.TaskResult {
		mu.Lock()
		order = append(order, t.ID)
		mu.Unlock()
		return models.TaskResult{
			TaskID: t.ID, Status: models.TaskStatusComplete, Confidence: 1,
			Payload: &models.GenericPayload{Output: []byte(`1`)},
		}
	})
	subtasks := []models.Subtask{
		{ID: "low", Objective: "x", Priority: models.PriorityLow},
		{ID: "crit", Objective: "x", Priority: models.PriorityCritical},
		{ID: "med", Objective: "x"},
	}
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 1
	stub := reasoningtest.New().Default(synthesisReply)
	o := New(cfg, decompose.NewPlanDecomposer(subtasks), disp, synthesis.New(stub))

	if _, err := o.Submit(context.Background(), "x", nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if want := []string{"crit", "med", "low"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestParseFailurePolicy(t *testing.T) {
	if p, err := ParseFailurePolicy(" Abort "); err != nil || p != FailureAbort {
		t.Errorf("ParseFailurePolicy(abort) = %v, %v", p, err)
	}
	if p, _ := ParseFailurePolicy(""); p != FailureContinue {
		t.Errorf("empty policy = %v", p)
	}
	if _, err := ParseFailurePolicy("retry"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1)
	e.wait = time.Millisecond
	e.Emit(Event{Type: EventRunStarted})
	e.Emit(Event{Type: EventRunCompleted})
	if e.DroppedCount() != 1 {
		t.Errorf("DroppedCount = %d, want 1", e.DroppedCount())
	}
}

type decomposerFunc func(context.Context, string, map[string]any) (*decompose.Decomposition, error)

func (f decomposerFunc) Decompose(ctx context.Context, request string, data map[string]any) (*decompose.Decomposition, error) {
	return f(ctx, request, data)
}

type dispatcherFunc func(context.Context, models.Subtask) models.TaskResult

func (f dispatcherFunc) Dispatch(ctx context.Context, t models.Subtask) models.TaskResult {
	return f(ctx, t)
}
