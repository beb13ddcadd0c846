// Package orchestrator runs a request end to end: decomposition, dependency
// analysis, level-by-level dispatch, aggregation and synthesis.
//
// Subtasks are grouped into dependency levels. All subtasks of a level run
// concurrently, bounded by Config.MaxConcurrency, and the next level starts
// only once every subtask of the current one is terminal. Results of a
// level are injected into the data of their dependents under
// models.DependencyResultsKey.
//
// A failed subtask never blocks its siblings. Under FailureContinue its
// dependents still run and see a missing marker in place of its output;
// under FailureAbort no further level is scheduled. A run timeout, an
// exhausted budget or Handle.Halt also stops scheduling, while subtasks
// already in flight finish and are recorded. Cancelling the context passed
// to Submit or Start is a hard stop that also cancels in-flight calls.
//
// Start runs a request in the background. The returned Handle carries the
// run's own event stream, so concurrent runs never share events.
//
// Example usage:
//
//	svc, _ := reasoning.NewAnthropicService(ctx, reasoning.ClientConfig{})
//	o := orchestrator.New(orchestrator.DefaultConfig(),
//		decompose.New(svc), dispatch.New(svc), synthesis.New(svc))
//	outcome, err := o.Submit(ctx, "Compare EU and US market trends", nil)
//
//	h := o.Start(ctx, "Compare EU and US market trends", nil)
//	for e := range h.Events() {
//		fmt.Println(e.Type, e.TaskID)
//	}
//	outcome, err = h.Wait()
package orchestrator
