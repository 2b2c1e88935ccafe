// Package pipeline drives the differential-abundance pipeline: a fixed
// sequence of toolkit invocations over a run's artifact directory.
//
// # Stages
//
// [Stages] defines the linear stage list, from importing the raw feature
// table through the terminal balance-taxonomy visualization. Every stage
// is exactly one toolkit invocation; each writes its own artifacts and
// never mutates a predecessor's output, so any prefix of the pipeline is
// a valid resume point.
//
// # Execution
//
// [Engine] runs the stages strictly one at a time. There are no retries:
// a non-zero toolkit exit marks the stage and the run failed in the
// manifest, preserves the toolkit's combined output verbatim, and stops
// the run. Stage transitions publish events on the shared [event.Bus]
// for TUI reactivity.
//
// # Usage
//
//	eng, _ := pipeline.New(pipeline.Config{
//	    Bus:    bus,
//	    Store:  store,
//	    Runner: runner,
//	    Run:    r,
//	})
//	_ = eng.Start(ctx)
//	err := eng.Wait()
package pipeline
