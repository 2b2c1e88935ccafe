// Package event provides a pub-sub event bus for decoupled inter-component
// communication in taxaflow.
//
// This package enables loose coupling between the pipeline engine, the TUI,
// and logging by allowing them to communicate through events rather than
// direct method calls. Components can publish events without knowing who will
// receive them, and subscribe to events without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//   - [Subscription]: Token returned by Subscribe, passed to Unsubscribe
//
// # Event Categories
//
// The package defines several categories of events:
//
// Run Lifecycle:
//   - [RunStartedEvent]: Emitted when a pipeline run begins execution
//   - [RunCompletedEvent]: Emitted when a pipeline run finishes
//
// Stage Events:
//   - [StageStartedEvent]: Emitted when a pipeline stage begins
//   - [StageCompletedEvent]: Emitted when a pipeline stage finishes
//
// Artifact Events:
//   - [ArtifactWrittenEvent]: Emitted when a stage produces an output artifact
//
// Toolkit Events:
//   - [ToolkitInvokedEvent]: Emitted before an external toolkit process starts
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("stage.completed", func(e event.Event) {
//	    done := e.(event.StageCompletedEvent)
//	    log.Printf("Stage %s finished in %v", done.Stage, done.Duration)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewRunStartedEvent("a3f9c2", "/runs/a3f9c2", stages, stages[0]))
//
//	// Unsubscribe when done
//	id := bus.Subscribe("run.completed", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - run.started, run.completed
//   - stage.started, stage.completed
//   - artifact.written
//   - toolkit.invoked
package event
