package tui

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/taxaflow/taxaflow/internal/event"
)

// App wraps the Bubbletea program and bridges bus events into it.
type App struct {
	program *tea.Program
	bus     *event.Bus
	subs    []event.Subscription
}

// New creates a progress TUI fed by the given bus. The bus subscriptions
// are registered here, before the pipeline starts publishing, so the
// first stage.started is never missed; sends that arrive before Run are
// drained once the program's event loop is up.
func New(bus *event.Bus, runID string, stageNames []string, refresh time.Duration) *App {
	a := &App{
		bus:     bus,
		program: tea.NewProgram(NewModel(runID, stageNames, refresh)),
	}

	a.subs = []event.Subscription{
		bus.Subscribe("stage.started", func(ev event.Event) {
			e := ev.(event.StageStartedEvent)
			a.program.Send(stageStartedMsg{stage: e.Stage})
		}),
		bus.Subscribe("stage.completed", func(ev event.Event) {
			e := ev.(event.StageCompletedEvent)
			a.program.Send(stageCompletedMsg{
				stage:    e.Stage,
				success:  e.Success,
				duration: e.Duration,
				errMsg:   e.Error,
			})
		}),
		bus.Subscribe("artifact.written", func(ev event.Event) {
			e := ev.(event.ArtifactWrittenEvent)
			a.program.Send(artifactWrittenMsg{name: e.Name})
		}),
		bus.Subscribe("run.completed", func(ev event.Event) {
			e := ev.(event.RunCompletedEvent)
			a.program.Send(runCompletedMsg{
				success:  e.Success,
				duration: e.Duration,
				errMsg:   e.Error,
			})
		}),
	}

	return a
}

// Run starts the TUI and blocks until the run completes or the user quits.
// The bus subscriptions are removed when the program exits.
func (a *App) Run() error {
	defer func() {
		for _, id := range a.subs {
			a.bus.Unsubscribe(id)
		}
	}()

	// Forward termination signals as a quit so the terminal is restored
	// before the process exits.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		a.program.Send(tea.Quit())
	}()

	_, err := a.program.Run()
	return err
}
