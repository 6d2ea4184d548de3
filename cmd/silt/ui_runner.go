package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"silt/internal/driver"
	"silt/internal/ui"
)

type reportOutcome struct {
	results []driver.FileReport
	err     error
}

// runReportDirWithUI runs the directory batch under the interactive progress
// model. The driver reports through a function observer; the goroutine owns
// the channel the model consumes and closes it when the batch is done.
func runReportDirWithUI(ctx context.Context, title, dir string, opts driver.Options, jobs int) ([]driver.FileReport, error) {
	files, err := driver.ListInputs(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	events := make(chan driver.Event, 256)
	outcomeCh := make(chan reportOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Jobs = jobs
		optsCopy.Observer = func(ev driver.Event) { events <- ev }
		results, err := driver.ReportDir(ctx, dir, optsCopy)
		outcomeCh <- reportOutcome{results: results, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()

	// The model is gone; keep draining so the batch never blocks on a
	// full channel after an early quit.
	go func() {
		for range events {
		}
	}()

	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
