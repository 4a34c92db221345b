package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"lv0/internal/model"
	"lv0/internal/pipeline"
	"lv0/internal/progress"
	"lv0/internal/util/format"
)

// ServiceFactory builds the service that owns one archive's runs. Events
// must be sent to rep.
type ServiceFactory func(runID string, rep progress.Reporter) *pipeline.Service

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	opts       model.CLIOptions
	newService ServiceFactory

	// Jobs
	jobOrder []string
	jobs     map[string]*jobState
	selected int
	workers  int
	running  int
	next     int // next index in jobOrder to start

	// UI
	width, height int
	styles        Styles

	// Internal event channel used by reporter to feed tea messages
	eventCh chan tea.Msg
}

type startMsg struct{}

func NewModel(ctx context.Context, uploads []model.UploadJob, opts model.CLIOptions, newService ServiceFactory) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()

	jobs := make(map[string]*jobState, len(uploads))
	order := make([]string, 0, len(uploads))
	for i, u := range uploads {
		id := toID(i)
		js := newJobState(id, u, sty)
		jobs[id] = &js
		order = append(order, id)
	}

	workers := opts.Jobs
	if workers <= 0 {
		workers = 1
	}

	return Model{
		ctx:        c,
		cancel:     cancel,
		opts:       opts,
		newService: newService,
		jobs:       jobs,
		jobOrder:   order,
		workers:    workers,
		styles:     sty,
		eventCh:    make(chan tea.Msg, 256),
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range m.jobOrder {
		cmds = append(cmds, m.jobs[id].spinner.Tick)
	}
	cmds = append(cmds, m.listenEventsCmd())
	cmds = append(cmds, func() tea.Msg { return startMsg{} })
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancel()
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.jobOrder)-1 {
				m.selected++
			}
		case "r":
			m.retrySelected()
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case startMsg:
		m.startNext()

	case jobUpdateMsg:
		u := msg.U
		if js, ok := m.jobs[u.RunID]; ok {
			js.phase = u.Phase
			js.percent = u.Percent
			if u.Message != "" {
				js.status = u.Message
			}
			if u.JobID != "" {
				js.remoteID = u.JobID
			}
		}
	case jobLogMsg:
		l := msg.L
		if js, ok := m.jobs[l.RunID]; ok {
			js.appendLog(strings.TrimRight(l.Line, "\r\n"))
		}
	case jobResultMsg:
		r := msg.R
		if js, ok := m.jobs[r.RunID]; ok && !js.done {
			js.done = true
			js.err = r.Err
			if r.Err == nil {
				js.phase = progress.PhaseCompleted
				js.percent = 100
				js.outputPath = r.OutputPath
				js.bytes = r.Bytes
				js.status = fmt.Sprintf("Saved: %s (%s)", filepath.Base(r.OutputPath), format.HumanizeBytes(r.Bytes))
			} else {
				js.phase = progress.PhaseError
				js.status = r.Err.Error()
			}
			m.running--
			m.startNext()
			if m.finished() && m.failures() == 0 {
				return m, tea.Quit
			}
		}
	case allDoneMsg:
		return m, tea.Quit
	}

	// Update per-job components (spinner)
	var cmds []tea.Cmd
	for _, id := range m.jobOrder {
		js := m.jobs[id]
		var c tea.Cmd
		js.spinner, c = js.spinner.Update(msg)
		if c != nil {
			cmds = append(cmds, c)
		}
	}
	// Keep listening for events; one listener is outstanding at a time
	switch msg.(type) {
	case jobUpdateMsg, jobLogMsg, jobResultMsg:
		cmds = append(cmds, m.listenEventsCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	summary := m.viewSummary()
	if summary != "" {
		return m.viewHeader() + "\n\n" + m.viewJobs() + "\n" + summary
	}
	return m.viewHeader() + "\n\n" + m.viewJobs()
}

func (m Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return allDoneMsg{}
		case msg := <-m.eventCh:
			return msg
		}
	}
}

// startNext launches queued jobs up to the worker limit.
func (m *Model) startNext() {
	if m.ctx.Err() != nil {
		return
	}
	for m.running < m.workers && m.next < len(m.jobOrder) {
		js := m.jobs[m.jobOrder[m.next]]
		m.next++
		m.running++
		js.started = true
		js.status = "Starting"
		js.svc = m.newService(js.id, teaReporter{ch: m.eventCh, done: m.ctx.Done()})
		go m.runJob(js.svc, js.job)
	}
}

// retrySelected re-runs the selected job when it failed. The service resets
// its own state; the view mirrors that reset.
func (m *Model) retrySelected() {
	if m.ctx.Err() != nil || m.selected >= len(m.jobOrder) {
		return
	}
	js := m.jobs[m.jobOrder[m.selected]]
	if js.svc == nil || !js.done || js.err == nil {
		return
	}
	js.reset()
	m.running++
	svc := js.svc
	ctx := m.ctx
	go func() { _, _ = svc.Retry(ctx) }()
}

func (m Model) runJob(svc *pipeline.Service, job model.UploadJob) {
	// Errors arrive as a Result event.
	_, _ = svc.Run(m.ctx, job)
}

func (m Model) finished() bool {
	return m.next >= len(m.jobOrder) && m.running == 0
}

func (m Model) failures() int {
	n := 0
	for _, id := range m.jobOrder {
		if m.jobs[id].err != nil {
			n++
		}
	}
	return n
}

// teaReporter forwards service events into the tea program.
type teaReporter struct {
	ch   chan tea.Msg
	done <-chan struct{}
}

func (r teaReporter) Update(u progress.Update) {
	// Block on terminal updates to ensure they're delivered
	if u.Phase == progress.PhaseCompleted || u.Phase == progress.PhaseError {
		r.send(jobUpdateMsg{U: u})
		return
	}
	select {
	case r.ch <- jobUpdateMsg{U: u}:
	default:
	}
}
func (r teaReporter) Log(l progress.Log) {
	select {
	case r.ch <- jobLogMsg{L: l}:
	default:
	}
}
func (r teaReporter) Result(res progress.Result) {
	// Always block on Result messages - they're critical
	r.send(jobResultMsg{R: res})
}

func (r teaReporter) send(msg tea.Msg) {
	select {
	case r.ch <- msg:
	case <-r.done:
	}
}

func toID(i int) string {
	return fmt.Sprintf("run-%d", i+1)
}
