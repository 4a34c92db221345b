package ui

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"lv0/internal/model"
	"lv0/internal/pipeline"
	"lv0/internal/progress"
)

const maxLogLines = 1000

type jobState struct {
	id     string // run id
	job    model.UploadJob
	svc    *pipeline.Service
	phase  progress.Phase
	status string
	err    error
	done   bool

	remoteID   string
	outputPath string
	bytes      int64
	percent    int

	spinner spinner.Model
	bar     bubblesprogress.Model

	started bool
	retries int

	logsRing []string
}

func newJobState(id string, job model.UploadJob, styles Styles) jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(40),
	)
	return jobState{
		id:      id,
		job:     job,
		phase:   progress.PhasePreparing,
		status:  "Queued",
		spinner: sp,
		bar:     bar,
	}
}

func (js *jobState) appendLog(line string) {
	if len(js.logsRing) >= maxLogLines {
		js.logsRing = js.logsRing[1:]
	}
	js.logsRing = append(js.logsRing, line)
}

// reset mirrors the service's state reset before a retry.
func (js *jobState) reset() {
	js.phase = progress.PhasePreparing
	js.percent = 0
	js.status = "Retrying"
	js.err = nil
	js.done = false
	js.outputPath = ""
	js.bytes = 0
	js.logsRing = nil
	js.retries++
}
