package ui

import (
	"fmt"
	"strings"

	"lv0/internal/progress"
)

const logTail = 8

func (m Model) viewHeader() string {
	done, total := 0, len(m.jobOrder)
	for _, id := range m.jobOrder {
		if m.jobs[id].done {
			done++
		}
	}
	title := m.styles.Title.Render("lv0 — vulnerability analysis")
	keys := "q: quit"
	if len(m.jobOrder) > 1 {
		keys = "↑/↓: select • " + keys
	}
	if m.failures() > 0 {
		keys = "r: retry • " + keys
	}
	sub := m.styles.Subtitle.Render(fmt.Sprintf("Jobs: %d/%d done • %s", done, total, keys))
	return title + "\n" + sub
}

func (m Model) viewJobs() string {
	var b strings.Builder
	for i, id := range m.jobOrder {
		js := m.jobs[id]
		b.WriteString(m.viewJob(js, i == m.selected))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) phaseStyle(p progress.Phase) func(...string) string {
	switch p {
	case progress.PhasePreparing, progress.PhaseUploading:
		return m.styles.PhaseUpload.Render
	case progress.PhaseStaticAnalysis:
		return m.styles.PhaseStatic.Render
	case progress.PhaseLLMAnalysis:
		return m.styles.PhaseLLM.Render
	case progress.PhasePDFGeneration:
		return m.styles.PhasePDF.Render
	case progress.PhaseCompleted:
		return m.styles.Success.Render
	case progress.PhaseError:
		return m.styles.Error.Render
	}
	return m.styles.JobInfo.Render
}

func (m Model) viewJob(js *jobState, selected bool) string {
	left := m.styles.JobTitle.Render(truncate(js.job.DisplayName, 48))
	phase := m.phaseStyle(js.phase)(js.phase.Title())

	var right string
	switch {
	case !js.started:
		right = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("waiting")
	case js.err != nil:
		right = fmt.Sprintf("%s %3d%%  %s", js.bar.ViewAs(float64(js.percent)/100.0), js.percent, m.styles.Error.Render("✗ error"))
	case js.done:
		right = fmt.Sprintf("%s %3d%%  %s", js.bar.ViewAs(1), 100, m.styles.Success.Render("✓ done"))
	default:
		right = fmt.Sprintf("%s %3d%%  %s", js.bar.ViewAs(float64(js.percent)/100.0), js.percent, m.styles.Spinner.Render(js.spinner.View()))
	}

	line1 := fmt.Sprintf("%s  %s", left, phase)
	if js.remoteID != "" {
		line1 += "  " + m.styles.Faint.Render("job "+js.remoteID)
	}
	if js.retries > 0 {
		line1 += "  " + m.styles.Faint.Render(fmt.Sprintf("retry %d", js.retries))
	}
	info := js.status
	if js.err != nil {
		info = m.styles.Error.Render(info)
	} else {
		info = m.styles.JobInfo.Render(info)
	}
	body := line1 + "\n" + right + "\n" + info

	box := m.styles.Box
	if selected && len(m.jobOrder) > 1 {
		box = m.styles.Selected
	}
	if selected || len(m.jobOrder) == 1 {
		if tail := m.viewLog(js); tail != "" {
			body += "\n" + tail
		}
	}
	return box.Render(body)
}

func (m Model) viewLog(js *jobState) string {
	lines := js.logsRing
	if len(lines) > logTail {
		lines = lines[len(lines)-logTail:]
	}
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString(m.styles.Faint.Render("  " + truncate(l, 96)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) viewSummary() string {
	var completed []string
	for _, id := range m.jobOrder {
		js := m.jobs[id]
		if js.done && js.err == nil && js.outputPath != "" {
			completed = append(completed, js.outputPath)
		}
	}

	if len(completed) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render("✓ Reports:"))
	b.WriteString("\n")
	for _, path := range completed {
		b.WriteString(m.styles.Success.Render("  • " + path))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
