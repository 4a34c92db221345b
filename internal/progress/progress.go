package progress

// Phase is the client-local coarse label of an analysis run.
type Phase string

const (
	PhasePreparing      Phase = "preparing"
	PhaseUploading      Phase = "uploading"
	PhaseStaticAnalysis Phase = "static-analysis"
	PhaseLLMAnalysis    Phase = "llm-analysis"
	PhasePDFGeneration  Phase = "pdf-generation"
	PhaseCompleted      Phase = "completed"
	PhaseError          Phase = "error"
)

// phaseOrder is the fixed forward sequence; error sits outside it.
var phaseOrder = map[Phase]int{
	PhasePreparing:      0,
	PhaseUploading:      1,
	PhaseStaticAnalysis: 2,
	PhaseLLMAnalysis:    3,
	PhasePDFGeneration:  4,
	PhaseCompleted:      5,
}

// Rank returns the position of p in the forward sequence, or -1 for error
// and unknown phases.
func (p Phase) Rank() int {
	r, ok := phaseOrder[p]
	if !ok {
		return -1
	}
	return r
}

// Title is the human-friendly heading for the phase.
func (p Phase) Title() string {
	switch p {
	case PhasePreparing:
		return "Preparing Analysis..."
	case PhaseUploading:
		return "Uploading Archive..."
	case PhaseStaticAnalysis:
		return "Static Analysis..."
	case PhaseLLMAnalysis:
		return "LLM Analysis..."
	case PhasePDFGeneration:
		return "PDF Generation..."
	case PhaseCompleted:
		return "Analysis Complete!"
	case PhaseError:
		return "Error Occurred"
	default:
		return "Analyzing..."
	}
}

// Update conveys progress or phase changes for a run.
type Update struct {
	JobID   string // empty until the server assigned one
	RunID   string
	Phase   Phase
	Percent int    // 0..100
	Message string // short human-friendly status line
}

// Log is one display line appended to a run's log.
type Log struct {
	RunID string
	Line  string
}

// Result is emitted once per run when it completes or fails.
type Result struct {
	RunID      string
	JobID      string
	OutputPath string
	Bytes      int64
	Err        error // nil on success
}

// Reporter is implemented by UI or any observer interested in progress events.
type Reporter interface {
	Update(u Update)
	Log(l Log)
	Result(r Result)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Update(Update) {}
func (Nop) Log(Log)       {}
func (Nop) Result(Result) {}
