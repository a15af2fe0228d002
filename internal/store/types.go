package store

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is the summary row of one lowering run.
type Run struct {
	ID                string `json:"id"`
	Module            string `json:"module"`
	InputFingerprint  string `json:"input_fingerprint"`
	OutputFingerprint string `json:"output_fingerprint"`
	Status            string `json:"status"`
	ErrorCode         string `json:"error_code,omitempty"`
	Error             string `json:"error,omitempty"`
	Rewrites          int    `json:"rewrites"`
	Iterations        int    `json:"iterations"`
	Seq               int64  `json:"seq"`
	ToolVersion       string `json:"tool_version"`
	IRVersion         string `json:"ir_version"`
}

// Declaration is a runtime entry point recorded for a run.
type Declaration struct {
	RunID     string `json:"run_id"`
	Symbol    string `json:"symbol"`
	Target    string `json:"target"`
	Signature string `json:"signature"`
}

// Rewrite is one recorded rewrite. Attrs holds the emitted call's
// attributes as canonical JSON.
type Rewrite struct {
	RunID   string `json:"run_id"`
	Seq     int64  `json:"seq"`
	Pattern string `json:"pattern"`
	Op      string `json:"op"`
	Func    string `json:"func"`
	Target  string `json:"target,omitempty"`
	Attrs   string `json:"attrs"`
}
