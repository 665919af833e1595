// Package narrative ist der SSE-Client für den externen
// Report-Generator.
package narrative

// Ereignistypen des Streams.
const (
	EventStep         = "step"
	EventSectionStart = "section_start"
	EventSectionEnd   = "section_end"
	EventToken        = "token"
	EventCitation     = "citation"
	EventDone         = "done"
	EventError        = "error"
)

// Statuswerte eines step-Ereignisses.
const (
	StepRunning  = "running"
	StepComplete = "complete"
	StepError    = "error"
)

// FinalStepID ist die Schritt-ID, deren running-Status den Übergang in
// die Generierungsphase markiert.
const FinalStepID = "llm_synthesis"

// Event ist ein dekodierter data-Frame des Streams. Die Felder sind je
// nach Typ nur teilweise belegt.
type Event struct {
	Type string `json:"type"`

	// step und citation teilen sich das id-Feld.
	ID      string `json:"id,omitempty"`
	Status  string `json:"status,omitempty"`
	Label   string `json:"label,omitempty"`
	Summary string `json:"summary,omitempty"`

	DurationMS      int64 `json:"duration_ms,omitempty"`
	TotalDurationMS int64 `json:"total_duration_ms,omitempty"`

	Section string `json:"section,omitempty"`
	Title   string `json:"title,omitempty"`

	Content string `json:"content,omitempty"`

	Source  string `json:"source,omitempty"`
	RefType string `json:"ref_type,omitempty"`
	RefID   string `json:"ref_id,omitempty"`
	Display string `json:"display,omitempty"`

	Message string `json:"message,omitempty"`
}
