package services

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"biomarkerscope/providers/narrative"
)

// Zustände der Report-Session.
const (
	ReportIdle       = "idle"
	ReportGathering  = "gathering"
	ReportGenerating = "generating"
	ReportComplete   = "complete"
	ReportError      = "error"
)

// ReportStep ist ein Pipeline-Schritt des Generators in
// Erstmeldungs-Reihenfolge.
type ReportStep struct {
	ID         string `json:"id"`
	Label      string `json:"label,omitempty"`
	Status     string `json:"status"`
	Summary    string `json:"summary,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// ReportSection ist ein abgeschlossener Textabschnitt des Reports.
type ReportSection struct {
	Section string `json:"section"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// ReportCitation ist ein Quellenverweis. Verweise werden nie
// dedupliziert; Mehrfachnennungen derselben Quelle bleiben erhalten.
type ReportCitation struct {
	Source  string `json:"source"`
	RefType string `json:"refType,omitempty"`
	RefID   string `json:"refId,omitempty"`
	Display string `json:"display,omitempty"`
}

// ReportSnapshot ist der von außen sichtbare Stand der Session.
type ReportSnapshot struct {
	State           string           `json:"state"`
	Indication      string           `json:"indication,omitempty"`
	Biomarker       string           `json:"biomarker,omitempty"`
	Steps           []ReportStep     `json:"steps"`
	Sections        []ReportSection  `json:"sections"`
	Citations       []ReportCitation `json:"citations"`
	Content         string           `json:"content"`
	TotalDurationMS int64            `json:"total_duration_ms,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// ReportSession reduziert den Event-Strom des Generators auf einen
// beobachtbaren Zustand. Es läuft höchstens eine Session gleichzeitig;
// der Stream selbst wird vom SSE-Relay konsumiert und Event für Event
// über Apply eingespeist.
type ReportSession struct {
	Logger *zap.Logger

	mu         sync.Mutex
	state      string
	indication string
	biomarker  string
	steps      []ReportStep
	sections   []ReportSection
	citations  []ReportCitation
	buffer     strings.Builder
	section    string
	title      string
	totalMS    int64
	errMsg     string
}

// NewReportSession erstellt eine Session im Leerlauf.
func NewReportSession(logger *zap.Logger) *ReportSession {
	return &ReportSession{
		Logger: logger,
		state:  ReportIdle,
	}
}

// Apply reduziert ein einzelnes Event in den Sessionzustand.
func (s *ReportSession) Apply(ev narrative.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(ev)
}

func (s *ReportSession) applyLocked(ev narrative.Event) {
	switch ev.Type {
	case narrative.EventStep:
		if s.state == ReportIdle {
			s.state = ReportGathering
		}
		s.upsertStep(ev)
		if ev.ID == narrative.FinalStepID && ev.Status == narrative.StepRunning {
			s.state = ReportGenerating
		}

	case narrative.EventSectionStart:
		s.flushSection()
		s.section = ev.Section
		s.title = ev.Title

	case narrative.EventToken:
		s.buffer.WriteString(ev.Content)

	case narrative.EventCitation:
		s.citations = append(s.citations, ReportCitation{
			Source:  ev.Source,
			RefType: ev.RefType,
			RefID:   ev.RefID,
			Display: ev.Display,
		})

	case narrative.EventSectionEnd:
		s.flushSection()

	case narrative.EventDone:
		s.flushSection()
		s.totalMS = ev.TotalDurationMS
		s.state = ReportComplete

	case narrative.EventError:
		s.flushSection()
		s.errMsg = ev.Message
		s.state = ReportError
	}
}

// upsertStep aktualisiert einen bekannten Schritt oder hängt einen
// neuen an; die Erstmeldungs-Reihenfolge bleibt stabil.
func (s *ReportSession) upsertStep(ev narrative.Event) {
	for i := range s.steps {
		if s.steps[i].ID == ev.ID {
			s.steps[i].Status = ev.Status
			if ev.Label != "" {
				s.steps[i].Label = ev.Label
			}
			if ev.Summary != "" {
				s.steps[i].Summary = ev.Summary
			}
			if ev.DurationMS > 0 {
				s.steps[i].DurationMS = ev.DurationMS
			}
			return
		}
	}
	s.steps = append(s.steps, ReportStep{
		ID:         ev.ID,
		Label:      ev.Label,
		Status:     ev.Status,
		Summary:    ev.Summary,
		DurationMS: ev.DurationMS,
	})
}

// flushSection schreibt den Token-Puffer als Abschnitt weg.
func (s *ReportSession) flushSection() {
	if s.buffer.Len() == 0 {
		s.section, s.title = "", ""
		return
	}
	s.sections = append(s.sections, ReportSection{
		Section: s.section,
		Title:   s.title,
		Content: s.buffer.String(),
	})
	s.buffer.Reset()
	s.section, s.title = "", ""
}

// Snapshot liefert eine Kopie des aktuellen Stands inklusive des noch
// ungeflushten Puffers.
func (s *ReportSession) Snapshot() ReportSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ReportSnapshot{
		State:           s.state,
		Indication:      s.indication,
		Biomarker:       s.biomarker,
		Steps:           append([]ReportStep(nil), s.steps...),
		Sections:        append([]ReportSection(nil), s.sections...),
		Citations:       append([]ReportCitation(nil), s.citations...),
		TotalDurationMS: s.totalMS,
		Error:           s.errMsg,
	}
	var content strings.Builder
	for _, sec := range snap.Sections {
		content.WriteString(sec.Content)
	}
	content.WriteString(s.buffer.String())
	snap.Content = content.String()
	return snap
}

// BeginRun setzt die Session für einen neuen Durchlauf zurück und
// markiert die Sammelphase.
func (s *ReportSession) BeginRun(indication, biomarker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.state = ReportGathering
	s.indication = indication
	s.biomarker = biomarker
	s.Logger.Info("Report-Session gestartet",
		zap.String("indication", indication),
		zap.String("biomarker", biomarker))
}

// Fail versetzt eine noch laufende Session in den Fehlerzustand,
// z.B. wenn der Watchdog den Stream abgebrochen hat. Abgeschlossene
// Sessions bleiben unberührt.
func (s *ReportSession) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ReportGathering && s.state != ReportGenerating {
		return
	}
	s.flushSection()
	s.errMsg = message
	s.state = ReportError
}

// Cancel bricht einen laufenden Report ab und kehrt still in den
// Leerlauf zurück; ein Abbruch ist kein Fehler.
func (s *ReportSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Reset verwirft das Ergebnis einer beendeten Session.
func (s *ReportSession) Reset() {
	s.Cancel()
}

func (s *ReportSession) resetLocked() {
	s.state = ReportIdle
	s.indication = ""
	s.biomarker = ""
	s.steps = nil
	s.sections = nil
	s.citations = nil
	s.buffer.Reset()
	s.section, s.title = "", ""
	s.totalMS = 0
	s.errMsg = ""
}
