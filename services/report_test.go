package services

import (
	"testing"

	"go.uber.org/zap"

	"biomarkerscope/providers/narrative"
)

func newTestSession() *ReportSession {
	return NewReportSession(zap.NewNop())
}

func TestReportSessionFullSequence(t *testing.T) {
	s := newTestSession()
	events := []narrative.Event{
		{Type: narrative.EventStep, ID: "trials", Status: narrative.StepRunning, Label: "Studien laden"},
		{Type: narrative.EventStep, ID: "trials", Status: narrative.StepComplete, DurationMS: 120},
		{Type: narrative.EventStep, ID: narrative.FinalStepID, Status: narrative.StepRunning},
		{Type: narrative.EventToken, Content: "foo"},
		{Type: narrative.EventToken, Content: "bar"},
		{Type: narrative.EventSectionEnd},
		{Type: narrative.EventDone, TotalDurationMS: 500},
	}
	for _, ev := range events {
		s.Apply(ev)
	}

	snap := s.Snapshot()
	if snap.State != ReportComplete {
		t.Fatalf("State = %q, erwartet complete", snap.State)
	}
	if snap.Content != "foobar" {
		t.Fatalf("Content = %q", snap.Content)
	}
	if len(snap.Steps) != 2 {
		t.Fatalf("Steps = %v, Upsert darf keine Duplikate anlegen", snap.Steps)
	}
	if snap.Steps[0].Status != narrative.StepComplete || snap.Steps[0].DurationMS != 120 {
		t.Fatalf("Step 0 = %+v", snap.Steps[0])
	}
	if snap.Steps[0].Label != "Studien laden" {
		t.Fatalf("Upsert darf das Label nicht verwerfen: %+v", snap.Steps[0])
	}
	if snap.TotalDurationMS != 500 {
		t.Fatalf("TotalDurationMS = %d", snap.TotalDurationMS)
	}
}

func TestReportSessionStateTransitions(t *testing.T) {
	s := newTestSession()
	if got := s.Snapshot().State; got != ReportIdle {
		t.Fatalf("Anfangszustand = %q", got)
	}

	s.Apply(narrative.Event{Type: narrative.EventStep, ID: "trials", Status: narrative.StepRunning})
	if got := s.Snapshot().State; got != ReportGathering {
		t.Fatalf("nach erstem step = %q", got)
	}

	s.Apply(narrative.Event{Type: narrative.EventStep, ID: narrative.FinalStepID, Status: narrative.StepRunning})
	if got := s.Snapshot().State; got != ReportGenerating {
		t.Fatalf("nach llm_synthesis running = %q", got)
	}

	s.Apply(narrative.Event{Type: narrative.EventError, Message: "upstream down"})
	snap := s.Snapshot()
	if snap.State != ReportError || snap.Error != "upstream down" {
		t.Fatalf("Fehlerzustand = %+v", snap)
	}
}

func TestReportSessionSections(t *testing.T) {
	s := newTestSession()
	s.Apply(narrative.Event{Type: narrative.EventSectionStart, Section: "overview", Title: "Overview"})
	s.Apply(narrative.Event{Type: narrative.EventToken, Content: "Erster "})
	s.Apply(narrative.Event{Type: narrative.EventToken, Content: "Abschnitt."})
	s.Apply(narrative.Event{Type: narrative.EventSectionEnd})
	s.Apply(narrative.Event{Type: narrative.EventSectionStart, Section: "evidence"})
	s.Apply(narrative.Event{Type: narrative.EventToken, Content: "Zweiter."})
	s.Apply(narrative.Event{Type: narrative.EventDone})

	snap := s.Snapshot()
	if len(snap.Sections) != 2 {
		t.Fatalf("Sections = %v", snap.Sections)
	}
	if snap.Sections[0].Section != "overview" || snap.Sections[0].Content != "Erster Abschnitt." {
		t.Fatalf("Section 0 = %+v", snap.Sections[0])
	}
	// done flusht auch ohne section_end.
	if snap.Sections[1].Section != "evidence" || snap.Sections[1].Content != "Zweiter." {
		t.Fatalf("Section 1 = %+v", snap.Sections[1])
	}
	if snap.Content != "Erster Abschnitt.Zweiter." {
		t.Fatalf("Content = %q", snap.Content)
	}
}

func TestReportSessionCitationsNeverDeduplicated(t *testing.T) {
	s := newTestSession()
	cite := narrative.Event{Type: narrative.EventCitation, Source: "pubmed", RefID: "12345", Display: "Smith 2024"}
	s.Apply(cite)
	s.Apply(cite)

	snap := s.Snapshot()
	if len(snap.Citations) != 2 {
		t.Fatalf("Citations = %v, Mehrfachnennungen müssen erhalten bleiben", snap.Citations)
	}
}

func TestReportSessionFailOnlyWhileRunning(t *testing.T) {
	s := newTestSession()
	s.BeginRun("NSCLC", "PD-L1")
	s.Fail("report generation timed out")
	snap := s.Snapshot()
	if snap.State != ReportError || snap.Error != "report generation timed out" {
		t.Fatalf("snap = %+v", snap)
	}

	s.BeginRun("NSCLC", "PD-L1")
	s.Apply(narrative.Event{Type: narrative.EventDone, TotalDurationMS: 10})
	s.Fail("zu spät")
	if snap := s.Snapshot(); snap.State != ReportComplete || snap.Error != "" {
		t.Fatalf("Fail nach done darf den Abschluss nicht überschreiben: %+v", snap)
	}
}

func TestReportSessionCancelReturnsToIdle(t *testing.T) {
	s := newTestSession()
	s.Apply(narrative.Event{Type: narrative.EventStep, ID: "trials", Status: narrative.StepRunning})
	s.Apply(narrative.Event{Type: narrative.EventToken, Content: "halb"})

	s.Cancel()
	snap := s.Snapshot()
	if snap.State != ReportIdle {
		t.Fatalf("State = %q, Abbruch muss still in den Leerlauf führen", snap.State)
	}
	if snap.Error != "" || snap.Content != "" || len(snap.Steps) != 0 {
		t.Fatalf("Abbruch muss den Zustand leeren: %+v", snap)
	}
}
