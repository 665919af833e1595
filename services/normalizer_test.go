package services

import (
	"testing"

	"biomarkerscope/providers/ctgov"
)

func sampleStudy() *ctgov.Study {
	s := &ctgov.Study{}
	ps := &s.ProtocolSection
	ps.Identification.NCTID = "NCT01234567"
	ps.Identification.BriefTitle = "Phase 3 study of osimertinib in EGFR-mutant NSCLC"
	ps.Status.OverallStatus = "RECRUITING"
	ps.Status.StartDateStruct.Date = "2023-06-15"
	ps.Design.Phases = []string{"PHASE3"}
	ps.Sponsor.LeadSponsor.Name = "AstraZeneca"
	ps.Conditions.Conditions = []string{"Non-Small Cell Lung Cancer"}
	ps.Description.BriefSummary = "First-line osimertinib for patients selected by an FDA-approved test."
	return s
}

func TestNormalizeClassifies(t *testing.T) {
	u, err := Normalize(sampleStudy(), "")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if u.BiomarkerName != "EGFR" {
		t.Fatalf("BiomarkerName = %q, erwartet EGFR", u.BiomarkerName)
	}
	if u.TumorType != "NSCLC" {
		t.Fatalf("TumorType = %q, erwartet NSCLC", u.TumorType)
	}
	if u.Setting != "1L" {
		t.Fatalf("Setting = %q, erwartet 1L", u.Setting)
	}
	if u.Phase != "Phase 3" {
		t.Fatalf("Phase = %q", u.Phase)
	}
	if u.Status != "Recruiting" {
		t.Fatalf("Status = %q", u.Status)
	}
	if u.StartYear != 2023 {
		t.Fatalf("StartYear = %d", u.StartYear)
	}
	if !u.CompanionDiagnostic {
		t.Fatalf("CDx-Erwähnung nicht erkannt")
	}
	if u.CutoffValue != "mutated" || u.CutoffOperator != "positive" {
		t.Fatalf("Cutoff = %q/%q", u.CutoffValue, u.CutoffOperator)
	}
}

func TestNormalizeHintOverridesClassifier(t *testing.T) {
	u, err := Normalize(sampleStudy(), "PD-L1")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if u.BiomarkerName != "PD-L1" {
		t.Fatalf("BiomarkerName = %q, Hint muss gewinnen", u.BiomarkerName)
	}
	// Der Cutoff folgt dem Hint, nicht dem Korpus-Biomarker.
	if u.CutoffValue != "assessed" {
		t.Fatalf("CutoffValue = %q", u.CutoffValue)
	}
}

func TestNormalizeMalformedRecord(t *testing.T) {
	if _, err := Normalize(nil, ""); err == nil {
		t.Fatalf("nil-Studie muss Fehler liefern")
	}

	s := sampleStudy()
	s.ProtocolSection.Identification.NCTID = ""
	if _, err := Normalize(s, ""); err == nil {
		t.Fatalf("Studie ohne NCT-ID muss Fehler liefern")
	}

	s = sampleStudy()
	s.ProtocolSection.Identification.BriefTitle = ""
	if _, err := Normalize(s, ""); err == nil {
		t.Fatalf("Studie ohne Titel muss Fehler liefern")
	}
}

func TestNormalizeAllOnePerBiomarker(t *testing.T) {
	s := sampleStudy()
	s.ProtocolSection.Description.BriefSummary = "Osimertinib plus pembrolizumab; PD-L1 TPS >= 50% required."

	usages, err := NormalizeAll(s)
	if err != nil {
		t.Fatalf("NormalizeAll: %v", err)
	}
	seen := map[string]int{}
	for _, u := range usages {
		seen[u.BiomarkerName]++
		if u.NCTID != "NCT01234567" {
			t.Fatalf("NCTID = %q", u.NCTID)
		}
	}
	if seen["PD-L1"] != 1 || seen["EGFR"] != 1 {
		t.Fatalf("erwartet je eine Zeile für PD-L1 und EGFR, got %v", seen)
	}

	// PD-L1-Zeile trägt den konkreten TPS-Cutoff.
	for _, u := range usages {
		if u.BiomarkerName == "PD-L1" && u.CutoffValue != "50" {
			t.Fatalf("PD-L1-Cutoff = %q, erwartet 50", u.CutoffValue)
		}
	}
}
