package services

import (
	"testing"

	"biomarkerscope/models"
)

func TestFilterRecentTrials(t *testing.T) {
	usages := []models.TrialBiomarkerUsage{
		usage("NCT00000001", "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", 2020),
		usage("NCT00000002", "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", 2024),
		usage("NCT00000003", "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", 2023),
	}
	out := filterRecentTrials(usages, 2023, 0)
	if len(out) != 2 {
		t.Fatalf("out = %v, ältere Studien müssen herausfallen", out)
	}
	if out[0].StartYear != 2024 {
		t.Fatalf("neueste Studie zuerst, got %d", out[0].StartYear)
	}

	if limited := filterRecentTrials(usages, 2020, 1); len(limited) != 1 {
		t.Fatalf("limit muss greifen: %v", limited)
	}
}

func TestBuildCutoffAlerts(t *testing.T) {
	trends := []models.CutoffTrend{
		{BiomarkerName: "PD-L1", TumorType: "NSCLC", Year: 2022, CutoffValue: 50},
		{BiomarkerName: "PD-L1", TumorType: "NSCLC", Year: 2023, CutoffValue: 25},
		{BiomarkerName: "TMB", TumorType: "NSCLC", Year: 2022, CutoffValue: 10},
		{BiomarkerName: "TMB", TumorType: "NSCLC", Year: 2023, CutoffValue: 10},
	}
	alerts := buildCutoffAlerts(trends, 2023)
	if len(alerts) != 1 {
		t.Fatalf("alerts = %v, unveränderte Serien dürfen keinen Alert auslösen", alerts)
	}
	a := alerts[0]
	if a.Biomarker != "PD-L1" || a.Direction != "falling" {
		t.Fatalf("alert = %+v", a)
	}
	if a.CurrentAvg != 25 || a.PreviousAvg != 50 || a.Year != 2023 || a.PreviousYear != 2022 {
		t.Fatalf("alert = %+v", a)
	}
}

func TestBuildCutoffAlertsWindow(t *testing.T) {
	trends := []models.CutoffTrend{
		{BiomarkerName: "PD-L1", TumorType: "NSCLC", Year: 2019, CutoffValue: 50},
		{BiomarkerName: "PD-L1", TumorType: "NSCLC", Year: 2020, CutoffValue: 1},
	}
	if alerts := buildCutoffAlerts(trends, 2023); len(alerts) != 0 {
		t.Fatalf("Verschiebungen vor dem Fenster dürfen nicht melden: %v", alerts)
	}
}

func TestRecentApprovals(t *testing.T) {
	drugs := []models.KnownDrug{
		{Name: "Old", IsApproved: true, YearApproved: 2015},
		{Name: "New", IsApproved: true, YearApproved: 2024},
		{Name: "Pipeline", MaxPhase: 3},
	}
	out := recentApprovals(drugs, 30)
	if len(out) != 2 || out[0].Name != "New" {
		t.Fatalf("out = %v, neueste Zulassung zuerst", out)
	}
	if limited := recentApprovals(drugs, 1); len(limited) != 1 {
		t.Fatalf("limit muss greifen: %v", limited)
	}
}
