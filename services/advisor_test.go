package services

import (
	"testing"

	"biomarkerscope/models"
)

func TestCutoffAdvisorCuratedEntry(t *testing.T) {
	agg := testAggregator(t)
	usages := []models.TrialBiomarkerUsage{
		usage("NCT00000001", "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", 2024),
	}
	advice := agg.CutoffAdvisor("NSCLC", usages)
	if len(advice) != 1 {
		t.Fatalf("advice = %v", advice)
	}
	adv := advice[0]
	if adv.Source != SourceCurated {
		t.Fatalf("Source = %q", adv.Source)
	}
	if !adv.FDAApproved || adv.Confidence != ConfidenceHigh {
		t.Fatalf("FDA-gestützte Empfehlung muss High-Konfidenz haben: %+v", adv)
	}
	if adv.RecommendedCutoff == "" {
		t.Fatalf("RecommendedCutoff fehlt")
	}
}

func TestCutoffAdvisorDefaultFallback(t *testing.T) {
	agg := testAggregator(t)
	// TMB hat keinen Melanom-Eintrag; der tumoragnostische default greift.
	usages := []models.TrialBiomarkerUsage{
		usage("NCT00000001", "TMB", "Melanoma", models.StatusRecruiting, "Phase 2", "BMS", 2024),
	}
	advice := agg.CutoffAdvisor("Melanoma", usages)
	if len(advice) != 1 || advice[0].Source != SourceCurated {
		t.Fatalf("default-Eintrag muss als kuratiert gelten: %v", advice)
	}
}

func TestCutoffAdvisorObservedFallback(t *testing.T) {
	agg := testAggregator(t)
	mk := func(nct, cutoff string) models.TrialBiomarkerUsage {
		u := usage(nct, "TILs", "NSCLC", models.StatusRecruiting, "Phase 2", "Roche", 2024)
		u.CutoffValue = cutoff
		return u
	}
	usages := []models.TrialBiomarkerUsage{
		mk("NCT00000001", "high"),
		mk("NCT00000002", "assessed"),
		mk("NCT00000003", "high"),
	}
	advice := agg.CutoffAdvisor("NSCLC", usages)
	if len(advice) != 1 {
		t.Fatalf("advice = %v", advice)
	}
	adv := advice[0]
	if adv.Source != SourceObserved {
		t.Fatalf("Source = %q, ohne kuratierten Eintrag muss beobachtet werden", adv.Source)
	}
	if adv.RecommendedCutoff != "high" {
		t.Fatalf("RecommendedCutoff = %q, erwartet den häufigsten Cutoff", adv.RecommendedCutoff)
	}
	if adv.Confidence != ConfidenceLow {
		t.Fatalf("beobachteter Fallback muss Low-Konfidenz erzwingen: %q", adv.Confidence)
	}
}

func TestCutoffAdvisorTieBreakFirstSeen(t *testing.T) {
	agg := testAggregator(t)
	mk := func(nct, cutoff string) models.TrialBiomarkerUsage {
		u := usage(nct, "TILs", "NSCLC", models.StatusRecruiting, "Phase 2", "Roche", 2024)
		u.CutoffValue = cutoff
		return u
	}
	advice := agg.CutoffAdvisor("NSCLC", []models.TrialBiomarkerUsage{
		mk("NCT00000001", "assessed"),
		mk("NCT00000002", "high"),
	})
	if advice[0].RecommendedCutoff != "assessed" {
		t.Fatalf("bei Gleichstand gewinnt der zuerst gesehene Cutoff: %q", advice[0].RecommendedCutoff)
	}
}
