package knowledge

import "testing"

func mustLoad(t *testing.T) *Table {
	t.Helper()
	tbl, err := Load(Paths{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return tbl
}

func TestCutoffLookupExact(t *testing.T) {
	tbl := mustLoad(t)

	e, ok := tbl.CutoffFor("PD-L1", "NSCLC")
	if !ok {
		t.Fatalf("PD-L1/NSCLC fehlt")
	}
	if e.RecommendedCutoff != "TPS >= 50%" {
		t.Fatalf("RecommendedCutoff = %q", e.RecommendedCutoff)
	}
	if !e.FDAApproved {
		t.Fatalf("PD-L1/NSCLC muss FDA-zugelassen sein")
	}
}

func TestCutoffLookupDefaultFallback(t *testing.T) {
	tbl := mustLoad(t)

	// TMB hat nur einen tumoragnostischen Eintrag.
	e, ok := tbl.CutoffFor("TMB", "Melanoma")
	if !ok {
		t.Fatalf("TMB default-Eintrag fehlt")
	}
	if e.RecommendedCutoff != ">= 10 mut/Mb" {
		t.Fatalf("RecommendedCutoff = %q", e.RecommendedCutoff)
	}

	if _, ok := tbl.CutoffFor("ctDNA", "NSCLC"); ok {
		t.Fatalf("ctDNA darf keinen kuratierten Eintrag haben")
	}
}

func TestCombinationLookupUnordered(t *testing.T) {
	tbl := mustLoad(t)

	s1, ok := tbl.CombinationFor("PD-L1", "TMB", "NSCLC")
	if !ok {
		t.Fatalf("PD-L1+TMB/NSCLC fehlt")
	}
	s2, ok := tbl.CombinationFor("TMB", "PD-L1", "NSCLC")
	if !ok {
		t.Fatalf("Paar-Lookup muss ungeordnet sein")
	}
	if s1.Strategy != s2.Strategy {
		t.Fatalf("Lookup hängt von der Reihenfolge ab: %q vs %q", s1.Strategy, s2.Strategy)
	}
	if s1.Strategy != "First-line IO stratification" {
		t.Fatalf("indikationsspezifischer Eintrag muss gewinnen, got %q", s1.Strategy)
	}

	// Ohne Override greift default.
	s3, ok := tbl.CombinationFor("PD-L1", "TMB", "Melanoma")
	if !ok || s3.Strategy != "Composite immunotherapy selection" {
		t.Fatalf("default-Eintrag erwartet, got %+v ok=%v", s3, ok)
	}
}

func TestGuidelineIncluded(t *testing.T) {
	tbl := mustLoad(t)

	if !tbl.GuidelineIncluded("EGFR", "NSCLC") {
		t.Fatalf("EGFR muss in NSCLC-Leitlinien stehen")
	}
	if tbl.GuidelineIncluded("ER", "NSCLC") {
		t.Fatalf("ER darf nicht in NSCLC-Leitlinien stehen")
	}
	if !tbl.GuidelineIncluded("HER2", "breast cancer") {
		t.Fatalf("Indikations-Lookup muss case-insensitiv sein")
	}
}

func TestReferenceData(t *testing.T) {
	tbl := mustLoad(t)

	if len(tbl.Biomarkers()) != 16 {
		t.Fatalf("Biomarker-Referenz = %d, erwartet 16", len(tbl.Biomarkers()))
	}
	if len(tbl.Indications()) != 14 {
		t.Fatalf("Indikations-Referenz = %d, erwartet 14", len(tbl.Indications()))
	}

	bm, ok := tbl.BiomarkerByName("ERBB2")
	if !ok || bm.Name != "HER2" {
		t.Fatalf("Alias-Lookup ERBB2 → HER2 fehlgeschlagen, got %+v ok=%v", bm, ok)
	}

	fda := tbl.FDAAssaysFor("PD-L1")
	if len(fda) != 4 {
		t.Fatalf("FDA-Assays für PD-L1 = %d, erwartet 4", len(fda))
	}
	if len(tbl.FDAAssaysFor("TILs")) != 0 {
		t.Fatalf("TILs darf keinen FDA-Assay haben")
	}
}
