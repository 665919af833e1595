package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"biomarkerscope/knowledge"
	"biomarkerscope/models"
)

func testAggregator(t *testing.T) *Aggregator {
	t.Helper()
	tbl, err := knowledge.Load(knowledge.Paths{})
	if err != nil {
		t.Fatalf("knowledge.Load: %v", err)
	}
	return NewAggregator(tbl)
}

func usage(nct, biomarker, tumor, status, phase, sponsor string, year int) models.TrialBiomarkerUsage {
	return models.TrialBiomarkerUsage{
		NCTID:         nct,
		TrialTitle:    "Study of " + biomarker,
		BiomarkerName: biomarker,
		Setting:       models.SettingFirstLine,
		TumorType:     tumor,
		Phase:         phase,
		Sponsor:       sponsor,
		Status:        status,
		StartYear:     year,
		AssayName:     "Various",
	}
}

func TestDashboardStatsDeduplicatesTrials(t *testing.T) {
	agg := testAggregator(t)
	usages := []models.TrialBiomarkerUsage{
		usage("NCT00000001", "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", 2022),
		usage("NCT00000001", "EGFR", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", 2022),
		usage("NCT00000002", "PD-L1", "NSCLC", models.StatusCompleted, "Phase 2", "AstraZeneca", 2021),
	}
	stats := agg.DashboardStats("NSCLC", usages)

	if stats.TotalTrials != 2 {
		t.Fatalf("TotalTrials = %d, Studien müssen über die NCT-ID dedupliziert werden", stats.TotalTrials)
	}
	if stats.RecruitingCount != 1 {
		t.Fatalf("RecruitingCount = %d", stats.RecruitingCount)
	}
	if stats.TotalBiomarkers != 2 {
		t.Fatalf("TotalBiomarkers = %d", stats.TotalBiomarkers)
	}
	if len(stats.BiomarkerCounts) == 0 || stats.BiomarkerCounts[0].Name != "PD-L1" || stats.BiomarkerCounts[0].Value != 2 {
		t.Fatalf("BiomarkerCounts = %v", stats.BiomarkerCounts)
	}
	if len(stats.YearDistribution) != 2 || stats.YearDistribution[0].Year != 2021 {
		t.Fatalf("YearDistribution muss aufsteigend sortiert sein: %v", stats.YearDistribution)
	}
}

func TestDashboardStatsTruncatesDisplayNames(t *testing.T) {
	agg := testAggregator(t)
	usages := []models.TrialBiomarkerUsage{
		usage("NCT00000001", "KRAS", "Colorectal Cancer", models.StatusRecruiting, "Phase 2", "Hoffmann-La Roche Pharmaceuticals", 2022),
	}
	stats := agg.DashboardStats("Colorectal Cancer", usages)

	if len(stats.SponsorDistribution) != 1 {
		t.Fatalf("SponsorDistribution = %v", stats.SponsorDistribution)
	}
	sponsor := stats.SponsorDistribution[0].Name
	if !strings.HasSuffix(sponsor, "…") || utf8.RuneCountInString(sponsor) != 19 {
		t.Fatalf("Sponsor-Name %q muss auf 18 Zeichen plus Ellipse gekürzt sein", sponsor)
	}
	if len(stats.TumorTypeCounts) != 1 || stats.TumorTypeCounts[0].Name != "Colorectal C…" {
		t.Fatalf("TumorTypeCounts = %v", stats.TumorTypeCounts)
	}
}

func TestDashboardStatsSponsorTopTen(t *testing.T) {
	agg := testAggregator(t)
	var usages []models.TrialBiomarkerUsage
	sponsors := []string{"S1", "S2", "S3", "S4", "S5", "S6", "S7", "S8", "S9", "S10", "S11", "S12"}
	for i, s := range sponsors {
		usages = append(usages, usage("NCT0000000"+string(rune('a'+i)), "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 2", s, 2022))
	}
	stats := agg.DashboardStats("NSCLC", usages)
	if len(stats.SponsorDistribution) != 10 {
		t.Fatalf("SponsorDistribution muss auf 10 Einträge begrenzt sein, got %d", len(stats.SponsorDistribution))
	}
}

func TestBuildCutoffTrends(t *testing.T) {
	mk := func(nct, cutoff, assay string, year int) models.TrialBiomarkerUsage {
		u := usage(nct, "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", year)
		u.CutoffValue = cutoff
		u.CutoffUnit = "TPS %"
		u.AssayName = assay
		return u
	}
	usages := []models.TrialBiomarkerUsage{
		mk("NCT00000001", "50", "22C3 pharmDx", 2022),
		mk("NCT00000002", "1", "22C3 pharmDx", 2022),
		mk("NCT00000003", "positive", "SP263", 2022),
		usage("NCT00000004", "TMB", "Solid Tumor", models.StatusRecruiting, "Phase 2", "BMS", 2022),
	}
	trends := BuildCutoffTrends(usages)

	if len(trends) != 1 {
		t.Fatalf("trends = %v, Solid Tumor muss ausgeschlossen sein", trends)
	}
	tr := trends[0]
	if tr.CutoffValue != 25.5 {
		t.Fatalf("CutoffValue = %v, Mittelwert nur über numerische Cutoffs", tr.CutoffValue)
	}
	if tr.TrialCount != 3 {
		t.Fatalf("TrialCount = %d", tr.TrialCount)
	}
	if tr.DominantAssay != "22C3 pharmDx" {
		t.Fatalf("DominantAssay = %q", tr.DominantAssay)
	}
}

func TestCutoffTrendSeriesInsights(t *testing.T) {
	agg := testAggregator(t)
	trends := []models.CutoffTrend{
		{BiomarkerName: "PD-L1", TumorType: "NSCLC", Year: 2022, TrialCount: 3},
		{BiomarkerName: "EGFR", TumorType: "NSCLC", Year: 2022, TrialCount: 2},
	}
	series := agg.CutoffTrendSeries(trends)
	if len(series) != 2 {
		t.Fatalf("series = %v", series)
	}
	if !strings.Contains(series[0].Insight, "TPS") {
		t.Fatalf("kuratierter PD-L1/NSCLC-Insight fehlt: %q", series[0].Insight)
	}
	if !strings.Contains(series[1].Insight, "EGFR") {
		t.Fatalf("generischer Insight muss den Biomarker nennen: %q", series[1].Insight)
	}
}

func TestCDxGapsClassification(t *testing.T) {
	agg := testAggregator(t)
	usages := []models.TrialBiomarkerUsage{
		usage("NCT00000001", "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", 2022),
		usage("NCT00000002", "TILs", "NSCLC", models.StatusRecruiting, "Phase 2", "Roche", 2022),
	}
	gaps := agg.CDxGaps("NSCLC", usages)
	bySeverity := map[string]string{}
	for _, g := range gaps {
		bySeverity[g.Biomarker] = g.Severity
	}
	if bySeverity["PD-L1"] != GapCovered {
		t.Fatalf("PD-L1 in NSCLC = %q, erwartet Covered", bySeverity["PD-L1"])
	}
	if bySeverity["TILs"] != GapCritical {
		t.Fatalf("TILs = %q, ohne FDA-Assay muss die Lücke Critical sein", bySeverity["TILs"])
	}

	// PD-L1-Assays sind u.a. für NSCLC und Gastric gelabelt, nicht für Melanom.
	gaps = agg.CDxGaps("Melanoma", []models.TrialBiomarkerUsage{
		usage("NCT00000003", "PD-L1", "Melanoma", models.StatusRecruiting, "Phase 3", "BMS", 2022),
	})
	if len(gaps) != 1 || gaps[0].Severity != GapModerate {
		t.Fatalf("PD-L1 in Melanoma = %v, erwartet Moderate", gaps)
	}
}

func TestCombinationsCoOccurrence(t *testing.T) {
	agg := testAggregator(t)
	usages := []models.TrialBiomarkerUsage{
		usage("NCT00000001", "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", 2022),
		usage("NCT00000001", "TMB", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", 2022),
		usage("NCT00000002", "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 2", "BMS", 2022),
	}
	combos := agg.Combinations("NSCLC", usages)
	if len(combos) == 0 {
		t.Fatalf("keine Kombinationen gefunden")
	}
	top := combos[0]
	if top.BiomarkerA != "PD-L1" || top.BiomarkerB != "TMB" {
		t.Fatalf("Top-Paar = %s/%s", top.BiomarkerA, top.BiomarkerB)
	}
	if top.CoOccurrence < 1 {
		t.Fatalf("CoOccurrence = %d", top.CoOccurrence)
	}
	// Die NSCLC-spezifische Strategie gewinnt vor dem default-Eintrag.
	if top.Strategy != "First-line IO stratification" {
		t.Fatalf("Strategy = %q", top.Strategy)
	}
}

func TestCombinationsSurfacesKnownPairsWithoutHits(t *testing.T) {
	agg := testAggregator(t)
	usages := []models.TrialBiomarkerUsage{
		usage("NCT00000001", "KRAS", "NSCLC", models.StatusRecruiting, "Phase 2", "Amgen", 2022),
	}
	combos := agg.Combinations("NSCLC", usages)
	found := false
	for _, c := range combos {
		if (c.BiomarkerA == "KRAS" && c.BiomarkerB == "PD-L1") || (c.BiomarkerA == "PD-L1" && c.BiomarkerB == "KRAS") {
			found = true
			if c.CoOccurrence != 0 {
				t.Fatalf("CoOccurrence = %d, kuratiertes Paar ohne Live-Treffer", c.CoOccurrence)
			}
		}
	}
	if !found {
		t.Fatalf("kuratiertes KRAS/PD-L1-Paar fehlt: %v", combos)
	}
}

func TestEvidenceGradesLevels(t *testing.T) {
	agg := testAggregator(t)

	completed := usage("NCT00000001", "PD-L1", "NSCLC", models.StatusCompleted, "Phase 3", "Merck", 2020)
	grades := agg.EvidenceGrades("NSCLC", []models.TrialBiomarkerUsage{completed})
	if len(grades) != 1 || grades[0].Level != 1 {
		t.Fatalf("FDA-CDx plus abgeschlossene Phase 3 muss Level 1 ergeben: %v", grades)
	}

	// Ohne Phase 3, nur rekrutierende Phase 2: Level 3.
	p2 := usage("NCT00000002", "TILs", "NSCLC", models.StatusRecruiting, "Phase 2", "Roche", 2023)
	grades = agg.EvidenceGrades("NSCLC", []models.TrialBiomarkerUsage{p2})
	if len(grades) != 1 || grades[0].Level != 3 {
		t.Fatalf("Phase 2 ohne Reifesignale muss Level 3 ergeben: %v", grades)
	}

	// Nur Phase 1: Level 4.
	p1 := usage("NCT00000003", "TILs", "NSCLC", models.StatusRecruiting, "Phase 1", "Roche", 2024)
	grades = agg.EvidenceGrades("NSCLC", []models.TrialBiomarkerUsage{p1})
	if len(grades) != 1 || grades[0].Level != 4 {
		t.Fatalf("frühe Evidenz muss Level 4 ergeben: %v", grades)
	}
}

func TestEvidenceGradesMonotonic(t *testing.T) {
	agg := testAggregator(t)
	base := []models.TrialBiomarkerUsage{
		usage("NCT00000001", "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 2", "Merck", 2022),
	}
	more := append(append([]models.TrialBiomarkerUsage{}, base...),
		usage("NCT00000002", "PD-L1", "NSCLC", models.StatusCompleted, "Phase 3", "Merck", 2020),
	)
	g1 := agg.EvidenceGrades("NSCLC", base)[0]
	g2 := agg.EvidenceGrades("NSCLC", more)[0]
	if g2.Score < g1.Score {
		t.Fatalf("Score %v < %v, mehr abgeschlossene Phase 3 darf die Bewertung nie senken", g2.Score, g1.Score)
	}
	if g2.Level > g1.Level {
		t.Fatalf("Level %d > %d, mehr Reifesignale dürfen das Level nie verschlechtern", g2.Level, g1.Level)
	}
}

func TestIsEmergingOpportunity(t *testing.T) {
	cases := []struct {
		score  float64
		trials int
		want   bool
	}{
		{0.35, 10, true},
		{0.35, 20, false},
		{0.25, 5, false},
		{0.40, 0, false},
	}
	for _, c := range cases {
		if got := IsEmergingOpportunity(c.score, c.trials); got != c.want {
			t.Errorf("IsEmergingOpportunity(%v, %d) = %v, erwartet %v", c.score, c.trials, got, c.want)
		}
	}
}

func TestBuildOpportunityMatrix(t *testing.T) {
	agg := testAggregator(t)
	indications := []string{"NSCLC", "Melanoma"}
	byInd := map[string][]models.TrialBiomarkerUsage{
		"NSCLC": {
			usage("NCT00000001", "PD-L1", "NSCLC", models.StatusRecruiting, "Phase 3", "Merck", 2022),
			usage("NCT00000002", "PD-L1", "NSCLC", models.StatusCompleted, "Phase 2", "BMS", 2021),
			usage("NCT00000003", "NTRK", "NSCLC", models.StatusRecruiting, "Phase 2", "Bayer", 2023),
		},
		"Melanoma": {
			usage("NCT00000004", "PD-L1", "Melanoma", models.StatusRecruiting, "Phase 3", "BMS", 2022),
		},
	}
	signals := map[[2]string]OTSignal{
		{"NTRK", "NSCLC"}:     {Score: 0.62, HasApprovedDrug: true, DrugCount: 3},
		{"PD-L1", "NSCLC"}:    {Score: 0.91, HasApprovedDrug: true, DrugCount: 12},
		{"PD-L1", "Melanoma"}: {Score: 0.88, HasApprovedDrug: true, DrugCount: 9},
	}

	m := agg.BuildOpportunityMatrix(indications, byInd, signals)

	if len(m.Matrix) != 2 || m.Matrix[0].Biomarker != "PD-L1" {
		t.Fatalf("Zeilen müssen absteigend nach Gesamtzahl sortiert sein: %v", m.Matrix)
	}
	if m.Matrix[0].TotalAcrossIndications != 3 {
		t.Fatalf("TotalAcrossIndications = %d", m.Matrix[0].TotalAcrossIndications)
	}

	// Alle drei Zellen liegen unter 15 Studien bei Score > 0.30.
	if len(m.Opportunities) != 3 {
		t.Fatalf("Opportunities = %v", m.Opportunities)
	}
	if m.Opportunities[0].Biomarker != "PD-L1" || m.Opportunities[0].Indication != "NSCLC" {
		t.Fatalf("Opportunities müssen absteigend nach Score sortiert sein: %v", m.Opportunities)
	}
	want := "OT association score 0.62 suggests biological relevance, but only 1 trials running."
	var ntrk *Opportunity
	for i := range m.Opportunities {
		if m.Opportunities[i].Biomarker == "NTRK" {
			ntrk = &m.Opportunities[i]
		}
	}
	if ntrk == nil || ntrk.Rationale != want {
		t.Fatalf("Rationale = %+v, erwartet %q", ntrk, want)
	}
}

func TestPercentageGuardsZero(t *testing.T) {
	if got := Percentage(5, 0); got != 0 {
		t.Fatalf("Percentage(5, 0) = %v", got)
	}
	if got := Percentage(1, 4); got != 25 {
		t.Fatalf("Percentage(1, 4) = %v", got)
	}
}
