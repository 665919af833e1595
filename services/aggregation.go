package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"biomarkerscope/knowledge"
	"biomarkerscope/models"
)

// Aggregator berechnet alle abgeleiteten Sichten als reine Reduktionen
// über die normalisierten Usage-Zeilen.
type Aggregator struct {
	Knowledge *knowledge.Table
}

// NewAggregator erstellt einen Aggregator über dem Wissensbestand.
func NewAggregator(tbl *knowledge.Table) *Aggregator {
	return &Aggregator{Knowledge: tbl}
}

// NameCount ist ein Eintrag einer Häufigkeitstabelle.
type NameCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// YearCount ist ein Jahresscheiben-Eintrag.
type YearCount struct {
	Year   int `json:"year"`
	Trials int `json:"trials"`
}

// DashboardStats ist die aggregierte Übersicht einer Indikation.
type DashboardStats struct {
	Indication          string      `json:"indication"`
	TotalTrials         int         `json:"totalTrials"`
	TotalBiomarkers     int         `json:"totalBiomarkers"`
	TotalAssays         int         `json:"totalAssays"`
	FDAApprovedAssays   int         `json:"fdaApprovedAssays"`
	RecruitingCount     int         `json:"recruitingCount"`
	BiomarkerCounts     []NameCount `json:"biomarkerCounts"`
	TumorTypeCounts     []NameCount `json:"tumorTypeCounts"`
	SettingDistribution []NameCount `json:"settingDistribution"`
	YearDistribution    []YearCount `json:"yearDistribution"`
	SponsorDistribution []NameCount `json:"sponsorDistribution"`
	PhaseCounts         []NameCount `json:"phaseCounts"`
}

// counter zählt Häufigkeiten und merkt sich die Einfügereihenfolge als
// deterministischen Tie-Break.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// sortedDesc liefert die Tabelle absteigend nach Häufigkeit; bei
// Gleichstand gewinnt die zuerst gesehene Kategorie.
func (c *counter) sortedDesc() []NameCount {
	out := make([]NameCount, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, NameCount{Name: k, Value: c.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// mostCommon liefert die häufigste Kategorie; bei Gleichstand die zuerst
// gesehene. Leerer Zähler liefert "".
func (c *counter) mostCommon() string {
	best, bestN := "", 0
	for _, k := range c.order {
		if c.counts[k] > bestN {
			best, bestN = k, c.counts[k]
		}
	}
	return best
}

// truncateName kürzt Anzeigenamen auf max Zeichen plus Ellipse.
func truncateName(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// DashboardStats berechnet die Übersicht über die übergebenen Zeilen.
// Studienzählungen deduplizieren über die NCT-ID, Biomarker-Zählungen
// über die Usage-Zeilen.
func (a *Aggregator) DashboardStats(indication string, usages []models.TrialBiomarkerUsage) DashboardStats {
	trialIDs := make(map[string]bool)
	recruiting := make(map[string]bool)
	yearTrials := make(map[int]map[string]bool)
	phaseTrials := map[string]map[string]bool{}

	biomarkers := newCounter()
	tumorTypes := newCounter()
	settings := newCounter()
	sponsors := newCounter()

	sponsorTrials := make(map[string]map[string]bool)

	for _, u := range usages {
		biomarkers.add(u.BiomarkerName)
		settings.add(u.Setting)
		tumorTypes.add(u.TumorType)

		if trialIDs[u.NCTID] {
			continue
		}
		trialIDs[u.NCTID] = true

		if u.Status == models.StatusRecruiting {
			recruiting[u.NCTID] = true
		}
		if u.StartYear > 0 {
			if yearTrials[u.StartYear] == nil {
				yearTrials[u.StartYear] = make(map[string]bool)
			}
			yearTrials[u.StartYear][u.NCTID] = true
		}
		if u.Sponsor != "" {
			if sponsorTrials[u.Sponsor] == nil {
				sponsorTrials[u.Sponsor] = make(map[string]bool)
				sponsors.add(u.Sponsor) // Reihenfolge merken
			}
			sponsorTrials[u.Sponsor][u.NCTID] = true
		}
		if phaseTrials[u.Phase] == nil {
			phaseTrials[u.Phase] = make(map[string]bool)
		}
		phaseTrials[u.Phase][u.NCTID] = true
	}

	// Sponsor-Zähler auf distinct Trials umstellen.
	for sponsor, ids := range sponsorTrials {
		sponsors.counts[sponsor] = len(ids)
	}

	sponsorDist := sponsors.sortedDesc()
	if len(sponsorDist) > 10 {
		sponsorDist = sponsorDist[:10]
	}
	for i := range sponsorDist {
		sponsorDist[i].Name = truncateName(sponsorDist[i].Name, 18)
	}

	tumorDist := tumorTypes.sortedDesc()
	for i := range tumorDist {
		tumorDist[i].Name = truncateName(tumorDist[i].Name, 12)
	}

	var yearDist []YearCount
	for year, ids := range yearTrials {
		yearDist = append(yearDist, YearCount{Year: year, Trials: len(ids)})
	}
	sort.Slice(yearDist, func(i, j int) bool { return yearDist[i].Year < yearDist[j].Year })

	var phaseDist []NameCount
	for phase, ids := range phaseTrials {
		phaseDist = append(phaseDist, NameCount{Name: phase, Value: len(ids)})
	}
	sort.Slice(phaseDist, func(i, j int) bool { return phaseDist[i].Name < phaseDist[j].Name })

	fdaAssays := 0
	for _, assay := range a.Knowledge.Assays() {
		if assay.FDAApproved {
			fdaAssays++
		}
	}

	return DashboardStats{
		Indication:          indication,
		TotalTrials:         len(trialIDs),
		TotalBiomarkers:     len(biomarkers.order),
		TotalAssays:         len(a.Knowledge.Assays()),
		FDAApprovedAssays:   fdaAssays,
		RecruitingCount:     len(recruiting),
		BiomarkerCounts:     biomarkers.sortedDesc(),
		TumorTypeCounts:     tumorDist,
		SettingDistribution: settings.sortedDesc(),
		YearDistribution:    yearDist,
		SponsorDistribution: sponsorDist,
		PhaseCounts:         phaseDist,
	}
}

// BuildCutoffTrends verdichtet die Usage-Zeilen zu Trendpunkten je
// (Biomarker, Tumortyp, Jahr). "Solid Tumor" und Zeilen ohne Startjahr
// fallen weg; der numerische Mittelwert ignoriert nicht-numerische
// Cutoffs.
func BuildCutoffTrends(usages []models.TrialBiomarkerUsage) []models.CutoffTrend {
	type groupKey struct {
		biomarker string
		tumorType string
		year      int
	}
	type group struct {
		sum    float64
		numN   int
		count  int
		unit   string
		assays *counter
	}
	groups := make(map[groupKey]*group)
	var order []groupKey

	for _, u := range usages {
		if u.StartYear == 0 || u.TumorType == "Solid Tumor" || u.BiomarkerName == "Unknown" {
			continue
		}
		key := groupKey{u.BiomarkerName, u.TumorType, u.StartYear}
		g, ok := groups[key]
		if !ok {
			g = &group{unit: u.CutoffUnit, assays: newCounter()}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		g.assays.add(u.AssayName)
		if v, err := strconv.ParseFloat(u.CutoffValue, 64); err == nil {
			g.sum += v
			g.numN++
		}
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.biomarker != b.biomarker {
			return a.biomarker < b.biomarker
		}
		if a.tumorType != b.tumorType {
			return a.tumorType < b.tumorType
		}
		return a.year < b.year
	})

	out := make([]models.CutoffTrend, 0, len(order))
	for _, key := range order {
		g := groups[key]
		avg := 0.0
		if g.numN > 0 {
			avg = g.sum / float64(g.numN)
		}
		out = append(out, models.CutoffTrend{
			BiomarkerName: key.biomarker,
			TumorType:     key.tumorType,
			Year:          key.year,
			CutoffValue:   avg,
			CutoffUnit:    g.unit,
			TrialCount:    g.count,
			DominantAssay: g.assays.mostCommon(),
		})
	}
	return out
}

// TrendSeries ist eine Chart-Serie je (Biomarker, Tumortyp) mit
// angehängtem Insight-Text.
type TrendSeries struct {
	Biomarker string               `json:"biomarker"`
	TumorType string               `json:"tumorType"`
	Points    []models.CutoffTrend `json:"points"`
	Insight   string               `json:"insight"`
}

// CutoffTrendSeries gruppiert Trendpunkte zu Serien und hängt die
// kuratierten Insights für die bekannten Paare an.
func (a *Aggregator) CutoffTrendSeries(trends []models.CutoffTrend) []TrendSeries {
	type seriesKey struct{ biomarker, tumorType string }
	grouped := make(map[seriesKey][]models.CutoffTrend)
	var order []seriesKey
	for _, t := range trends {
		key := seriesKey{t.BiomarkerName, t.TumorType}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], t)
	}

	out := make([]TrendSeries, 0, len(order))
	for _, key := range order {
		out = append(out, TrendSeries{
			Biomarker: key.biomarker,
			TumorType: key.tumorType,
			Points:    grouped[key],
			Insight:   trendInsight(key.biomarker, key.tumorType),
		})
	}
	return out
}

// trendInsight liefert den kuratierten Text für die vier bekannten
// Paare, sonst die generische Vorlage.
func trendInsight(biomarker, tumorType string) string {
	switch {
	case biomarker == "PD-L1" && tumorType == "NSCLC":
		return "PD-L1 enrollment thresholds in NSCLC have drifted downward: early trials required TPS >= 50%, while chemo-IO combinations increasingly enroll all comers with stratification at TPS >= 1%."
	case biomarker == "PD-L1" && tumorType == "Breast Cancer":
		return "PD-L1 scoring in breast cancer shifted from SP142 immune-cell scoring to 22C3 CPS >= 10 after the atezolizumab label withdrawal."
	case biomarker == "TMB":
		return "TMB cutoffs cluster around 10 mut/Mb following the tumor-agnostic pembrolizumab approval, but panel harmonization remains incomplete."
	case biomarker == "HER2":
		return "HER2 eligibility is expanding below classic positivity: HER2-low (IHC 1+/2+ ISH-) arms have become standard since trastuzumab deruxtecan."
	default:
		return fmt.Sprintf("Cutoff usage for %s in %s across trial start years; rising trial counts indicate growing adoption of the biomarker.", biomarker, tumorType)
	}
}

// CDxGap ist das Ergebnis der Lückenanalyse für einen Biomarker.
type CDxGap struct {
	Biomarker   string `json:"biomarker"`
	Severity    string `json:"severity"` // Critical, Moderate, Covered
	TrialCount  int    `json:"trialCount"`
	Description string `json:"description"`
	Opportunity string `json:"opportunity"`
}

// Schweregrade der CDx-Lückenanalyse.
const (
	GapCritical = "Critical"
	GapModerate = "Moderate"
	GapCovered  = "Covered"
)

// indicationMatchesCdx prüft, ob ein CDx-Label zur Indikation passt.
// Verglichen werden Kürzel, Anzeigename und deren erste Wörter als
// case-insensitive Substrings. Die Heuristik ist bewusst grob; eine
// explizite Mapping-Tabelle wäre der nächste Schritt.
func (a *Aggregator) indicationMatchesCdx(indication, cdxLabel string) bool {
	label := strings.ToLower(cdxLabel)

	candidates := []string{indication}
	for _, ind := range a.Knowledge.Indications() {
		if strings.EqualFold(ind.Name, indication) {
			candidates = append(candidates, ind.DisplayName)
			break
		}
	}
	for _, cand := range candidates {
		c := strings.ToLower(strings.TrimSpace(cand))
		if c == "" {
			continue
		}
		if strings.Contains(label, c) || strings.Contains(c, label) {
			return true
		}
		if first := strings.Fields(c); len(first) > 0 && strings.Contains(label, first[0]) {
			return true
		}
	}
	return false
}

// CDxGaps klassifiziert jeden Biomarker mit mindestens einer Studie in
// der Indikation als Critical, Moderate oder Covered.
func (a *Aggregator) CDxGaps(indication string, usages []models.TrialBiomarkerUsage) []CDxGap {
	trialCounts := make(map[string]map[string]bool)
	var order []string
	for _, u := range usages {
		if trialCounts[u.BiomarkerName] == nil {
			trialCounts[u.BiomarkerName] = make(map[string]bool)
			order = append(order, u.BiomarkerName)
		}
		trialCounts[u.BiomarkerName][u.NCTID] = true
	}

	out := make([]CDxGap, 0, len(order))
	for _, bm := range order {
		n := len(trialCounts[bm])
		fdaAssays := a.Knowledge.FDAAssaysFor(bm)

		gap := CDxGap{Biomarker: bm, TrialCount: n}
		switch {
		case len(fdaAssays) == 0:
			gap.Severity = GapCritical
			gap.Description = fmt.Sprintf("No FDA-approved companion diagnostic exists for %s in any indication.", bm)
			gap.Opportunity = fmt.Sprintf("%d active trials use %s without a regulatory-grade assay; first-mover CDx development opportunity.", n, bm)
		case a.anyAssayCoversIndication(fdaAssays, indication):
			gap.Severity = GapCovered
			gap.Description = fmt.Sprintf("An FDA-approved companion diagnostic for %s is labeled for %s.", bm, indication)
			gap.Opportunity = fmt.Sprintf("Coverage exists; %d trials can enroll on approved assays.", n)
		default:
			gap.Severity = GapModerate
			gap.Description = fmt.Sprintf("FDA-approved assays for %s exist, but none is labeled for %s.", bm, indication)
			gap.Opportunity = fmt.Sprintf("Label expansion into %s would serve %d trials currently using research-grade testing.", indication, n)
		}
		out = append(out, gap)
	}
	return out
}

func (a *Aggregator) anyAssayCoversIndication(assays []models.AssayInfo, indication string) bool {
	for _, assay := range assays {
		for _, label := range assay.CompanionDxFor {
			if a.indicationMatchesCdx(indication, label) {
				return true
			}
		}
	}
	return false
}

// Combination ist ein Zeileneintrag des Kombinations-Explorers.
type Combination struct {
	BiomarkerA   string `json:"biomarkerA"`
	BiomarkerB   string `json:"biomarkerB"`
	CoOccurrence int    `json:"coOccurrence"`
	Strategy     string `json:"strategy"`
	Rationale    string `json:"rationale"`
}

// Combinations baut die symmetrische Ko-Okkurrenz aller in der
// Indikation beobachteten Biomarker-Paare: gemeinsames Vorkommen in
// einer Studie plus Titel-Erwähnungen fremder Biomarker. Kuratierte
// Paare ohne Live-Treffer bleiben sichtbar, wenn mindestens ein Partner
// in der Indikation aktiv ist.
func (a *Aggregator) Combinations(indication string, usages []models.TrialBiomarkerUsage) []Combination {
	pairKey := func(x, y string) [2]string {
		if x > y {
			x, y = y, x
		}
		return [2]string{x, y}
	}

	active := make(map[string]bool)
	byTrial := make(map[string][]string)
	for _, u := range usages {
		if u.BiomarkerName == "Unknown" {
			continue
		}
		active[u.BiomarkerName] = true
		byTrial[u.NCTID] = append(byTrial[u.NCTID], u.BiomarkerName)
	}

	coCounts := make(map[[2]string]int)
	var order [][2]string
	bump := func(x, y string) {
		key := pairKey(x, y)
		if _, ok := coCounts[key]; !ok {
			order = append(order, key)
		}
		coCounts[key]++
	}

	// (a) Überlappung innerhalb einer Studie.
	for _, bms := range byTrial {
		seen := make(map[string]bool)
		var distinct []string
		for _, bm := range bms {
			if !seen[bm] {
				seen[bm] = true
				distinct = append(distinct, bm)
			}
		}
		for i := 0; i < len(distinct); i++ {
			for j := i + 1; j < len(distinct); j++ {
				bump(distinct[i], distinct[j])
			}
		}
	}

	// (b) Titel-Erwähnungen fremder Biomarker.
	for _, u := range usages {
		if u.BiomarkerName == "Unknown" {
			continue
		}
		title := strings.ToLower(u.TrialTitle)
		for _, other := range BiomarkerNames() {
			if other == u.BiomarkerName {
				continue
			}
			if strings.Contains(title, strings.ToLower(other)) {
				bump(u.BiomarkerName, other)
			}
		}
	}

	// Kuratierte Paare ohne Live-Treffer ergänzen.
	for _, entry := range a.Knowledge.KnownCombinations() {
		if len(entry.Biomarkers) != 2 {
			continue
		}
		key := pairKey(entry.Biomarkers[0], entry.Biomarkers[1])
		if _, ok := coCounts[key]; ok {
			continue
		}
		if active[key[0]] || active[key[1]] {
			coCounts[key] = 0
			order = append(order, key)
		}
	}

	out := make([]Combination, 0, len(order))
	for _, key := range order {
		c := Combination{
			BiomarkerA:   key[0],
			BiomarkerB:   key[1],
			CoOccurrence: coCounts[key],
		}
		if s, ok := a.Knowledge.CombinationFor(key[0], key[1], indication); ok {
			c.Strategy = s.Strategy
			c.Rationale = s.Rationale
		} else {
			c.Strategy = "Co-testing"
			c.Rationale = fmt.Sprintf("%s and %s co-occur in %s trials; panel-based co-testing avoids sequential tissue consumption.", key[0], key[1], indication)
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CoOccurrence > out[j].CoOccurrence })
	return out
}

// EvidenceGrade ist die zusammengesetzte Evidenzbewertung eines
// Biomarkers in einer Indikation.
type EvidenceGrade struct {
	Biomarker       string  `json:"biomarker"`
	Score           float64 `json:"score"` // 0-100
	Level           int     `json:"level"` // 1 (reif) bis 4 (früh)
	RegulatoryScore float64 `json:"regulatoryScore"`
	ClinicalScore   float64 `json:"clinicalScore"`
	EmergingScore   float64 `json:"emergingScore"`
	DiagnosticScore float64 `json:"diagnosticScore"`
	GuidelineScore  float64 `json:"guidelineScore"`
}

// Gewichtung der Evidenzkomponenten.
const (
	weightRegulatory = 0.30
	weightClinical   = 0.25
	weightEmerging   = 0.15
	weightDiagnostic = 0.15
	weightGuideline  = 0.15
)

// EvidenceGrades bewertet jeden Biomarker der Indikation. Mehr
// Reifesignale bewegen das Level monoton Richtung 1.
func (a *Aggregator) EvidenceGrades(indication string, usages []models.TrialBiomarkerUsage) []EvidenceGrade {
	type facts struct {
		completedP3  map[string]bool
		recruitingP3 map[string]bool
		phase2       map[string]bool
		recruiting   map[string]bool
		cdxFlag      bool
		completedCDx bool
		hasAssay     bool
	}
	perBM := make(map[string]*facts)
	var order []string

	for _, u := range usages {
		if u.BiomarkerName == "Unknown" {
			continue
		}
		f, ok := perBM[u.BiomarkerName]
		if !ok {
			f = &facts{
				completedP3:  make(map[string]bool),
				recruitingP3: make(map[string]bool),
				phase2:       make(map[string]bool),
				recruiting:   make(map[string]bool),
			}
			perBM[u.BiomarkerName] = f
			order = append(order, u.BiomarkerName)
		}
		isP3 := strings.Contains(u.Phase, "3")
		if isP3 && u.Status == models.StatusCompleted {
			f.completedP3[u.NCTID] = true
		}
		if isP3 && u.Status == models.StatusRecruiting {
			f.recruitingP3[u.NCTID] = true
		}
		if strings.Contains(u.Phase, "2") {
			f.phase2[u.NCTID] = true
		}
		if u.Status == models.StatusRecruiting {
			f.recruiting[u.NCTID] = true
		}
		if u.CompanionDiagnostic {
			f.cdxFlag = true
			if u.Status == models.StatusCompleted {
				f.completedCDx = true
			}
		}
		if u.AssayName != "" && u.AssayName != "Various" {
			f.hasAssay = true
		}
	}

	capped := func(v float64) float64 {
		if v > 100 {
			return 100
		}
		return v
	}

	out := make([]EvidenceGrade, 0, len(order))
	for _, bm := range order {
		f := perBM[bm]
		fdaAssays := a.Knowledge.FDAAssaysFor(bm)
		covered := a.anyAssayCoversIndication(fdaAssays, indication)

		g := EvidenceGrade{Biomarker: bm}
		if covered {
			g.RegulatoryScore = 100
		}
		g.ClinicalScore = capped(float64(len(f.completedP3))*25 + float64(len(f.recruitingP3))*10)
		g.EmergingScore = capped(float64(len(f.phase2))*10 + float64(len(f.recruiting))*5)
		switch {
		case f.cdxFlag || len(fdaAssays) > 0:
			g.DiagnosticScore = 100
		case f.hasAssay:
			g.DiagnosticScore = 50
		}
		if a.Knowledge.GuidelineIncluded(bm, indication) {
			g.GuidelineScore = 100
		}
		g.Score = g.RegulatoryScore*weightRegulatory +
			g.ClinicalScore*weightClinical +
			g.EmergingScore*weightEmerging +
			g.DiagnosticScore*weightDiagnostic +
			g.GuidelineScore*weightGuideline

		switch {
		case covered && len(f.completedP3) >= 1:
			g.Level = 1
		case len(f.completedP3) >= 1 || (len(f.recruitingP3) >= 1 && f.completedCDx):
			g.Level = 2
		case len(f.phase2) >= 1 || len(f.recruitingP3) >= 1:
			g.Level = 3
		default:
			g.Level = 4
		}
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// MatrixCell ist eine Zelle der Opportunity-Matrix.
type MatrixCell struct {
	Indication       string  `json:"indication"`
	TotalTrials      int     `json:"totalTrials"`
	RecruitingTrials int     `json:"recruitingTrials"`
	Phase3Trials     int     `json:"phase3Trials"`
	HasApprovedDrug  bool    `json:"hasApprovedDrug"`
	HasFDACDx        bool    `json:"hasFdaCdx"`
	OTScore          float64 `json:"otScore"`
	DrugCount        int     `json:"drugCount"`
}

// MatrixRow ist eine Biomarker-Zeile der Matrix.
type MatrixRow struct {
	Biomarker              string       `json:"biomarker"`
	TotalAcrossIndications int          `json:"totalAcrossIndications"`
	Cells                  []MatrixCell `json:"cells"`
}

// Opportunity ist eine unterbeforschte, biologisch plausible Zelle.
type Opportunity struct {
	Biomarker       string  `json:"biomarker"`
	Indication      string  `json:"indication"`
	TotalTrials     int     `json:"totalTrials"`
	OTScore         float64 `json:"otScore"`
	HasApprovedDrug bool    `json:"hasApprovedDrug"`
	Rationale       string  `json:"rationale"`
}

// OpportunityMatrix ist das vollständige Raster plus den gefilterten
// Gelegenheiten.
type OpportunityMatrix struct {
	Indications   []string      `json:"indications"`
	Biomarkers    []string      `json:"biomarkers"`
	Matrix        []MatrixRow   `json:"matrix"`
	Opportunities []Opportunity `json:"opportunities"`
}

// OTSignal ist das Open-Targets-Signal einer Matrixzelle.
type OTSignal struct {
	Score           float64
	HasApprovedDrug bool
	DrugCount       int
}

// Schwellen des Emerging-Opportunity-Filters.
const (
	opportunityMinScore  = 0.30
	opportunityMaxTrials = 15
)

// IsEmergingOpportunity prüft den Filter: Score über der Schwelle bei
// weniger als 15, aber mehr als null Studien.
func IsEmergingOpportunity(otScore float64, totalTrials int) bool {
	return otScore > opportunityMinScore && totalTrials < opportunityMaxTrials && totalTrials > 0
}

func opportunityRationale(otScore float64, totalTrials int) string {
	return fmt.Sprintf("OT association score %.2f suggests biological relevance, but only %d trials running.", otScore, totalTrials)
}

// BuildOpportunityMatrix kreuzt Biomarker gegen Indikationen. usagesByIndication
// liefert die Live-Daten je Indikation, otSignals die Druggability-Signale
// je (Biomarker, Indikation).
func (a *Aggregator) BuildOpportunityMatrix(indications []string, usagesByIndication map[string][]models.TrialBiomarkerUsage, otSignals map[[2]string]OTSignal) OpportunityMatrix {
	type cellFacts struct {
		trials     map[string]bool
		recruiting map[string]bool
		phase3     map[string]bool
	}
	cells := make(map[[2]string]*cellFacts)
	bmSet := make(map[string]bool)
	var bmOrder []string

	for _, ind := range indications {
		for _, u := range usagesByIndication[ind] {
			if u.BiomarkerName == "Unknown" {
				continue
			}
			if !bmSet[u.BiomarkerName] {
				bmSet[u.BiomarkerName] = true
				bmOrder = append(bmOrder, u.BiomarkerName)
			}
			key := [2]string{u.BiomarkerName, ind}
			f, ok := cells[key]
			if !ok {
				f = &cellFacts{
					trials:     make(map[string]bool),
					recruiting: make(map[string]bool),
					phase3:     make(map[string]bool),
				}
				cells[key] = f
			}
			f.trials[u.NCTID] = true
			if u.Status == models.StatusRecruiting {
				f.recruiting[u.NCTID] = true
			}
			if strings.Contains(u.Phase, "3") {
				f.phase3[u.NCTID] = true
			}
		}
	}
	sort.Strings(bmOrder)

	var matrix []MatrixRow
	for _, bm := range bmOrder {
		hasCDx := len(a.Knowledge.FDAAssaysFor(bm)) > 0
		row := MatrixRow{Biomarker: bm}
		for _, ind := range indications {
			key := [2]string{bm, ind}
			cell := MatrixCell{Indication: ind, HasFDACDx: hasCDx}
			if f, ok := cells[key]; ok {
				cell.TotalTrials = len(f.trials)
				cell.RecruitingTrials = len(f.recruiting)
				cell.Phase3Trials = len(f.phase3)
			}
			if sig, ok := otSignals[key]; ok {
				cell.OTScore = sig.Score
				cell.HasApprovedDrug = sig.HasApprovedDrug
				cell.DrugCount = sig.DrugCount
			}
			row.TotalAcrossIndications += cell.TotalTrials
			row.Cells = append(row.Cells, cell)
		}
		matrix = append(matrix, row)
	}
	sort.SliceStable(matrix, func(i, j int) bool {
		return matrix[i].TotalAcrossIndications > matrix[j].TotalAcrossIndications
	})

	var opportunities []Opportunity
	for _, row := range matrix {
		for _, cell := range row.Cells {
			if !IsEmergingOpportunity(cell.OTScore, cell.TotalTrials) {
				continue
			}
			opportunities = append(opportunities, Opportunity{
				Biomarker:       row.Biomarker,
				Indication:      cell.Indication,
				TotalTrials:     cell.TotalTrials,
				OTScore:         cell.OTScore,
				HasApprovedDrug: cell.HasApprovedDrug,
				Rationale:       opportunityRationale(cell.OTScore, cell.TotalTrials),
			})
		}
	}
	sort.SliceStable(opportunities, func(i, j int) bool { return opportunities[i].OTScore > opportunities[j].OTScore })
	if len(opportunities) > 15 {
		opportunities = opportunities[:15]
	}

	out := OpportunityMatrix{Indications: indications, Matrix: matrix, Opportunities: opportunities}
	for _, row := range matrix {
		out.Biomarkers = append(out.Biomarkers, row.Biomarker)
	}
	return out
}

// Percentage rechnet einen Anteil in Prozent um; Division durch null
// liefert 0, nie NaN.
func Percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
