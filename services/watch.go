package services

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"biomarkerscope/models"
)

// CutoffAlert meldet eine Verschiebung des mittleren Cutoffs eines
// (Biomarker, Tumortyp)-Paars gegenüber dem Vorjahr.
type CutoffAlert struct {
	Biomarker    string  `json:"biomarker"`
	TumorType    string  `json:"tumorType"`
	Year         int     `json:"year"`
	PreviousYear int     `json:"previousYear"`
	CurrentAvg   float64 `json:"currentAvg"`
	PreviousAvg  float64 `json:"previousAvg"`
	Direction    string  `json:"direction"` // rising, falling
}

// WatchFeed ist der indikationsübergreifende Beobachtungsfeed.
type WatchFeed struct {
	Publications    []models.Publication         `json:"publications"`
	TrialActivity   []models.TrialBiomarkerUsage `json:"trialActivity"`
	CutoffAlerts    []CutoffAlert                `json:"cutoffAlerts"`
	RecentApprovals []models.KnownDrug           `json:"recentApprovals"`
	GeneratedAt     string                       `json:"generatedAt"`
}

// BiomarkerWatch ist die Beobachtungssicht eines einzelnen Biomarkers.
type BiomarkerWatch struct {
	Biomarker         string                       `json:"biomarker"`
	Publications      []models.Publication         `json:"publications"`
	RecentTrials      []models.TrialBiomarkerUsage `json:"recentTrials"`
	CutoffChanges     []CutoffAlert                `json:"cutoffChanges"`
	DrugPipeline      []models.KnownDrug           `json:"drugPipeline"`
	WhiteSpaceSignals []Opportunity                `json:"whiteSpaceSignals"`
	GeneratedAt       string                       `json:"generatedAt"`
}

// Beobachtungsfenster in Jahren.
const (
	feedTrialWindow  = 2
	watchTrialWindow = 2
	cutoffWindow     = 3
)

// filterRecentTrials behält Studien ab sinceYear, neueste zuerst,
// höchstens limit Einträge. limit 0 bedeutet unbegrenzt.
func filterRecentTrials(usages []models.TrialBiomarkerUsage, sinceYear, limit int) []models.TrialBiomarkerUsage {
	var out []models.TrialBiomarkerUsage
	for _, u := range usages {
		if u.StartYear >= sinceYear {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartYear > out[j].StartYear })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// buildCutoffAlerts vergleicht aufeinanderfolgende Jahrespunkte einer
// Trendserie ab sinceYear und meldet Verschiebungen des Mittelwerts.
// Punkte ohne numerischen Mittelwert lösen keinen Alert aus.
func buildCutoffAlerts(trends []models.CutoffTrend, sinceYear int) []CutoffAlert {
	type seriesKey struct{ biomarker, tumorType string }
	grouped := make(map[seriesKey][]models.CutoffTrend)
	var order []seriesKey
	for _, tr := range trends {
		key := seriesKey{tr.BiomarkerName, tr.TumorType}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], tr)
	}

	var alerts []CutoffAlert
	for _, key := range order {
		points := grouped[key]
		sort.Slice(points, func(i, j int) bool { return points[i].Year < points[j].Year })
		for i := 1; i < len(points); i++ {
			cur, prev := points[i], points[i-1]
			if cur.Year < sinceYear {
				continue
			}
			if cur.CutoffValue == 0 || prev.CutoffValue == 0 || cur.CutoffValue == prev.CutoffValue {
				continue
			}
			direction := "rising"
			if cur.CutoffValue < prev.CutoffValue {
				direction = "falling"
			}
			alerts = append(alerts, CutoffAlert{
				Biomarker:    key.biomarker,
				TumorType:    key.tumorType,
				Year:         cur.Year,
				PreviousYear: prev.Year,
				CurrentAvg:   cur.CutoffValue,
				PreviousAvg:  prev.CutoffValue,
				Direction:    direction,
			})
		}
	}
	return alerts
}

// recentApprovals filtert zugelassene Medikamente und sortiert nach
// Zulassungsjahr absteigend, höchstens limit Einträge.
func recentApprovals(drugs []models.KnownDrug, limit int) []models.KnownDrug {
	var out []models.KnownDrug
	for _, d := range drugs {
		if d.IsApproved {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].YearApproved > out[j].YearApproved })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// WatchFeed baut den Feed über alle Kern-Indikationen: frische Studien,
// Cutoff-Verschiebungen, Literatur zu den aktivsten Biomarkern und die
// jüngsten Zulassungen.
func (s *FetchService) WatchFeed(ctx context.Context) (*WatchFeed, error) {
	now := time.Now().UTC()
	feed := &WatchFeed{GeneratedAt: now.Format(time.RFC3339)}
	sinceYear := now.Year() - feedTrialWindow

	var allUsages []models.TrialBiomarkerUsage
	for _, indication := range s.Config.Indications() {
		trials, err := s.TrialsForIndication(ctx, indication)
		if err != nil {
			s.Logger.Warn("Feed: Studienabruf fehlgeschlagen", zap.String("indication", indication), zap.Error(err))
			continue
		}
		allUsages = append(allUsages, trials...)

		// Literatur zum aktivsten Biomarker der Indikation.
		counts := newCounter()
		for _, u := range trials {
			if u.BiomarkerName != "Unknown" {
				counts.add(u.BiomarkerName)
			}
		}
		if top := counts.mostCommon(); top != "" {
			pubs, err := s.Publications(ctx, indication, top)
			if err != nil {
				s.Logger.Warn("Feed: Literaturabruf fehlgeschlagen", zap.String("indication", indication), zap.Error(err))
			} else {
				if len(pubs) > 5 {
					pubs = pubs[:5]
				}
				feed.Publications = append(feed.Publications, pubs...)
			}
		}
	}

	feed.TrialActivity = filterRecentTrials(allUsages, sinceYear, 50)
	feed.CutoffAlerts = buildCutoffAlerts(BuildCutoffTrends(allUsages), sinceYear)

	var allDrugs []models.KnownDrug
	for _, bm := range BiomarkerNames() {
		drugs, err := s.KnownDrugs(ctx, bm)
		if err != nil {
			s.Logger.Warn("Feed: Drug-Abruf fehlgeschlagen", zap.String("biomarker", bm), zap.Error(err))
			continue
		}
		allDrugs = append(allDrugs, drugs...)
	}
	feed.RecentApprovals = recentApprovals(allDrugs, 30)

	return feed, nil
}

// BiomarkerWatch baut die Beobachtungssicht eines Biomarkers über alle
// Kern-Indikationen.
func (s *FetchService) BiomarkerWatch(ctx context.Context, biomarker string) (*BiomarkerWatch, error) {
	now := time.Now().UTC()
	watch := &BiomarkerWatch{
		Biomarker:   biomarker,
		GeneratedAt: now.Format(time.RFC3339),
	}

	var allUsages []models.TrialBiomarkerUsage
	for _, indication := range s.Config.Indications() {
		trials, err := s.TrialsForBiomarker(ctx, indication, biomarker)
		if err != nil {
			s.Logger.Warn("Watch: Studienabruf fehlgeschlagen",
				zap.String("indication", indication),
				zap.String("biomarker", biomarker),
				zap.Error(err))
			continue
		}
		allUsages = append(allUsages, trials...)

		// White-Space-Signal der Indikation.
		assocs, err := s.Associations(ctx, indication)
		if err != nil {
			s.Logger.Warn("Watch: Assoziationsabruf fehlgeschlagen", zap.String("indication", indication), zap.Error(err))
			continue
		}
		score := 0.0
		for _, a := range assocs {
			if a.BiomarkerSymbol == biomarker && a.OverallScore > score {
				score = a.OverallScore
			}
		}
		trialIDs := make(map[string]bool)
		for _, u := range trials {
			trialIDs[u.NCTID] = true
		}
		if IsEmergingOpportunity(score, len(trialIDs)) {
			watch.WhiteSpaceSignals = append(watch.WhiteSpaceSignals, Opportunity{
				Biomarker:   biomarker,
				Indication:  indication,
				TotalTrials: len(trialIDs),
				OTScore:     score,
				Rationale:   opportunityRationale(score, len(trialIDs)),
			})
		}
	}

	watch.RecentTrials = filterRecentTrials(allUsages, now.Year()-watchTrialWindow, 20)
	watch.CutoffChanges = buildCutoffAlerts(BuildCutoffTrends(allUsages), now.Year()-cutoffWindow)

	pubs, err := s.Publications(ctx, "", biomarker)
	if err != nil {
		s.Logger.Warn("Watch: Literaturabruf fehlgeschlagen", zap.String("biomarker", biomarker), zap.Error(err))
	} else {
		if len(pubs) > 15 {
			pubs = pubs[:15]
		}
		watch.Publications = pubs
	}

	drugs, err := s.KnownDrugs(ctx, biomarker)
	if err != nil {
		s.Logger.Warn("Watch: Drug-Abruf fehlgeschlagen", zap.String("biomarker", biomarker), zap.Error(err))
	} else {
		for _, d := range drugs {
			if d.MaxPhase >= 2 {
				watch.DrugPipeline = append(watch.DrugPipeline, d)
			}
		}
		sort.SliceStable(watch.DrugPipeline, func(i, j int) bool {
			return watch.DrugPipeline[i].MaxPhase > watch.DrugPipeline[j].MaxPhase
		})
	}

	return watch, nil
}
