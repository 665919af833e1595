package services

import (
	"fmt"
	"strings"

	"biomarkerscope/models"
)

// Advice-Konfidenz und Herkunft der Empfehlung.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"

	SourceCurated  = "curated"
	SourceObserved = "observed"
)

// CutoffAdvice ist die Cutoff-Empfehlung für einen Biomarker in einer
// Indikation.
type CutoffAdvice struct {
	Biomarker         string      `json:"biomarker"`
	Indication        string      `json:"indication"`
	RecommendedCutoff string      `json:"recommendedCutoff"`
	Source            string      `json:"source"`
	Confidence        string      `json:"confidence"`
	FDAApproved       bool        `json:"fdaApproved"`
	Alternatives      []string    `json:"alternatives,omitempty"`
	Trend             string      `json:"trend,omitempty"`
	Rationale         string      `json:"rationale"`
	TrialCount        int         `json:"trialCount"`
	ObservedCutoffs   []NameCount `json:"observedCutoffs,omitempty"`
}

// mindestens so viele Studien seit diesem Jahr heben die Konfidenz
// einer kuratierten Empfehlung auf Medium.
const (
	recentTrialFloor = 3
	recentSinceYear  = 2023
)

// CutoffAdvisor empfiehlt je Biomarker der Indikation einen Cutoff.
// Kuratierte Einträge gewinnen; fehlt einer, greift der häufigste
// beobachtete Cutoff mit erzwungener Low-Konfidenz. Bei Gleichstand
// gewinnt der zuerst gesehene Cutoff.
func (a *Aggregator) CutoffAdvisor(indication string, usages []models.TrialBiomarkerUsage) []CutoffAdvice {
	type facts struct {
		trials   map[string]bool
		recent   map[string]bool
		observed *counter
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
				trials:   make(map[string]bool),
				recent:   make(map[string]bool),
				observed: newCounter(),
			}
			perBM[u.BiomarkerName] = f
			order = append(order, u.BiomarkerName)
		}
		f.trials[u.NCTID] = true
		if u.StartYear >= recentSinceYear {
			f.recent[u.NCTID] = true
		}
		if u.CutoffValue != "" {
			label := u.CutoffValue
			if u.CutoffUnit != "" {
				label = fmt.Sprintf("%s %s %s", u.CutoffOperator, u.CutoffValue, u.CutoffUnit)
				label = strings.TrimSpace(label)
			}
			f.observed.add(label)
		}
	}

	out := make([]CutoffAdvice, 0, len(order))
	for _, bm := range order {
		f := perBM[bm]
		advice := CutoffAdvice{
			Biomarker:       bm,
			Indication:      indication,
			TrialCount:      len(f.trials),
			ObservedCutoffs: f.observed.sortedDesc(),
		}

		if entry, ok := a.Knowledge.CutoffFor(bm, indication); ok {
			advice.Source = SourceCurated
			advice.RecommendedCutoff = entry.RecommendedCutoff
			advice.FDAApproved = entry.FDAApproved
			advice.Alternatives = entry.Alternatives
			advice.Trend = entry.Trend
			advice.Rationale = entry.Rationale
			switch {
			case entry.FDAApproved:
				advice.Confidence = ConfidenceHigh
			case len(f.recent) >= recentTrialFloor:
				advice.Confidence = ConfidenceMedium
			default:
				advice.Confidence = ConfidenceLow
			}
		} else {
			advice.Source = SourceObserved
			advice.Confidence = ConfidenceLow
			advice.RecommendedCutoff = f.observed.mostCommon()
			advice.Rationale = fmt.Sprintf("No curated recommendation for %s in %s; showing the most common cutoff across %d trials.", bm, indication, len(f.trials))
		}
		out = append(out, advice)
	}
	return out
}
