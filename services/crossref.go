package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"biomarkerscope/models"
	"biomarkerscope/providers/ctgov"
)

// CrossReference ist die Sechs-Wege-Anreicherung eines
// (Biomarker, Indikation)-Paars über alle Provider.
type CrossReference struct {
	Druggability   *models.TargetAssociation `json:"druggability,omitempty"`
	ApprovedDrugs  []models.KnownDrug        `json:"approvedDrugs"`
	CancerEvidence []models.CancerEvidence   `json:"cancerEvidence"`
	Assays         []models.AssayInfo        `json:"assays"`
	GWASVariants   []models.GWASAssociation  `json:"gwasVariants"`
	Publications   []models.Publication      `json:"pubmedArticles"`
}

// EnrichedTrial ist eine Studie plus den Querverweisen je erkanntem
// (Biomarker, Indikation)-Paar, Schlüssel "biomarker:indikation".
type EnrichedTrial struct {
	Trial           *models.TrialDetail       `json:"trial"`
	CrossReferences map[string]CrossReference `json:"crossReferences"`
}

// CrossReferencePair baut die Anreicherung für ein Paar. Jeder Zweig
// scheitert für sich; ausgefallene Zweige bleiben leer und werden
// geloggt.
func (s *FetchService) CrossReferencePair(ctx context.Context, indication, biomarker string) CrossReference {
	var (
		mu  sync.Mutex
		ref CrossReference
		wg  sync.WaitGroup
	)
	leg := func(name string, run func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(); err != nil {
				s.Logger.Warn("Querverweis-Zweig fehlgeschlagen",
					zap.String("leg", name),
					zap.String("biomarker", biomarker),
					zap.String("indication", indication),
					zap.Error(err))
			}
		}()
	}

	leg("druggability", func() error {
		assocs, err := s.Associations(ctx, indication)
		if err != nil {
			return err
		}
		for i := range assocs {
			if assocs[i].BiomarkerSymbol == biomarker {
				mu.Lock()
				ref.Druggability = &assocs[i]
				mu.Unlock()
				break
			}
		}
		return nil
	})
	leg("drugs", func() error {
		drugs, err := s.KnownDrugs(ctx, biomarker)
		if err != nil {
			return err
		}
		var approved []models.KnownDrug
		for _, d := range drugs {
			if d.IsApproved {
				approved = append(approved, d)
			}
		}
		mu.Lock()
		ref.ApprovedDrugs = approved
		mu.Unlock()
		return nil
	})
	leg("evidence", func() error {
		evs, err := s.CancerEvidence(ctx, indication)
		if err != nil {
			return err
		}
		var mine []models.CancerEvidence
		for _, ev := range evs {
			if ev.BiomarkerSymbol == biomarker {
				mine = append(mine, ev)
			}
		}
		mu.Lock()
		ref.CancerEvidence = mine
		mu.Unlock()
		return nil
	})
	leg("gwas", func() error {
		vars, err := s.GWASVariants(ctx, biomarker)
		if err != nil {
			return err
		}
		sort.SliceStable(vars, func(i, j int) bool { return vars[i].PValue < vars[j].PValue })
		if len(vars) > 5 {
			vars = vars[:5]
		}
		mu.Lock()
		ref.GWASVariants = vars
		mu.Unlock()
		return nil
	})
	leg("pubmed", func() error {
		pubs, err := s.Publications(ctx, indication, biomarker)
		if err != nil {
			return err
		}
		mu.Lock()
		ref.Publications = pubs
		mu.Unlock()
		return nil
	})

	// Assays kommen aus dem Wissensbestand, kein Upstream-Zweig nötig.
	for _, a := range s.Knowledge.Assays() {
		for _, bm := range a.BiomarkerNames {
			if bm == biomarker {
				ref.Assays = append(ref.Assays, a)
				break
			}
		}
	}

	wg.Wait()
	return ref
}

// EnrichTrial lädt eine Studie und reichert jedes erkannte
// (Biomarker, Indikation)-Paar mit Querverweisen an.
func (s *FetchService) EnrichTrial(ctx context.Context, nctID string) (*EnrichedTrial, error) {
	study, err := s.CTGov.FetchStudy(ctx, nctID)
	s.countFetch("ctgov", err)
	if err != nil {
		return nil, err
	}

	usages, err := NormalizeAll(study)
	if err != nil {
		return nil, err
	}
	detail := ctgov.ToTrialDetail(study)

	out := &EnrichedTrial{
		Trial:           &detail,
		CrossReferences: make(map[string]CrossReference),
	}
	for _, u := range usages {
		if u.BiomarkerName == "Unknown" {
			continue
		}
		key := u.BiomarkerName + ":" + u.TumorType
		if _, ok := out.CrossReferences[key]; ok {
			continue
		}
		out.CrossReferences[key] = s.CrossReferencePair(ctx, u.TumorType, u.BiomarkerName)
	}
	return out, nil
}

// TrialSummary ist die Studienlage eines (Indikation, Biomarker)-Paars.
type TrialSummary struct {
	Total           int         `json:"total"`
	Recruiting      int         `json:"recruiting"`
	ByPhase         []NameCount `json:"byPhase"`
	TopSponsors     []NameCount `json:"topSponsors"`
	YearTrend       []YearCount `json:"yearTrend"`
	FirstTrialYear  int         `json:"firstTrialYear"`
	LatestTrialYear int         `json:"latestTrialYear"`
}

// CutoffLandscape beschreibt die beobachteten Schwellenwerte und Assays.
type CutoffLandscape struct {
	DominantCutoffs      []NameCount          `json:"dominantCutoffs"`
	AssaysUsed           []NameCount          `json:"assaysUsed"`
	CompanionDiagnostics int                  `json:"companionDiagnostics"`
	CutoffTrends         []models.CutoffTrend `json:"cutoffTrends"`
}

// DruggabilityView verdichtet das Open-Targets-Signal eines Biomarkers.
type DruggabilityView struct {
	OverallScore         float64            `json:"overallScore"`
	DrugScore            float64            `json:"drugScore"`
	CancerBiomarkerScore float64            `json:"cancerBiomarkerScore"`
	SMTractable          bool               `json:"smTractable"`
	ABTractable          bool               `json:"abTractable"`
	PROTACTractable      bool               `json:"protacTractable"`
	ApprovedDrugs        []models.KnownDrug `json:"approvedDrugs"`
	PipelineDrugs        []models.KnownDrug `json:"pipelineDrugs"`
	TotalDrugCandidates  int                `json:"totalDrugCandidates"`
	TotalApproved        int                `json:"totalApproved"`
}

// EvidenceView zählt die Cancer-Biomarker-Evidenz nach Reifegrad.
type EvidenceView struct {
	Total   int         `json:"total"`
	ByLevel []NameCount `json:"byLevel"`
}

// AssayLandscape trennt den Assay-Katalog nach Zulassungsstatus.
type AssayLandscape struct {
	FDAApproved []models.AssayInfo `json:"fdaApproved"`
	ResearchUse []models.AssayInfo `json:"researchUse"`
}

// GeneticContext bündelt die GWAS-Sicht eines Biomarkers.
type GeneticContext struct {
	GWASVariants []models.GWASAssociation `json:"gwasVariants"`
	GeneSymbols  []string                 `json:"geneSymbols"`
}

// StrategyBrief ist das vollständige Dossier eines
// (Indikation, Biomarker)-Paars.
type StrategyBrief struct {
	Indication      string               `json:"indication"`
	Biomarker       string               `json:"biomarker"`
	TrialSummary    TrialSummary         `json:"trialSummary"`
	CutoffLandscape CutoffLandscape      `json:"cutoffLandscape"`
	Druggability    DruggabilityView     `json:"druggability"`
	Evidence        EvidenceView         `json:"evidence"`
	AssayLandscape  AssayLandscape       `json:"assayLandscape"`
	GeneticContext  GeneticContext       `json:"geneticContext"`
	Publications    []models.Publication `json:"publications"`
	GeneratedAt     string               `json:"generatedAt"`
}

// Reihenfolge der Evidenz-Level vom reifsten zum frühesten Signal.
var evidenceLevelOrder = []string{
	"FDA guidelines",
	"NCCN guidelines",
	"Late trials",
	"Early trials",
	"Case report",
	"Pre-clinical",
}

// StrategyBrief baut das Dossier. Die sechs Zweige laufen parallel;
// ausgefallene Zweige hinterlassen leere Abschnitte statt das Dossier
// scheitern zu lassen.
func (s *FetchService) StrategyBrief(ctx context.Context, indication, biomarker string) (*StrategyBrief, error) {
	brief := &StrategyBrief{
		Indication:  indication,
		Biomarker:   biomarker,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	leg := func(name string, run func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(); err != nil {
				s.Logger.Warn("Dossier-Zweig fehlgeschlagen",
					zap.String("leg", name),
					zap.String("biomarker", biomarker),
					zap.String("indication", indication),
					zap.Error(err))
			}
		}()
	}

	leg("trials", func() error {
		trials, err := s.TrialsForBiomarker(ctx, indication, biomarker)
		if err != nil {
			return err
		}
		summary, landscape := summarizeTrials(trials)
		mu.Lock()
		brief.TrialSummary = summary
		brief.CutoffLandscape = landscape
		mu.Unlock()
		return nil
	})
	leg("druggability", func() error {
		assocs, err := s.Associations(ctx, indication)
		if err != nil {
			return err
		}
		drugs, err := s.KnownDrugs(ctx, biomarker)
		if err != nil {
			return err
		}
		view := summarizeDruggability(biomarker, assocs, drugs)
		mu.Lock()
		brief.Druggability = view
		mu.Unlock()
		return nil
	})
	leg("evidence", func() error {
		evs, err := s.CancerEvidence(ctx, indication)
		if err != nil {
			return err
		}
		view := summarizeEvidence(biomarker, evs)
		mu.Lock()
		brief.Evidence = view
		mu.Unlock()
		return nil
	})
	leg("gwas", func() error {
		vars, err := s.GWASVariants(ctx, biomarker)
		if err != nil {
			return err
		}
		gctx := summarizeGenetics(vars)
		mu.Lock()
		brief.GeneticContext = gctx
		mu.Unlock()
		return nil
	})
	leg("pubmed", func() error {
		pubs, err := s.Publications(ctx, indication, biomarker)
		if err != nil {
			return err
		}
		if len(pubs) > 10 {
			pubs = pubs[:10]
		}
		for i := range pubs {
			if len(pubs[i].Authors) > 3 {
				pubs[i].Authors = pubs[i].Authors[:3]
			}
		}
		mu.Lock()
		brief.Publications = pubs
		mu.Unlock()
		return nil
	})

	// Assay-Landschaft aus dem Wissensbestand.
	var landscape AssayLandscape
	for _, a := range s.Knowledge.Assays() {
		measures := false
		for _, bm := range a.BiomarkerNames {
			if bm == biomarker {
				measures = true
				break
			}
		}
		if !measures {
			continue
		}
		if a.FDAApproved {
			landscape.FDAApproved = append(landscape.FDAApproved, a)
		} else {
			landscape.ResearchUse = append(landscape.ResearchUse, a)
		}
	}
	brief.AssayLandscape = landscape

	wg.Wait()
	return brief, nil
}

// summarizeTrials verdichtet die Usage-Zeilen zu Studienlage und
// Cutoff-Landschaft.
func summarizeTrials(usages []models.TrialBiomarkerUsage) (TrialSummary, CutoffLandscape) {
	summary := TrialSummary{Total: len(usages)}
	phases := newCounter()
	sponsors := newCounter()
	cutoffs := newCounter()
	assays := newCounter()
	years := map[int]int{}
	cdx := 0

	for _, u := range usages {
		if u.Status == models.StatusRecruiting {
			summary.Recruiting++
		}
		phases.add(u.Phase)
		if u.Sponsor != "" {
			sponsors.add(u.Sponsor)
		}
		if u.CutoffValue != "" {
			label := u.CutoffValue
			if u.CutoffUnit != "" {
				label = fmt.Sprintf("%s %s %s", u.CutoffOperator, u.CutoffValue, u.CutoffUnit)
			}
			cutoffs.add(label)
		}
		if u.AssayName != "" {
			assays.add(u.AssayName)
		}
		if u.CompanionDiagnostic {
			cdx++
		}
		if u.StartYear > 0 {
			years[u.StartYear]++
			if summary.FirstTrialYear == 0 || u.StartYear < summary.FirstTrialYear {
				summary.FirstTrialYear = u.StartYear
			}
			if u.StartYear > summary.LatestTrialYear {
				summary.LatestTrialYear = u.StartYear
			}
		}
	}

	summary.ByPhase = phases.sortedDesc()
	summary.TopSponsors = sponsors.sortedDesc()
	if len(summary.TopSponsors) > 10 {
		summary.TopSponsors = summary.TopSponsors[:10]
	}
	for year, n := range years {
		summary.YearTrend = append(summary.YearTrend, YearCount{Year: year, Trials: n})
	}
	sort.Slice(summary.YearTrend, func(i, j int) bool { return summary.YearTrend[i].Year < summary.YearTrend[j].Year })

	landscape := CutoffLandscape{
		DominantCutoffs:      cutoffs.sortedDesc(),
		AssaysUsed:           assays.sortedDesc(),
		CompanionDiagnostics: cdx,
		CutoffTrends:         BuildCutoffTrends(usages),
	}
	if len(landscape.DominantCutoffs) > 10 {
		landscape.DominantCutoffs = landscape.DominantCutoffs[:10]
	}
	if len(landscape.AssaysUsed) > 10 {
		landscape.AssaysUsed = landscape.AssaysUsed[:10]
	}
	return summary, landscape
}

// summarizeDruggability wählt die Zeile des Biomarkers und teilt die
// Medikamente in zugelassen und Pipeline (Phase >= 2) auf.
func summarizeDruggability(biomarker string, assocs []models.TargetAssociation, drugs []models.KnownDrug) DruggabilityView {
	var view DruggabilityView
	for _, a := range assocs {
		if a.BiomarkerSymbol != biomarker {
			continue
		}
		view.OverallScore = a.OverallScore
		view.DrugScore = a.DrugScore
		view.CancerBiomarkerScore = a.CancerBiomarkerScore
		view.SMTractable = a.SMTractable
		view.ABTractable = a.ABTractable
		view.PROTACTractable = a.PROTACTractable
		break
	}

	view.TotalDrugCandidates = len(drugs)
	for _, d := range drugs {
		if d.IsApproved {
			view.ApprovedDrugs = append(view.ApprovedDrugs, d)
			view.TotalApproved++
		} else if d.MaxPhase >= 2 {
			view.PipelineDrugs = append(view.PipelineDrugs, d)
		}
	}
	sort.SliceStable(view.PipelineDrugs, func(i, j int) bool {
		return view.PipelineDrugs[i].MaxPhase > view.PipelineDrugs[j].MaxPhase
	})
	return view
}

// summarizeEvidence zählt die Evidenz des Biomarkers nach Level in
// fester Reifegrad-Reihenfolge; unbekannte Level folgen dahinter.
func summarizeEvidence(biomarker string, evs []models.CancerEvidence) EvidenceView {
	counts := newCounter()
	total := 0
	for _, ev := range evs {
		if ev.BiomarkerSymbol != biomarker {
			continue
		}
		counts.add(ev.Confidence)
		total++
	}

	view := EvidenceView{Total: total}
	seen := make(map[string]bool)
	for _, level := range evidenceLevelOrder {
		if n, ok := counts.counts[level]; ok {
			view.ByLevel = append(view.ByLevel, NameCount{Name: level, Value: n})
			seen[level] = true
		}
	}
	for _, level := range counts.order {
		if !seen[level] {
			view.ByLevel = append(view.ByLevel, NameCount{Name: level, Value: counts.counts[level]})
		}
	}
	return view
}

// summarizeGenetics sortiert die Varianten nach p-Wert aufsteigend,
// behält die zehn stärksten und sammelt die Gensymbole.
func summarizeGenetics(vars []models.GWASAssociation) GeneticContext {
	sort.SliceStable(vars, func(i, j int) bool { return vars[i].PValue < vars[j].PValue })
	gctx := GeneticContext{}
	if len(vars) > 10 {
		gctx.GWASVariants = vars[:10]
	} else {
		gctx.GWASVariants = vars
	}
	seen := make(map[string]bool)
	for _, v := range gctx.GWASVariants {
		if v.Gene != "" && !seen[v.Gene] {
			seen[v.Gene] = true
			gctx.GeneSymbols = append(gctx.GeneSymbols, v.Gene)
		}
	}
	return gctx
}
