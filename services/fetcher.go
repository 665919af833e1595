package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"biomarkerscope/cache"
	"biomarkerscope/config"
	"biomarkerscope/knowledge"
	"biomarkerscope/models"
	"biomarkerscope/providers/ctgov"
	"biomarkerscope/providers/gwas"
	"biomarkerscope/providers/opentargets"
	"biomarkerscope/providers/pubmed"
)

var (
	providerFetchCounter *prometheus.CounterVec
	cacheRequestCounter  *prometheus.CounterVec
	usageRowCounter      prometheus.Counter
)

func init() {
	providerFetchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_fetches_total",
			Help: "Total number of upstream provider fetches, by provider and result.",
		},
		[]string{"provider", "result"},
	)
	cacheRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total number of cache lookups, by result.",
		},
		[]string{"result"},
	)
	usageRowCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trial_usages_normalized_total",
			Help: "Total number of trial biomarker usage rows produced by normalization.",
		},
	)
	prometheus.MustRegister(providerFetchCounter, cacheRequestCounter, usageRowCounter)
}

// FetchService bündelt alle Provider hinter dem Session-Cache. Laufende
// Abrufe desselben Schlüssels werden über singleflight zusammengelegt,
// damit parallele Dashboard-Anfragen denselben Upstream-Call teilen.
type FetchService struct {
	Config    *config.Config
	Logger    *zap.Logger
	Knowledge *knowledge.Table
	Cache     *cache.Cache

	CTGov       *ctgov.Fetcher
	OpenTargets *opentargets.Fetcher
	GWAS        *gwas.Fetcher
	PubMed      *pubmed.Fetcher

	group singleflight.Group
}

// NewFetchService erstellt den Service mit allen Providern.
func NewFetchService(cfg *config.Config, logger *zap.Logger, tbl *knowledge.Table, c *cache.Cache) *FetchService {
	return &FetchService{
		Config:      cfg,
		Logger:      logger,
		Knowledge:   tbl,
		Cache:       c,
		CTGov:       ctgov.NewFetcher(cfg, logger),
		OpenTargets: opentargets.NewFetcher(cfg, logger),
		GWAS:        gwas.NewFetcher(cfg, logger),
		PubMed:      pubmed.NewFetcher(cfg, logger),
	}
}

// cached bedient einen Schlüssel aus dem Cache oder führt den Abruf
// genau einmal aus und legt das Ergebnis ab.
func (s *FetchService) cached(key string, fetch func() (interface{}, error)) (interface{}, error) {
	if v, ok := s.Cache.Get(key); ok {
		cacheRequestCounter.WithLabelValues("hit").Inc()
		return v, nil
	}
	cacheRequestCounter.WithLabelValues("miss").Inc()

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		s.Cache.Set(key, v)
		return v, nil
	})
	return v, err
}

func (s *FetchService) countFetch(provider string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	providerFetchCounter.WithLabelValues(provider, result).Inc()
}

// searchQuery liefert den Registry-Suchbegriff einer Indikation; der
// Anzeigename aus den Referenzdaten ist spezifischer als das Kürzel.
func (s *FetchService) searchQuery(indication string) string {
	for _, ind := range s.Knowledge.Indications() {
		if strings.EqualFold(ind.Name, indication) {
			return ind.DisplayName
		}
	}
	return indication
}

// TrialsForIndication lädt und normalisiert alle Studien einer
// Indikation. Eindeutigkeit gilt über (NCT-ID, Biomarker); unvollständige
// Rohdatensätze werden verworfen.
func (s *FetchService) TrialsForIndication(ctx context.Context, indication string) ([]models.TrialBiomarkerUsage, error) {
	key := "trials:" + strings.ToLower(indication)
	v, err := s.cached(key, func() (interface{}, error) {
		studies, err := s.CTGov.SearchCondition(ctx, s.searchQuery(indication))
		s.countFetch("ctgov", err)
		if err != nil {
			return nil, err
		}
		return s.normalizeStudies(studies), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.TrialBiomarkerUsage), nil
}

// TrialsForBiomarker lädt Studien über eine biomarker-spezifische Suche;
// der Biomarker wird als Hint an die Normalisierung durchgereicht.
func (s *FetchService) TrialsForBiomarker(ctx context.Context, indication, biomarker string) ([]models.TrialBiomarkerUsage, error) {
	key := fmt.Sprintf("trials:%s:%s", strings.ToLower(indication), strings.ToLower(biomarker))
	v, err := s.cached(key, func() (interface{}, error) {
		term := fmt.Sprintf("%s %s", biomarker, s.searchQuery(indication))
		studies, err := s.CTGov.SearchTerm(ctx, term)
		s.countFetch("ctgov", err)
		if err != nil {
			return nil, err
		}

		seen := make(map[string]bool)
		var out []models.TrialBiomarkerUsage
		dropped := 0
		for i := range studies {
			u, err := Normalize(&studies[i], biomarker)
			if err != nil {
				dropped++
				continue
			}
			if seen[u.NCTID] {
				continue
			}
			seen[u.NCTID] = true
			out = append(out, u)
		}
		if dropped > 0 {
			s.Logger.Warn("Unvollständige Studiendatensätze verworfen", zap.Int("dropped", dropped), zap.String("biomarker", biomarker))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.TrialBiomarkerUsage), nil
}

// normalizeStudies erzeugt Usage-Zeilen für alle Studien und
// dedupliziert über (NCT-ID, Biomarker).
func (s *FetchService) normalizeStudies(studies []ctgov.Study) []models.TrialBiomarkerUsage {
	seen := make(map[string]bool)
	var out []models.TrialBiomarkerUsage
	dropped := 0
	for i := range studies {
		usages, err := NormalizeAll(&studies[i])
		if err != nil {
			dropped++
			continue
		}
		for _, u := range usages {
			key := u.NCTID + "|" + u.BiomarkerName
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, u)
		}
	}
	if dropped > 0 {
		s.Logger.Warn("Unvollständige Studiendatensätze verworfen", zap.Int("dropped", dropped))
	}
	usageRowCounter.Add(float64(len(out)))
	return out
}

// TrialDetail lädt die vollständige Sicht auf eine einzelne Studie.
func (s *FetchService) TrialDetail(ctx context.Context, nctID string) (*models.TrialDetail, error) {
	key := "trial:" + nctID
	v, err := s.cached(key, func() (interface{}, error) {
		study, err := s.CTGov.FetchStudy(ctx, nctID)
		s.countFetch("ctgov", err)
		if err != nil {
			return nil, err
		}
		d := ctgov.ToTrialDetail(study)
		return &d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.TrialDetail), nil
}

// Associations lädt die Druggability-Zeilen aller Biomarker-Gene für
// eine Indikation. Einzelne Gen-Fehlschläge fallen weg.
func (s *FetchService) Associations(ctx context.Context, indication string) ([]models.TargetAssociation, error) {
	efoID, ok := opentargets.IndicationEFOMap[indication]
	if !ok {
		return nil, nil
	}
	key := "ot:assoc:" + efoID
	v, err := s.cached(key, func() (interface{}, error) {
		assocs, err := s.OpenTargets.DiseaseAssociations(ctx, efoID)
		s.countFetch("opentargets", err)
		if err != nil {
			return nil, err
		}

		var tasks []func() (*models.TargetAssociation, error)
		for bm, genes := range opentargets.BiomarkerGeneMap {
			for _, gene := range genes {
				bm, gene := bm, gene
				tasks = append(tasks, func() (*models.TargetAssociation, error) {
					ta, err := s.OpenTargets.TargetAssociation(ctx, bm, indication, gene, assocs)
					s.countFetch("opentargets", err)
					return ta, err
				})
			}
		}
		settled := SettleAll(tasks...)
		for _, err := range settled.Failures {
			s.Logger.Warn("Target-Abruf fehlgeschlagen", zap.String("indication", indication), zap.Error(err))
		}

		out := make([]models.TargetAssociation, 0, len(settled.Results))
		for _, ta := range settled.Results {
			out = append(out, *ta)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.TargetAssociation), nil
}

// KnownDrugs lädt die Medikamentenliste eines Biomarkers über alle
// seine Gene.
func (s *FetchService) KnownDrugs(ctx context.Context, biomarker string) ([]models.KnownDrug, error) {
	genes, ok := opentargets.BiomarkerGeneMap[biomarker]
	if !ok {
		return nil, nil
	}
	key := "ot:drugs:" + biomarker
	v, err := s.cached(key, func() (interface{}, error) {
		var tasks []func() ([]models.KnownDrug, error)
		for _, gene := range genes {
			gene := gene
			tasks = append(tasks, func() ([]models.KnownDrug, error) {
				drugs, err := s.OpenTargets.KnownDrugs(ctx, gene)
				s.countFetch("opentargets", err)
				return drugs, err
			})
		}
		settled := SettleAll(tasks...)
		for _, err := range settled.Failures {
			s.Logger.Warn("Drug-Abruf fehlgeschlagen", zap.String("biomarker", biomarker), zap.Error(err))
		}
		var out []models.KnownDrug
		for _, drugs := range settled.Results {
			out = append(out, drugs...)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.KnownDrug), nil
}

// CancerEvidence lädt die Cancer-Biomarker-Evidenz einer Indikation.
func (s *FetchService) CancerEvidence(ctx context.Context, indication string) ([]models.CancerEvidence, error) {
	efoID, ok := opentargets.IndicationEFOMap[indication]
	if !ok {
		return nil, nil
	}
	key := "ot:evidence:" + efoID
	v, err := s.cached(key, func() (interface{}, error) {
		evs, err := s.OpenTargets.CancerEvidence(ctx, efoID, opentargets.AllEnsemblIDs())
		s.countFetch("opentargets", err)
		if err != nil {
			return nil, err
		}
		return evs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.CancerEvidence), nil
}

// GWASVariants lädt die genetischen Assoziationen aller Gene eines
// Biomarkers.
func (s *FetchService) GWASVariants(ctx context.Context, biomarker string) ([]models.GWASAssociation, error) {
	genes, ok := opentargets.BiomarkerGeneMap[biomarker]
	if !ok {
		return nil, nil
	}
	key := "gwas:" + biomarker
	v, err := s.cached(key, func() (interface{}, error) {
		var tasks []func() ([]models.GWASAssociation, error)
		for _, gene := range genes {
			gene := gene
			tasks = append(tasks, func() ([]models.GWASAssociation, error) {
				vars, err := s.GWAS.SearchByGene(ctx, gene.Symbol)
				s.countFetch("gwas", err)
				return vars, err
			})
		}
		settled := SettleAll(tasks...)
		for _, err := range settled.Failures {
			s.Logger.Warn("GWAS-Abruf fehlgeschlagen", zap.String("biomarker", biomarker), zap.Error(err))
		}
		var out []models.GWASAssociation
		for _, vars := range settled.Results {
			out = append(out, vars...)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.GWASAssociation), nil
}

// Publications lädt Literatur zu einem (Indikation, Biomarker)-Paar und
// taggt die Indikations-Erwähnung.
func (s *FetchService) Publications(ctx context.Context, indication, biomarker string) ([]models.Publication, error) {
	key := fmt.Sprintf("pubmed:%s:%s", strings.ToLower(indication), strings.ToLower(biomarker))
	v, err := s.cached(key, func() (interface{}, error) {
		parts := []string{biomarker}
		if indication != "" {
			parts = append(parts, s.searchQuery(indication))
		}
		parts = append(parts, "biomarker")
		pubs, err := s.PubMed.Search(ctx, strings.Join(parts, " "), 30)
		s.countFetch("pubmed", err)
		if err != nil {
			return nil, err
		}
		for i := range pubs {
			pubs[i].IndicationMentions = []string{indication}
		}
		return pubs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Publication), nil
}
