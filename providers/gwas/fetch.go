package gwas

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"biomarkerscope/config"
	"biomarkerscope/models"
	"biomarkerscope/providers"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// GenomeWideSignificance ist die p-Wert-Schwelle für Trait-Suchen.
const GenomeWideSignificance = 5e-8

// Fetcher kapselt die Abfragen gegen den GWAS-Katalog.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des GWAS-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "gwas"
}

// SearchByTrait sucht Assoziationen zu einem Trait-Begriff und filtert
// auf genomweite Signifikanz.
func (f *Fetcher) SearchByTrait(ctx context.Context, trait string) ([]models.GWASAssociation, error) {
	searchURL := fmt.Sprintf("%s/associations/search/findByEfoTrait?efoTrait=%s",
		f.Config.GWASBaseURL, url.QueryEscape(trait))
	assocs, err := f.fetch(ctx, searchURL, trait)
	if err != nil {
		return nil, err
	}
	out := assocs[:0]
	for _, a := range assocs {
		if a.PValue < GenomeWideSignificance {
			out = append(out, a)
		}
	}
	return out, nil
}

// SearchByGene sucht Assoziationen zu einem Gensymbol, ohne
// Signifikanzfilter.
func (f *Fetcher) SearchByGene(ctx context.Context, gene string) ([]models.GWASAssociation, error) {
	searchURL := fmt.Sprintf("%s/associations/search/findByGeneName?geneName=%s",
		f.Config.GWASBaseURL, url.QueryEscape(gene))
	return f.fetch(ctx, searchURL, gene)
}

func (f *Fetcher) fetch(ctx context.Context, searchURL, trait string) ([]models.GWASAssociation, error) {
	log := f.Logger.With(zap.String("provider", f.Name()), zap.String("query", trait))
	log.Debug("Rufe GWAS-Katalog auf", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		log.Error("GWAS-Anfrage fehlgeschlagen", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gwas-katalog antwortete mit status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, err
	}

	prov := providers.NewProvenance("NHGRI-EBI GWAS Catalog", "")
	var out []models.GWASAssociation
	for _, raw := range sr.Embedded.Associations {
		a := mapAssociation(raw, trait)
		if a.RSID == "" {
			continue
		}
		a.Provenance = prov
		out = append(out, a)
	}
	log.Info("GWAS-Suche abgeschlossen", zap.Int("associations", len(out)))
	return out, nil
}

// mapAssociation wandelt einen HAL-Datensatz in das Modell um. Der
// Risk-Allele-Name hat die Form "rsID-Allel".
func mapAssociation(raw Association, trait string) models.GWASAssociation {
	a := models.GWASAssociation{
		TraitName: trait,
		PValue:    raw.PvalueMantissa * math.Pow10(raw.PvalueExponent),
		OddsRatio: raw.OrPerCopyNum,
	}
	for _, locus := range raw.Loci {
		for _, ra := range locus.StrongestRiskAlleles {
			rsID, allele := splitRiskAllele(ra.RiskAlleleName)
			if rsID != "" {
				a.RSID = rsID
				a.RiskAllele = allele
				break
			}
		}
		if a.Gene == "" && len(locus.AuthorReportedGenes) > 0 {
			a.Gene = locus.AuthorReportedGenes[0].GeneName
		}
		if a.RSID != "" && a.Gene != "" {
			break
		}
	}
	return a
}

func splitRiskAllele(name string) (rsID, allele string) {
	idx := strings.LastIndex(name, "-")
	if idx < 0 {
		return strings.TrimSpace(name), ""
	}
	return strings.TrimSpace(name[:idx]), strings.TrimSpace(name[idx+1:])
}
