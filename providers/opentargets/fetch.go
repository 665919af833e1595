package opentargets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"biomarkerscope/config"
	"biomarkerscope/models"
	"biomarkerscope/providers"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Gene ist ein (Symbol, Ensembl-ID)-Paar.
type Gene struct {
	Symbol    string
	EnsemblID string
}

// BiomarkerGeneMap ordnet jedem Biomarker seine abzufragenden Gene zu.
// Einige Biomarker erfassen mehrere Gene (BRCA1/2, MSI, NTRK).
var BiomarkerGeneMap = map[string][]Gene{
	"EGFR":    {{"EGFR", "ENSG00000146648"}},
	"KRAS":    {{"KRAS", "ENSG00000133703"}},
	"BRAF":    {{"BRAF", "ENSG00000157764"}},
	"ALK":     {{"ALK", "ENSG00000171094"}},
	"HER2":    {{"ERBB2", "ENSG00000141736"}},
	"PD-L1":   {{"CD274", "ENSG00000120217"}},
	"NTRK":    {{"NTRK1", "ENSG00000198400"}, {"NTRK2", "ENSG00000148053"}, {"NTRK3", "ENSG00000140538"}},
	"BRCA1/2": {{"BRCA1", "ENSG00000012048"}, {"BRCA2", "ENSG00000139618"}},
	"PIK3CA":  {{"PIK3CA", "ENSG00000121879"}},
	"ER":      {{"ESR1", "ENSG00000091831"}},
	"PR":      {{"PGR", "ENSG00000082175"}},
	"MSI":     {{"MLH1", "ENSG00000076242"}, {"MSH2", "ENSG00000095002"}, {"MSH6", "ENSG00000116062"}},
	"Ki-67":   {{"MKI67", "ENSG00000148773"}},
}

// IndicationEFOMap ordnet Indikationsnamen ihre EFO-IDs zu.
var IndicationEFOMap = map[string]string{
	"NSCLC":             "EFO_0003060",
	"Breast Cancer":     "EFO_0000305",
	"Melanoma":          "EFO_0000756",
	"Colorectal Cancer": "EFO_1001951",
	"Gastric Cancer":    "EFO_0000178",
}

const associationQuery = `
query ($efoId: String!) {
  disease(efoId: $efoId) {
    associatedTargets(page: { index: 0, size: 500 }) {
      rows {
        target { id approvedSymbol }
        score
        datasourceScores { id score }
      }
    }
  }
}`

const targetQuery = `
query ($ensemblId: String!) {
  target(ensemblId: $ensemblId) {
    approvedSymbol
    tractability { label modality value }
    knownDrugs(size: 1) { uniqueDrugs count }
  }
}`

const drugsQuery = `
query ($ensemblId: String!) {
  target(ensemblId: $ensemblId) {
    approvedSymbol
    knownDrugs(size: 200) {
      uniqueDrugs
      count
      rows {
        drug { id name drugType maximumClinicalTrialPhase isApproved yearOfFirstApproval }
        disease { id name }
        phase
        mechanismOfAction
      }
    }
  }
}`

const evidenceQuery = `
query ($efoId: String!, $ensemblIds: [String!]!) {
  disease(efoId: $efoId) {
    evidences(ensemblIds: $ensemblIds, datasourceIds: ["cancer_biomarkers"], size: 500) {
      count
      rows {
        target { approvedSymbol id }
        diseaseFromSource
        confidence
        drug { name }
      }
    }
  }
}`

// Fetcher kapselt die GraphQL-Abfragen gegen die Open-Targets-Plattform.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des Open-Targets-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "opentargets"
}

func (f *Fetcher) post(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Config.OpenTargetsGraphQL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("opentargets antwortete mit status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// DiseaseAssociations lädt die Top-500-Targetassoziationen einer
// Indikation, indiziert nach Ensembl-ID.
func (f *Fetcher) DiseaseAssociations(ctx context.Context, efoID string) (map[string]AssociationRow, error) {
	var resp associationResponse
	if err := f.post(ctx, associationQuery, map[string]interface{}{"efoId": efoID}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("opentargets graphql: %s", resp.Errors[0].Message)
	}
	if resp.Data.Disease == nil {
		return nil, fmt.Errorf("unbekannte EFO-ID %q", efoID)
	}
	out := make(map[string]AssociationRow)
	for _, row := range resp.Data.Disease.AssociatedTargets.Rows {
		out[row.Target.ID] = row
	}
	f.Logger.Debug("Disease-Assoziationen geladen", zap.String("efo_id", efoID), zap.Int("targets", len(out)))
	return out, nil
}

// TargetAssociation baut die Druggability-Zeile für ein (Biomarker-Gen,
// Indikation)-Paar aus Assoziationsscore und Tractability zusammen.
func (f *Fetcher) TargetAssociation(ctx context.Context, biomarker, indication string, gene Gene, assocs map[string]AssociationRow) (*models.TargetAssociation, error) {
	var resp targetResponse
	if err := f.post(ctx, targetQuery, map[string]interface{}{"ensemblId": gene.EnsemblID}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("opentargets graphql: %s", resp.Errors[0].Message)
	}
	if resp.Data.Target == nil {
		return nil, fmt.Errorf("unbekanntes target %q", gene.EnsemblID)
	}
	t := resp.Data.Target

	ta := &models.TargetAssociation{
		BiomarkerSymbol: biomarker,
		IndicationName:  indication,
		UniqueDrugs:     t.KnownDrugs.UniqueDrugs,
		Provenance:      providers.NewProvenance("Open Targets Platform", "v4"),
	}
	if row, ok := assocs[gene.EnsemblID]; ok {
		ta.OverallScore = row.Score
		for _, ds := range row.DatasourceScores {
			switch ds.ID {
			case "chembl":
				ta.DrugScore = ds.Score
			case "cancer_biomarkers":
				ta.CancerBiomarkerScore = ds.Score
			case "europepmc":
				ta.LiteratureScore = ds.Score
			}
		}
	}

	tract := make(map[[2]string]bool, len(t.Tractability))
	for _, tr := range t.Tractability {
		tract[[2]string{tr.Modality, tr.Label}] = tr.Value
	}
	anyOf := func(modality string, labels ...string) bool {
		for _, l := range labels {
			if tract[[2]string{modality, l}] {
				return true
			}
		}
		return false
	}
	ta.SMHasApprovedDrug = tract[[2]string{"SM", "Approved Drug"}]
	ta.SMTractable = ta.SMHasApprovedDrug || anyOf("SM", "Advanced Clinical", "Phase 1 Clinical", "High-Quality Pocket", "Druggable Family")
	ta.ABHasApprovedDrug = tract[[2]string{"AB", "Approved Drug"}]
	ta.ABTractable = ta.ABHasApprovedDrug || anyOf("AB", "Advanced Clinical", "Phase 1 Clinical", "UniProt loc high conf", "GO CC high conf")
	ta.PROTACTractable = anyOf("PR", "Approved Drug", "Advanced Clinical", "Phase 1 Clinical", "Literature", "Small Molecule Binder")

	return ta, nil
}

// KnownDrugs lädt die Medikamentenliste eines Targets; dedupliziert wird
// über (Drug-ID, Disease-ID).
func (f *Fetcher) KnownDrugs(ctx context.Context, gene Gene) ([]models.KnownDrug, error) {
	var resp drugsResponse
	if err := f.post(ctx, drugsQuery, map[string]interface{}{"ensemblId": gene.EnsemblID}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("opentargets graphql: %s", resp.Errors[0].Message)
	}
	if resp.Data.Target == nil {
		return nil, fmt.Errorf("unbekanntes target %q", gene.EnsemblID)
	}

	prov := providers.NewProvenance("Open Targets Platform / ChEMBL", "v4")
	seen := make(map[[2]string]bool)
	var out []models.KnownDrug
	for _, row := range resp.Data.Target.KnownDrugs.Rows {
		key := [2]string{row.Drug.ID, row.Disease.ID}
		if row.Drug.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.KnownDrug{
			Name:              row.Drug.Name,
			Type:              row.Drug.DrugType,
			MaxPhase:          row.Drug.MaximumClinicalTrialPhase,
			IsApproved:        row.Drug.IsApproved,
			YearApproved:      row.Drug.YearOfFirstApproval,
			MechanismOfAction: row.MechanismOfAction,
			Provenance:        prov,
		})
	}
	return out, nil
}

// CancerEvidence lädt die Cancer-Biomarker-Evidenz für eine Indikation
// über alle übergebenen Targets in einer Batch-Abfrage.
func (f *Fetcher) CancerEvidence(ctx context.Context, efoID string, ensemblIDs []string) ([]models.CancerEvidence, error) {
	vars := map[string]interface{}{"efoId": efoID, "ensemblIds": ensemblIDs}
	var resp evidenceResponse
	if err := f.post(ctx, evidenceQuery, vars, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("opentargets graphql: %s", resp.Errors[0].Message)
	}
	if resp.Data.Disease == nil {
		return nil, fmt.Errorf("unbekannte EFO-ID %q", efoID)
	}

	prov := providers.NewProvenance("Open Targets Platform / Cancer Genome Interpreter", "v4")
	var out []models.CancerEvidence
	for _, row := range resp.Data.Disease.Evidences.Rows {
		ev := models.CancerEvidence{
			BiomarkerSymbol: BiomarkerForGene(row.Target.ApprovedSymbol),
			Confidence:      row.Confidence,
			Disease:         row.DiseaseFromSource,
			Provenance:      prov,
		}
		if row.Drug != nil {
			ev.DrugName = row.Drug.Name
		}
		out = append(out, ev)
	}
	return out, nil
}

// BiomarkerForGene mappt ein Gensymbol zurück auf den Biomarker-Namen;
// unbekannte Symbole bleiben unverändert.
func BiomarkerForGene(symbol string) string {
	for bm, genes := range BiomarkerGeneMap {
		for _, g := range genes {
			if g.Symbol == symbol {
				return bm
			}
		}
	}
	return symbol
}

// AllEnsemblIDs liefert alle Ensembl-IDs der Biomarker-Genkarte.
func AllEnsemblIDs() []string {
	var out []string
	for _, genes := range BiomarkerGeneMap {
		for _, g := range genes {
			out = append(out, g.EnsemblID)
		}
	}
	return out
}
