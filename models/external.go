package models

// Provenance benennt die Herkunft eines externen Datensatzes. Sie wird
// unverändert neben jedem daraus abgeleiteten Wert mitgeführt
// (Zitierpflicht).
type Provenance struct {
	Source     string `json:"source"`
	Version    string `json:"version,omitempty"`
	AccessedAt string `json:"accessedAt"`
}

// GWASAssociation ist ein SNP-Datensatz aus dem GWAS-Katalog.
type GWASAssociation struct {
	RSID       string     `json:"rsId"`
	Gene       string     `json:"gene"`
	TraitName  string     `json:"trait"`
	PValue     float64    `json:"pValue"`
	OddsRatio  float64    `json:"oddsRatio,omitempty"`
	RiskAllele string     `json:"riskAllele,omitempty"`
	Population string     `json:"population,omitempty"`
	PubMedID   string     `json:"pubmedId,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// TargetAssociation bündelt Druggability-Scores und Tractability-Flags
// aus der Open-Targets-Plattform für ein (Biomarker, Indikation)-Paar.
type TargetAssociation struct {
	BiomarkerSymbol      string     `json:"biomarkerSymbol"`
	IndicationName       string     `json:"indicationName"`
	OverallScore         float64    `json:"overallScore"`
	DrugScore            float64    `json:"drugScore"`
	CancerBiomarkerScore float64    `json:"cancerBiomarkerScore"`
	LiteratureScore      float64    `json:"literatureScore"`
	SMTractable          bool       `json:"smTractable"`
	SMHasApprovedDrug    bool       `json:"smHasApprovedDrug"`
	ABTractable          bool       `json:"abTractable"`
	ABHasApprovedDrug    bool       `json:"abHasApprovedDrug"`
	PROTACTractable      bool       `json:"protacTractable"`
	UniqueDrugs          int        `json:"uniqueDrugs"`
	ApprovedDrugCount    int        `json:"approvedDrugCount"`
	Provenance           Provenance `json:"provenance"`
}

// KnownDrug ist ein Medikament aus Open Targets / ChEMBL.
type KnownDrug struct {
	Name              string     `json:"name"`
	Type              string     `json:"type,omitempty"`
	MaxPhase          float64    `json:"maxPhase"`
	IsApproved        bool       `json:"isApproved"`
	YearApproved      int        `json:"yearApproved,omitempty"`
	MechanismOfAction string     `json:"moa,omitempty"`
	Provenance        Provenance `json:"provenance"`
}

// CancerEvidence ist ein Biomarker-Evidenzdatensatz (Sensitivität/
// Resistenz) mit Konfidenzstufe, z.B. "FDA guidelines" oder "Late trials".
type CancerEvidence struct {
	BiomarkerSymbol string     `json:"biomarker"`
	DrugName        string     `json:"drug,omitempty"`
	Confidence      string     `json:"confidence"`
	Disease         string     `json:"disease,omitempty"`
	Provenance      Provenance `json:"provenance"`
}

// Publication ist ein PubMed-Artikel mit Erwähnungs-Tags.
type Publication struct {
	PMID               string     `json:"pmid"`
	Title              string     `json:"title"`
	Journal            string     `json:"journal,omitempty"`
	PubDate            string     `json:"pubDate,omitempty"`
	Authors            []string   `json:"authors"`
	DOI                string     `json:"doi,omitempty"`
	BiomarkerMentions  []string   `json:"biomarkerMentions,omitempty"`
	IndicationMentions []string   `json:"indicationMentions,omitempty"`
	Provenance         Provenance `json:"provenance"`
}
