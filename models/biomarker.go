package models

// Biomarker-Kategorien (geschlossenes Vokabular).
const (
	CategoryPredictive      = "Predictive"
	CategoryPrognostic      = "Prognostic"
	CategoryDiagnostic      = "Diagnostic"
	CategoryPharmacodynamic = "Pharmacodynamic"
	CategorySafety          = "Safety"
	CategoryMonitoring      = "Monitoring"
)

// Biomarker ist ein Referenzdatensatz, wird einmal geladen und danach
// nur gelesen.
type Biomarker struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Aliases     []string `json:"aliases" yaml:"aliases"`
	Category    string   `json:"category" yaml:"category"`
	Description string   `json:"description" yaml:"description"`
	GeneSymbol  string   `json:"geneSymbol,omitempty" yaml:"geneSymbol"`
	ProteinID   string   `json:"proteinId,omitempty" yaml:"proteinId"`
}

// AssayInfo beschreibt einen diagnostischen Test. Referenzdaten.
type AssayInfo struct {
	Name           string   `json:"name" yaml:"name"`
	Manufacturer   string   `json:"manufacturer" yaml:"manufacturer"`
	Platform       string   `json:"platform" yaml:"platform"`
	AntibodyClone  string   `json:"antibodyClone,omitempty" yaml:"antibodyClone"`
	FDAApproved    bool     `json:"fdaApproved" yaml:"fdaApproved"`
	CompanionDxFor []string `json:"companionDxFor" yaml:"companionDxFor"`
	BiomarkerNames []string `json:"biomarkerNames" yaml:"biomarkerNames"`
}

// Indication ist eine Tumorentität aus der Referenzliste.
type Indication struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName" yaml:"displayName"`
}
