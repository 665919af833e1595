package models

import "regexp"

// NCTIDPattern beschreibt das Format einer gültigen Registry-ID.
var NCTIDPattern = regexp.MustCompile(`^NCT\d{8,}$`)

// Therapeutische Settings (geschlossenes Vokabular).
const (
	SettingFirstLine   = "1L"
	SettingSecondLine  = "2L"
	SettingThirdLine   = "3L+"
	SettingNeoadjuvant = "Neoadjuvant"
	SettingAdjuvant    = "Adjuvant"
	SettingMaintenance = "Maintenance"
	SettingMonotherapy = "Monotherapy"
	SettingCombination = "Combination"
)

// Studien-Status (geschlossenes Vokabular).
const (
	StatusRecruiting       = "Recruiting"
	StatusActive           = "Active"
	StatusCompleted        = "Completed"
	StatusNotYetRecruiting = "Not Yet Recruiting"
	StatusTerminated       = "Terminated"
	StatusWithdrawn        = "Withdrawn"
	StatusSuspended        = "Suspended"
)

// Cutoff beschreibt einen strukturierten Schwellenwert, z.B. "TPS >= 50%".
type Cutoff struct {
	Value    string `json:"value"`
	Unit     string `json:"unit"`
	Operator string `json:"operator"` // >=, >, <=, <, =, positive, negative, high, low
}

// TrialBiomarkerUsage ist eine Zeile pro (Studie, Biomarker)-Paar.
// Eindeutigkeit gilt immer über (NCTID, BiomarkerName); für reine
// Studienzählungen wird nur über die NCTID dedupliziert.
type TrialBiomarkerUsage struct {
	NCTID               string `json:"nctId"`
	TrialTitle          string `json:"trialTitle"`
	BiomarkerName       string `json:"biomarkerName"`
	Setting             string `json:"setting"`
	TumorType           string `json:"tumorType"`
	Phase               string `json:"phase"` // kann kombiniert sein, z.B. "Phase2/Phase3"
	CutoffValue         string `json:"cutoffValue"`
	CutoffUnit          string `json:"cutoffUnit"`
	CutoffOperator      string `json:"cutoffOperator"`
	AssayName           string `json:"assayName"`
	AssayManufacturer   string `json:"assayManufacturer"`
	CompanionDiagnostic bool   `json:"companionDiagnostic"`
	Sponsor             string `json:"sponsor"`
	Status              string `json:"status"`
	StartYear           int    `json:"startYear"`
	EndYear             *int   `json:"endYear,omitempty"`
}

// Intervention ist ein Behandlungsarm-Eintrag aus der Studien-Registry.
type Intervention struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Outcome ist ein primärer oder sekundärer Endpunkt.
type Outcome struct {
	Measure   string `json:"measure"`
	TimeFrame string `json:"timeFrame"`
}

// TrialDetail ist die vollständige Sicht auf eine einzelne Studie,
// wie sie der Registry-Provider liefert.
type TrialDetail struct {
	NCTID               string         `json:"nctId"`
	BriefTitle          string         `json:"briefTitle"`
	OfficialTitle       string         `json:"officialTitle,omitempty"`
	Status              string         `json:"status"`
	Phase               string         `json:"phase"`
	Sponsor             string         `json:"sponsor"`
	SponsorClass        string         `json:"sponsorClass,omitempty"`
	StartDate           string         `json:"startDate,omitempty"`
	StartYear           int            `json:"startYear"`
	CompletionDate      string         `json:"completionDate,omitempty"`
	EnrollmentCount     int            `json:"enrollmentCount"`
	EnrollmentType      string         `json:"enrollmentType,omitempty"`
	BriefSummary        string         `json:"briefSummary,omitempty"`
	EligibilityCriteria string         `json:"eligibilityCriteria,omitempty"`
	Conditions          []string       `json:"conditions"`
	Keywords            []string       `json:"keywords"`
	Interventions       []Intervention `json:"interventions"`
	PrimaryOutcomes     []Outcome      `json:"primaryOutcomes,omitempty"`
	SecondaryOutcomes   []Outcome      `json:"secondaryOutcomes,omitempty"`
	Allocation          string         `json:"allocation,omitempty"`
	InterventionModel   string         `json:"interventionModel,omitempty"`
	PrimaryPurpose      string         `json:"primaryPurpose,omitempty"`
	Masking             string         `json:"masking,omitempty"`
	StudyType           string         `json:"studyType,omitempty"`
}
