package ctgov

// Rohtypen der ClinicalTrials.gov API v2. Es werden nur die Felder
// abgebildet, die weiterverarbeitet werden.

// SearchResponse ist eine Ergebnisseite von GET /studies.
type SearchResponse struct {
	Studies       []Study `json:"studies"`
	TotalCount    int     `json:"totalCount"`
	NextPageToken string  `json:"nextPageToken"`
}

// Study ist ein roher Studiendatensatz.
type Study struct {
	ProtocolSection ProtocolSection `json:"protocolSection"`
}

type ProtocolSection struct {
	Identification    IdentificationModule       `json:"identificationModule"`
	Status            StatusModule               `json:"statusModule"`
	Design            DesignModule               `json:"designModule"`
	Sponsor           SponsorCollaboratorsModule `json:"sponsorCollaboratorsModule"`
	Description       DescriptionModule          `json:"descriptionModule"`
	Eligibility       EligibilityModule          `json:"eligibilityModule"`
	ArmsInterventions ArmsInterventionsModule    `json:"armsInterventionsModule"`
	Outcomes          OutcomesModule             `json:"outcomesModule"`
	Conditions        ConditionsModule           `json:"conditionsModule"`
}

type IdentificationModule struct {
	NCTID         string `json:"nctId"`
	BriefTitle    string `json:"briefTitle"`
	OfficialTitle string `json:"officialTitle"`
}

type DateStruct struct {
	Date string `json:"date"` // "2006-01-02" oder "2006-01"
}

type StatusModule struct {
	OverallStatus        string     `json:"overallStatus"`
	StartDateStruct      DateStruct `json:"startDateStruct"`
	CompletionDateStruct DateStruct `json:"completionDateStruct"`
}

type EnrollmentInfo struct {
	Count int    `json:"count"`
	Type  string `json:"type"`
}

type MaskingInfo struct {
	Masking string `json:"masking"`
}

type DesignInfo struct {
	Allocation        string      `json:"allocation"`
	InterventionModel string      `json:"interventionModel"`
	PrimaryPurpose    string      `json:"primaryPurpose"`
	MaskingInfo       MaskingInfo `json:"maskingInfo"`
}

type DesignModule struct {
	StudyType      string         `json:"studyType"`
	Phases         []string       `json:"phases"`
	DesignInfo     DesignInfo     `json:"designInfo"`
	EnrollmentInfo EnrollmentInfo `json:"enrollmentInfo"`
}

type LeadSponsor struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

type SponsorCollaboratorsModule struct {
	LeadSponsor LeadSponsor `json:"leadSponsor"`
}

type DescriptionModule struct {
	BriefSummary string `json:"briefSummary"`
}

type EligibilityModule struct {
	EligibilityCriteria string `json:"eligibilityCriteria"`
}

type RawIntervention struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ArmsInterventionsModule struct {
	Interventions []RawIntervention `json:"interventions"`
}

type RawOutcome struct {
	Measure   string `json:"measure"`
	TimeFrame string `json:"timeFrame"`
}

type OutcomesModule struct {
	PrimaryOutcomes   []RawOutcome `json:"primaryOutcomes"`
	SecondaryOutcomes []RawOutcome `json:"secondaryOutcomes"`
}

type ConditionsModule struct {
	Conditions []string `json:"conditions"`
	Keywords   []string `json:"keywords"`
}
