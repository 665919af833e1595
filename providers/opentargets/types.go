package opentargets

// GraphQL-Anfrage- und Antworttypen der Open-Targets-Plattform (v4).

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type DatasourceScore struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type TargetRef struct {
	ID             string `json:"id"`
	ApprovedSymbol string `json:"approvedSymbol"`
}

type AssociationRow struct {
	Target           TargetRef         `json:"target"`
	Score            float64           `json:"score"`
	DatasourceScores []DatasourceScore `json:"datasourceScores"`
}

type associatedTargets struct {
	Rows []AssociationRow `json:"rows"`
}

type diseaseAssociations struct {
	AssociatedTargets associatedTargets `json:"associatedTargets"`
}

type associationResponse struct {
	Data struct {
		Disease *diseaseAssociations `json:"disease"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type Tractability struct {
	Label    string `json:"label"`
	Modality string `json:"modality"`
	Value    bool   `json:"value"`
}

type knownDrugsSummary struct {
	UniqueDrugs int `json:"uniqueDrugs"`
	Count       int `json:"count"`
}

type targetInfo struct {
	ApprovedSymbol string            `json:"approvedSymbol"`
	Tractability   []Tractability    `json:"tractability"`
	KnownDrugs     knownDrugsSummary `json:"knownDrugs"`
}

type targetResponse struct {
	Data struct {
		Target *targetInfo `json:"target"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type DrugRef struct {
	ID                        string  `json:"id"`
	Name                      string  `json:"name"`
	DrugType                  string  `json:"drugType"`
	MaximumClinicalTrialPhase float64 `json:"maximumClinicalTrialPhase"`
	IsApproved                bool    `json:"isApproved"`
	YearOfFirstApproval       int     `json:"yearOfFirstApproval"`
}

type DiseaseRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type KnownDrugRow struct {
	Drug              DrugRef    `json:"drug"`
	Disease           DiseaseRef `json:"disease"`
	Phase             float64    `json:"phase"`
	MechanismOfAction string     `json:"mechanismOfAction"`
}

type knownDrugsRows struct {
	UniqueDrugs int            `json:"uniqueDrugs"`
	Count       int            `json:"count"`
	Rows        []KnownDrugRow `json:"rows"`
}

type drugsResponse struct {
	Data struct {
		Target *struct {
			ApprovedSymbol string         `json:"approvedSymbol"`
			KnownDrugs     knownDrugsRows `json:"knownDrugs"`
		} `json:"target"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type EvidenceRow struct {
	Target            TargetRef `json:"target"`
	DiseaseFromSource string    `json:"diseaseFromSource"`
	Confidence        string    `json:"confidence"`
	Drug              *struct {
		Name string `json:"name"`
	} `json:"drug"`
}

type evidenceResponse struct {
	Data struct {
		Disease *struct {
			Evidences struct {
				Count int           `json:"count"`
				Rows  []EvidenceRow `json:"rows"`
			} `json:"evidences"`
		} `json:"disease"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}
