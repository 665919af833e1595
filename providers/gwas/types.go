package gwas

// HAL-Antworttypen der GWAS-Catalog-REST-API.

type RiskAllele struct {
	RiskAlleleName string `json:"riskAlleleName"` // z.B. "rs2228145-C"
}

type ReportedGene struct {
	GeneName string `json:"geneName"`
}

type Locus struct {
	StrongestRiskAlleles []RiskAllele   `json:"strongestRiskAlleles"`
	AuthorReportedGenes  []ReportedGene `json:"authorReportedGenes"`
}

type Association struct {
	PvalueMantissa float64 `json:"pvalueMantissa"`
	PvalueExponent int     `json:"pvalueExponent"`
	OrPerCopyNum   float64 `json:"orPerCopyNum"`
	Loci           []Locus `json:"loci"`
}

type searchResponse struct {
	Embedded struct {
		Associations []Association `json:"associations"`
	} `json:"_embedded"`
}
