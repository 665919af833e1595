package models

// CutoffTrend ist ein Zeitreihenpunkt je (Biomarker, Tumortyp, Jahr).
// Mehrere Punkte desselben Paars bilden eine Chart-Serie.
type CutoffTrend struct {
	BiomarkerName string  `json:"biomarkerName"`
	TumorType     string  `json:"tumorType"`
	Year          int     `json:"year"`
	CutoffValue   float64 `json:"cutoffValue"`
	CutoffUnit    string  `json:"cutoffUnit"`
	TrialCount    int     `json:"trialCount"`
	DominantAssay string  `json:"dominantAssay"`
}
