package services

import (
	"fmt"
	"strings"

	"biomarkerscope/models"
	"biomarkerscope/providers/ctgov"
)

// cdxKeywords markieren eine Companion-Diagnostic-Erwähnung im Korpus.
var cdxKeywords = []string{"companion diagnostic", "cdx", "fda-approved test", "fda approved assay"}

// Normalize wandelt eine rohe Studie in genau eine Usage-Zeile um. Der
// Hint übersteuert die Biomarker-Klassifikation, wenn die Studie über
// eine biomarker-spezifische Suche gefunden wurde.
//
// Unvollständige Rohdatensätze liefern einen Fehler; der Aufrufer
// verwirft den Datensatz und zählt nur Erfolge.
func Normalize(study *ctgov.Study, biomarkerHint string) (models.TrialBiomarkerUsage, error) {
	if study == nil {
		return models.TrialBiomarkerUsage{}, fmt.Errorf("leerer Studiendatensatz")
	}
	ps := study.ProtocolSection
	if ps.Identification.NCTID == "" {
		return models.TrialBiomarkerUsage{}, fmt.Errorf("studie ohne NCT-ID")
	}
	if ps.Identification.BriefTitle == "" {
		return models.TrialBiomarkerUsage{}, fmt.Errorf("studie %s ohne Titel", ps.Identification.NCTID)
	}

	corpus := ctgov.Corpus(study)

	biomarker := biomarkerHint
	if biomarker == "" {
		biomarker = ClassifyBiomarker(corpus)
	}

	tumorText := strings.Join(ps.Conditions.Conditions, " ") + " " + ps.Identification.BriefTitle
	cutoff := ClassifyCutoff(biomarker, corpus)

	u := models.TrialBiomarkerUsage{
		NCTID:               ps.Identification.NCTID,
		TrialTitle:          ps.Identification.BriefTitle,
		BiomarkerName:       biomarker,
		Setting:             ClassifySetting(corpus),
		TumorType:           ClassifyTumorType(tumorText),
		Phase:               ctgov.MapPhase(ps.Design.Phases),
		CutoffValue:         cutoff.Value,
		CutoffUnit:          cutoff.Unit,
		CutoffOperator:      cutoff.Operator,
		AssayName:           ClassifyAssay(biomarker, corpus),
		CompanionDiagnostic: detectCDx(corpus),
		Sponsor:             ps.Sponsor.LeadSponsor.Name,
		Status:              ctgov.MapStatus(ps.Status.OverallStatus),
		StartYear:           ctgov.StartYear(ps.Status.StartDateStruct),
	}
	if year := ctgov.StartYear(ps.Status.CompletionDateStruct); year > 0 {
		u.EndYear = &year
	}
	return u, nil
}

// NormalizeAll erzeugt eine Usage-Zeile je im Korpus erkanntem Biomarker.
// Studien ohne Biomarker-Treffer liefern eine leere Liste, keinen Fehler.
func NormalizeAll(study *ctgov.Study) ([]models.TrialBiomarkerUsage, error) {
	if study == nil {
		return nil, fmt.Errorf("leerer Studiendatensatz")
	}
	corpus := strings.ToLower(ctgov.Corpus(study))

	var out []models.TrialBiomarkerUsage
	for _, rule := range biomarkerRules {
		matched := false
		for _, kw := range rule.Keywords {
			if strings.Contains(corpus, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		u, err := Normalize(study, rule.Label)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func detectCDx(corpus string) bool {
	t := strings.ToLower(corpus)
	for _, kw := range cdxKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}
