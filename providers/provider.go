package providers

import (
	"time"

	"biomarkerscope/models"
)

// Provider ist das Interface, das jede externe Datenquelle (z.B.
// ClinicalTrials.gov, Open Targets) implementieren muss.
type Provider interface {
	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "ctgov").
	Name() string
}

// NewProvenance baut den Herkunftsvermerk, der neben jedem externen
// Datensatz mitgeführt wird.
func NewProvenance(source, version string) models.Provenance {
	return models.Provenance{
		Source:     source,
		Version:    version,
		AccessedAt: time.Now().UTC().Format("2006-01-02"),
	}
}
