// Package knowledge lädt die kuratierten Expertentabellen (Cutoffs,
// Kombinationsstrategien, Guideline-Aufnahme, Referenzdaten). Die
// Tabellen liegen als eingebettete YAML-Dateien vor und können per
// Konfiguration durch externe Dateien ersetzt werden, ohne neu zu
// kompilieren.
package knowledge

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"biomarkerscope/models"
)

//go:embed assets/*.yaml
var assets embed.FS

// DefaultIndication ist der Schlüssel für indikationsübergreifende
// (tumoragnostische) Einträge.
const DefaultIndication = "default"

// CutoffEntry ist eine kuratierte Cutoff-Empfehlung je
// (Biomarker, Indikation).
type CutoffEntry struct {
	Biomarker         string   `yaml:"biomarker"`
	Indication        string   `yaml:"indication"`
	RecommendedCutoff string   `yaml:"recommendedCutoff"`
	FDAApproved       bool     `yaml:"fdaApproved"`
	Alternatives      []string `yaml:"alternatives"`
	Trend             string   `yaml:"trend"` // rising, falling, stable
	Rationale         string   `yaml:"rationale"`
}

// CombinationStrategy ist die Beschreibung einer benannten
// Zwei-Biomarker-Strategie.
type CombinationStrategy struct {
	Strategy  string `yaml:"strategy"`
	Rationale string `yaml:"rationale"`
}

// CombinationEntry ist ein ungeordnetes Biomarker-Paar mit Strategien
// je Indikation plus einem default-Eintrag.
type CombinationEntry struct {
	Biomarkers []string                       `yaml:"biomarkers"`
	Entries    map[string]CombinationStrategy `yaml:"entries"`
}

type cutoffFile struct {
	Cutoffs []CutoffEntry `yaml:"cutoffs"`
}

type combinationFile struct {
	Combinations []CombinationEntry `yaml:"combinations"`
}

type guidelineFile struct {
	// Indikation → Liste der in Leitlinien geführten Biomarker.
	Guidelines map[string][]string `yaml:"guidelines"`
}

type referenceFile struct {
	Biomarkers  []models.Biomarker `yaml:"biomarkers"`
	Assays      []models.AssayInfo `yaml:"assays"`
	Indications []models.Indication `yaml:"indications"`
}

// Paths benennt optionale externe Dateien, die die eingebetteten
// Tabellen ersetzen. Leere Felder verwenden den eingebetteten Stand.
type Paths struct {
	Cutoffs      string
	Combinations string
	Guidelines   string
	Reference    string
}

// Table ist der geladene, danach nur noch gelesene Wissensbestand.
type Table struct {
	cutoffs      map[string]map[string]CutoffEntry // Biomarker → Indikation → Eintrag
	combinations []CombinationEntry
	guidelines   map[string]map[string]bool
	biomarkers   []models.Biomarker
	assays       []models.AssayInfo
	indications  []models.Indication
}

func readAsset(override, embedded string) ([]byte, error) {
	if override != "" {
		return os.ReadFile(override)
	}
	return assets.ReadFile(embedded)
}

// Load liest alle Tabellen und baut die Lookup-Indizes auf.
func Load(p Paths) (*Table, error) {
	raw, err := readAsset(p.Cutoffs, "assets/cutoffs.yaml")
	if err != nil {
		return nil, fmt.Errorf("cutoff-tabelle lesen: %w", err)
	}
	var cf cutoffFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("cutoff-tabelle parsen: %w", err)
	}

	raw, err = readAsset(p.Combinations, "assets/combinations.yaml")
	if err != nil {
		return nil, fmt.Errorf("kombinations-tabelle lesen: %w", err)
	}
	var cb combinationFile
	if err := yaml.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("kombinations-tabelle parsen: %w", err)
	}

	raw, err = readAsset(p.Guidelines, "assets/guidelines.yaml")
	if err != nil {
		return nil, fmt.Errorf("guideline-tabelle lesen: %w", err)
	}
	var gf guidelineFile
	if err := yaml.Unmarshal(raw, &gf); err != nil {
		return nil, fmt.Errorf("guideline-tabelle parsen: %w", err)
	}

	raw, err = readAsset(p.Reference, "assets/reference.yaml")
	if err != nil {
		return nil, fmt.Errorf("referenzdaten lesen: %w", err)
	}
	var rf referenceFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("referenzdaten parsen: %w", err)
	}

	t := &Table{
		cutoffs:      make(map[string]map[string]CutoffEntry),
		combinations: cb.Combinations,
		guidelines:   make(map[string]map[string]bool),
		biomarkers:   rf.Biomarkers,
		assays:       rf.Assays,
		indications:  rf.Indications,
	}
	for _, e := range cf.Cutoffs {
		byInd, ok := t.cutoffs[e.Biomarker]
		if !ok {
			byInd = make(map[string]CutoffEntry)
			t.cutoffs[e.Biomarker] = byInd
		}
		byInd[strings.ToLower(e.Indication)] = e
	}
	for ind, bms := range gf.Guidelines {
		set := make(map[string]bool, len(bms))
		for _, bm := range bms {
			set[bm] = true
		}
		t.guidelines[strings.ToLower(ind)] = set
	}
	return t, nil
}

// CutoffFor sucht den Eintrag für (Biomarker, Indikation); fehlt die
// Indikation, greift der tumoragnostische default-Eintrag.
func (t *Table) CutoffFor(biomarker, indication string) (CutoffEntry, bool) {
	byInd, ok := t.cutoffs[biomarker]
	if !ok {
		return CutoffEntry{}, false
	}
	if e, ok := byInd[strings.ToLower(indication)]; ok {
		return e, true
	}
	e, ok := byInd[DefaultIndication]
	return e, ok
}

// CombinationFor sucht die Strategie für ein ungeordnetes Paar; die
// indikationsspezifische Variante gewinnt vor dem default-Eintrag.
func (t *Table) CombinationFor(a, b, indication string) (CombinationStrategy, bool) {
	for _, e := range t.combinations {
		if len(e.Biomarkers) != 2 {
			continue
		}
		if !((e.Biomarkers[0] == a && e.Biomarkers[1] == b) ||
			(e.Biomarkers[0] == b && e.Biomarkers[1] == a)) {
			continue
		}
		if s, ok := e.Entries[indication]; ok {
			return s, true
		}
		s, ok := e.Entries[DefaultIndication]
		return s, ok
	}
	return CombinationStrategy{}, false
}

// KnownCombinations liefert alle kuratierten Paare.
func (t *Table) KnownCombinations() []CombinationEntry {
	return t.combinations
}

// GuidelineIncluded meldet, ob der Biomarker in den Leitlinien der
// Indikation geführt wird.
func (t *Table) GuidelineIncluded(biomarker, indication string) bool {
	set, ok := t.guidelines[strings.ToLower(indication)]
	if !ok {
		return false
	}
	return set[biomarker]
}

// Biomarkers liefert die Referenzliste der Biomarker.
func (t *Table) Biomarkers() []models.Biomarker { return t.biomarkers }

// Assays liefert die Referenzliste der Assays.
func (t *Table) Assays() []models.AssayInfo { return t.assays }

// Indications liefert die Referenzliste der Indikationen.
func (t *Table) Indications() []models.Indication { return t.indications }

// BiomarkerByName sucht einen Referenz-Biomarker über Name oder Alias.
func (t *Table) BiomarkerByName(name string) (models.Biomarker, bool) {
	for _, bm := range t.biomarkers {
		if strings.EqualFold(bm.Name, name) {
			return bm, true
		}
		for _, alias := range bm.Aliases {
			if strings.EqualFold(alias, name) {
				return bm, true
			}
		}
	}
	return models.Biomarker{}, false
}

// FDAAssaysFor liefert alle FDA-zugelassenen Assays, die den Biomarker
// messen.
func (t *Table) FDAAssaysFor(biomarker string) []models.AssayInfo {
	var out []models.AssayInfo
	for _, a := range t.assays {
		if !a.FDAApproved {
			continue
		}
		for _, bm := range a.BiomarkerNames {
			if bm == biomarker {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
