package services

import (
	"testing"

	"biomarkerscope/models"
)

func TestClassifyBiomarkerOrderTieBreak(t *testing.T) {
	// Text enthält Keywords für PD-L1 (pembrolizumab) und HER2
	// (trastuzumab); die PD-L1-Regel steht zuerst.
	got := ClassifyBiomarker("A study of pembrolizumab plus trastuzumab")
	if got != "PD-L1" {
		t.Fatalf("ClassifyBiomarker = %q, erwartet PD-L1", got)
	}
}

func TestClassifyBiomarkerDrugAlias(t *testing.T) {
	got := ClassifyBiomarker("Phase 3 study of osimertinib in EGFR-mutant NSCLC")
	if got != "EGFR" {
		t.Fatalf("ClassifyBiomarker = %q, erwartet EGFR", got)
	}
}

func TestClassifyBiomarkerDefault(t *testing.T) {
	if got := ClassifyBiomarker("A study of surgical technique"); got != "Unknown" {
		t.Fatalf("ClassifyBiomarker = %q, erwartet Unknown", got)
	}
}

func TestClassifyBiomarkerDeterminism(t *testing.T) {
	text := "nivolumab in msi-h colorectal cancer with high tmb"
	first := ClassifyBiomarker(text)
	for i := 0; i < 10; i++ {
		if got := ClassifyBiomarker(text); got != first {
			t.Fatalf("Klassifikation nicht deterministisch: %q vs %q", got, first)
		}
	}
}

func TestClassifyTumorType(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"patients with advanced NSCLC", "NSCLC"},
		{"extensive-stage small cell lung cancer", "SCLC"},
		{"triple negative breast cancer", "Breast Cancer"},
		{"gastroesophageal junction adenocarcinoma", "Gastric Cancer"},
		{"esophageal squamous cell carcinoma", "Esophageal Cancer"},
		{"metastatic renal cell carcinoma", "Renal Cell Carcinoma"},
		{"advanced solid malignancies", "Solid Tumor"},
	}
	for _, c := range cases {
		if got := ClassifyTumorType(c.text); got != c.want {
			t.Errorf("ClassifyTumorType(%q) = %q, erwartet %q", c.text, got, c.want)
		}
	}
}

func TestClassifySetting(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"neoadjuvant chemotherapy before surgery", models.SettingNeoadjuvant},
		{"adjuvant therapy after resection", models.SettingAdjuvant},
		{"maintenance olaparib", models.SettingMaintenance},
		{"first-line treatment of advanced disease", models.SettingFirstLine},
		{"second-line therapy after progression", models.SettingSecondLine},
		{"heavily pretreated patients", models.SettingThirdLine},
		{"single agent pembrolizumab", models.SettingMonotherapy},
		{"drug A + drug B", models.SettingCombination},
		{"a study of advanced cancer", models.SettingFirstLine},
	}
	for _, c := range cases {
		if got := ClassifySetting(c.text); got != c.want {
			t.Errorf("ClassifySetting(%q) = %q, erwartet %q", c.text, got, c.want)
		}
	}
}

func TestClassifySettingNeoadjuvantWinsOverAdjuvant(t *testing.T) {
	// "neoadjuvant" enthält "adjuvant"; Adjuvant darf nicht greifen.
	got := ClassifySetting("perioperative study with neoadjuvant and adjuvant phases")
	if got != models.SettingNeoadjuvant {
		t.Fatalf("ClassifySetting = %q, erwartet Neoadjuvant", got)
	}
}

func TestClassifyCutoffPDL1Thresholds(t *testing.T) {
	cases := []struct {
		text  string
		value string
		unit  string
	}{
		{"PD-L1 TPS >= 50% required", "50", "% TPS"},
		{"PD-L1 CPS >= 10 by 22C3", "10", "CPS"},
		{"PD-L1 expression TPS >= 1%", "1", "% TPS"},
		{"PD-L1 CPS >= 1", "1", "CPS"},
		{"PD-L1 expression will be assessed", "assessed", "PD-L1"},
	}
	for _, c := range cases {
		got := ClassifyCutoff("PD-L1", c.text)
		if got.Value != c.value || got.Unit != c.unit {
			t.Errorf("ClassifyCutoff(PD-L1, %q) = %+v, erwartet value=%q unit=%q", c.text, got, c.value, c.unit)
		}
		if got.Operator != ">=" {
			t.Errorf("ClassifyCutoff(PD-L1, %q).Operator = %q", c.text, got.Operator)
		}
	}
}

func TestClassifyCutoffKRASG12C(t *testing.T) {
	got := ClassifyCutoff("KRAS", "sotorasib in KRAS G12C mutated NSCLC")
	if got.Value != "G12C" || got.Operator != "positive" {
		t.Fatalf("ClassifyCutoff = %+v, erwartet G12C/positive", got)
	}

	got = ClassifyCutoff("KRAS", "KRAS mutated solid tumors")
	if got.Value != "mutated" {
		t.Fatalf("ClassifyCutoff = %+v, erwartet mutated", got)
	}
}

func TestClassifyCutoffUnknownBiomarker(t *testing.T) {
	got := ClassifyCutoff("Unknown", "some text")
	if got.Value != "assessed" || got.Unit != "various" {
		t.Fatalf("ClassifyCutoff = %+v, erwartet generischen Default", got)
	}
}

func TestClassifyAssayPlatformBeatsDefault(t *testing.T) {
	if got := ClassifyAssay("PD-L1", "PD-L1 by 22C3 pharmDx"); got != "22C3 pharmDx" {
		t.Fatalf("ClassifyAssay = %q, erwartet 22C3 pharmDx", got)
	}
	if got := ClassifyAssay("PD-L1", "PD-L1 expression required"); got != "PD-L1 IHC" {
		t.Fatalf("ClassifyAssay = %q, erwartet PD-L1 IHC", got)
	}
	if got := ClassifyAssay("Unknown", "no assay mentioned"); got != "Various" {
		t.Fatalf("ClassifyAssay = %q, erwartet Various", got)
	}
}

func TestClassifyAssayLiquidBeforeTissue(t *testing.T) {
	// "foundationone liquid" enthält "foundationone"; die Liquid-Regel
	// steht zuerst.
	got := ClassifyAssay("EGFR", "tested by FoundationOne Liquid CDx")
	if got != "FoundationOne Liquid CDx" {
		t.Fatalf("ClassifyAssay = %q, erwartet FoundationOne Liquid CDx", got)
	}
}

func TestBiomarkerNamesOrder(t *testing.T) {
	names := BiomarkerNames()
	if len(names) != 16 {
		t.Fatalf("BiomarkerNames = %d Einträge, erwartet 16", len(names))
	}
	if names[0] != "PD-L1" || names[1] != "HER2" {
		t.Fatalf("Reihenfolge verletzt: %v", names[:2])
	}
}
