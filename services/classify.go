package services

import (
	"strings"

	"biomarkerscope/models"
)

// Rule ist ein Eintrag einer geordneten Klassifikationstabelle. Die
// erste Regel, deren beliebiges Keyword als Substring im Text vorkommt,
// gewinnt; die Reihenfolge ist damit der Tie-Break.
type Rule struct {
	Label    string
	Keywords []string
}

// Classify wertet eine Regeltabelle gegen den kleingeschriebenen Text
// aus. Ohne Treffer wird das Default-Label geliefert, niemals ein Fehler.
func Classify(text string, rules []Rule, fallback string) string {
	t := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(t, kw) {
				return r.Label
			}
		}
	}
	return fallback
}

// biomarkerRules erkennt Biomarker über Aliasse und Medikamentennamen.
var biomarkerRules = []Rule{
	{"PD-L1", []string{"pd-l1", "pdl1", "cd274", "pembrolizumab", "nivolumab", "atezolizumab", "durvalumab"}},
	{"HER2", []string{"her2", "erbb2", "trastuzumab", "her2-low", "her2-ultralow", "t-dxd"}},
	{"EGFR", []string{"egfr", "osimertinib", "erlotinib", "gefitinib", "exon 19", "l858r", "exon20"}},
	{"KRAS", []string{"kras", "sotorasib", "adagrasib", "g12c", "g12d"}},
	{"BRAF", []string{"braf", "v600e", "v600k", "vemurafenib", "dabrafenib", "encorafenib"}},
	{"ALK", []string{"alk fusion", "alk rearrangement", "alectinib", "lorlatinib", "crizotinib", "eml4-alk"}},
	{"BRCA1/2", []string{"brca", "brca1", "brca2", "olaparib", "rucaparib", "niraparib", "parp"}},
	{"MSI", []string{"msi-h", "msi", "dmmr", "mmr", "microsatellite", "mismatch repair"}},
	{"TMB", []string{"tmb", "tumor mutational burden", "mutational load"}},
	{"NTRK", []string{"ntrk", "trk fusion", "larotrectinib", "entrectinib"}},
	{"ctDNA", []string{"ctdna", "cell-free dna", "cfdna", "liquid biopsy", "mrd", "minimal residual"}},
	{"TILs", []string{"tumor infiltrating lymphocytes", "tils", "til therapy"}},
	{"PIK3CA", []string{"pik3ca", "pi3k", "alpelisib"}},
	{"Ki-67", []string{"ki-67", "ki67", "mib-1", "proliferation index"}},
	{"ER", []string{"estrogen receptor", "er-positive", "er+", "esr1"}},
	{"PR", []string{"progesterone receptor", "pr-positive", "pr+", "pgr"}},
}

// tumorTypeRules: NSCLC muss vor SCLC stehen und Gastric vor Esophageal,
// weil sich die Keywords überlappen ("non-small cell lung",
// "gastroesophageal").
var tumorTypeRules = []Rule{
	{"NSCLC", []string{"nsclc", "non-small cell lung", "non small cell lung"}},
	{"SCLC", []string{"sclc", "small cell lung"}},
	{"Breast Cancer", []string{"breast cancer", "breast carcinoma", "tnbc", "triple negative breast"}},
	{"Melanoma", []string{"melanoma"}},
	{"Colorectal Cancer", []string{"colorectal", "colon cancer", "rectal cancer", "crc"}},
	{"Gastric Cancer", []string{"gastric", "stomach cancer", "gastroesophageal"}},
	{"Esophageal Cancer", []string{"esophageal", "oesophageal"}},
	{"Pancreatic Cancer", []string{"pancreatic", "pancreas cancer"}},
	{"Ovarian Cancer", []string{"ovarian", "fallopian tube", "peritoneal cancer"}},
	{"Prostate Cancer", []string{"prostate"}},
	{"Urothelial Cancer", []string{"urothelial", "bladder cancer"}},
	{"Head and Neck Cancer", []string{"head and neck", "hnscc", "oropharyngeal"}},
	{"Hepatocellular Carcinoma", []string{"hepatocellular", "liver cancer", "hcc"}},
	{"Renal Cell Carcinoma", []string{"renal cell", "kidney cancer", "rcc"}},
}

// settingRules: Adjuvant wird separat behandelt, weil "neoadjuvant" das
// Keyword "adjuvant" enthält.
var settingRules = []Rule{
	{models.SettingNeoadjuvant, []string{"neoadjuvant", "neo-adjuvant", "preoperative"}},
	{models.SettingAdjuvant, []string{"adjuvant"}},
	{models.SettingMaintenance, []string{"maintenance"}},
	{models.SettingFirstLine, []string{"first-line", "first line", "1l ", "frontline", "treatment-naive", "treatment naive"}},
	{models.SettingSecondLine, []string{"second-line", "second line", "2l "}},
	{models.SettingThirdLine, []string{"third-line", "third line", "3l", "pre-treated", "pretreated", "heavily pretreated"}},
	{models.SettingMonotherapy, []string{"monotherapy", "single agent", "single-agent"}},
	{models.SettingCombination, []string{"combination", "combined with", "in combination", "+"}},
}

// assayRules erkennt explizit genannte Testplattformen; die Defaults je
// Biomarker greifen nur ohne Plattform-Treffer.
var assayRules = []Rule{
	{"22C3 pharmDx", []string{"22c3"}},
	{"28-8 pharmDx", []string{"28-8"}},
	{"SP142", []string{"sp142"}},
	{"SP263", []string{"sp263"}},
	{"FoundationOne Liquid CDx", []string{"foundationone liquid", "foundation one liquid"}},
	{"FoundationOne CDx", []string{"foundationone", "foundation one"}},
	{"Signatera", []string{"signatera"}},
	{"Guardant360 CDx", []string{"guardant360", "guardant"}},
	{"HercepTest", []string{"herceptest"}},
	{"cobas EGFR Mutation Test v2", []string{"cobas egfr", "cobas"}},
	{"therascreen KRAS RGQ PCR", []string{"therascreen"}},
	{"BRACAnalysis CDx", []string{"bracanalysis"}},
	{"Ventana ALK (D5F3)", []string{"ventana alk", "d5f3"}},
	{"TSO500", []string{"tso500", "tso 500"}},
}

var assayDefaults = map[string]string{
	"PD-L1": "PD-L1 IHC", "TMB": "NGS Panel", "MSI": "MSI PCR/IHC",
	"HER2": "HER2 IHC/FISH", "EGFR": "EGFR PCR/NGS", "ALK": "ALK IHC/FISH",
	"BRCA1/2": "BRCA Sequencing", "KRAS": "KRAS PCR/NGS", "BRAF": "BRAF PCR/NGS",
	"NTRK": "NGS/FISH", "ctDNA": "ctDNA NGS", "TILs": "H&E / IHC",
	"ER": "ER IHC", "PR": "PR IHC", "PIK3CA": "PIK3CA PCR/NGS", "Ki-67": "Ki-67 IHC",
}

var cutoffDefaults = map[string]models.Cutoff{
	"PD-L1":   {Value: "assessed", Unit: "PD-L1", Operator: ">="},
	"TMB":     {Value: "10", Unit: "mut/Mb", Operator: ">="},
	"HER2":    {Value: "positive", Unit: "IHC", Operator: "positive"},
	"MSI":     {Value: "MSI-H/dMMR", Unit: "status", Operator: "positive"},
	"KRAS":    {Value: "mutated", Unit: "mutation", Operator: "positive"},
	"BRAF":    {Value: "V600", Unit: "mutation", Operator: "positive"},
	"EGFR":    {Value: "mutated", Unit: "mutation", Operator: "positive"},
	"ALK":     {Value: "rearrangement", Unit: "fusion", Operator: "positive"},
	"BRCA1/2": {Value: "pathogenic", Unit: "mutation", Operator: "positive"},
	"NTRK":    {Value: "fusion", Unit: "fusion", Operator: "positive"},
	"ctDNA":   {Value: "detectable", Unit: "detection", Operator: "positive"},
	"TILs":    {Value: "present", Unit: "presence", Operator: "positive"},
	"ER":      {Value: "positive", Unit: "IHC", Operator: "positive"},
	"PR":      {Value: "positive", Unit: "IHC", Operator: "positive"},
	"PIK3CA":  {Value: "mutated", Unit: "mutation", Operator: "positive"},
	"Ki-67":   {Value: "assessed", Unit: "%", Operator: ">="},
}

// pdl1Thresholds werden in dieser Reihenfolge gegen den Text geprüft,
// bevor der generische PD-L1-Default greift.
var pdl1Thresholds = []struct {
	cutoff   models.Cutoff
	keywords []string
}{
	{models.Cutoff{Value: "50", Unit: "% TPS", Operator: ">="}, []string{"tps >= 50", "tps ≥ 50", "tps≥50", "tps of 50", "tps 50"}},
	{models.Cutoff{Value: "10", Unit: "CPS", Operator: ">="}, []string{"cps >= 10", "cps ≥ 10", "cps≥10", "cps of 10", "cps 10"}},
	{models.Cutoff{Value: "1", Unit: "% TPS", Operator: ">="}, []string{"tps >= 1", "tps ≥ 1", "tps≥1", "tps of 1", "tps 1"}},
	{models.Cutoff{Value: "1", Unit: "CPS", Operator: ">="}, []string{"cps >= 1", "cps ≥ 1", "cps≥1", "cps of 1", "cps 1"}},
}

// ClassifyBiomarker ordnet einen Text dem ersten passenden Biomarker zu.
func ClassifyBiomarker(text string) string {
	return Classify(text, biomarkerRules, "Unknown")
}

// ClassifyTumorType ordnet einen Text einer Tumorentität zu.
func ClassifyTumorType(text string) string {
	return Classify(text, tumorTypeRules, "Solid Tumor")
}

// ClassifySetting ordnet einen Text einem therapeutischen Setting zu.
// "adjuvant" wird übersprungen, solange "neoadjuvant" im Text vorkommt.
func ClassifySetting(text string) string {
	t := strings.ToLower(text)
	for _, r := range settingRules {
		if r.Label == models.SettingAdjuvant && strings.Contains(t, "neoadjuvant") {
			continue
		}
		for _, kw := range r.Keywords {
			if strings.Contains(t, kw) {
				return r.Label
			}
		}
	}
	return models.SettingFirstLine
}

// ClassifyCutoff liefert den strukturierten Schwellenwert für einen
// bereits erkannten Biomarker. PD-L1 prüft zuerst konkrete TPS/CPS-
// Schwellen im Text, KRAS erkennt G12C.
func ClassifyCutoff(biomarker, text string) models.Cutoff {
	t := strings.ToLower(text)
	switch biomarker {
	case "PD-L1":
		for _, th := range pdl1Thresholds {
			for _, kw := range th.keywords {
				if strings.Contains(t, kw) {
					return th.cutoff
				}
			}
		}
	case "KRAS":
		if strings.Contains(t, "g12c") {
			return models.Cutoff{Value: "G12C", Unit: "mutation", Operator: "positive"}
		}
	}
	if c, ok := cutoffDefaults[biomarker]; ok {
		return c
	}
	return models.Cutoff{Value: "assessed", Unit: "various", Operator: ">="}
}

// ClassifyAssay liefert den Assay-Namen: explizite Plattformnennungen im
// Text gewinnen vor dem Biomarker-Default.
func ClassifyAssay(biomarker, text string) string {
	if name := Classify(text, assayRules, ""); name != "" {
		return name
	}
	if name, ok := assayDefaults[biomarker]; ok {
		return name
	}
	return "Various"
}

// BiomarkerNames liefert das geschlossene Biomarker-Vokabular in
// Regelreihenfolge.
func BiomarkerNames() []string {
	out := make([]string, len(biomarkerRules))
	for i, r := range biomarkerRules {
		out[i] = r.Label
	}
	return out
}
