package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	CTGovBaseURL       string `envconfig:"CTGOV_BASE_URL" default:"https://clinicaltrials.gov/api/v2"`
	CTGovPageSize      int    `envconfig:"CTGOV_PAGE_SIZE" default:"1000"`
	CTGovMaxPages      int    `envconfig:"CTGOV_MAX_PAGES" default:"10"`
	OpenTargetsGraphQL string `envconfig:"OPENTARGETS_GRAPHQL_URL" default:"https://api.platform.opentargets.org/api/v4/graphql"`
	GWASBaseURL        string `envconfig:"GWAS_BASE_URL" default:"https://www.ebi.ac.uk/gwas/rest/api"`
	PubMedBaseURL      string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey       string `envconfig:"PUBMED_API_KEY"`
	PubMedTool         string `envconfig:"PUBMED_TOOL" default:"biomarkerscope-fetcher"`
	NarrativeBaseURL   string `envconfig:"NARRATIVE_BASE_URL" default:"http://localhost:8090"`

	// Cache-TTL für Provider-Antworten innerhalb einer Session.
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	// Obergrenze für einen laufenden Report-Stream, danach Fehlerzustand.
	ReportTimeout time.Duration `envconfig:"REPORT_TIMEOUT" default:"5m"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 5 * * *"`

	// Kommagetrennte Liste der Kern-Indikationen für Snapshot und Matrix.
	CoreIndications string `envconfig:"CORE_INDICATIONS" default:"NSCLC,Breast Cancer,Melanoma,Colorectal Cancer,Gastric Cancer"`

	// Optionale Overrides für die eingebetteten Knowledge-Dateien.
	CutoffKnowledgeFile string `envconfig:"CUTOFF_KNOWLEDGE_FILE"`
	CombinationFile     string `envconfig:"COMBINATION_KNOWLEDGE_FILE"`
	GuidelineFile       string `envconfig:"GUIDELINE_KNOWLEDGE_FILE"`
	ReferenceFile       string `envconfig:"REFERENCE_DATA_FILE"`
}

// Indications gibt die konfigurierten Kern-Indikationen als Slice zurück.
func (c *Config) Indications() []string {
	parts := strings.Split(c.CoreIndications, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
