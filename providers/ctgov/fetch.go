package ctgov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"biomarkerscope/config"
	"biomarkerscope/models"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// advancedFilter beschränkt die Suche auf Interventionsstudien der
// Industrie ab 2011 in Phase 1-3.
const advancedFilter = "AREA[Phase](PHASE1 OR PHASE2 OR PHASE3) AND AREA[LeadSponsorClass]INDUSTRY AND AREA[StartDate]RANGE[2011-01-01,MAX]"

// ErrNotFound wird geliefert, wenn eine NCT-ID nicht existiert.
var ErrNotFound = errors.New("studie nicht gefunden")

// Fetcher kapselt die Interaktion mit der ClinicalTrials.gov API v2.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des Registry-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "ctgov"
}

// SearchCondition lädt alle Seiten für eine Indikation, bis entweder
// keine Folgeseite mehr kommt oder das Seitenlimit erreicht ist.
func (f *Fetcher) SearchCondition(ctx context.Context, condition string) ([]Study, error) {
	return f.search(ctx, url.Values{"query.cond": {condition}})
}

// SearchTerm lädt alle Seiten für einen freien Suchterm, z.B. einen
// Biomarker-Namen kombiniert mit einer Indikation.
func (f *Fetcher) SearchTerm(ctx context.Context, term string) ([]Study, error) {
	return f.search(ctx, url.Values{"query.term": {term}})
}

func (f *Fetcher) search(ctx context.Context, query url.Values) ([]Study, error) {
	log := f.Logger.With(zap.String("provider", f.Name()))

	query.Set("filter.advanced", advancedFilter)
	query.Set("pageSize", strconv.Itoa(f.Config.CTGovPageSize))
	query.Set("countTotal", "true")

	var all []Study
	pageToken := ""
	for page := 0; page < f.Config.CTGovMaxPages; page++ {
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		searchURL := fmt.Sprintf("%s/studies?%s", f.Config.CTGovBaseURL, query.Encode())
		log.Debug("Rufe Studies-URL auf", zap.String("url", searchURL), zap.Int("page", page))

		var resp SearchResponse
		if err := f.getJSON(ctx, searchURL, &resp); err != nil {
			log.Error("Registry-Anfrage fehlgeschlagen", zap.Error(err), zap.Int("page", page))
			return nil, err
		}

		all = append(all, resp.Studies...)
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	log.Info("Registry-Suche abgeschlossen", zap.Int("total_studies", len(all)))
	return all, nil
}

// FetchStudy lädt eine einzelne Studie über ihre NCT-ID.
func (f *Fetcher) FetchStudy(ctx context.Context, nctID string) (*Study, error) {
	if !models.NCTIDPattern.MatchString(nctID) {
		return nil, fmt.Errorf("ungültige NCT-ID: %q", nctID)
	}
	studyURL := fmt.Sprintf("%s/studies/%s", f.Config.CTGovBaseURL, url.PathEscape(nctID))
	f.Logger.Debug("Rufe Einzelstudie ab", zap.String("url", studyURL))

	var study Study
	if err := f.getJSON(ctx, studyURL, &study); err != nil {
		return nil, err
	}
	if study.ProtocolSection.Identification.NCTID == "" {
		return nil, ErrNotFound
	}
	return &study, nil
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("registry antwortete mit status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// MapStatus übersetzt den Registry-Status in das interne Vokabular.
func MapStatus(raw string) string {
	switch raw {
	case "RECRUITING":
		return models.StatusRecruiting
	case "ACTIVE_NOT_RECRUITING":
		return models.StatusActive
	case "COMPLETED":
		return models.StatusCompleted
	case "NOT_YET_RECRUITING":
		return models.StatusNotYetRecruiting
	case "TERMINATED":
		return models.StatusTerminated
	case "WITHDRAWN":
		return models.StatusWithdrawn
	case "SUSPENDED":
		return models.StatusSuspended
	default:
		return raw
	}
}

// MapPhase reduziert die Phasenliste auf die höchste Phase.
func MapPhase(phases []string) string {
	best := ""
	rank := func(p string) int {
		switch p {
		case "PHASE3":
			return 4
		case "PHASE2":
			return 3
		case "PHASE1":
			return 2
		case "EARLY_PHASE1":
			return 1
		default:
			return 0
		}
	}
	for _, p := range phases {
		if rank(p) > rank(best) {
			best = p
		}
	}
	switch best {
	case "PHASE3":
		return "Phase 3"
	case "PHASE2":
		return "Phase 2"
	case "PHASE1":
		return "Phase 1"
	case "EARLY_PHASE1":
		return "Early Phase 1"
	default:
		return "N/A"
	}
}

// StartYear extrahiert das Jahr aus einem Registry-Datum ("2020-03" oder
// "2020-03-15").
func StartYear(d DateStruct) int {
	if len(d.Date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(d.Date[:4])
	if err != nil {
		return 0
	}
	return year
}

// ToTrialDetail wandelt eine rohe Studie in die kanonische Detailsicht um.
func ToTrialDetail(s *Study) models.TrialDetail {
	ps := s.ProtocolSection

	d := models.TrialDetail{
		NCTID:               ps.Identification.NCTID,
		BriefTitle:          ps.Identification.BriefTitle,
		OfficialTitle:       ps.Identification.OfficialTitle,
		Status:              MapStatus(ps.Status.OverallStatus),
		Phase:               MapPhase(ps.Design.Phases),
		Sponsor:             ps.Sponsor.LeadSponsor.Name,
		SponsorClass:        ps.Sponsor.LeadSponsor.Class,
		StartDate:           ps.Status.StartDateStruct.Date,
		StartYear:           StartYear(ps.Status.StartDateStruct),
		CompletionDate:      ps.Status.CompletionDateStruct.Date,
		EnrollmentCount:     ps.Design.EnrollmentInfo.Count,
		EnrollmentType:      ps.Design.EnrollmentInfo.Type,
		BriefSummary:        ps.Description.BriefSummary,
		EligibilityCriteria: ps.Eligibility.EligibilityCriteria,
		Conditions:          ps.Conditions.Conditions,
		Keywords:            ps.Conditions.Keywords,
		Allocation:          ps.Design.DesignInfo.Allocation,
		InterventionModel:   ps.Design.DesignInfo.InterventionModel,
		PrimaryPurpose:      ps.Design.DesignInfo.PrimaryPurpose,
		Masking:             ps.Design.DesignInfo.MaskingInfo.Masking,
		StudyType:           ps.Design.StudyType,
	}
	for _, iv := range ps.ArmsInterventions.Interventions {
		d.Interventions = append(d.Interventions, models.Intervention{
			Type:        iv.Type,
			Name:        iv.Name,
			Description: iv.Description,
		})
	}
	for _, o := range ps.Outcomes.PrimaryOutcomes {
		d.PrimaryOutcomes = append(d.PrimaryOutcomes, models.Outcome{Measure: o.Measure, TimeFrame: o.TimeFrame})
	}
	for _, o := range ps.Outcomes.SecondaryOutcomes {
		d.SecondaryOutcomes = append(d.SecondaryOutcomes, models.Outcome{Measure: o.Measure, TimeFrame: o.TimeFrame})
	}
	return d
}

// Corpus baut den Textkorpus einer Studie für die Klassifikation: Titel,
// Zusammenfassung, Einschlusskriterien, Interventionen und Schlagworte.
func Corpus(s *Study) string {
	ps := s.ProtocolSection
	var b strings.Builder
	b.WriteString(ps.Identification.BriefTitle)
	b.WriteString(" ")
	b.WriteString(ps.Identification.OfficialTitle)
	b.WriteString(" ")
	b.WriteString(ps.Description.BriefSummary)
	b.WriteString(" ")
	b.WriteString(ps.Eligibility.EligibilityCriteria)
	for _, iv := range ps.ArmsInterventions.Interventions {
		b.WriteString(" ")
		b.WriteString(iv.Name)
		b.WriteString(" ")
		b.WriteString(iv.Description)
	}
	for _, kw := range ps.Conditions.Keywords {
		b.WriteString(" ")
		b.WriteString(kw)
	}
	return b.String()
}
