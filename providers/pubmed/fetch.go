package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"biomarkerscope/config"
	"biomarkerscope/models"
	"biomarkerscope/providers"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// efetch wird in Batches abgefragt, um die E-Utilities-Ratenlimits
// einzuhalten.
const batchSize = 20

// biomarkerNames wird gegen Titel+Abstract gematcht, um Erwähnungen zu
// taggen.
var biomarkerNames = []string{"PD-L1", "HER2", "EGFR", "KRAS", "BRAF", "ALK", "BRCA", "MSI", "TMB", "NTRK", "ctDNA"}

// Fetcher ist eine Struktur, die die Logik zur Interaktion mit PubMed kapselt.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des PubMed-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "pubmed"
}

// Search führt eine vollständige Suche durch: holt IDs und dann die
// Artikeldetails in Batches.
func (f *Fetcher) Search(ctx context.Context, term string, limit int) ([]models.Publication, error) {
	ids, err := f.searchIDs(ctx, term, limit)
	if err != nil {
		return nil, fmt.Errorf("fehler bei der PubMed ID-Suche: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var pubs []models.Publication
	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, 3) // Parallele Abfragen limitieren

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		wg.Add(1)
		semaphore <- struct{}{}

		go func(batch []string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			articles, err := f.fetchArticles(ctx, batch)
			if err != nil {
				f.Logger.Warn("Konnte Artikel-Batch nicht abrufen", zap.Int("batch_size", len(batch)), zap.Error(err))
				return
			}
			mu.Lock()
			pubs = append(pubs, articles...)
			mu.Unlock()
		}(batch)
	}

	wg.Wait()
	return pubs, nil
}

// searchIDs führt eine ESearch-Abfrage durch und gibt eine Liste von PMIDs zurück.
func (f *Fetcher) searchIDs(ctx context.Context, term string, limit int) ([]string, error) {
	log := f.Logger.With(zap.String("term", term))
	log.Info("Starte PubMed ESearch für IDs.")

	params := url.Values{
		"db":       {"pubmed"},
		"term":     {term},
		"retmode":  {"json"},
		"retmax":   {fmt.Sprintf("%d", limit)},
		"sort":     {"relevance"},
		"datetype": {"pdat"},
		"mindate":  {"2020"},
	}
	if f.Config.PubMedAPIKey != "" {
		params.Set("api_key", f.Config.PubMedAPIKey)
	}
	if f.Config.PubMedTool != "" {
		params.Set("tool", f.Config.PubMedTool)
	}
	searchURL := fmt.Sprintf("%s/esearch.fcgi?%s", f.Config.PubMedBaseURL, params.Encode())
	log.Debug("Rufe ESearch-URL auf", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		log.Error("ESearch-Anfrage fehlgeschlagen", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("esearch failed: status %d", resp.StatusCode)
	}

	var esearchResp ESearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&esearchResp); err != nil {
		log.Error("Fehler beim Parsen der ESearch-JSON-Antwort", zap.Error(err))
		return nil, err
	}

	ids := esearchResp.ESearchResult.IdList
	log.Info("PubMed ESearch abgeschlossen", zap.Int("total_ids", len(ids)))
	return ids, nil
}

// fetchArticles holt die Metadaten für einen Batch von PMIDs via EFetch.
func (f *Fetcher) fetchArticles(ctx context.Context, pmids []string) ([]models.Publication, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
		"rettype": {"abstract"},
	}
	if f.Config.PubMedAPIKey != "" {
		params.Set("api_key", f.Config.PubMedAPIKey)
	}
	efetchURL := fmt.Sprintf("%s/efetch.fcgi?%s", f.Config.PubMedBaseURL, params.Encode())
	f.Logger.Debug("Rufe EFetch-URL für Metadaten auf", zap.String("url", efetchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, efetchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("efetch metadata failed: status %d", resp.StatusCode)
	}

	var articleSet PubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&articleSet); err != nil {
		return nil, err
	}

	prov := providers.NewProvenance("PubMed", "")
	out := make([]models.Publication, 0, len(articleSet.PubmedArticle))
	for i := range articleSet.PubmedArticle {
		pub := mapArticleToModel(&articleSet.PubmedArticle[i])
		pub.Provenance = prov
		out = append(out, pub)
	}
	return out, nil
}

// mapArticleToModel wandelt ein XML-Article-Objekt in unser Publikationsmodell um.
func mapArticleToModel(article *PubmedArticle) models.Publication {
	art := article.MedlineCitation.Article
	p := models.Publication{
		PMID:    article.MedlineCitation.PMID,
		Title:   art.Title,
		Journal: art.Journal.Title,
	}

	for _, author := range art.Authors {
		if author.LastName == "" {
			continue
		}
		name := strings.TrimSpace(author.LastName + " " + author.ForeName)
		p.Authors = append(p.Authors, name)
		if len(p.Authors) == 10 {
			break
		}
	}

	for _, id := range art.ELocationID {
		if id.IDType == "doi" && id.ValidYN == "Y" {
			p.DOI = id.Value
			break
		}
	}

	combined := strings.ToLower(art.Title + " " + strings.Join(art.Abstract.Text, " "))
	for _, bm := range biomarkerNames {
		if strings.Contains(combined, strings.ToLower(bm)) {
			p.BiomarkerMentions = append(p.BiomarkerMentions, bm)
		}
	}

	pubDate := art.Journal.PubDate
	if pubDate.Year != "" {
		month := "01"
		if pubDate.Month != "" {
			parsedMonth, err := time.Parse("Jan", pubDate.Month)
			if err == nil {
				month = fmt.Sprintf("%02d", parsedMonth.Month())
			} else {
				// Fallback für numerische Monate
				tm, err := time.Parse("1", pubDate.Month)
				if err == nil {
					month = fmt.Sprintf("%02d", tm.Month())
				}
			}
		}
		p.PubDate = fmt.Sprintf("%s-%s", pubDate.Year, month)
	}

	return p
}
