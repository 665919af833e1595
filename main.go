package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"biomarkerscope/cache"
	"biomarkerscope/config"
	"biomarkerscope/knowledge"
	"biomarkerscope/models"
	"biomarkerscope/providers"
	"biomarkerscope/providers/ctgov"
	"biomarkerscope/providers/narrative"
	"biomarkerscope/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var snapshotRefreshCounter prometheus.Counter

func init() {
	snapshotRefreshCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_refreshes_total",
			Help: "Total number of completed scheduled snapshot refreshes.",
		},
	)
	prometheus.MustRegister(snapshotRefreshCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Kuratierte Wissenstabellen laden; externe Dateien überschreiben
	// die eingebetteten Stände.
	tbl, err := knowledge.Load(knowledge.Paths{
		Cutoffs:      cfg.CutoffKnowledgeFile,
		Combinations: cfg.CombinationFile,
		Guidelines:   cfg.GuidelineFile,
		Reference:    cfg.ReferenceFile,
	})
	if err != nil {
		logging.Fatal("Knowledge load error", zap.Error(err))
	}
	logging.Info("Wissenstabellen geladen",
		zap.Int("biomarkers", len(tbl.Biomarkers())),
		zap.Int("assays", len(tbl.Assays())),
		zap.Int("indications", len(tbl.Indications())))

	// Setup Services
	sessionCache := cache.New(cfg.CacheTTL, time.Now)
	fetchService := services.NewFetchService(cfg, logging, tbl, sessionCache)
	aggregator := services.NewAggregator(tbl)
	narrativeClient := narrative.NewClient(cfg, logging)
	reportSession := services.NewReportSession(logging)

	activeProviders := []providers.Provider{
		fetchService.CTGov,
		fetchService.OpenTargets,
		fetchService.GWAS,
		fetchService.PubMed,
		narrativeClient,
	}
	providerNames := make([]string, 0, len(activeProviders))
	for _, p := range activeProviders {
		providerNames = append(providerNames, p.Name())
	}
	logging.Info("Active providers loaded", zap.Strings("providers", providerNames))

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupReferenceRoutes(router, tbl)
	setupDashboardRoutes(router, fetchService, aggregator, cfg)
	setupTrialRoutes(router, fetchService, cfg, logging)
	setupStrategyRoutes(router, fetchService, aggregator, cfg, logging)
	setupCutoffRoutes(router, fetchService, aggregator, cfg)
	setupInsightRoutes(router, fetchService, aggregator, cfg)
	setupWatchRoutes(router, fetchService, logging)
	setupReportRoutes(router, narrativeClient, reportSession, cfg, logging)

	// Setup Cron: täglicher Snapshot-Refresh über alle Kern-Indikationen.
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled snapshot refresh...")
		sessionCache.Purge()
		total := 0
		for _, indication := range cfg.Indications() {
			usages, err := fetchService.TrialsForIndication(context.Background(), indication)
			if err != nil {
				logging.Error("Snapshot refresh failed", zap.String("indication", indication), zap.Error(err))
				continue
			}
			total += len(usages)
		}
		logging.Info("Snapshot refresh completed", zap.Int("usage_rows", total))
		snapshotRefreshCounter.Inc()
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Kein WriteTimeout: der Report-Stream läuft länger als jedes
		// feste Schreibbudget; seine Frist setzt der Report-Watchdog.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// collectUsages lädt die Usage-Zeilen einer Indikation; "All" oder ein
// leerer Wert aggregiert alle Kern-Indikationen und dedupliziert über
// (NCT-ID, Biomarker).
func collectUsages(ctx context.Context, svc *services.FetchService, cfg *config.Config, indication string) ([]models.TrialBiomarkerUsage, error) {
	if indication != "" && !strings.EqualFold(indication, "All") {
		return svc.TrialsForIndication(ctx, indication)
	}
	seen := make(map[string]bool)
	var all []models.TrialBiomarkerUsage
	for _, ind := range cfg.Indications() {
		usages, err := svc.TrialsForIndication(ctx, ind)
		if err != nil {
			return nil, err
		}
		for _, u := range usages {
			key := u.NCTID + "|" + u.BiomarkerName
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, u)
		}
	}
	return all, nil
}

func setupReferenceRoutes(router *gin.Engine, tbl *knowledge.Table) {
	rg := router.Group("/api")

	rg.GET("/indications", func(c *gin.Context) {
		c.JSON(http.StatusOK, tbl.Indications())
	})
	rg.GET("/biomarkers", func(c *gin.Context) {
		c.JSON(http.StatusOK, tbl.Biomarkers())
	})
	rg.GET("/assays", func(c *gin.Context) {
		c.JSON(http.StatusOK, tbl.Assays())
	})
}

func setupDashboardRoutes(router *gin.Engine, svc *services.FetchService, agg *services.Aggregator, cfg *config.Config) {
	rg := router.Group("/api/dashboard")

	statsHandler := func(c *gin.Context) {
		indication := c.Param("indication")
		if indication == "" {
			indication = "All"
		}
		usages, err := collectUsages(c.Request.Context(), svc, cfg, indication)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "trial registry unavailable"})
			return
		}
		c.JSON(http.StatusOK, agg.DashboardStats(indication, usages))
	}
	rg.GET("/stats", statsHandler)
	rg.GET("/stats/:indication", statsHandler)
}

func setupTrialRoutes(router *gin.Engine, svc *services.FetchService, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/api")

	rg.GET("/trial-biomarkers", func(c *gin.Context) {
		indication := c.Query("indication")
		biomarker := c.Query("biomarker")

		var usages []models.TrialBiomarkerUsage
		var err error
		if biomarker != "" && indication != "" && !strings.EqualFold(indication, "All") {
			usages, err = svc.TrialsForBiomarker(c.Request.Context(), indication, biomarker)
		} else {
			usages, err = collectUsages(c.Request.Context(), svc, cfg, indication)
		}
		if err != nil {
			log.Error("Trial-biomarker query failed", zap.String("indication", indication), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "trial registry unavailable"})
			return
		}

		filtered := usages[:0:0]
		for _, u := range usages {
			if biomarker != "" && !strings.EqualFold(u.BiomarkerName, biomarker) {
				continue
			}
			if v := c.Query("setting"); v != "" && !strings.EqualFold(u.Setting, v) {
				continue
			}
			if v := c.Query("tumorType"); v != "" && !strings.EqualFold(u.TumorType, v) {
				continue
			}
			if v := c.Query("status"); v != "" && !strings.EqualFold(u.Status, v) {
				continue
			}
			if v := c.Query("phase"); v != "" && !strings.EqualFold(u.Phase, v) {
				continue
			}
			filtered = append(filtered, u)
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit <= 0 || limit > 500 {
			limit = 100
		}
		if offset < 0 {
			offset = 0
		}
		total := len(filtered)
		if offset > total {
			offset = total
		}
		end := offset + limit
		if end > total {
			end = total
		}

		c.JSON(http.StatusOK, gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
			"rows":   filtered[offset:end],
		})
	})

	rg.GET("/trials/:nctId", func(c *gin.Context) {
		detail, err := svc.TrialDetail(c.Request.Context(), c.Param("nctId"))
		if err != nil {
			if errors.Is(err, ctgov.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "trial not found"})
				return
			}
			log.Error("Trial detail fetch failed", zap.String("nctId", c.Param("nctId")), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "trial registry unavailable"})
			return
		}
		c.JSON(http.StatusOK, detail)
	})

	rg.GET("/trials/:nctId/enriched", func(c *gin.Context) {
		enriched, err := svc.EnrichTrial(c.Request.Context(), c.Param("nctId"))
		if err != nil {
			if errors.Is(err, ctgov.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "trial not found"})
				return
			}
			log.Error("Trial enrichment failed", zap.String("nctId", c.Param("nctId")), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "trial registry unavailable"})
			return
		}
		c.JSON(http.StatusOK, enriched)
	})
}

func setupStrategyRoutes(router *gin.Engine, svc *services.FetchService, agg *services.Aggregator, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/api/strategy")

	rg.GET("/brief/:indication/:biomarker", func(c *gin.Context) {
		brief, err := svc.StrategyBrief(c.Request.Context(), c.Param("indication"), c.Param("biomarker"))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "brief assembly failed"})
			return
		}
		c.JSON(http.StatusOK, brief)
	})

	rg.GET("/opportunity-matrix", func(c *gin.Context) {
		ctx := c.Request.Context()
		indications := cfg.Indications()

		byIndication := make(map[string][]models.TrialBiomarkerUsage, len(indications))
		for _, indication := range indications {
			usages, err := svc.TrialsForIndication(ctx, indication)
			if err != nil {
				log.Warn("Matrix: Studienabruf fehlgeschlagen", zap.String("indication", indication), zap.Error(err))
				continue
			}
			byIndication[indication] = usages
		}

		signals := make(map[[2]string]services.OTSignal)
		for _, indication := range indications {
			assocs, err := svc.Associations(ctx, indication)
			if err != nil {
				log.Warn("Matrix: Assoziationsabruf fehlgeschlagen", zap.String("indication", indication), zap.Error(err))
				continue
			}
			for _, a := range assocs {
				key := [2]string{a.BiomarkerSymbol, indication}
				sig := signals[key]
				if a.OverallScore > sig.Score {
					sig.Score = a.OverallScore
				}
				if a.SMHasApprovedDrug || a.ABHasApprovedDrug {
					sig.HasApprovedDrug = true
				}
				sig.DrugCount += a.UniqueDrugs
				signals[key] = sig
			}
		}

		matrix := agg.BuildOpportunityMatrix(indications, byIndication, signals)
		c.JSON(http.StatusOK, gin.H{
			"indications":   matrix.Indications,
			"biomarkers":    matrix.Biomarkers,
			"matrix":        matrix.Matrix,
			"opportunities": matrix.Opportunities,
			"generatedAt":   time.Now().UTC().Format(time.RFC3339),
		})
	})
}

func setupCutoffRoutes(router *gin.Engine, svc *services.FetchService, agg *services.Aggregator, cfg *config.Config) {
	rg := router.Group("/api/cutoffs")

	rg.GET("/trends/:indication", func(c *gin.Context) {
		usages, err := collectUsages(c.Request.Context(), svc, cfg, c.Param("indication"))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "trial registry unavailable"})
			return
		}
		series := agg.CutoffTrendSeries(services.BuildCutoffTrends(usages))
		c.JSON(http.StatusOK, series)
	})

	rg.GET("/advisor/:indication", func(c *gin.Context) {
		indication := c.Param("indication")
		usages, err := collectUsages(c.Request.Context(), svc, cfg, indication)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "trial registry unavailable"})
			return
		}
		c.JSON(http.StatusOK, agg.CutoffAdvisor(indication, usages))
	})
}

func setupInsightRoutes(router *gin.Engine, svc *services.FetchService, agg *services.Aggregator, cfg *config.Config) {
	rg := router.Group("/api")

	rg.GET("/gaps/:indication", func(c *gin.Context) {
		indication := c.Param("indication")
		usages, err := collectUsages(c.Request.Context(), svc, cfg, indication)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "trial registry unavailable"})
			return
		}
		c.JSON(http.StatusOK, agg.CDxGaps(indication, usages))
	})

	rg.GET("/combinations/:indication", func(c *gin.Context) {
		indication := c.Param("indication")
		usages, err := collectUsages(c.Request.Context(), svc, cfg, indication)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "trial registry unavailable"})
			return
		}
		c.JSON(http.StatusOK, agg.Combinations(indication, usages))
	})

	rg.GET("/evidence/:indication", func(c *gin.Context) {
		indication := c.Param("indication")
		usages, err := collectUsages(c.Request.Context(), svc, cfg, indication)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "trial registry unavailable"})
			return
		}
		c.JSON(http.StatusOK, agg.EvidenceGrades(indication, usages))
	})
}

func setupWatchRoutes(router *gin.Engine, svc *services.FetchService, log *zap.Logger) {
	rg := router.Group("/api/watch")

	rg.GET("/feed", func(c *gin.Context) {
		feed, err := svc.WatchFeed(c.Request.Context())
		if err != nil {
			log.Error("Watch feed failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "watch feed unavailable"})
			return
		}
		c.JSON(http.StatusOK, feed)
	})

	rg.GET("/biomarker/:biomarker", func(c *gin.Context) {
		watch, err := svc.BiomarkerWatch(c.Request.Context(), c.Param("biomarker"))
		if err != nil {
			log.Error("Biomarker watch failed", zap.String("biomarker", c.Param("biomarker")), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "biomarker watch unavailable"})
			return
		}
		c.JSON(http.StatusOK, watch)
	})
}

func setupReportRoutes(router *gin.Engine, narr *narrative.Client, session *services.ReportSession, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/api/research/report")

	// SSE-Relay: Events werden unverändert weitergereicht und parallel
	// in den Sessionzustand reduziert.
	rg.GET("", func(c *gin.Context) {
		indication := c.Query("indication")
		biomarker := c.Query("biomarker")
		if indication == "" || biomarker == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "indication and biomarker are required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.ReportTimeout)
		defer cancel()

		events, errs, err := narr.Stream(ctx, indication, biomarker)
		if err != nil {
			log.Error("Report stream open failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "report stream unavailable"})
			return
		}
		session.BeginRun(indication, biomarker)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.WriteHeader(http.StatusOK)
		c.Writer.Flush()

		writeFrame := func(ev narrative.Event) {
			payload, err := json.Marshal(ev)
			if err != nil {
				return
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
			c.Writer.Flush()
		}

		for ev := range events {
			session.Apply(ev)
			writeFrame(ev)
		}

		switch {
		case c.Request.Context().Err() != nil:
			// Abbruch durch den Client ist kein Fehler.
			session.Cancel()
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			session.Fail("report generation timed out")
			writeFrame(narrative.Event{Type: narrative.EventError, Message: "report generation timed out"})
		default:
			if err := <-errs; err != nil {
				session.Fail(err.Error())
				writeFrame(narrative.Event{Type: narrative.EventError, Message: err.Error()})
			} else {
				session.Fail("report stream ended unexpectedly")
			}
		}
	})

	rg.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, session.Snapshot())
	})

	rg.POST("/cancel", func(c *gin.Context) {
		session.Cancel()
		c.JSON(http.StatusOK, gin.H{"state": services.ReportIdle})
	})
}
