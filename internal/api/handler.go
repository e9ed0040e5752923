package api

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sanjeevkumarraob/ipc-search-service/internal/document"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/search"
	"github.com/sanjeevkumarraob/ipc-search-service/internal/translate"
)

const (
	assistantLimit = 3
	predictLimit   = 3

	// predictQueryRunes bounds the text sent to the engine from a case description.
	predictQueryRunes = 500
	summaryRunes      = 200
	logQueryRunes     = 50

	strongCaseConfidence = 0.7
	weakCaseConfidence   = 0.3
	closeMatchConfidence = 0.5
)

// User-facing messages.
const (
	msgInvalidQuery     = "Please provide a valid legal query."
	msgNoCloseMatch     = "I couldn't find a close match. Try checking the spelling or describing the crime in more detail."
	msgSuggestions      = "I wasn't sure, but here are some sections that might be relevant:"
	msgClosestMatches   = "Here are the closest matches I found:"
	msgAnalysisOK       = "Analysis successful."
	msgEmptySearchTerm  = "Please enter a search term."
	msgNoSectionFound   = "No matching section found."
	msgSectionNotFound  = "Section not found."
	msgIncompleteData   = "Please provide a description or upload a document to proceed with analysis."
	msgNoStrongMatch    = "Based on the provided details, no specific IPC section strongly matches. The case might require more specific legal classification."
	msgConsultExpert    = "Consult a legal expert for a manual review."
	msgRecommendedSteps = "Gather evidence such as FIR copies, witness statements, and medical reports if applicable. " +
		"Consult a lawyer to file a case under the identified sections."
)

// Case outcome labels derived from the best match confidence.
const (
	OutcomeStrong      = "Strong Case Basis Detected"
	OutcomeWeak        = "Weak/Unclear Case Basis"
	OutcomeRecommended = "Legal Action Recommended"
	OutcomeUncertain   = "Uncertain Analysis"
	OutcomeIncomplete  = "Incomplete Data"
)

// Handler handles API requests
type Handler struct {
	engine       *search.Engine
	translator   translate.Translator
	docProcessor *document.Processor
	logger       *slog.Logger
	now          func() time.Time
}

// NewHandler creates a new handler. A nil translator disables translation.
func NewHandler(
	engine *search.Engine,
	translator translate.Translator,
	docProcessor *document.Processor,
	logger *slog.Logger,
) *Handler {
	if translator == nil {
		translator = translate.Noop{}
	}
	if docProcessor == nil {
		docProcessor = document.NewProcessor(document.WithLogger(logger))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:       engine,
		translator:   translator,
		docProcessor: docProcessor,
		logger:       logger.With("component", "api"),
		now:          time.Now,
	}
}

type queryRequest struct {
	Query string `json:"query"`
	Lang  string `json:"lang"`
}

// sectionSummary is the short section shape used by search and case analysis.
type sectionSummary struct {
	Section     string `json:"section"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// HealthCheck reports liveness and index state.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"timestamp":        h.now().UTC().Format(time.RFC3339),
		"corpus_size":      h.engine.CorpusSize(),
		"semantic_enabled": h.engine.SemanticEnabled(),
	})
}

// Assistant answers a free-text legal question with up to three ranked sections.
func (h *Handler) Assistant(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"matches":    []search.Match{},
			"message":    msgInvalidQuery,
			"confidence": 0.0,
		})
		return
	}

	query = translate.IfNeeded(c.Request.Context(), h.translator, query, h.logger)

	results := h.engine.Search(c.Request.Context(), query, assistantLimit)
	if len(results) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"matches":    []search.Match{},
			"message":    msgNoCloseMatch,
			"confidence": "None",
		})
		return
	}

	best := results[0]
	msg := msgAnalysisOK
	if best.Kind == search.MatchSuggestion {
		msg = msgSuggestions
	} else if best.Confidence < closeMatchConfidence {
		msg = msgClosestMatches
	}

	h.logger.Info("query processed",
		"query", truncateRunes(query, logQueryRunes),
		"matches", len(results),
		"request_id", requestID(c))

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"matches":    results,
		"best_match": best,
		"message":    msg,
	})
}

// IPCSearch returns the single best section for a query.
func (h *Handler) IPCSearch(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgEmptySearchTerm})
		return
	}

	results := h.engine.Search(c.Request.Context(), query, 1)
	if len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": msgNoSectionFound})
		return
	}

	best := results[0]
	c.JSON(http.StatusOK, gin.H{
		"section":     best.SectionID,
		"title":       best.Title,
		"chapter":     "Unknown",
		"description": best.Description,
	})
}

// Section looks up one section by id.
func (h *Handler) Section(c *gin.Context) {
	entry, ok := h.engine.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": msgSectionNotFound})
		return
	}
	c.JSON(http.StatusOK, sectionSummary{
		Section:     entry.SectionID,
		Title:       entry.Title,
		Description: entry.Description,
	})
}

// Predict analyses a case description and an optional uploaded document.
func (h *Handler) Predict(c *gin.Context) {
	description := c.PostForm("description")
	crimeType := c.PostForm("crime_type")
	fileText := h.uploadedText(c)

	fullText := strings.TrimSpace(crimeType + " " + description + " " + fileText)
	if fullText == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"outcome":         OutcomeIncomplete,
			"probability":     "0%",
			"ipc_section":     "N/A",
			"explanation":     msgIncompleteData,
			"action":          "Add case details.",
			"section_details": []sectionSummary{},
		})
		return
	}

	results := h.engine.Search(c.Request.Context(), truncateRunes(fullText, predictQueryRunes), predictLimit)
	if len(results) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"outcome":         OutcomeUncertain,
			"probability":     "Low",
			"ipc_section":     "None Found",
			"explanation":     msgNoStrongMatch,
			"action":          msgConsultExpert,
			"section_details": []sectionSummary{},
		})
		return
	}

	best := results[0]

	var summary string
	if fileText != "" {
		summary = "File Content Summary: " + truncateRunes(fileText, summaryRunes) + "..."
	} else {
		summary = "Statement Summary: " + truncateRunes(description, summaryRunes) + "..."
	}

	explanation := fmt.Sprintf("The provided statement aligns with **Section %s** (%s). \n\n"+
		"**Legal Insight:** %s\n\n"+
		"**Case Context:** %s",
		best.SectionID, best.Title, best.Explanation, summary)

	details := make([]sectionSummary, len(results))
	for i, m := range results {
		details[i] = sectionSummary{Section: m.SectionID, Title: m.Title, Description: m.Description}
	}

	h.logger.Info("case analysed",
		"best_section", best.SectionID,
		"confidence", best.Confidence,
		"has_document", fileText != "",
		"request_id", requestID(c))

	c.JSON(http.StatusOK, gin.H{
		"outcome":         CaseOutcome(best.Confidence),
		"probability":     fmt.Sprintf("%d%%", probabilityPercent(best.Confidence)),
		"ipc_section":     "Section " + best.SectionID,
		"explanation":     explanation,
		"action":          msgRecommendedSteps,
		"section_details": details,
	})
}

// uploadedText extracts the text of the optional "document" upload. Failures
// are logged and yield an empty string.
func (h *Handler) uploadedText(c *gin.Context) string {
	header, err := c.FormFile("document")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
			h.logger.Warn("failed to read upload", "err", err)
		}
		return ""
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("failed to open upload", "file", header.Filename, "err", err)
		return ""
	}
	defer file.Close()

	text, err := h.docProcessor.ExtractText(c.Request.Context(), header.Filename, file)
	switch {
	case errors.Is(err, document.ErrFileTooLarge):
		h.logger.Warn("upload exceeds size limit, ignoring",
			"file", header.Filename,
			"size", header.Size,
			"limit", h.docProcessor.MaxSize())
		return ""
	case errors.Is(err, document.ErrUnsupportedFileType):
		h.logger.Info("unsupported upload type, ignoring", "file", header.Filename)
		return ""
	case err != nil:
		h.logger.Error("file read error", "file", header.Filename, "err", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// probabilityPercent truncates a confidence to a whole percentage. The small
// offset keeps two-decimal confidences such as 0.29 from landing on 28.
func probabilityPercent(confidence float64) int {
	return int(math.Floor(confidence*100 + 1e-9))
}

// CaseOutcome maps the best match confidence to a coarse outcome label.
func CaseOutcome(confidence float64) string {
	switch {
	case confidence > strongCaseConfidence:
		return OutcomeStrong
	case confidence < weakCaseConfidence:
		return OutcomeWeak
	default:
		return OutcomeRecommended
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
