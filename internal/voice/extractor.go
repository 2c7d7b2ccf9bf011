package voice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"spendigo/internal/core"
	"spendigo/internal/log"
	"spendigo/internal/metrics"
)

// Path names how a draft was produced.
type Path string

const (
	PathLLM         Path = "llm"
	PathFallback    Path = "fallback"
	PathRateLimited Path = "rate_limited"
)

const NoticeRateLimited = "Rate limit prevention active. Using basic parsing to avoid API limits."

// Extraction is the outcome of one voice extraction. It is always usable:
// LLM failures degrade to the fallback parser with a Notice.
type Extraction struct {
	Result
	Transcript string `json:"transcript"`
	Path       Path   `json:"path"`
	Notice     string `json:"notice,omitempty"`
}

// Draft converts the extraction into a ledger draft.
func (e Extraction) Draft() core.ExpenseDraft {
	return e.Result.Draft(e.Transcript)
}

// Completer is the LLM side of extraction.
type Completer interface {
	Extract(ctx context.Context, text string, today core.Date, sources []core.PaymentSource, categories []string) (Result, error)
}

// Gate decides whether an outbound call is allowed for key.
type Gate interface {
	Allow(key string) bool
}

// Extractor routes each transcript to the LLM or the fallback parser.
type Extractor struct {
	llm     Completer
	gate    Gate
	catalog *core.Catalog
	clock   func() time.Time
	logger  *log.Logger
}

// NewExtractor builds an extractor. A nil llm means every call uses the
// fallback parser; a nil gate lets every call through.
func NewExtractor(llm Completer, gate Gate, catalog *core.Catalog, logger *log.Logger, clock func() time.Time) *Extractor {
	if catalog == nil {
		catalog = core.NewCatalog()
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentVoice)
	}
	return &Extractor{
		llm:     llm,
		gate:    gate,
		catalog: catalog,
		clock:   clock,
		logger:  logger.WithComponent(log.ComponentVoice),
	}
}

// Extract produces a draft for text. key identifies the caller for rate
// limiting. sources is the caller's registry, used for source detection.
func (x *Extractor) Extract(ctx context.Context, key, text string, sources []core.PaymentSource) Extraction {
	today := core.DateOf(x.clock())
	out := x.extract(ctx, key, text, today, sources)
	out.Transcript = text
	out.Category = x.normalizeCategory(out.Category)
	metrics.VoiceExtractions.WithLabelValues(string(out.Path)).Inc()
	x.logger.InfoContext(ctx, "Voice extraction complete",
		log.FieldVoicePath, string(out.Path),
		"confidence", out.Confidence,
		log.FieldSourceID, out.SourceID)
	return out
}

func (x *Extractor) extract(ctx context.Context, key, text string, today core.Date, sources []core.PaymentSource) Extraction {
	fallback := func(path Path, notice string) Extraction {
		return Extraction{Result: ExtractBasic(text, today, sources), Path: path, Notice: notice}
	}

	if x.llm == nil {
		return fallback(PathFallback, "")
	}
	if x.gate != nil && !x.gate.Allow(key) {
		x.logger.WarnContext(ctx, "LLM quota reached, using fallback parser",
			log.FieldOperation, log.OpExtract,
			log.FieldErrorType, log.ErrorTypeRateLimit)
		return fallback(PathRateLimited, NoticeRateLimited)
	}

	r, err := x.llm.Extract(ctx, text, today, sources, x.catalog.Names())
	if err != nil {
		x.logger.WarnContext(ctx, "LLM extraction failed, using fallback parser",
			log.FieldOperation, log.OpExtract,
			log.FieldError, err.Error(),
			log.FieldErrorType, failureType(err),
			"retryable", IsRetryable(err))
		return fallback(PathFallback, failureNotice(err))
	}

	if !knownSource(r.SourceID, sources) {
		r.SourceID = detectSource(strings.ToLower(text), sources)
	}
	return Extraction{Result: r, Path: PathLLM}
}

func (x *Extractor) normalizeCategory(name string) string {
	if cat, ok := x.catalog.Lookup(name); ok {
		return cat.Name
	}
	return core.OtherCategory
}

// failureType classifies an LLM failure for logging.
func failureType(err error) string {
	var ext *ExternalError
	if errors.As(err, &ext) {
		switch {
		case errors.Is(ext.Err, ErrNoAPIKey):
			return log.ErrorTypeConfiguration
		case ext.StatusCode == http.StatusUnauthorized || ext.StatusCode == http.StatusForbidden:
			return log.ErrorTypeAuth
		case ext.StatusCode == http.StatusTooManyRequests:
			return log.ErrorTypeRateLimit
		}
	}
	return log.ErrorTypeNetwork
}

func failureNotice(err error) string {
	var ext *ExternalError
	if errors.As(err, &ext) && errors.Is(ext.Err, ErrNoAPIKey) {
		return "AI parsing unavailable. Using basic parsing."
	}
	return fmt.Sprintf("AI parsing failed: %v", err)
}

func knownSource(id string, sources []core.PaymentSource) bool {
	if id == "" {
		return false
	}
	for _, s := range sources {
		if s.ID == id && s.IsActive {
			return true
		}
	}
	return false
}
