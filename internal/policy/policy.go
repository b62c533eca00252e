// Package policy chooses the effective LLM provider for a request, given the
// requested provider, the active credential set, and the operation kind.
package policy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/model"
)

// Operation kinds the engine distinguishes.
type Operation string

const (
	OpChat     Operation = "chat"
	OpAnalysis Operation = "analysis"
	OpRefine   Operation = "prompt-refine"
	OpAgentic  Operation = "agentic"
)

// AnalysisMCQ is the one analysis kind allowed to fall back to the local
// provider family when a cloud key is missing.
const AnalysisMCQ = "mcq"

// Provider families. Matching is by prefix so model-qualified identifiers
// (gemini-flash, groq-llama) resolve to their family.
const (
	FamilyGemini = "Gemini"
	FamilyGroq   = "Groq"
	FamilyLocal  = "Ollama"
)

// LocalProvider is the local family identifier used for downgrades and as the
// sentinel that skips the strict check on refine/agentic operations.
const LocalProvider = "ollama"

// DefaultProvider is assumed when the caller names none.
const DefaultProvider = "gemini-flash"

// MissingCredentialError reports a provider family whose key is absent and
// for which no fallback is permitted.
type MissingCredentialError struct {
	Family string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s API key was not available. Add your key in Settings or request access to the shared keys.", e.Family)
}

// Engine applies the provider-availability rules.
type Engine struct {
	log zerolog.Logger
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// Decision is the engine's output for one request.
type Decision struct {
	Requested string
	Effective string
	Family    string
	// Downgraded is true when a missing cloud key forced the local family.
	Downgraded bool
}

// Resolve returns the effective provider for the request, or a
// MissingCredentialError when the required key is absent and the operation
// does not qualify for the MCQ downgrade.
func (e *Engine) Resolve(requested string, op Operation, analysisType string, creds model.Credentials) (Decision, error) {
	requested = strings.TrimSpace(strings.ToLower(requested))
	if requested == "" {
		requested = DefaultProvider
	}

	d := Decision{Requested: requested, Effective: requested, Family: familyOf(requested)}

	switch d.Family {
	case FamilyLocal:
		// The upstream service owns the local daemon; always accepted.
	case FamilyGemini:
		if !creds.HasGemini() {
			if !downgradeAllowed(op, analysisType) {
				return d, &MissingCredentialError{Family: FamilyGemini}
			}
			d.Effective = LocalProvider
			d.Downgraded = true
		}
	case FamilyGroq:
		if !creds.HasGroq() {
			if !downgradeAllowed(op, analysisType) {
				return d, &MissingCredentialError{Family: FamilyGroq}
			}
			d.Effective = LocalProvider
			d.Downgraded = true
		}
	default:
		// Unknown identifiers are forwarded untouched; the upstream decides.
	}

	e.log.Info().
		Str("op", string(op)).
		Str("requested_provider", d.Requested).
		Str("effective_provider", d.Effective).
		Bool("downgraded", d.Downgraded).
		Msg("provider resolved")
	return d, nil
}

func downgradeAllowed(op Operation, analysisType string) bool {
	return op == OpAnalysis && strings.EqualFold(analysisType, AnalysisMCQ)
}

func familyOf(provider string) string {
	switch {
	case strings.HasPrefix(provider, "gemini"):
		return FamilyGemini
	case strings.HasPrefix(provider, "groq"):
		return FamilyGroq
	case strings.HasPrefix(provider, "ollama"):
		return FamilyLocal
	default:
		return ""
	}
}
