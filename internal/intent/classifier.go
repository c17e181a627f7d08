package intent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fikse/fikse-agent/backend/internal/llm"
	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Fixed entity vocabularies, scanned in table order; the first match wins
// per category.
var (
	garmentTypes = []string{
		"dress", "shirt", "pants", "jacket", "coat", "blouse", "skirt", "suit",
		"jeans", "trousers", "sweater", "cardigan", "blazer", "shorts", "top",
		"outfit", "clothing", "garment", "clothes",
	}
	fabricTypes = []string{
		"silk", "cotton", "wool", "linen", "polyester", "denim", "leather",
		"cashmere", "satin", "chiffon", "velvet", "corduroy",
	}
	damageTypes = []string{
		"tear", "hole", "stain", "zipper", "button", "seam", "hem", "rip",
		"worn", "faded", "shrunk", "stretched", "loose", "tight", "broken",
		"damaged", "ruined", "falling apart", "needs fixing",
	}
)

// Whole-word trigger vocabularies for the rule-based precedence chain
var (
	numericPattern      = regexp.MustCompile(`^[0-9]+$`)
	hasNumberPattern    = regexp.MustCompile(`\b[0-9]+\b`)
	confirmationPattern = regexp.MustCompile(`\b(yes|yeah|yep|confirm|ok|okay)\b|\blooks good\b`)
	cancelPattern       = regexp.MustCompile(`\b(no|cancel|nevermind|back|stop|quit|exit)\b`)
	greetingPattern     = regexp.MustCompile(`\b(hi|hello|hey|start|begin)\b`)
	introducePattern    = regexp.MustCompile(`\bmy name is (\w+)|\bcall me (\w+)|\bi am (\w+)\s*$|\bi'?m (\w+)\s*$`)
	selectionPattern    = regexp.MustCompile(`\b(select|choose|pick|option|number|service)\b`)
)

var manualAdditionPhrases = []string{
	"add more", "add other", "add additional", "manually add", "other services", "add another",
}

var declineAdditionPhrases = []string{
	"no more", "that's all", "no additional", "no other", "just these", "no thanks",
}

// Labels the generative fallback may return
var fallbackIntents = map[string]models.Intent{
	"repair_request":    models.IntentRepairRequest,
	"greeting":          models.IntentGreeting,
	"service_selection": models.IntentServiceSelection,
	"confirmation":      models.IntentConfirmation,
	"unknown":           models.IntentUnknown,
}

// Classifier maps free text to a discrete intent plus extracted entities.
// The rule chain is deterministic; only genuinely ambiguous input reaches
// the generative fallback.
type Classifier struct {
	fallback llm.Generator
	logger   *logrus.Logger
}

func NewClassifier(fallback llm.Generator, logger *logrus.Logger) *Classifier {
	return &Classifier{
		fallback: fallback,
		logger:   logger,
	}
}

// ExtractContext scans text for garment, fabric and damage mentions. When
// both a fabric and a garment appear, the garment is qualified with the
// fabric ("silk dress") unless the fabric is already part of it.
func ExtractContext(text string) models.RepairContext {
	lower := strings.ToLower(text)

	var ctx models.RepairContext

	for _, garment := range garmentTypes {
		if strings.Contains(lower, garment) {
			ctx.GarmentType = garment
			break
		}
	}

	for _, fabric := range fabricTypes {
		if strings.Contains(lower, fabric) {
			ctx.FabricType = fabric
			if ctx.GarmentType != "" && !strings.Contains(ctx.GarmentType, fabric) {
				ctx.GarmentType = fabric + " " + ctx.GarmentType
			}
			break
		}
	}

	for _, damage := range damageTypes {
		if strings.Contains(lower, damage) {
			ctx.DamageType = damage
			break
		}
	}

	return ctx
}

// ExtractName pulls a name from an introduction like "my name is Anna"
func ExtractName(text string) string {
	groups := introducePattern.FindStringSubmatch(strings.ToLower(text))
	if groups == nil {
		return ""
	}
	for _, group := range groups[1:] {
		if group != "" {
			return strings.ToUpper(group[:1]) + group[1:]
		}
	}
	return ""
}

// Classify runs the precedence chain. Context extraction runs
// unconditionally and is returned regardless of which rule fires, so the
// session accumulates entities even from bare confirmations.
func (c *Classifier) Classify(ctx context.Context, text string) (models.Intent, models.RepairContext) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	repairCtx := ExtractContext(trimmed)

	switch {
	case numericPattern.MatchString(trimmed):
		return models.IntentServiceSelection, repairCtx
	case containsAny(lower, declineAdditionPhrases):
		// Checked before the cancel rule: "no more" declines, it does not abort
		return models.IntentDeclineAddition, repairCtx
	case containsAny(lower, manualAdditionPhrases):
		return models.IntentManualAdditionRequest, repairCtx
	case confirmationPattern.MatchString(lower):
		return models.IntentConfirmation, repairCtx
	case cancelPattern.MatchString(lower):
		return models.IntentCancel, repairCtx
	case greetingPattern.MatchString(lower):
		return models.IntentGreeting, repairCtx
	case introducePattern.MatchString(lower):
		return models.IntentIntroduceSelf, repairCtx
	case hasNumberPattern.MatchString(lower) && selectionPattern.MatchString(lower):
		return models.IntentServiceSelection, repairCtx
	case !repairCtx.Empty():
		return models.IntentRepairRequest, repairCtx
	}

	return c.classifyWithFallback(ctx, trimmed, repairCtx), repairCtx
}

// classifyWithFallback asks the generative model, constrained to the five
// canonical labels. Unavailable or invalid output degrades to
// repair_request when any context was found, otherwise unknown.
func (c *Classifier) classifyWithFallback(ctx context.Context, text string, repairCtx models.RepairContext) models.Intent {
	if c.fallback == nil {
		return c.degrade(repairCtx)
	}

	prompt := fmt.Sprintf(`You are an intent classifier for a clothing repair service.

User said: %q

Classify the intent as one of:
- repair_request: user needs clothing repair, alteration or fixing
- greeting: user is saying hello or starting a conversation
- service_selection: user is selecting from options
- confirmation: user is confirming something
- unknown: does not fit any category

Respond with ONLY the intent name, nothing else.`, text)

	response, err := c.fallback.Generate(ctx, prompt)
	if err != nil {
		c.logger.WithError(err).Warn("Intent fallback unavailable")
		return c.degrade(repairCtx)
	}

	label := strings.ToLower(strings.TrimSpace(response))
	if intent, ok := fallbackIntents[label]; ok {
		return intent
	}

	c.logger.WithField("label", label).Warn("Intent fallback returned an invalid label")
	return c.degrade(repairCtx)
}

func (c *Classifier) degrade(repairCtx models.RepairContext) models.Intent {
	if !repairCtx.Empty() {
		return models.IntentRepairRequest
	}
	return models.IntentUnknown
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
