package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fikse/fikse-agent/backend/internal/intent"
	"github.com/fikse/fikse-agent/backend/internal/llm"
	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/fikse/fikse-agent/backend/internal/search"
	"github.com/sirupsen/logrus"
)

// Searcher is the hybrid search dependency; tests substitute a stub
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.ServiceItem, error)
}

// Engine drives the conversation state machine. Given the same phase,
// intent, context and suggestion list it always produces the same
// transition and response.
type Engine struct {
	store      *Store
	searcher   Searcher
	classifier *intent.Classifier
	responder  llm.Generator
	logger     *logrus.Logger
}

// At most this many suggestions are offered for selection
const maxSuggestions = 5

var selectionNumbers = regexp.MustCompile(`\b(\d+)\b`)

const apologyResponse = "I apologize, but I'm having trouble right now. " +
	"Please describe what clothing item needs repair and I'll try to help!"

func NewEngine(
	store *Store,
	searcher Searcher,
	classifier *intent.Classifier,
	responder llm.Generator,
	logger *logrus.Logger,
) *Engine {
	return &Engine{
		store:      store,
		searcher:   searcher,
		classifier: classifier,
		responder:  responder,
		logger:     logger,
	}
}

// Store exposes the session store for the inspection endpoints
func (e *Engine) Store() *Store {
	return e.store
}

// HandleTurn processes one conversational turn. It never returns an error:
// any unexpected failure becomes a generic apologetic response so the
// conversation survives.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, userInput string) (response *models.AgentResponse) {
	session := e.store.Get(sessionID)

	// Serializes concurrent requests for the same session id
	session.mu.Lock()
	defer session.mu.Unlock()

	session.LastSeen = time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"panic":      r,
			}).Error("Conversation turn panicked")
			response = &models.AgentResponse{
				Intent:            string(models.IntentUnknown),
				Response:          apologyResponse,
				ConversationState: string(session.Phase),
				SessionID:         sessionID,
			}
		}
	}()

	detected, extracted := e.classifier.Classify(ctx, userInput)

	// Context accumulates regardless of which intent rule fired
	session.Context.Merge(extracted)

	session.History = append(session.History, models.HistoryEntry{
		Role:    "user",
		Content: userInput,
		Intent:  detected,
		Context: extracted,
	})

	e.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"intent":     detected,
		"phase":      session.Phase,
	}).Info("Processing conversation turn")

	response = e.dispatch(ctx, session, detected, userInput)
	response.SessionID = sessionID

	sessionCtx := session.Context
	response.Context = &sessionCtx

	session.History = append(session.History, models.HistoryEntry{
		Role:    "assistant",
		Content: response.Response,
	})

	return response
}

func (e *Engine) dispatch(ctx context.Context, s *Session, detected models.Intent, input string) *models.AgentResponse {
	switch detected {
	case models.IntentGreeting:
		return e.handleGreeting(s, detected)
	case models.IntentIntroduceSelf:
		return e.handleIntroduction(s, detected, input)
	case models.IntentRepairRequest:
		return e.handleRepairRequest(ctx, s, detected, input)
	case models.IntentServiceSelection:
		return e.handleSelection(s, detected, input)
	case models.IntentManualAdditionRequest:
		return e.handleManualAdditionRequest(s, detected)
	case models.IntentDeclineAddition:
		return e.handleDeclineAddition(s, detected)
	case models.IntentConfirmation:
		return e.handleConfirmation(s, detected)
	case models.IntentCancel:
		return e.handleCancel(s, detected)
	default:
		return e.handleUnknown(ctx, s, detected, input)
	}
}

func (e *Engine) handleGreeting(s *Session, detected models.Intent) *models.AgentResponse {
	s.Phase = models.PhaseGreeting

	greeting := "Hi there! I help with clothing repairs and alterations.\n\n" +
		"What garment needs fixing today? Please describe the item and what's wrong with it."
	if s.UserName != "" {
		greeting = fmt.Sprintf("Welcome back, %s! What garment needs fixing today?", s.UserName)
	}

	return e.respond(s, detected, greeting)
}

func (e *Engine) handleIntroduction(s *Session, detected models.Intent, input string) *models.AgentResponse {
	name := intent.ExtractName(input)
	if name == "" {
		name = "Friend"
	}
	s.UserName = name

	return e.respond(s, detected, fmt.Sprintf(
		"Nice to meet you, %s!\n\nWhat garment needs fixing today? Please describe the item and the damage you see.",
		name))
}

func (e *Engine) handleRepairRequest(ctx context.Context, s *Session, detected models.Intent, input string) *models.AgentResponse {
	results, err := e.searcher.Search(ctx, input)
	if err != nil {
		if errors.Is(err, search.ErrIndexNotReady) {
			return e.respond(s, detected,
				"I'm still warming up the service catalog. Please try again in a moment.")
		}
		e.logger.WithError(err).Error("Search failed during conversation turn")
		results = nil
	}

	s.CurrentQuery = input
	// A new search invalidates any preview from an earlier confirmation
	s.PendingOrder = nil

	if len(results) == 0 {
		s.Phase = models.PhaseSearching
		return e.respond(s, detected, fmt.Sprintf(
			"I couldn't find services for your %s. Could you describe the damage in more detail?",
			e.garmentInfo(s, "item")))
	}

	if len(results) > maxSuggestions {
		results = results[:maxSuggestions]
	}
	s.SuggestedServices = results
	s.Phase = models.PhaseSelecting

	resp := e.respond(s, detected, fmt.Sprintf(
		"Found %d matching repair services for your %s. Here are your options:",
		len(results), e.garmentInfo(s, "garment")))
	resp.ShowServices = true
	resp.Services = s.SuggestedServices
	return resp
}

func (e *Engine) handleSelection(s *Session, detected models.Intent, input string) *models.AgentResponse {
	if s.Phase == models.PhaseConfirming {
		return e.respond(s, detected, "Please answer Yes or No to confirm the order.")
	}
	if s.Phase != models.PhaseSelecting || len(s.SuggestedServices) == 0 {
		return e.respond(s, detected, "Please start by describing what needs to be repaired first.")
	}

	picked := parseSelection(input, s.SuggestedServices)
	if len(picked) == 0 {
		// Out-of-range or unparseable input re-prompts without a transition
		resp := e.respond(s, detected, "Please select a service from the options above.")
		resp.ShowServices = true
		resp.Services = s.SuggestedServices
		return resp
	}

	s.SelectedServices = appendSelections(s.SelectedServices, picked)

	preview, err := BuildPreview(s.SelectedServices)
	if err != nil {
		resp := e.respond(s, detected, "Please select a service from the options above.")
		resp.ShowServices = true
		resp.Services = s.SuggestedServices
		return resp
	}

	s.PendingOrder = preview
	s.Phase = models.PhaseConfirming

	hoursInfo := ""
	if preview.EstimatedTotalHours != nil {
		hoursInfo = fmt.Sprintf("\n**Estimated Time:** %.1f hours", *preview.EstimatedTotalHours)
	}

	resp := e.respond(s, detected, fmt.Sprintf(
		"Great choice! You've selected:\n\n%s\n\n**Total Price:** $%.0f%s\n\nWould you like to confirm this order?",
		formatServiceList(s.SelectedServices), preview.TotalPrice, hoursInfo))
	resp.SelectedServices = s.SelectedServices
	resp.OrderSummary = preview
	return resp
}

func (e *Engine) handleManualAdditionRequest(s *Session, detected models.Intent) *models.AgentResponse {
	if len(s.SelectedServices) == 0 {
		return e.respond(s, detected, "Please select a service first, then I can add more to the order.")
	}

	// Leaving confirming invalidates the preview until the user re-confirms
	s.PendingOrder = nil
	s.Phase = models.PhaseManualAddition

	return e.respond(s, detected, "Sure - describe the additional service or repair you'd like to add:")
}

func (e *Engine) handleDeclineAddition(s *Session, detected models.Intent) *models.AgentResponse {
	if len(s.SelectedServices) == 0 {
		s.Phase = models.PhaseGreeting
		return e.respond(s, detected, "No services selected. Please start over by describing what needs repair.")
	}

	preview, err := BuildPreview(s.SelectedServices)
	if err != nil {
		s.Phase = models.PhaseGreeting
		return e.respond(s, detected, "No services selected. Please start over by describing what needs repair.")
	}

	s.PendingOrder = preview
	s.Phase = models.PhaseConfirming

	hoursInfo := ""
	if preview.EstimatedTotalHours != nil {
		hoursInfo = fmt.Sprintf("\n**Estimated Time:** %.1f hours", *preview.EstimatedTotalHours)
	}

	resp := e.respond(s, detected, fmt.Sprintf(
		"**Order Summary:**\n\n%s\n\n**Total Price:** $%.0f%s\n\n**Do you want to confirm and create this order?**",
		formatServiceList(s.SelectedServices), preview.TotalPrice, hoursInfo))
	resp.SelectedServices = s.SelectedServices
	resp.OrderSummary = preview
	return resp
}

func (e *Engine) handleConfirmation(s *Session, detected models.Intent) *models.AgentResponse {
	switch s.Phase {
	case models.PhaseConfirming:
		if len(s.SelectedServices) == 0 {
			s.Phase = models.PhaseGreeting
			return e.respond(s, detected, "No order to confirm. Please start by describing what needs repair.")
		}

		order, err := BuildOrder(s.SelectedServices)
		if err != nil {
			s.Phase = models.PhaseGreeting
			return e.respond(s, detected, "No order to confirm. Please start by describing what needs repair.")
		}

		s.PendingOrder = order
		s.Phase = models.PhaseCompleted

		hoursInfo := ""
		if order.EstimatedTotalHours != nil {
			hoursInfo = fmt.Sprintf("\n**Estimated Time:** %.1f hours", *order.EstimatedTotalHours)
		}

		resp := e.respond(s, detected, fmt.Sprintf(
			"**Order Created Successfully!**\n\n**Order ID:** %s\n**Created:** %s\n\n**Services:**\n%s\n\n**Total Price:** $%.0f%s\n\nYour repair order is ready for processing! Is there anything else I can help you with?",
			order.OrderID, order.CreatedAt, formatServiceList(s.SelectedServices), order.TotalPrice, hoursInfo))
		resp.OrderCreated = order
		return resp

	case models.PhaseManualAddition:
		// "Yes" at the add-more decision point means the user wants another service
		return e.respond(s, detected, "Please describe the additional service you'd like to add:")

	default:
		return e.respond(s, detected, "There's nothing to confirm yet. What garment needs fixing?")
	}
}

func (e *Engine) handleCancel(s *Session, detected models.Intent) *models.AgentResponse {
	switch s.Phase {
	case models.PhaseConfirming:
		// Back out of the confirmation only; the suggestions stay available
		s.SelectedServices = nil
		s.PendingOrder = nil
		s.Phase = models.PhaseSelecting

		resp := e.respond(s, detected, "No problem, your selection was cleared. Pick another service from the options:")
		resp.ShowServices = len(s.SuggestedServices) > 0
		resp.Services = s.SuggestedServices
		return resp

	case models.PhaseManualAddition:
		// A "no" at the add-more decision point declines rather than aborts
		return e.handleDeclineAddition(s, models.IntentDeclineAddition)

	default:
		s.Reset()
		return e.respond(s, detected, "Order cancelled. Feel free to start over whenever you're ready!")
	}
}

func (e *Engine) handleUnknown(ctx context.Context, s *Session, detected models.Intent, input string) *models.AgentResponse {
	switch s.Phase {
	case models.PhaseSelecting:
		// While options are on the table, any number in the reply is a pick
		if selectionNumbers.MatchString(input) {
			return e.handleSelection(s, models.IntentServiceSelection, input)
		}

		resp := e.respond(s, detected, "Please select a service from the options above.")
		resp.ShowServices = true
		resp.Services = s.SuggestedServices
		return resp

	case models.PhaseConfirming:
		return e.respond(s, detected, "Please answer Yes or No to confirm the order.")

	case models.PhaseManualAddition:
		// Anything that is not a new request or an explicit yes closes the
		// decision point and moves on to confirmation
		return e.handleDeclineAddition(s, models.IntentDeclineAddition)

	default:
		return e.respond(s, detected, e.generalReply(ctx, s, input))
	}
}

// generalReply asks the generative responder for conversational filler and
// degrades to a canned line when it is unavailable.
func (e *Engine) generalReply(ctx context.Context, s *Session, input string) string {
	const canned = "I didn't quite understand that. Could you describe the garment and what needs fixing?"

	if e.responder == nil {
		return canned
	}

	var clues []string
	if s.Context.GarmentType != "" {
		clues = append(clues, "garment: "+s.Context.GarmentType)
	}
	if s.Context.FabricType != "" {
		clues = append(clues, "fabric: "+s.Context.FabricType)
	}
	if s.Context.DamageType != "" {
		clues = append(clues, "issue: "+s.Context.DamageType)
	}

	contextInfo := ""
	if len(clues) > 0 {
		contextInfo = " The user has mentioned: " + strings.Join(clues, ", ") + "."
	}

	prompt := fmt.Sprintf(`You are a helpful assistant for a clothing repair service.%s

User said: %q

Reply in at most 25 words, asking what garment needs repair. No explanations.`, contextInfo, input)

	reply, err := e.responder.Generate(ctx, prompt)
	if err != nil || reply == "" {
		e.logger.WithError(err).Warn("Response generation unavailable, using canned reply")
		return canned
	}
	return reply
}

func (e *Engine) respond(s *Session, detected models.Intent, text string) *models.AgentResponse {
	return &models.AgentResponse{
		Intent:            string(detected),
		Response:          text,
		ConversationState: string(s.Phase),
	}
}

// garmentInfo describes the item under discussion from accumulated context.
// The fabric qualifier is skipped when the garment string already carries it.
func (e *Engine) garmentInfo(s *Session, fallback string) string {
	garment := s.Context.GarmentType
	if garment == "" {
		garment = fallback
	}
	if s.Context.FabricType != "" && !strings.Contains(garment, s.Context.FabricType) {
		return s.Context.FabricType + " " + garment
	}
	return garment
}

// parseSelection resolves every 1-based number in input against the current
// suggestions, preserving order and dropping duplicates. Out-of-range
// numbers are ignored; an input with no valid number yields nil.
func parseSelection(input string, available []models.ServiceItem) []models.ServiceItem {
	matches := selectionNumbers.FindAllString(input, -1)

	var picked []models.ServiceItem
	seen := make(map[int]bool)

	for _, match := range matches {
		number, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		index := number - 1
		if index < 0 || index >= len(available) || seen[index] {
			continue
		}
		seen[index] = true
		picked = append(picked, available[index])
	}

	return picked
}

// appendSelections merges newly picked services into the running selection,
// skipping services already present.
func appendSelections(current, picked []models.ServiceItem) []models.ServiceItem {
	for _, candidate := range picked {
		duplicate := false
		for _, existing := range current {
			if existing.Service == candidate.Service && existing.Price == candidate.Price {
				duplicate = true
				break
			}
		}
		if !duplicate {
			current = append(current, candidate)
		}
	}
	return current
}

// formatServiceList renders services as a bulleted display list
func formatServiceList(services []models.ServiceItem) string {
	if len(services) == 0 {
		return "No services found."
	}

	lines := make([]string, 0, len(services))
	for _, service := range services {
		price := fmt.Sprintf("$%.0f", service.Price)
		if service.Price <= 0 {
			price = "Price on request"
		}
		lines = append(lines, fmt.Sprintf("- **%s** - %s (%s)", service.Service, service.Description, price))
	}

	return strings.Join(lines, "\n")
}
