package agent

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/fikse/fikse-agent/backend/internal/intent"
	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/fikse/fikse-agent/backend/internal/search"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	items []models.ServiceItem
	err   error
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]models.ServiceItem, error) {
	return s.items, s.err
}

func testServices() []models.ServiceItem {
	hours := 1.5
	return []models.ServiceItem{
		{ID: "service_1", Service: "Zipper replacement", Description: "Replace a broken zipper", Price: 150, EstimatedHours: &hours},
		{ID: "service_2", Service: "Patch repair", Description: "Sew a patch over a hole", Price: 90},
		{ID: "service_3", Service: "Hemming", Description: "Shorten trouser legs", Price: 80},
	}
}

func newTestEngine(searcher Searcher) *Engine {
	logger := logrus.New()
	store := NewStore(0, logger)
	classifier := intent.NewClassifier(nil, logger)
	return NewEngine(store, searcher, classifier, nil, logger)
}

func TestEngine_FullOrderFlow(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	// Describe the damage: suggestions arrive and the phase advances
	resp := engine.HandleTurn(ctx, "sess-1", "I have a silk dress with a small tear")
	assert.Equal(t, "repair_request", resp.Intent)
	assert.Equal(t, "selecting", resp.ConversationState)
	assert.True(t, resp.ShowServices)
	require.Len(t, resp.Services, 3)
	assert.Contains(t, resp.Response, "silk dress")
	require.NotNil(t, resp.Context)
	assert.Equal(t, "silk", resp.Context.FabricType)
	assert.Equal(t, "tear", resp.Context.DamageType)

	// Select the first option: straight to confirmation with a preview
	resp = engine.HandleTurn(ctx, "sess-1", "1")
	assert.Equal(t, "service_selection", resp.Intent)
	assert.Equal(t, "confirming", resp.ConversationState)
	require.Len(t, resp.SelectedServices, 1)
	assert.Equal(t, "Zipper replacement", resp.SelectedServices[0].Service)
	require.NotNil(t, resp.OrderSummary)
	assert.Equal(t, 150.0, resp.OrderSummary.TotalPrice)
	assert.Empty(t, resp.OrderSummary.OrderID)

	// Confirm: the order is finalized
	resp = engine.HandleTurn(ctx, "sess-1", "yes")
	assert.Equal(t, "completed", resp.ConversationState)
	require.NotNil(t, resp.OrderCreated)
	assert.True(t, strings.HasPrefix(resp.OrderCreated.OrderID, "ORD-"))
	assert.NotEmpty(t, resp.OrderCreated.CreatedAt)
	assert.Equal(t, 150.0, resp.OrderCreated.TotalPrice)
}

func TestEngine_InvalidSelectionReprompts(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	engine.HandleTurn(ctx, "sess-2", "I have a silk dress with a small tear")

	// Out of range: no transition, the options are shown again
	resp := engine.HandleTurn(ctx, "sess-2", "99")
	assert.Equal(t, "selecting", resp.ConversationState)
	assert.True(t, resp.ShowServices)
	assert.Empty(t, resp.SelectedServices)
}

func TestEngine_MultiSelection(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	engine.HandleTurn(ctx, "sess-3", "I have a torn jacket")

	resp := engine.HandleTurn(ctx, "sess-3", "1 and 3")
	assert.Equal(t, "confirming", resp.ConversationState)
	require.Len(t, resp.SelectedServices, 2)
	require.NotNil(t, resp.OrderSummary)
	assert.Equal(t, 230.0, resp.OrderSummary.TotalPrice)
}

func TestEngine_CancelInConfirmingClearsSelection(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	engine.HandleTurn(ctx, "sess-4", "I have a silk dress with a small tear")
	engine.HandleTurn(ctx, "sess-4", "2")

	resp := engine.HandleTurn(ctx, "sess-4", "cancel")
	assert.Equal(t, "selecting", resp.ConversationState)
	assert.Empty(t, resp.SelectedServices)

	// The suggestions survive and a fresh pick still works
	resp = engine.HandleTurn(ctx, "sess-4", "1")
	assert.Equal(t, "confirming", resp.ConversationState)
	require.NotNil(t, resp.OrderSummary)
	assert.Equal(t, 150.0, resp.OrderSummary.TotalPrice)
}

func TestEngine_CancelOutsideConfirmingResets(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	engine.HandleTurn(ctx, "sess-5", "I have a silk dress with a small tear")
	resp := engine.HandleTurn(ctx, "sess-5", "cancel")

	assert.Equal(t, "greeting", resp.ConversationState)

	session, ok := engine.Store().Peek("sess-5")
	require.True(t, ok)
	assert.Empty(t, session.SuggestedServices)
	assert.True(t, session.Context.Empty())
}

func TestEngine_ManualAdditionFlow(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	engine.HandleTurn(ctx, "sess-6", "I have a silk dress with a small tear")
	engine.HandleTurn(ctx, "sess-6", "1")

	resp := engine.HandleTurn(ctx, "sess-6", "add more services please")
	assert.Equal(t, "manual_addition", resp.ConversationState)

	// A new damage description runs a fresh search, keeping the selection
	resp = engine.HandleTurn(ctx, "sess-6", "the hem is also loose")
	assert.Equal(t, "selecting", resp.ConversationState)

	resp = engine.HandleTurn(ctx, "sess-6", "3")
	assert.Equal(t, "confirming", resp.ConversationState)
	require.Len(t, resp.SelectedServices, 2)
	assert.Equal(t, 230.0, resp.OrderSummary.TotalPrice)

	resp = engine.HandleTurn(ctx, "sess-6", "yes")
	assert.Equal(t, "completed", resp.ConversationState)
	require.NotNil(t, resp.OrderCreated)
	assert.Len(t, resp.OrderCreated.Services, 2)
}

func TestEngine_DeclineAdditionGoesToConfirmation(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	engine.HandleTurn(ctx, "sess-7", "I have a silk dress with a small tear")
	engine.HandleTurn(ctx, "sess-7", "1")
	engine.HandleTurn(ctx, "sess-7", "add more services please")

	resp := engine.HandleTurn(ctx, "sess-7", "no more, that's all")
	assert.Equal(t, "decline_addition", resp.Intent)
	assert.Equal(t, "confirming", resp.ConversationState)
	require.NotNil(t, resp.OrderSummary)
	assert.Equal(t, 150.0, resp.OrderSummary.TotalPrice)
}

func TestEngine_NewRequestInConfirmingClearsPreview(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	engine.HandleTurn(ctx, "sess-13", "I have a silk dress with a small tear")
	engine.HandleTurn(ctx, "sess-13", "1")

	// Describing more damage instead of confirming restarts selection; the
	// preview from the abandoned confirmation must not linger
	resp := engine.HandleTurn(ctx, "sess-13", "my jacket has a hole too")
	assert.Equal(t, "selecting", resp.ConversationState)

	session, ok := engine.Store().Peek("sess-13")
	require.True(t, ok)
	assert.Nil(t, session.PendingOrder)
	assert.False(t, session.View().HasPendingOrder)
}

func TestEngine_ConcurrentTurnsSerialize(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	const turns = 25
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.HandleTurn(ctx, "shared", "hello")
		}()
	}
	wg.Wait()

	session, ok := engine.Store().Peek("shared")
	require.True(t, ok)

	// Each turn appends a user and an assistant entry; lost updates would
	// leave the history short
	session.mu.Lock()
	defer session.mu.Unlock()
	assert.Len(t, session.History, 2*turns)
}

func TestEngine_IndexWarmingUp(t *testing.T) {
	engine := newTestEngine(&stubSearcher{err: search.ErrIndexNotReady})
	ctx := context.Background()

	resp := engine.HandleTurn(ctx, "sess-8", "I have a silk dress with a small tear")
	assert.Equal(t, "greeting", resp.ConversationState)
	assert.Contains(t, resp.Response, "warming up")
}

func TestEngine_NoResultsKeepsSearching(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: nil})
	ctx := context.Background()

	resp := engine.HandleTurn(ctx, "sess-9", "I have a silk dress with a small tear")
	assert.Equal(t, "searching", resp.ConversationState)
	assert.False(t, resp.ShowServices)
}

func TestEngine_Introduction(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	resp := engine.HandleTurn(ctx, "sess-10", "my name is anna")
	assert.Equal(t, "introduce_self", resp.Intent)
	assert.Contains(t, resp.Response, "Anna")

	session, ok := engine.Store().Peek("sess-10")
	require.True(t, ok)
	assert.Equal(t, "Anna", session.UserName)
}

func TestEngine_SelectionWithoutSuggestions(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	resp := engine.HandleTurn(ctx, "sess-11", "2")
	assert.Equal(t, "greeting", resp.ConversationState)
	assert.Empty(t, resp.SelectedServices)
}

func TestEngine_ContextAccumulatesAcrossTurns(t *testing.T) {
	engine := newTestEngine(&stubSearcher{items: testServices()})
	ctx := context.Background()

	engine.HandleTurn(ctx, "sess-12", "my dress needs fixing")
	resp := engine.HandleTurn(ctx, "sess-12", "it's silk")

	require.NotNil(t, resp.Context)
	assert.Equal(t, "silk", resp.Context.FabricType)
	assert.Contains(t, resp.Context.GarmentType, "dress")
}

func TestParseSelection(t *testing.T) {
	available := testServices()

	picked := parseSelection("1 and 3", available)
	require.Len(t, picked, 2)
	assert.Equal(t, "Zipper replacement", picked[0].Service)
	assert.Equal(t, "Hemming", picked[1].Service)

	// Duplicates collapse, out-of-range numbers are dropped
	picked = parseSelection("2, 2, 7", available)
	require.Len(t, picked, 1)
	assert.Equal(t, "Patch repair", picked[0].Service)

	assert.Nil(t, parseSelection("99", available))
	assert.Nil(t, parseSelection("none of these", available))
}
