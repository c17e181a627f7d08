package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type stubGenerator struct {
	reply string
	err   error
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.reply, s.err
}

func TestClassifier_Classify_Rules(t *testing.T) {
	classifier := NewClassifier(nil, logrus.New())

	tests := []struct {
		name     string
		input    string
		expected models.Intent
	}{
		{"bare number", "1", models.IntentServiceSelection},
		{"bare number multi-digit", "42", models.IntentServiceSelection},
		{"decline beats cancel", "no more, that's it", models.IntentDeclineAddition},
		{"no thanks declines", "no thanks", models.IntentDeclineAddition},
		{"manual addition", "I want to add more services", models.IntentManualAdditionRequest},
		{"confirmation yes", "yes", models.IntentConfirmation},
		{"confirmation phrase", "okay, confirm it", models.IntentConfirmation},
		{"looks good", "that looks good", models.IntentConfirmation},
		{"cancel", "cancel", models.IntentCancel},
		{"bare no cancels", "no", models.IntentCancel},
		{"nevermind", "nevermind", models.IntentCancel},
		{"greeting", "hello", models.IntentGreeting},
		{"greeting phrase", "hi there", models.IntentGreeting},
		{"introduction", "my name is anna", models.IntentIntroduceSelf},
		{"call me", "please call me Bob", models.IntentIntroduceSelf},
		{"i am introduction", "i am charlie", models.IntentIntroduceSelf},
		{"numbered selection", "I'll pick option 2", models.IntentServiceSelection},
		{"repair request via context", "I have a silk dress with a small tear", models.IntentRepairRequest},
		{"damage only", "there's a hole in it", models.IntentRepairRequest},
		{"gibberish without fallback", "asdf qwerty", models.IntentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detected, _ := classifier.Classify(context.Background(), tt.input)
			assert.Equal(t, tt.expected, detected, "input %q", tt.input)
		})
	}
}

func TestClassifier_Classify_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		stub     *stubGenerator
		expected models.Intent
	}{
		{"valid label", &stubGenerator{reply: "greeting"}, models.IntentGreeting},
		{"label with whitespace", &stubGenerator{reply: "  confirmation  "}, models.IntentConfirmation},
		{"invalid label", &stubGenerator{reply: "order_pizza"}, models.IntentUnknown},
		{"generator error", &stubGenerator{err: errors.New("model offline")}, models.IntentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := NewClassifier(tt.stub, logrus.New())

			// Input that no rule matches and carries no repair context
			detected, _ := classifier.Classify(context.Background(), "what about the weather")
			assert.Equal(t, tt.expected, detected)
		})
	}
}

func TestExtractContext(t *testing.T) {
	tests := []struct {
		input    string
		expected models.RepairContext
	}{
		{
			"I have a silk dress with a small tear",
			models.RepairContext{GarmentType: "silk dress", FabricType: "silk", DamageType: "tear"},
		},
		{
			"my jacket has a broken zipper",
			models.RepairContext{GarmentType: "jacket", DamageType: "zipper"},
		},
		{
			"cotton shirt",
			models.RepairContext{GarmentType: "cotton shirt", FabricType: "cotton"},
		},
		{
			"hello there",
			models.RepairContext{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractContext(tt.input))
		})
	}
}

func TestExtractContext_FabricNotDuplicated(t *testing.T) {
	// A second pass over already-qualified text must not stack the fabric
	ctx := ExtractContext("silk silk dress")
	assert.Equal(t, "silk dress", ctx.GarmentType)
}

func TestExtractName(t *testing.T) {
	assert.Equal(t, "Anna", ExtractName("my name is anna"))
	assert.Equal(t, "Bob", ExtractName("Call me bob"))
	assert.Equal(t, "Charlie", ExtractName("i am charlie"))
	assert.Equal(t, "", ExtractName("fix my dress"))
}
