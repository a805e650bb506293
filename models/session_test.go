package models

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRentalSession() *Session {
	return NewSession("contract text", []Clause{
		{Heading: "§ 1 Rent", Body: "The rent is 800 euros."},
		{Heading: "§ 2 Pets", Body: "Pets are not permitted."},
	})
}

func TestSessionClauseLookup(t *testing.T) {
	s := newRentalSession()

	clause, ok := s.Clause("§ 2 Pets")
	require.True(t, ok)
	assert.Equal(t, "Pets are not permitted.", clause.Body)

	_, ok = s.Clause("§ 99")
	assert.False(t, ok)
}

func TestSessionClauseMapPreservesBodies(t *testing.T) {
	s := newRentalSession()

	m := s.ClauseMap()
	assert.Equal(t, map[string]string{
		"§ 1 Rent": "The rent is 800 euros.",
		"§ 2 Pets": "Pets are not permitted.",
	}, m)
}

func TestSessionSuggestionsSnapshotIsIsolated(t *testing.T) {
	s := newRentalSession()
	s.SetSuggestion("§ 1 Rent", "better wording")

	snapshot := s.Suggestions()
	snapshot["§ 2 Pets"] = "mutated"

	_, ok := s.Suggestion("§ 2 Pets")
	assert.False(t, ok)
}

func TestSessionChatHistoryOrder(t *testing.T) {
	s := newRentalSession()
	s.AppendChat(ChatRoleUser, "When is rent due?")
	s.AppendChat(ChatRoleAssistant, "On the first of the month.")

	history := s.ChatHistory()
	require.Len(t, history, 2)
	assert.Equal(t, ChatRoleUser, history[0].Role)
	assert.Equal(t, ChatRoleAssistant, history[1].Role)
}

func TestSessionConcurrentSuggestionWrites(t *testing.T) {
	s := newRentalSession()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SetSuggestion(fmt.Sprintf("§ %d", i), "text")
			s.Suggestions()
			s.ChatHistory()
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Suggestions(), 16)
}
