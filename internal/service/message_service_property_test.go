package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"office-service/internal/domain"
)

// buildMessageSets turns a seed slice into overlapping message sets, sharing
// ids between sets the way history, realtime and optimistic copies overlap.
func buildMessageSets(seeds []int) ([]domain.ChatMessage, [][]domain.ChatMessage) {
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	pool := make([]domain.ChatMessage, len(seeds))
	for i, seed := range seeds {
		pool[i] = domain.ChatMessage{
			MessageID: uuid.New(),
			SenderID:  uuid.New(),
			Content:   "m",
			CreatedAt: base.Add(time.Duration(seed%3600) * time.Second),
		}
	}

	var sets [][]domain.ChatMessage
	for i := 0; i < 3; i++ {
		var set []domain.ChatMessage
		for j, msg := range pool {
			if (j+i)%2 == 0 || j%3 == i {
				set = append(set, msg)
			}
		}
		sets = append(sets, set)
	}
	// Every message appears in at least one set
	sets = append(sets, pool)
	return pool, sets
}

func TestProperty_MergeMessages_DedupesByID(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("merged view has each id exactly once", prop.ForAll(
		func(seeds []int) bool {
			pool, sets := buildMessageSets(seeds)
			merged := MergeMessages(sets...)

			if len(merged) != len(pool) {
				return false
			}
			seen := make(map[uuid.UUID]bool, len(merged))
			for _, msg := range merged {
				if seen[msg.MessageID] {
					return false
				}
				seen[msg.MessageID] = true
			}
			for _, msg := range pool {
				if !seen[msg.MessageID] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100000)),
	))

	properties.Property("merged view is ordered by creation time", prop.ForAll(
		func(seeds []int) bool {
			_, sets := buildMessageSets(seeds)
			merged := MergeMessages(sets...)

			for i := 1; i < len(merged); i++ {
				if merged[i].CreatedAt.Before(merged[i-1].CreatedAt) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100000)),
	))

	properties.Property("merging a merged view is a no-op", prop.ForAll(
		func(seeds []int) bool {
			_, sets := buildMessageSets(seeds)
			merged := MergeMessages(sets...)
			again := MergeMessages(merged)

			if len(again) != len(merged) {
				return false
			}
			for i := range merged {
				if again[i].MessageID != merged[i].MessageID {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100000)),
	))

	properties.TestingRun(t)
}

func TestMergeMessages_FirstOccurrenceWins(t *testing.T) {
	id := uuid.New()
	at := time.Now()
	persisted := domain.ChatMessage{MessageID: id, Content: "persisted", CreatedAt: at}
	optimistic := domain.ChatMessage{MessageID: id, Content: "optimistic", CreatedAt: at}

	merged := MergeMessages(
		[]domain.ChatMessage{persisted},
		[]domain.ChatMessage{optimistic},
	)
	if len(merged) != 1 {
		t.Fatalf("expected 1 message, got %d", len(merged))
	}
	if merged[0].Content != "persisted" {
		t.Errorf("expected the first copy kept, got %s", merged[0].Content)
	}
}
