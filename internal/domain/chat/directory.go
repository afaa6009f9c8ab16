package chat

import (
	"context"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
)

const defaultDirectoryCacheSize = 1024

type lastMessage struct {
	updatedAt time.Time
	body      string
	role      Role
}

// Directory builds the admin inbox: every conversation with its display name
// and latest message, newest activity first. Latest-message lookups are cached
// per conversation and dropped whenever the Reconciler writes to it.
type Directory struct {
	conversations ConversationRepository
	messages      MessageRepository
	cache         *lru.Cache
	log           zerolog.Logger
}

func NewDirectory(conversations ConversationRepository, messages MessageRepository, cacheSize int, log zerolog.Logger) (*Directory, error) {
	if cacheSize <= 0 {
		cacheSize = defaultDirectoryCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Directory{
		conversations: conversations,
		messages:      messages,
		cache:         cache,
		log:           log.With().Str("component", "chat-directory").Logger(),
	}, nil
}

// Invalidate implements Invalidator.
func (d *Directory) Invalidate(conversationIDs ...string) {
	for _, id := range conversationIDs {
		d.cache.Remove(id)
	}
}

// List returns one summary per conversation ordered by UpdatedAt descending.
func (d *Directory) List(ctx context.Context) ([]ConversationSummary, error) {
	conversations, err := d.conversations.List(ctx)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]lastMessage, len(conversations))
	var misses []string
	for _, c := range conversations {
		if v, ok := d.cache.Get(c.ID); ok {
			if entry := v.(lastMessage); entry.updatedAt.Equal(c.UpdatedAt) {
				latest[c.ID] = entry
				continue
			}
		}
		misses = append(misses, c.ID)
	}

	if len(misses) > 0 {
		found, err := d.messages.LatestByConversation(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, c := range conversations {
			if _, hit := latest[c.ID]; hit {
				continue
			}
			entry := lastMessage{updatedAt: c.UpdatedAt}
			if m, ok := found[c.ID]; ok {
				entry.body = m.Body
				entry.role = m.Role
			}
			latest[c.ID] = entry
			d.cache.Add(c.ID, entry)
		}
		d.log.Debug().Int("conversations", len(conversations)).Int("misses", len(misses)).Msg("inbox refreshed")
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		entry := latest[c.ID]
		summaries = append(summaries, ConversationSummary{
			ID:                c.ID,
			AnonymousClientID: c.AnonymousClientID,
			DisplayName:       DisplayName(c),
			LastMessage:       entry.body,
			LastMessageRole:   entry.role,
			UpdatedAt:         c.UpdatedAt,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
