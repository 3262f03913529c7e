package memory

import (
	"github.com/halfmoon-lab/chatrelay/pkg/domain/interfaces"
)

// Memory is an in-memory Repository implementation for development and tests
type Memory struct {
	conversation *conversationRepository
	episode      *episodeRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		conversation: newConversationRepository(),
		episode:      newEpisodeRepository(),
	}
}

func (m *Memory) Conversation() interfaces.ConversationRepository {
	return m.conversation
}

func (m *Memory) Episode() interfaces.EpisodeRepository {
	return m.episode
}

func (m *Memory) Close() error {
	return nil
}
