package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Conversation() ConversationRepository
	Episode() EpisodeRepository

	Close() error
}
