package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/interfaces"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
	"github.com/halfmoon-lab/chatrelay/pkg/domain/types"
	"github.com/halfmoon-lab/chatrelay/pkg/repository/firestore"
	"github.com/halfmoon-lab/chatrelay/pkg/repository/memory"
	"github.com/m-mizutani/gt"
)

func newUserID() types.UserID {
	return types.UserID("user-" + uuid.NewString())
}

func runConversationRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create and Get round-trips a conversation", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		userID := newUserID()

		conv := model.NewConversation(userID)
		conv.Append(
			model.NewUserMessage("What is a bloom filter?"),
			model.NewAssistantMessage("A probabilistic set membership structure.", "gemini-2.0-flash"),
		)
		gt.NoError(t, repo.Conversation().Create(ctx, conv)).Required()

		got, err := repo.Conversation().Get(ctx, conv.ID, userID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(conv.ID)
		gt.Value(t, got.UserID).Equal(userID)
		gt.Value(t, got.MessageCount).Equal(2)
		gt.Array(t, got.Messages).Length(2)
		gt.Value(t, got.Messages[0].Role).Equal(types.RoleUser)
		gt.Value(t, got.Messages[1].Model).Equal("gemini-2.0-flash")
		gt.Value(t, got.Title).Equal("What is a bloom filter?")
	})

	t.Run("Get returns ErrNotFound for unknown ID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Conversation().Get(ctx, types.NewConversationID(), newUserID())
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, interfaces.ErrNotFound)).True()
	})

	t.Run("Get hides conversations owned by another user", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		conv := model.NewConversation(newUserID())
		gt.NoError(t, repo.Conversation().Create(ctx, conv)).Required()

		_, err := repo.Conversation().Get(ctx, conv.ID, newUserID())
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, interfaces.ErrNotFound)).True()
	})

	t.Run("AppendExchange grows the transcript in order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		userID := newUserID()

		conv := model.NewConversation(userID)
		gt.NoError(t, repo.Conversation().Create(ctx, conv)).Required()

		updated, err := repo.Conversation().AppendExchange(ctx, conv.ID,
			model.NewUserMessage("first question"),
			model.NewAssistantMessage("first answer", "gpt-4o-mini"),
		)
		gt.NoError(t, err).Required()
		gt.Value(t, updated.MessageCount).Equal(2)

		updated, err = repo.Conversation().AppendExchange(ctx, conv.ID,
			model.NewUserMessage("second question"),
			model.NewAssistantMessage("second answer", "gpt-4o-mini"),
		)
		gt.NoError(t, err).Required()
		gt.Value(t, updated.MessageCount).Equal(4)
		gt.Value(t, updated.Messages[0].Content).Equal("first question")
		gt.Value(t, updated.Messages[3].Content).Equal("second answer")
	})

	t.Run("AppendExchange on unknown conversation returns ErrNotFound", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Conversation().AppendExchange(ctx, types.NewConversationID(),
			model.NewUserMessage("q"), model.NewAssistantMessage("a", "m"))
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, interfaces.ErrNotFound)).True()
	})

	t.Run("UpdateSummary replaces the summary", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		userID := newUserID()

		conv := model.NewConversation(userID)
		conv.Summary = "old summary"
		gt.NoError(t, repo.Conversation().Create(ctx, conv)).Required()

		gt.NoError(t, repo.Conversation().UpdateSummary(ctx, conv.ID, "new summary"))

		got, err := repo.Conversation().Get(ctx, conv.ID, userID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Summary).Equal("new summary")
	})

	t.Run("List returns conversations newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		userID := newUserID()

		c1 := model.NewConversation(userID)
		gt.NoError(t, repo.Conversation().Create(ctx, c1)).Required()
		time.Sleep(10 * time.Millisecond)

		c2 := model.NewConversation(userID)
		gt.NoError(t, repo.Conversation().Create(ctx, c2)).Required()
		time.Sleep(10 * time.Millisecond)

		// Touch c1 so it becomes the most recently updated
		_, err := repo.Conversation().AppendExchange(ctx, c1.ID,
			model.NewUserMessage("q"), model.NewAssistantMessage("a", "m"))
		gt.NoError(t, err).Required()

		items, err := repo.Conversation().List(ctx, userID, 10)
		gt.NoError(t, err).Required()
		gt.Array(t, items).Length(2)
		gt.Value(t, items[0].ID).Equal(c1.ID)
		gt.Value(t, items[1].ID).Equal(c2.ID)
	})

	t.Run("List is scoped to the user", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		userID := newUserID()

		gt.NoError(t, repo.Conversation().Create(ctx, model.NewConversation(userID))).Required()
		gt.NoError(t, repo.Conversation().Create(ctx, model.NewConversation(newUserID()))).Required()

		items, err := repo.Conversation().List(ctx, userID, 10)
		gt.NoError(t, err).Required()
		gt.Array(t, items).Length(1)
	})
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	repo, err := firestore.New(ctx, projectID, databaseID)
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func TestMemoryConversationRepository(t *testing.T) {
	runConversationRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestoreConversationRepository(t *testing.T) {
	runConversationRepositoryTest(t, newFirestoreRepository)
}
