package usecase

import (
	"context"

	"github.com/halfmoon-lab/chatrelay/pkg/domain/model"
)

// Accessors for white-box testing
var (
	EnforceBudget     = enforceBudget
	RollingWindow     = rollingWindow
	RenderInstruction = renderInstruction
	MessageCost       = messageCost
)

func (uc *ChatUseCase) BuildContext(ctx context.Context, conv *model.Conversation, query string) model.ContextBundle {
	return uc.buildContext(ctx, conv, query)
}
