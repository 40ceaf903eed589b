package platform

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/pkg/logger"
)

// LogGateway is the default Gateway used when no chat adapter is
// wired. It logs every action and fabricates stable handles so the
// core's flows run end to end.
type LogGateway struct {
	logger *logger.Logger
}

// NewLogGateway builds the logging gateway.
func NewLogGateway(logg *logger.Logger) (*LogGateway, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogGateway{logger: logg}, nil
}

func (g *LogGateway) CreateChannel(ctx context.Context, categoryRef, name, userID string) (Channel, error) {
	channel := Channel{ID: uuid.NewString(), Name: name}
	ctx = g.logger.WithFields(ctx, map[string]any{
		"category":   categoryRef,
		"channel_id": channel.ID,
		"name":       name,
		"user_id":    userID,
	})
	g.logger.Info(ctx, "platform create channel")
	return channel, nil
}

func (g *LogGateway) ArchiveChannel(ctx context.Context, channelID, archiveCategoryRef string) error {
	ctx = g.logger.WithFields(ctx, map[string]any{
		"channel_id": channelID,
		"category":   archiveCategoryRef,
	})
	g.logger.Info(ctx, "platform archive channel")
	return nil
}

func (g *LogGateway) DeleteChannel(ctx context.Context, channelID string) error {
	g.logger.Info(g.logger.WithField(ctx, "channel_id", channelID), "platform delete channel")
	return nil
}

func (g *LogGateway) SendMessage(ctx context.Context, channelID, body string) (Message, error) {
	msg := Message{ID: uuid.NewString(), ChannelID: channelID}
	ctx = g.logger.WithFields(ctx, map[string]any{
		"channel_id": channelID,
		"message_id": msg.ID,
		"body":       body,
	})
	g.logger.Info(ctx, "platform send message")
	return msg, nil
}

func (g *LogGateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	ctx = g.logger.WithFields(ctx, map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
	})
	g.logger.Info(ctx, "platform delete message")
	return nil
}

func (g *LogGateway) GrantRole(ctx context.Context, userID, roleRef string) error {
	ctx = g.logger.WithFields(ctx, map[string]any{
		"user_id": userID,
		"role":    roleRef,
	})
	g.logger.Info(ctx, "platform grant role")
	return nil
}

func (g *LogGateway) RenameChannel(ctx context.Context, channelID, name string) error {
	ctx = g.logger.WithFields(ctx, map[string]any{
		"channel_id": channelID,
		"name":       name,
	})
	g.logger.Info(ctx, "platform rename channel")
	return nil
}

var _ Gateway = (*LogGateway)(nil)
