package app

import (
	"gorm.io/gorm"

	"github.com/tubewise/tubewise-backend/internal/platform/logger"
	"github.com/tubewise/tubewise-backend/internal/repos"
)

type Repos struct {
	User                repos.UserRepo
	Transcript          repos.TranscriptRepo
	Chunk               repos.ChunkRepo
	Channel             repos.ChannelRepo
	ChannelVideo        repos.ChannelVideoRepo
	Conversation        repos.ConversationRepo
	ChannelConversation repos.ChannelConversationRepo
	Message             repos.MessageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:                repos.NewUserRepo(db, log),
		Transcript:          repos.NewTranscriptRepo(db, log),
		Chunk:               repos.NewChunkRepo(db, log),
		Channel:             repos.NewChannelRepo(db, log),
		ChannelVideo:        repos.NewChannelVideoRepo(db, log),
		Conversation:        repos.NewConversationRepo(db, log),
		ChannelConversation: repos.NewChannelConversationRepo(db, log),
		Message:             repos.NewMessageRepo(db, log),
	}
}
