package db

import (
  "fmt"
  "time"
  "gorm.io/driver/postgres"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/platform/envutil"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/types"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  log.Info("Loading environment variables...")
  postgresHost := envutil.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := envutil.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := envutil.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := envutil.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := envutil.GetEnv("POSTGRES_NAME", "tubewise", log)
  maxOpen := envutil.GetEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 20, log)
  maxIdle := envutil.GetEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 10, log)
  log.Debug("Environment variables loaded")

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

  log.Info("Connecting to Postgres...")
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    log.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  sqlDB, err := db.DB()
  if err != nil {
    return nil, fmt.Errorf("Failed to access sql.DB: %w", err)
  }
  sqlDB.SetMaxOpenConns(maxOpen)
  sqlDB.SetMaxIdleConns(maxIdle)
  sqlDB.SetConnMaxLifetime(time.Hour)

  if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
    log.Error("Failed to enable uuid-ossp extension", "error", err)
    return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
  }
  log.Info("uuid-ossp extension enabled")

  return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.User{},
    &types.Transcript{},
    &types.Chunk{},
    &types.Channel{},
    &types.ChannelVideo{},
    &types.Conversation{},
    &types.ChannelConversation{},
    &types.Message{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }
  s.log.Info("Configuring foreign key relationships for postgres tables...")
  constraints := []struct {
    name string
    ddl  string
  }{
    {
      name: "fk_transcript_user_id",
      ddl: `ALTER TABLE "transcript"
        ADD CONSTRAINT "fk_transcript_user_id"
        FOREIGN KEY ("user_id") REFERENCES "user"("id")
        ON DELETE CASCADE`,
    },
    {
      name: "fk_chunk_transcript_id",
      ddl: `ALTER TABLE "chunk"
        ADD CONSTRAINT "fk_chunk_transcript_id"
        FOREIGN KEY ("transcript_id") REFERENCES "transcript"("id")
        ON DELETE CASCADE`,
    },
    {
      name: "fk_channel_video_channel_id",
      ddl: `ALTER TABLE "channel_video"
        ADD CONSTRAINT "fk_channel_video_channel_id"
        FOREIGN KEY ("channel_id") REFERENCES "channel"("id")
        ON DELETE CASCADE`,
    },
    {
      name: "fk_channel_video_transcript_id",
      ddl: `ALTER TABLE "channel_video"
        ADD CONSTRAINT "fk_channel_video_transcript_id"
        FOREIGN KEY ("transcript_id") REFERENCES "transcript"("id")
        ON DELETE CASCADE`,
    },
    {
      name: "fk_conversation_user_id",
      ddl: `ALTER TABLE "conversation"
        ADD CONSTRAINT "fk_conversation_user_id"
        FOREIGN KEY ("user_id") REFERENCES "user"("id")
        ON DELETE CASCADE`,
    },
    {
      name: "fk_channel_conversation_user_id",
      ddl: `ALTER TABLE "channel_conversation"
        ADD CONSTRAINT "fk_channel_conversation_user_id"
        FOREIGN KEY ("user_id") REFERENCES "user"("id")
        ON DELETE CASCADE`,
    },
    {
      name: "fk_channel_conversation_channel_id",
      ddl: `ALTER TABLE "channel_conversation"
        ADD CONSTRAINT "fk_channel_conversation_channel_id"
        FOREIGN KEY ("channel_id") REFERENCES "channel"("id")
        ON DELETE CASCADE`,
    },
    {
      name: "fk_message_conversation_id",
      ddl: `ALTER TABLE "message"
        ADD CONSTRAINT "fk_message_conversation_id"
        FOREIGN KEY ("conversation_id") REFERENCES "conversation"("id")
        ON DELETE CASCADE`,
    },
    {
      name: "fk_message_channel_conversation_id",
      ddl: `ALTER TABLE "message"
        ADD CONSTRAINT "fk_message_channel_conversation_id"
        FOREIGN KEY ("channel_conversation_id") REFERENCES "channel_conversation"("id")
        ON DELETE CASCADE`,
    },
  }
  for _, c := range constraints {
    exists, err := s.constraintExists(c.name)
    if err != nil {
      return fmt.Errorf("Failed to check constraint %s: %w", c.name, err)
    }
    if exists {
      continue
    }
    if err := s.db.Exec(c.ddl).Error; err != nil {
      return fmt.Errorf("Failed to add %s: %w", c.name, err)
    }
  }

  // Exactly one parent per message.
  if err := s.db.Exec(`
    ALTER TABLE "message"
    DROP CONSTRAINT IF EXISTS "chk_message_single_parent";
  `).Error; err != nil {
    return fmt.Errorf("Failed to reset chk_message_single_parent: %w", err)
  }
  if err := s.db.Exec(`
    ALTER TABLE "message"
    ADD CONSTRAINT "chk_message_single_parent"
    CHECK (
      (conversation_id IS NOT NULL AND channel_conversation_id IS NULL) OR
      (conversation_id IS NULL AND channel_conversation_id IS NOT NULL)
    )
  `).Error; err != nil {
    return fmt.Errorf("Failed to add chk_message_single_parent: %w", err)
  }
  return nil
}

func (s *PostgresService) constraintExists(name string) (bool, error) {
  var count int64
  err := s.db.Raw(
    `SELECT COUNT(*) FROM pg_constraint WHERE conname = ?`, name,
  ).Scan(&count).Error
  if err != nil {
    return false, err
  }
  return count > 0, nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
