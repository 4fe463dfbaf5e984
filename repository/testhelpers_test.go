package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/database"
	"github.com/akinalp/gatherly/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "chat.db"), database.Migrations(), zerolog.Nop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db.Conn
}

func appendText(t *testing.T, repo MessageRepository, roomID, sender, text string) *models.Message {
	t.Helper()

	msg, err := repo.Append(context.Background(), roomID, &sender, models.MessageBody{Kind: models.BodyText, Text: text})
	if err != nil {
		t.Fatalf("append %q: %v", text, err)
	}
	return msg
}
