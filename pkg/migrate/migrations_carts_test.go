package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blockmart/blockmart-backend/pkg/migrate"
)

func TestCartsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_carts.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no carts migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS carts",
		"message_id TEXT",
		"CHECK (credit_applied >= 0)",
		"idx_carts_one_open_per_user",
		"WHERE status NOT IN ('completed', 'closed')",
		"DROP TABLE IF EXISTS carts",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestItemsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_items.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no items migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS items",
		"description TEXT",
		"image_url TEXT",
		"message_id TEXT",
		"channel_id TEXT",
		"CHECK (quantity >= 0)",
		"CHECK (price > 0)",
		"DROP TABLE IF EXISTS items",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration dir failed validation: %v", err)
	}
}
