package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateSessionsTable, downCreateSessionsTable)
}

// The checks mirror model.Session.Validate: the count never exceeds the
// capacity and a reason exists exactly when the session is cancelled.
func upCreateSessionsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE sessions (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			sport_name VARCHAR(100) NOT NULL,
			venue VARCHAR(200) NOT NULL,
			description TEXT NULL,
			scheduled_at DATETIME NULL,
			max_players INT UNSIGNED NOT NULL,
			current_players_count INT UNSIGNED NOT NULL DEFAULT 0,
			status ENUM('scheduled','full','cancelled','completed') NOT NULL DEFAULT 'scheduled',
			cancellation_reason VARCHAR(500) NULL,
			created_by VARCHAR(255) NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			KEY idx_sessions_scheduled_at (scheduled_at),
			KEY idx_sessions_created_by (created_by),
			CONSTRAINT chk_sessions_capacity CHECK (max_players > 0 AND current_players_count <= max_players),
			CONSTRAINT chk_sessions_reason CHECK ((status = 'cancelled') = (cancellation_reason IS NOT NULL))
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateSessionsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS sessions;`)
	return err
}
