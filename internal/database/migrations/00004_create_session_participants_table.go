package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateSessionParticipantsTable, downCreateSessionParticipantsTable)
}

func upCreateSessionParticipantsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE session_participants (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			session_id BIGINT UNSIGNED NOT NULL,
			display_name VARCHAR(120) NOT NULL,
			email VARCHAR(255) NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_session_participants (session_id, email),
			CONSTRAINT fk_session_participants_session FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateSessionParticipantsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS session_participants;`)
	return err
}
