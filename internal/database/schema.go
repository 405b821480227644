package database

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// schema is applied in order by Migrate.  Every statement is idempotent so
// the service can run it on each start.
//
// reservations.active_flag is 1 for PENDING/APPROVED rows and NULL otherwise.
// MySQL unique indexes ignore NULLs, so uq_reservations_active admits at most
// one active reservation per (room, slot) while keeping any number of
// rejected or cancelled rows as history.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		number     VARCHAR(32)  NOT NULL,
		name       VARCHAR(128) NOT NULL,
		capacity   INT UNSIGNED NOT NULL DEFAULT 0,
		created_at DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		UNIQUE KEY uq_rooms_number (number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS schedules (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		date       DATE        NOT NULL,
		created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		UNIQUE KEY uq_schedules_date (date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS slots (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		schedule_id BIGINT UNSIGNED NOT NULL,
		start_time  DATETIME NOT NULL,
		end_time    DATETIME NOT NULL,
		UNIQUE KEY uq_slots_schedule_start (schedule_id, start_time),
		CONSTRAINT fk_slots_schedule FOREIGN KEY (schedule_id) REFERENCES schedules(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id              CHAR(36)     NOT NULL PRIMARY KEY,
		status          ENUM('PENDING','APPROVED','REJECTED','CANCELLED') NOT NULL DEFAULT 'PENDING',
		room_id         BIGINT UNSIGNED NOT NULL,
		slot_id         BIGINT UNSIGNED NOT NULL,
		person_name     VARCHAR(128) NOT NULL,
		grade           VARCHAR(64)  NOT NULL,
		class_name      VARCHAR(64)  NOT NULL,
		purpose         VARCHAR(255) NULL,
		number_of_users INT UNSIGNED NULL,
		note            TEXT         NULL,
		created_at      DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at      DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		active_flag     TINYINT GENERATED ALWAYS AS (IF(status IN ('PENDING','APPROVED'), 1, NULL)) STORED,
		UNIQUE KEY uq_reservations_active (room_id, slot_id, active_flag),
		KEY idx_reservations_slot_status (slot_id, status),
		KEY idx_reservations_created (created_at),
		CONSTRAINT fk_reservations_room FOREIGN KEY (room_id) REFERENCES rooms(id),
		CONSTRAINT fk_reservations_slot FOREIGN KEY (slot_id) REFERENCES slots(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the booking schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrate statement %d", i+1)
		}
	}
	return nil
}
