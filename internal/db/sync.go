package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"walkpack/internal/config"
	"walkpack/internal/model"
)

// SyncDirectory applies directory.yaml to the database. Walkers and dogs are
// upserted; walk blocks are upserted except for capacity, which is fixed at
// creation. A differing capacity in the file is logged and ignored.
//
// A dog's walker and meet & greet flag are only seeded from the file. Once a
// dog has a walker, SetMeetAndGreet owns the relationship and re-syncs leave
// it alone.
func (db *DB) SyncDirectory(ctx context.Context, dir *config.Directory) error {
	if dir == nil {
		return fmt.Errorf("directory config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	for _, w := range dir.Walkers {
		// Preserve created_at if the walker already exists.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO walkers (id, user_id, name, photo_url, about, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id,
				name = excluded.name,
				photo_url = excluded.photo_url,
				about = excluded.about,
				updated_at = excluded.updated_at`,
			w.ID, w.UserID, w.Name, w.PhotoURL, w.About, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync walker %s: %w", w.ID, err)
		}
	}

	for _, d := range dir.Dogs {
		var walkerID any
		if d.WalkerID != "" {
			walkerID = d.WalkerID
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dogs (id, owner_id, name, breed, age, photo_url, walker_id, meet_and_greet_done, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				owner_id = excluded.owner_id,
				name = excluded.name,
				breed = excluded.breed,
				age = excluded.age,
				photo_url = excluded.photo_url,
				walker_id = COALESCE(dogs.walker_id, excluded.walker_id),
				meet_and_greet_done = CASE WHEN dogs.walker_id IS NULL
					THEN excluded.meet_and_greet_done
					ELSE dogs.meet_and_greet_done END,
				updated_at = excluded.updated_at`,
			d.ID, d.OwnerID, d.Name, d.Breed, d.Age, d.PhotoURL, walkerID, d.MeetAndGreet, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync dog %s: %w", d.ID, err)
		}
	}

	for _, wb := range dir.WalkBlocks {
		var stored int
		err := tx.QueryRowContext(ctx, `SELECT capacity FROM walk_blocks WHERE id = ?`, wb.ID).Scan(&stored)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("sync walk block %s: %w", wb.ID, err)
		case stored != wb.Capacity:
			db.logger.Warn().
				Str("walk_block_id", wb.ID).
				Int("stored_capacity", stored).
				Int("config_capacity", wb.Capacity).
				Msg("Walk block capacity is fixed at creation; ignoring change")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO walk_blocks (id, walker_id, title, description, date, start_time, end_time, is_group, capacity, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				date = excluded.date,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				updated_at = excluded.updated_at`,
			wb.ID, wb.WalkerID, wb.Title, wb.Description, wb.Date, wb.StartTime, wb.EndTime, wb.IsGroup, wb.Capacity, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync walk block %s: %w", wb.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit directory sync: %w", err)
	}

	db.logger.Info().Str("directory", dir.String()).Msg("Directory synced")
	return nil
}

// SetMeetAndGreet records the outcome of the meet & greet workflow: the dog is
// associated with walkerID and the completion flag set to done.
func (db *DB) SetMeetAndGreet(ctx context.Context, dogID, walkerID string, done bool) error {
	res, err := db.ExecContext(ctx, `
		UPDATE dogs SET walker_id = ?, meet_and_greet_done = ?, updated_at = ?
		WHERE id = ?`,
		walkerID, done, time.Now().UTC(), dogID,
	)
	if err != nil {
		return model.NewStorageError("set meet and greet", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.NewStorageError("set meet and greet", err)
	}
	if affected == 0 {
		return model.NotFoundf("dog %s", dogID)
	}
	return nil
}
