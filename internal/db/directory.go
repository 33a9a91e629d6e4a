package db

import (
	"context"
	"database/sql"
	"errors"

	"walkpack/internal/model"
)

const walkBlockColumns = `id, walker_id, title, description, date, start_time, end_time,
	is_group, capacity, created_at, updated_at`

func scanWalkBlock(s scanner) (*model.WalkBlock, error) {
	var b model.WalkBlock
	if err := s.Scan(
		&b.ID, &b.WalkerID, &b.Title, &b.Description, &b.Date, &b.StartTime, &b.EndTime,
		&b.IsGroup, &b.Capacity, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetWalkBlock returns a walk block by id.
func (db *DB) GetWalkBlock(ctx context.Context, id string) (*model.WalkBlock, error) {
	row := db.QueryRowContext(ctx, `SELECT `+walkBlockColumns+` FROM walk_blocks WHERE id = ?`, id)
	b, err := scanWalkBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("walk block %s", id)
	}
	if err != nil {
		return nil, model.NewStorageError("get walk block", err)
	}
	return b, nil
}

// ListWalkBlocksByWalker returns the walker's blocks on or after fromDate
// (YYYY-MM-DD, empty for all), earliest first. limit <= 0 means no limit.
func (db *DB) ListWalkBlocksByWalker(ctx context.Context, walkerID, fromDate string, limit int) ([]model.WalkBlock, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+walkBlockColumns+`
		FROM walk_blocks
		WHERE walker_id = ? AND date >= ?
		ORDER BY date, start_time, id
		LIMIT ?`,
		walkerID, fromDate, limit,
	)
	if err != nil {
		return nil, model.NewStorageError("list walk blocks", err)
	}
	defer rows.Close()

	var blocks []model.WalkBlock
	for rows.Next() {
		b, err := scanWalkBlock(rows)
		if err != nil {
			return nil, model.NewStorageError("scan walk block", err)
		}
		blocks = append(blocks, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("list walk blocks", err)
	}
	return blocks, nil
}

// GetWalker returns a walker by id.
func (db *DB) GetWalker(ctx context.Context, id string) (*model.Walker, error) {
	return db.getWalker(ctx, "id", id)
}

// GetWalkerByAccount returns the walker profile owned by accountID.
func (db *DB) GetWalkerByAccount(ctx context.Context, accountID string) (*model.Walker, error) {
	return db.getWalker(ctx, "user_id", accountID)
}

func (db *DB) getWalker(ctx context.Context, column, value string) (*model.Walker, error) {
	var w model.Walker
	// column is one of two constants above, never user input.
	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, name, photo_url, about, created_at, updated_at
		FROM walkers WHERE `+column+` = ?`, value,
	).Scan(&w.ID, &w.UserID, &w.Name, &w.PhotoURL, &w.About, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("walker %s", value)
	}
	if err != nil {
		return nil, model.NewStorageError("get walker", err)
	}
	return &w, nil
}

const dogColumns = `id, owner_id, name, breed, age, photo_url, walker_id,
	meet_and_greet_done, created_at, updated_at`

func scanDog(s scanner) (*model.Dog, error) {
	var d model.Dog
	var walkerID sql.NullString
	if err := s.Scan(
		&d.ID, &d.OwnerID, &d.Name, &d.Breed, &d.Age, &d.PhotoURL, &walkerID,
		&d.MeetAndGreetCompleted, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if walkerID.Valid {
		d.WalkerID = walkerID.String
	}
	return &d, nil
}

// GetDog returns a dog by id.
func (db *DB) GetDog(ctx context.Context, id string) (*model.Dog, error) {
	row := db.QueryRowContext(ctx, `SELECT `+dogColumns+` FROM dogs WHERE id = ?`, id)
	d, err := scanDog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("dog %s", id)
	}
	if err != nil {
		return nil, model.NewStorageError("get dog", err)
	}
	return d, nil
}

// ListDogsByOwner returns a customer's dogs ordered by name.
func (db *DB) ListDogsByOwner(ctx context.Context, ownerID string) ([]model.Dog, error) {
	return db.listDogs(ctx, `SELECT `+dogColumns+` FROM dogs WHERE owner_id = ? ORDER BY name, id`, ownerID)
}

// ListDogsByWalker returns dogs currently associated with a walker.
func (db *DB) ListDogsByWalker(ctx context.Context, walkerID string) ([]model.Dog, error) {
	return db.listDogs(ctx, `SELECT `+dogColumns+` FROM dogs WHERE walker_id = ? ORDER BY name, id`, walkerID)
}

func (db *DB) listDogs(ctx context.Context, query string, arg string) ([]model.Dog, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, model.NewStorageError("list dogs", err)
	}
	defer rows.Close()

	var dogs []model.Dog
	for rows.Next() {
		d, err := scanDog(rows)
		if err != nil {
			return nil, model.NewStorageError("scan dog", err)
		}
		dogs = append(dogs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStorageError("list dogs", err)
	}
	return dogs, nil
}

// GetDogRelationship returns the dog's current walker link. A dog without a
// walker yields ErrNotFound.
func (db *DB) GetDogRelationship(ctx context.Context, dogID string) (*model.DogRelationship, error) {
	var rel model.DogRelationship
	var walkerID sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, walker_id, meet_and_greet_done FROM dogs WHERE id = ?`, dogID,
	).Scan(&rel.DogID, &walkerID, &rel.MeetAndGreetCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("dog %s", dogID)
	}
	if err != nil {
		return nil, model.NewStorageError("get dog relationship", err)
	}
	if !walkerID.Valid || walkerID.String == "" {
		return nil, model.NotFoundf("walker relationship for dog %s", dogID)
	}
	rel.WalkerID = walkerID.String
	return &rel, nil
}
