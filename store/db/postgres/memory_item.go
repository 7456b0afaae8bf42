package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/axisai/axismem/store"
)

func (d *DB) CreateMemoryItem(ctx context.Context, create *store.MemoryItem) (*store.MemoryItem, error) {
	tagsJSON, err := json.Marshal(create.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tags")
	}

	args := []any{
		create.ID,
		create.Owner,
		create.Content,
		pgvector.NewVector(create.Embedding),
		string(tagsJSON),
		string(create.Privacy),
		create.SourceRef,
		create.Pinned,
		create.Importance,
		create.CreatedTs,
		create.LastAccessedTs,
		create.AccessCount,
	}

	stmt := `INSERT INTO memory_item (id, owner, content, embedding, tags, privacy, source_ref, pinned, importance, created_ts, last_accessed_ts, access_count)
		VALUES (` + placeholders(len(args)) + `)`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrapf(err, "failed to create memory_item %s", create.ID)
	}
	return create, nil
}

func (d *DB) ListMemoryItems(ctx context.Context, find *store.FindMemoryItem) ([]*store.MemoryItem, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := []string{"TRUE"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Owner != nil {
		where, args = append(where, "owner = "+placeholder(len(args)+1)), append(args, *find.Owner)
	}
	if len(find.Privacy) > 0 {
		marks := make([]string, len(find.Privacy))
		for i, p := range find.Privacy {
			marks[i] = placeholder(len(args) + 1)
			args = append(args, string(p))
		}
		where = append(where, "privacy IN ("+strings.Join(marks, ", ")+")")
	}
	if find.Tag != nil {
		where, args = append(where, "tags LIKE "+placeholder(len(args)+1)), append(args, `%"`+*find.Tag+`"%`)
	}
	if find.Pinned != nil {
		where, args = append(where, "pinned = "+placeholder(len(args)+1)), append(args, *find.Pinned)
	}
	if find.ImportanceBelow != nil {
		where, args = append(where, "importance < "+placeholder(len(args)+1)+" AND pinned = FALSE"), append(args, *find.ImportanceBelow)
	}

	query := `SELECT id, owner, content, embedding, tags, privacy, source_ref, pinned, importance, created_ts, last_accessed_ts, access_count
		FROM memory_item WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC, id ASC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
		if find.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memory_items")
	}
	defer rows.Close()

	list := make([]*store.MemoryItem, 0)
	for rows.Next() {
		var item store.MemoryItem
		var vector pgvector.Vector
		var tagsJSON, privacy string
		if err := rows.Scan(
			&item.ID,
			&item.Owner,
			&item.Content,
			&vector,
			&tagsJSON,
			&privacy,
			&item.SourceRef,
			&item.Pinned,
			&item.Importance,
			&item.CreatedTs,
			&item.LastAccessedTs,
			&item.AccessCount,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan memory_item")
		}
		item.Embedding = vector.Slice()
		item.Privacy = store.Privacy(privacy)
		if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal tags")
		}
		list = append(list, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateMemoryItem(ctx context.Context, update *store.UpdateMemoryItem) (*store.MemoryItem, error) {
	set, args := []string{}, []any{}

	if update.Content != nil {
		set, args = append(set, "content = "+placeholder(len(args)+1)), append(args, *update.Content)
	}
	if update.Embedding != nil {
		set, args = append(set, "embedding = "+placeholder(len(args)+1)), append(args, pgvector.NewVector(update.Embedding))
	}
	if update.Tags != nil {
		tagsJSON, err := json.Marshal(update.Tags)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal tags")
		}
		set, args = append(set, "tags = "+placeholder(len(args)+1)), append(args, string(tagsJSON))
	}
	if update.Privacy != nil {
		set, args = append(set, "privacy = "+placeholder(len(args)+1)), append(args, string(*update.Privacy))
	}
	if update.Pinned != nil {
		set, args = append(set, "pinned = "+placeholder(len(args)+1)), append(args, *update.Pinned)
	}
	if update.Importance != nil {
		set, args = append(set, "importance = "+placeholder(len(args)+1)), append(args, *update.Importance)
	}

	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE memory_item SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrapf(err, "failed to update memory_item %s", update.ID)
	}

	list, err := d.ListMemoryItems(ctx, &store.FindMemoryItem{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Errorf("memory_item %s not found", update.ID)
	}
	return list[0], nil
}

func (d *DB) DeleteMemoryItem(ctx context.Context, delete *store.DeleteMemoryItem) error {
	if delete == nil {
		return errors.New("delete parameter cannot be nil")
	}

	where, args := []string{}, []any{}
	if delete.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *delete.ID)
	}
	if delete.Owner != nil {
		where, args = append(where, "owner = "+placeholder(len(args)+1)), append(args, *delete.Owner)
	}
	if len(where) == 0 {
		return errors.New("no condition to delete memory_item")
	}

	stmt := `DELETE FROM memory_item WHERE ` + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to delete memory_item")
	}
	return nil
}

func (d *DB) RecordAccess(ctx context.Context, id string, accessedTs int64) error {
	stmt := `UPDATE memory_item SET access_count = access_count + 1, last_accessed_ts = $1 WHERE id = $2`
	if _, err := d.db.ExecContext(ctx, stmt, accessedTs, id); err != nil {
		return errors.Wrapf(err, "failed to record access for %s", id)
	}
	return nil
}

func (d *DB) UpdateImportance(ctx context.Context, id string, importance float64) error {
	stmt := `UPDATE memory_item SET importance = $1 WHERE id = $2`
	if _, err := d.db.ExecContext(ctx, stmt, importance, id); err != nil {
		return errors.Wrapf(err, "failed to update importance for %s", id)
	}
	return nil
}

func (d *DB) ListEmbeddings(ctx context.Context, owner *string) ([]*store.EmbeddingRow, error) {
	query := `SELECT id, embedding, last_accessed_ts FROM memory_item`
	args := []any{}
	if owner != nil {
		query += ` WHERE owner = $1`
		args = append(args, *owner)
	}
	query += ` ORDER BY id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list embeddings")
	}
	defer rows.Close()

	list := make([]*store.EmbeddingRow, 0)
	for rows.Next() {
		var row store.EmbeddingRow
		var vector pgvector.Vector
		if err := rows.Scan(&row.ID, &vector, &row.LastAccessedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan embedding row")
		}
		row.Embedding = vector.Slice()
		list = append(list, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// VectorSearch performs similarity search using pgvector.
// The <=> operator computes cosine distance, so 1 - distance is the
// cosine similarity and we order by distance ASC for most similar first.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ItemWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT
			id, owner, content, embedding, tags, privacy, source_ref, pinned,
			importance, created_ts, last_accessed_ts, access_count,
			1 - (embedding <=> $1) AS score
		FROM memory_item
		WHERE owner = $2
		ORDER BY embedding <=> $3, last_accessed_ts DESC, id ASC
		LIMIT $4`

	vector := pgvector.NewVector(opts.Vector)
	rows, err := d.db.QueryContext(ctx, query, vector, opts.Owner, vector, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.ItemWithScore{}
	for rows.Next() {
		var result store.ItemWithScore
		var item store.MemoryItem
		var embedded pgvector.Vector
		var tagsJSON, privacy string
		if err := rows.Scan(
			&item.ID,
			&item.Owner,
			&item.Content,
			&embedded,
			&tagsJSON,
			&privacy,
			&item.SourceRef,
			&item.Pinned,
			&item.Importance,
			&item.CreatedTs,
			&item.LastAccessedTs,
			&item.AccessCount,
			&result.Score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search row")
		}
		item.Embedding = embedded.Slice()
		item.Privacy = store.Privacy(privacy)
		if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal tags")
		}
		result.Item = &item
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
