package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/axisai/axismem/store"
)

func (d *DB) CreateMemoryItem(ctx context.Context, create *store.MemoryItem) (*store.MemoryItem, error) {
	tagsJSON, err := json.Marshal(create.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tags")
	}

	fields := []string{"id", "owner", "content", "embedding", "tags", "privacy", "source_ref", "pinned", "importance", "created_ts", "last_accessed_ts", "access_count"}
	args := []any{
		create.ID,
		create.Owner,
		create.Content,
		encodeVector(create.Embedding),
		string(tagsJSON),
		string(create.Privacy),
		create.SourceRef,
		create.Pinned,
		create.Importance,
		create.CreatedTs,
		create.LastAccessedTs,
		create.AccessCount,
	}

	stmt := `INSERT INTO memory_item (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `)`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrapf(err, "failed to create memory_item %s", create.ID)
	}

	return create, nil
}

func (d *DB) ListMemoryItems(ctx context.Context, find *store.FindMemoryItem) ([]*store.MemoryItem, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Owner != nil {
		where, args = append(where, "owner = ?"), append(args, *find.Owner)
	}
	if len(find.Privacy) > 0 {
		marks := make([]string, len(find.Privacy))
		for i, p := range find.Privacy {
			marks[i] = "?"
			args = append(args, string(p))
		}
		where = append(where, "privacy IN ("+strings.Join(marks, ", ")+")")
	}
	if find.Tag != nil {
		// Tags are stored as a JSON array; match the quoted element.
		where, args = append(where, "tags LIKE ?"), append(args, `%"`+*find.Tag+`"%`)
	}
	if find.Pinned != nil {
		where, args = append(where, "pinned = ?"), append(args, *find.Pinned)
	}
	if find.ImportanceBelow != nil {
		where, args = append(where, "importance < ? AND pinned = 0"), append(args, *find.ImportanceBelow)
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
		item, err := scanMemoryItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate memory_items")
	}

	return list, nil
}

func (d *DB) UpdateMemoryItem(ctx context.Context, update *store.UpdateMemoryItem) (*store.MemoryItem, error) {
	set, args := []string{}, []any{}

	if update.Content != nil {
		set, args = append(set, "content = ?"), append(args, *update.Content)
	}
	if update.Embedding != nil {
		set, args = append(set, "embedding = ?"), append(args, encodeVector(update.Embedding))
	}
	if update.Tags != nil {
		tagsJSON, err := json.Marshal(update.Tags)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal tags")
		}
		set, args = append(set, "tags = ?"), append(args, string(tagsJSON))
	}
	if update.Privacy != nil {
		set, args = append(set, "privacy = ?"), append(args, string(*update.Privacy))
	}
	if update.Pinned != nil {
		set, args = append(set, "pinned = ?"), append(args, *update.Pinned)
	}
	if update.Importance != nil {
		set, args = append(set, "importance = ?"), append(args, *update.Importance)
	}

	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE memory_item SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
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
		where, args = append(where, "id = ?"), append(args, *delete.ID)
	}
	if delete.Owner != nil {
		where, args = append(where, "owner = ?"), append(args, *delete.Owner)
	}
	if len(where) == 0 {
		return errors.New("no condition to delete memory_item")
	}

	// Absent rows are a no-op success; delete is idempotent.
	stmt := `DELETE FROM memory_item WHERE ` + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to delete memory_item")
	}
	return nil
}

func (d *DB) RecordAccess(ctx context.Context, id string, accessedTs int64) error {
	stmt := `UPDATE memory_item SET access_count = access_count + 1, last_accessed_ts = ? WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, stmt, accessedTs, id); err != nil {
		return errors.Wrapf(err, "failed to record access for %s", id)
	}
	return nil
}

func (d *DB) UpdateImportance(ctx context.Context, id string, importance float64) error {
	stmt := `UPDATE memory_item SET importance = ? WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, stmt, importance, id); err != nil {
		return errors.Wrapf(err, "failed to update importance for %s", id)
	}
	return nil
}

func (d *DB) ListEmbeddings(ctx context.Context, owner *string) ([]*store.EmbeddingRow, error) {
	query := `SELECT id, embedding, last_accessed_ts FROM memory_item`
	args := []any{}
	if owner != nil {
		query += ` WHERE owner = ?`
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
		var blob []byte
		if err := rows.Scan(&row.ID, &blob, &row.LastAccessedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan embedding row")
		}
		row.Embedding = decodeVector(blob)
		list = append(list, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// VectorSearch is NOT supported for SQLite; similarity search is served by
// the in-process index over ListEmbeddings.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ItemWithScore, error) {
	return nil, errors.New("native vector search requires PostgreSQL with pgvector extension")
}

type scanFn func(dest ...any) error

func scanMemoryItem(scan scanFn) (*store.MemoryItem, error) {
	var item store.MemoryItem
	var blob []byte
	var tagsJSON, privacy string
	if err := scan(
		&item.ID,
		&item.Owner,
		&item.Content,
		&blob,
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
	item.Embedding = decodeVector(blob)
	item.Privacy = store.Privacy(privacy)
	if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal tags")
	}
	return &item, nil
}
