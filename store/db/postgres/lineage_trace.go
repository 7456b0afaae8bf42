package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/axisai/axismem/store"
)

func (d *DB) CreateLineageTrace(ctx context.Context, create *store.LineageTrace) (*store.LineageTrace, error) {
	stmt := `INSERT INTO lineage_trace (id, query, status, payload, violation, created_ts, sealed_ts)
		VALUES (` + placeholders(7) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.Query,
		string(create.Status),
		string(create.Payload),
		create.Violation,
		create.CreatedTs,
		create.SealedTs,
	); err != nil {
		return nil, errors.Wrapf(err, "failed to create lineage_trace %s", create.ID)
	}
	return create, nil
}

func (d *DB) ListLineageTraces(ctx context.Context, find *store.FindLineageTrace) ([]*store.LineageTrace, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := []string{"TRUE"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, string(*find.Status))
	}

	query := `SELECT id, query, status, payload, violation, created_ts, sealed_ts
		FROM lineage_trace WHERE ` + strings.Join(where, " AND ") + ` ORDER BY sealed_ts DESC, id ASC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
		if find.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list lineage_traces")
	}
	defer rows.Close()

	list := make([]*store.LineageTrace, 0)
	for rows.Next() {
		var trace store.LineageTrace
		var status, payload string
		if err := rows.Scan(
			&trace.ID,
			&trace.Query,
			&status,
			&payload,
			&trace.Violation,
			&trace.CreatedTs,
			&trace.SealedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan lineage_trace")
		}
		trace.Status = store.TraceStatus(status)
		trace.Payload = []byte(payload)
		list = append(list, &trace)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteLineageTrace(ctx context.Context, delete *store.DeleteLineageTrace) error {
	if delete == nil || delete.ID == nil {
		return errors.New("no condition to delete lineage_trace")
	}
	if _, err := d.db.ExecContext(ctx, `DELETE FROM lineage_trace WHERE id = $1`, *delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete lineage_trace")
	}
	return nil
}
