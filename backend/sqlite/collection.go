package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mushuanli/vfs/backend"
)

type sqliteCollection struct {
	tx     *sqliteTransaction
	schema backend.Schema
}

func decodeDocument(raw string) (backend.Document, error) {
	var doc backend.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func (sc *sqliteCollection) Get(ctx context.Context, key string) (backend.Document, error) {
	if err := sc.tx.guard(false); err != nil {
		return nil, err
	}

	var raw string
	err := sc.tx.tx.QueryRowContext(ctx,
		"SELECT doc FROM "+docTable(sc.schema.Name)+" WHERE key = ?", key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, backend.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	return decodeDocument(raw)
}

func (sc *sqliteCollection) GetAll(ctx context.Context) ([]backend.Document, error) {
	if err := sc.tx.guard(false); err != nil {
		return nil, err
	}

	rows, err := sc.tx.tx.QueryContext(ctx,
		"SELECT doc FROM "+docTable(sc.schema.Name)+" ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]backend.Document, error) {
	var docs []backend.Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}

		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (sc *sqliteCollection) Put(ctx context.Context, doc backend.Document) (string, error) {
	if err := sc.tx.guard(true); err != nil {
		return "", err
	}

	return sc.put(ctx, doc)
}

func (sc *sqliteCollection) put(ctx context.Context, doc backend.Document) (string, error) {
	key := backend.String(doc, sc.schema.PrimaryKey)
	if key == "" {
		if !sc.schema.AutoIncrement {
			return "", backend.ErrMissingKey
		}

		seq, err := sc.tx.nextSequence(ctx, sc.schema.Name)
		if err != nil {
			return "", err
		}

		key = strconv.FormatInt(seq, 10)
		doc[sc.schema.PrimaryKey] = key
	}

	// Unique index enforcement before any mutation
	for _, idx := range sc.schema.Indexes {
		if !idx.Unique {
			continue
		}

		for _, value := range backend.IndexValues(idx, doc) {
			var existing string
			err := sc.tx.tx.QueryRowContext(ctx,
				"SELECT key FROM "+idxTable(sc.schema.Name)+
					" WHERE idx = ? AND value = ? AND key <> ? LIMIT 1",
				idx.Name, value, key).Scan(&existing)
			if err == nil {
				return "", backend.ErrUniqueViolation
			}
			if err != sql.ErrNoRows {
				return "", err
			}
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	if _, err := sc.tx.tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO "+docTable(sc.schema.Name)+" (key, doc) VALUES (?, ?)",
		key, string(raw)); err != nil {
		return "", err
	}

	// Rewrite index rows for this key
	if _, err := sc.tx.tx.ExecContext(ctx,
		"DELETE FROM "+idxTable(sc.schema.Name)+" WHERE key = ?", key); err != nil {
		return "", err
	}

	for _, idx := range sc.schema.Indexes {
		for _, value := range backend.IndexValues(idx, doc) {
			if _, err := sc.tx.tx.ExecContext(ctx,
				"INSERT INTO "+idxTable(sc.schema.Name)+" (idx, value, key) VALUES (?, ?, ?)",
				idx.Name, value, key); err != nil {
				return "", err
			}
		}
	}

	return key, nil
}

func (sc *sqliteCollection) PutAll(ctx context.Context, docs []backend.Document) error {
	if err := sc.tx.guard(true); err != nil {
		return err
	}

	for _, doc := range docs {
		if _, err := sc.put(ctx, doc); err != nil {
			return err
		}
	}

	return nil
}

func (sc *sqliteCollection) Delete(ctx context.Context, key string) error {
	if err := sc.tx.guard(true); err != nil {
		return err
	}

	return sc.delete(ctx, key)
}

func (sc *sqliteCollection) delete(ctx context.Context, key string) error {
	if _, err := sc.tx.tx.ExecContext(ctx,
		"DELETE FROM "+idxTable(sc.schema.Name)+" WHERE key = ?", key); err != nil {
		return err
	}

	_, err := sc.tx.tx.ExecContext(ctx,
		"DELETE FROM "+docTable(sc.schema.Name)+" WHERE key = ?", key)
	return err
}

func (sc *sqliteCollection) DeleteAll(ctx context.Context, keys []string) error {
	if err := sc.tx.guard(true); err != nil {
		return err
	}

	for _, key := range keys {
		if err := sc.delete(ctx, key); err != nil {
			return err
		}
	}

	return nil
}

func (sc *sqliteCollection) Clear(ctx context.Context) error {
	if err := sc.tx.guard(true); err != nil {
		return err
	}

	if _, err := sc.tx.tx.ExecContext(ctx,
		"DELETE FROM "+idxTable(sc.schema.Name)); err != nil {
		return err
	}

	_, err := sc.tx.tx.ExecContext(ctx, "DELETE FROM "+docTable(sc.schema.Name))
	return err
}

func (sc *sqliteCollection) Count(ctx context.Context) (int64, error) {
	if err := sc.tx.guard(false); err != nil {
		return 0, err
	}

	var count int64
	err := sc.tx.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+docTable(sc.schema.Name)).Scan(&count)
	return count, err
}

func (sc *sqliteCollection) GetByIndex(ctx context.Context, index, value string) (backend.Document, error) {
	docs, err := sc.GetAllByIndex(ctx, index, value)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, backend.ErrNotExist
	}

	return docs[0], nil
}

func (sc *sqliteCollection) GetAllByIndex(ctx context.Context, index, value string) ([]backend.Document, error) {
	if err := sc.tx.guard(false); err != nil {
		return nil, err
	}

	if _, exists := sc.schema.IndexByName(index); !exists {
		return nil, backend.ErrUnknownIndex
	}

	rows, err := sc.tx.tx.QueryContext(ctx,
		"SELECT m.doc FROM "+docTable(sc.schema.Name)+" m"+
			" JOIN "+idxTable(sc.schema.Name)+" i ON i.key = m.key"+
			" WHERE i.idx = ? AND i.value = ? ORDER BY m.key",
		index, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (sc *sqliteCollection) Query(ctx context.Context, query backend.Query) ([]backend.Document, error) {
	if err := sc.tx.guard(false); err != nil {
		return nil, err
	}

	lower, upper := query.Lower, query.Upper
	if query.Only != "" {
		lower, upper = query.Only, query.Only
	}

	direction := "ASC"
	if query.Descending {
		direction = "DESC"
	}

	var (
		stmt string
		args []any
	)

	if query.Index == "" {
		// Primary scan: the key itself is the range value.
		stmt = "SELECT doc FROM " + docTable(sc.schema.Name) + " WHERE 1=1"
		if lower != "" {
			stmt += " AND key >= ?"
			args = append(args, lower)
		}
		if upper != "" {
			stmt += " AND key <= ?"
			args = append(args, upper)
		}
		stmt += " ORDER BY key " + direction
	} else {
		if _, exists := sc.schema.IndexByName(query.Index); !exists {
			return nil, backend.ErrUnknownIndex
		}

		stmt = "SELECT m.doc FROM " + docTable(sc.schema.Name) + " m" +
			" JOIN " + idxTable(sc.schema.Name) + " i ON i.key = m.key" +
			" WHERE i.idx = ?"
		args = append(args, query.Index)
		if lower != "" {
			stmt += " AND i.value >= ?"
			args = append(args, lower)
		}
		if upper != "" {
			stmt += " AND i.value <= ?"
			args = append(args, upper)
		}
		stmt += fmt.Sprintf(" ORDER BY i.value %s, m.key %s", direction, direction)
	}

	rows, err := sc.tx.tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}

	// Predicate filters the index-narrowed range before pagination.
	if query.Filter != nil {
		filtered := docs[:0]
		for _, doc := range docs {
			if query.Filter(doc) {
				filtered = append(filtered, doc)
			}
		}
		docs = filtered
	}

	if query.Offset > 0 {
		if query.Offset >= len(docs) {
			return nil, nil
		}
		docs = docs[query.Offset:]
	}

	if query.Limit > 0 && query.Limit < len(docs) {
		docs = docs[:query.Limit]
	}

	return docs, nil
}
