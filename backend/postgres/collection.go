package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mushuanli/vfs/backend"
)

type postgresCollection struct {
	tx     *postgresTransaction
	schema backend.Schema
}

func decodeDocument(raw []byte) (backend.Document, error) {
	var doc backend.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func (pc *postgresCollection) Get(ctx context.Context, key string) (backend.Document, error) {
	if err := pc.tx.guard(false); err != nil {
		return nil, err
	}

	var raw []byte
	err := pc.tx.tx.QueryRow(ctx,
		"SELECT doc FROM "+docTable(pc.schema.Name)+" WHERE key = $1", key).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, backend.ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	return decodeDocument(raw)
}

func (pc *postgresCollection) GetAll(ctx context.Context) ([]backend.Document, error) {
	if err := pc.tx.guard(false); err != nil {
		return nil, err
	}

	rows, err := pc.tx.tx.Query(ctx,
		"SELECT doc FROM "+docTable(pc.schema.Name)+" ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func scanDocuments(rows pgx.Rows) ([]backend.Document, error) {
	var docs []backend.Document
	for rows.Next() {
		var raw []byte
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

func (pc *postgresCollection) Put(ctx context.Context, doc backend.Document) (string, error) {
	if err := pc.tx.guard(true); err != nil {
		return "", err
	}

	return pc.put(ctx, doc)
}

func (pc *postgresCollection) put(ctx context.Context, doc backend.Document) (string, error) {
	key := backend.String(doc, pc.schema.PrimaryKey)
	if key == "" {
		if !pc.schema.AutoIncrement {
			return "", backend.ErrMissingKey
		}

		seq, err := pc.tx.nextSequence(ctx, pc.schema.Name)
		if err != nil {
			return "", err
		}

		key = fmt.Sprintf("%d", seq)
		doc[pc.schema.PrimaryKey] = key
	}

	// Unique index enforcement before any mutation
	for _, idx := range pc.schema.Indexes {
		if !idx.Unique {
			continue
		}

		for _, value := range backend.IndexValues(idx, doc) {
			var existing string
			err := pc.tx.tx.QueryRow(ctx,
				"SELECT key FROM "+idxTable(pc.schema.Name)+
					" WHERE idx = $1 AND value = $2 AND key <> $3 LIMIT 1",
				idx.Name, value, key).Scan(&existing)
			if err == nil {
				return "", backend.ErrUniqueViolation
			}
			if err != pgx.ErrNoRows {
				return "", err
			}
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	if _, err := pc.tx.tx.Exec(ctx, `
		INSERT INTO `+docTable(pc.schema.Name)+` (key, doc) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET doc = excluded.doc
	`, key, raw); err != nil {
		return "", err
	}

	// Rewrite index rows for this key
	if _, err := pc.tx.tx.Exec(ctx,
		"DELETE FROM "+idxTable(pc.schema.Name)+" WHERE key = $1", key); err != nil {
		return "", err
	}

	for _, idx := range pc.schema.Indexes {
		for _, value := range backend.IndexValues(idx, doc) {
			if _, err := pc.tx.tx.Exec(ctx,
				"INSERT INTO "+idxTable(pc.schema.Name)+" (idx, value, key) VALUES ($1, $2, $3)",
				idx.Name, value, key); err != nil {
				return "", err
			}
		}
	}

	return key, nil
}

func (pc *postgresCollection) PutAll(ctx context.Context, docs []backend.Document) error {
	if err := pc.tx.guard(true); err != nil {
		return err
	}

	for _, doc := range docs {
		if _, err := pc.put(ctx, doc); err != nil {
			return err
		}
	}

	return nil
}

func (pc *postgresCollection) Delete(ctx context.Context, key string) error {
	if err := pc.tx.guard(true); err != nil {
		return err
	}

	return pc.delete(ctx, key)
}

func (pc *postgresCollection) delete(ctx context.Context, key string) error {
	if _, err := pc.tx.tx.Exec(ctx,
		"DELETE FROM "+idxTable(pc.schema.Name)+" WHERE key = $1", key); err != nil {
		return err
	}

	_, err := pc.tx.tx.Exec(ctx,
		"DELETE FROM "+docTable(pc.schema.Name)+" WHERE key = $1", key)
	return err
}

func (pc *postgresCollection) DeleteAll(ctx context.Context, keys []string) error {
	if err := pc.tx.guard(true); err != nil {
		return err
	}

	for _, key := range keys {
		if err := pc.delete(ctx, key); err != nil {
			return err
		}
	}

	return nil
}

func (pc *postgresCollection) Clear(ctx context.Context) error {
	if err := pc.tx.guard(true); err != nil {
		return err
	}

	if _, err := pc.tx.tx.Exec(ctx,
		"DELETE FROM "+idxTable(pc.schema.Name)); err != nil {
		return err
	}

	_, err := pc.tx.tx.Exec(ctx, "DELETE FROM "+docTable(pc.schema.Name))
	return err
}

func (pc *postgresCollection) Count(ctx context.Context) (int64, error) {
	if err := pc.tx.guard(false); err != nil {
		return 0, err
	}

	var count int64
	err := pc.tx.tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM "+docTable(pc.schema.Name)).Scan(&count)
	return count, err
}

func (pc *postgresCollection) GetByIndex(ctx context.Context, index, value string) (backend.Document, error) {
	docs, err := pc.GetAllByIndex(ctx, index, value)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, backend.ErrNotExist
	}

	return docs[0], nil
}

func (pc *postgresCollection) GetAllByIndex(ctx context.Context, index, value string) ([]backend.Document, error) {
	if err := pc.tx.guard(false); err != nil {
		return nil, err
	}

	if _, exists := pc.schema.IndexByName(index); !exists {
		return nil, backend.ErrUnknownIndex
	}

	rows, err := pc.tx.tx.Query(ctx,
		"SELECT m.doc FROM "+docTable(pc.schema.Name)+" m"+
			" JOIN "+idxTable(pc.schema.Name)+" i ON i.key = m.key"+
			" WHERE i.idx = $1 AND i.value = $2 ORDER BY m.key",
		index, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (pc *postgresCollection) Query(ctx context.Context, query backend.Query) ([]backend.Document, error) {
	if err := pc.tx.guard(false); err != nil {
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
		stmt = "SELECT doc FROM " + docTable(pc.schema.Name) + " WHERE TRUE"
		if lower != "" {
			args = append(args, lower)
			stmt += fmt.Sprintf(" AND key >= $%d", len(args))
		}
		if upper != "" {
			args = append(args, upper)
			stmt += fmt.Sprintf(" AND key <= $%d", len(args))
		}
		stmt += " ORDER BY key " + direction
	} else {
		if _, exists := pc.schema.IndexByName(query.Index); !exists {
			return nil, backend.ErrUnknownIndex
		}

		args = append(args, query.Index)
		stmt = "SELECT m.doc FROM " + docTable(pc.schema.Name) + " m" +
			" JOIN " + idxTable(pc.schema.Name) + " i ON i.key = m.key" +
			" WHERE i.idx = $1"
		if lower != "" {
			args = append(args, lower)
			stmt += fmt.Sprintf(" AND i.value >= $%d", len(args))
		}
		if upper != "" {
			args = append(args, upper)
			stmt += fmt.Sprintf(" AND i.value <= $%d", len(args))
		}
		stmt += fmt.Sprintf(" ORDER BY i.value %s, m.key %s", direction, direction)
	}

	rows, err := pc.tx.tx.Query(ctx, stmt, args...)
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
