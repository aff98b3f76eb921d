// Package repositories persists hearts, interview sessions and scores in SQLite.
//
// All timestamps are written in UTC so that the stored text sorts chronologically.
package repositories

import (
	"database/sql"
	"encoding/json"
	"github.com/myrjola/hotline/internal/errors"
)

var ErrNotFound = errors.NewSentinel("not found")

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(ErrNotFound, msg)
	}
	return errors.Wrap(err, msg)
}

// nullJSON encodes v, storing NULL for nil pointers and empty raw messages.
func nullJSON(v any) (sql.NullString, error) {
	switch val := v.(type) {
	case json.RawMessage:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
		return sql.NullString{String: string(val), Valid: true}, nil
	case nil:
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, errors.Wrap(err, "marshal json")
	}
	if string(b) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalNullJSON(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.String), v); err != nil {
		return errors.Wrap(err, "unmarshal json")
	}
	return nil
}
