package models

import "time"

// Heart is the profile owner that suitors are screened for.
type Heart struct {
	ID           string     `db:"id"`
	DisplayName  string     `db:"display_name"`
	Bio          string     `db:"bio"`
	Persona      string     `db:"persona"`
	Expectations string     `db:"expectations"`
	Dealbreakers []string   `db:"-"`
	Questions    []Question `db:"-"`
	CreatedAt    time.Time  `db:"created_at"`
}
