package library

// migration is one forward-only schema step, applied in Version order and
// recorded in schema_migrations so Open is idempotent across runs.
type migration struct {
	Version int
	Name    string
	Up      string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create_clips",
		Up: `
			CREATE TABLE clips (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				name             TEXT NOT NULL UNIQUE,
				file_path        TEXT NOT NULL,
				tags             TEXT NOT NULL DEFAULT '',
				sample_rate      INTEGER NOT NULL,
				channels         INTEGER NOT NULL,
				bits_per_sample  INTEGER NOT NULL,
				default_volume   REAL NOT NULL DEFAULT 1.0,
				default_loop     INTEGER NOT NULL DEFAULT 0,
				created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX idx_clips_name ON clips(name);
		`,
	},
}
