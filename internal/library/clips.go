package library

import (
	"database/sql"
	"fmt"
	"time"
)

// Clip is one catalogued sound file: its source path, tags, the format it
// was captured at, and the defaults a Voice should be given when it is
// loaded for playback.
type Clip struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	FilePath      string    `json:"file_path"`
	Tags          string    `json:"tags"`
	SampleRate    int       `json:"sample_rate"`
	Channels      int       `json:"channels"`
	BitsPerSample int       `json:"bits_per_sample"`
	DefaultVolume float64   `json:"default_volume"`
	DefaultLoop   bool      `json:"default_loop"`
	CreatedAt     time.Time `json:"created_at"`
}

const clipColumns = `id, name, file_path, tags, sample_rate, channels, bits_per_sample, default_volume, default_loop, created_at`

func scanClip(row interface{ Scan(...any) error }) (*Clip, error) {
	var c Clip
	if err := row.Scan(&c.ID, &c.Name, &c.FilePath, &c.Tags, &c.SampleRate, &c.Channels,
		&c.BitsPerSample, &c.DefaultVolume, &c.DefaultLoop, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts clip and populates its ID and CreatedAt on success.
func (s *Store) Create(c *Clip) error {
	res, err := s.Exec(`
		INSERT INTO clips (name, file_path, tags, sample_rate, channels, bits_per_sample, default_volume, default_loop)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.FilePath, c.Tags, c.SampleRate, c.Channels, c.BitsPerSample, c.DefaultVolume, c.DefaultLoop)
	if err != nil {
		return fmt.Errorf("create clip: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("clip id: %w", err)
	}
	c.ID = int(id)
	c.CreatedAt = time.Now()
	return nil
}

// Get retrieves a clip by ID.
func (s *Store) Get(id int) (*Clip, error) {
	row := s.QueryRow(`SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	c, err := scanClip(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("clip %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return c, nil
}

// GetByName retrieves a clip by its unique display name.
func (s *Store) GetByName(name string) (*Clip, error) {
	row := s.QueryRow(`SELECT `+clipColumns+` FROM clips WHERE name = ?`, name)
	c, err := scanClip(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("clip %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get clip by name: %w", err)
	}
	return c, nil
}

// List returns every clip ordered by name.
func (s *Store) List() ([]*Clip, error) {
	rows, err := s.Query(`SELECT ` + clipColumns + ` FROM clips ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var out []*Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateTags replaces the comma-joined tag string for clip id.
func (s *Store) UpdateTags(id int, tags string) error {
	res, err := s.Exec(`UPDATE clips SET tags = ? WHERE id = ?`, tags, id)
	if err != nil {
		return fmt.Errorf("update tags: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("clip %d not found", id)
	}
	return nil
}

// Delete removes clip id from the catalogue. It does not touch the
// underlying file on disk.
func (s *Store) Delete(id int) error {
	res, err := s.Exec(`DELETE FROM clips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete clip: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("clip %d not found", id)
	}
	return nil
}
