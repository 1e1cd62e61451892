package subtitle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"wordsync/internal/timing"
)

var (
	// ErrProjectNotFound is returned when a project id has no row.
	ErrProjectNotFound = errors.New("project not found")
	// ErrSubtitleNotFound is returned when a subtitle id has no row.
	ErrSubtitleNotFound = errors.New("subtitle not found")
)

// SaveProject inserts or replaces a project with all of its subtitles and
// words.
func (s *Store) SaveProject(ctx context.Context, project *Project) error {
	if project == nil {
		return errors.New("save project: nil project")
	}
	if strings.TrimSpace(project.ID) == "" {
		return errors.New("save project: missing id")
	}
	now := s.timestamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, video_path, audio_path, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				video_path = excluded.video_path,
				audio_path = excluded.audio_path,
				updated_at = excluded.updated_at`,
			project.ID, project.Name, project.VideoPath, nullableString(project.AudioPath), now, now,
		); err != nil {
			return fmt.Errorf("upsert project: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM subtitles WHERE project_id = ?", project.ID); err != nil {
			return fmt.Errorf("clear subtitles: %w", err)
		}
		for i, sub := range project.Subtitles {
			if strings.TrimSpace(sub.ID) == "" {
				return fmt.Errorf("subtitle %d: missing id", i)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO subtitles (id, project_id, position, start_time, end_time, text, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				sub.ID, project.ID, i, sub.Start, sub.End, sub.Text, now,
			); err != nil {
				return fmt.Errorf("insert subtitle %s: %w", sub.ID, err)
			}
			if err := insertWords(ctx, tx, sub.ID, sub.Words); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadProject reads a project with its subtitles ordered by start time.
func (s *Store) LoadProject(ctx context.Context, id string) (*Project, error) {
	project := &Project{ID: id}
	var audio sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT name, video_path, audio_path FROM projects WHERE id = ?", id,
	).Scan(&project.Name, &project.VideoPath, &audio)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	project.AudioPath = audio.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, text FROM subtitles
		WHERE project_id = ? ORDER BY start_time, position`, id)
	if err != nil {
		return nil, fmt.Errorf("query subtitles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sub Subtitle
		if err := rows.Scan(&sub.ID, &sub.Start, &sub.End, &sub.Text); err != nil {
			return nil, fmt.Errorf("scan subtitle: %w", err)
		}
		project.Subtitles = append(project.Subtitles, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range project.Subtitles {
		words, err := s.loadWords(ctx, project.Subtitles[i].ID)
		if err != nil {
			return nil, err
		}
		project.Subtitles[i].Words = words
	}
	return project, nil
}

// ListProjects returns a summary row per stored project.
func (s *Store) ListProjects(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.video_path, p.updated_at, COUNT(s.id)
		FROM projects p LEFT JOIN subtitles s ON s.project_id = p.id
		GROUP BY p.id ORDER BY p.updated_at DESC, p.id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var row Summary
		if err := rows.Scan(&row.ID, &row.Name, &row.VideoPath, &row.UpdatedAt, &row.SubtitleCount); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetSubtitle reads one subtitle with its words.
func (s *Store) GetSubtitle(ctx context.Context, id string) (*Subtitle, error) {
	sub := &Subtitle{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT start_time, end_time, text FROM subtitles WHERE id = ?", id,
	).Scan(&sub.Start, &sub.End, &sub.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSubtitleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load subtitle: %w", err)
	}
	words, err := s.loadWords(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.Words = words
	return sub, nil
}

// UpdateSubtitleWithWords replaces a subtitle's text and words atomically.
// Start and end follow the first and last word; an empty word list leaves
// the window untouched. A blank text is rebuilt from the words.
func (s *Store) UpdateSubtitleWithWords(ctx context.Context, id, text string, words []timing.Word) error {
	if strings.TrimSpace(text) == "" {
		text = timing.JoinText(words)
	}
	now := s.timestamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if len(words) == 0 {
			res, err = tx.ExecContext(ctx,
				"UPDATE subtitles SET text = ?, updated_at = ? WHERE id = ?", text, now, id)
		} else {
			res, err = tx.ExecContext(ctx,
				"UPDATE subtitles SET text = ?, start_time = ?, end_time = ?, updated_at = ? WHERE id = ?",
				text, words[0].Start, words[len(words)-1].End, now, id)
		}
		if err != nil {
			return fmt.Errorf("update subtitle: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrSubtitleNotFound, id)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM words WHERE subtitle_id = ?", id); err != nil {
			return fmt.Errorf("clear words: %w", err)
		}
		if err := insertWords(ctx, tx, id, words); err != nil {
			return err
		}
		return touchProject(ctx, tx, id, now)
	})
}

// UpdateSubtitleText changes a subtitle's text by hand. When the token count
// is unchanged the existing word timings are kept; otherwise the window is
// redistributed.
func (s *Store) UpdateSubtitleText(ctx context.Context, id, text string) ([]timing.Word, error) {
	sub, err := s.GetSubtitle(ctx, id)
	if err != nil {
		return nil, err
	}
	words := timing.UpdateTextWithTimingPreservation(text, sub.Words, sub.Start, sub.End)
	if err := s.UpdateSubtitleWithWords(ctx, id, text, words); err != nil {
		return nil, err
	}
	return words, nil
}

// DeleteSubtitle removes a subtitle and its words.
func (s *Store) DeleteSubtitle(ctx context.Context, id string) error {
	affected, err := s.exec(ctx, "DELETE FROM subtitles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete subtitle: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSubtitleNotFound, id)
	}
	return nil
}

// ClearProject removes a project with all its subtitles.
func (s *Store) ClearProject(ctx context.Context, id string) error {
	affected, err := s.exec(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("clear project: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return nil
}

func (s *Store) loadWords(ctx context.Context, subtitleID string) ([]timing.Word, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT text, start_time, end_time, confidence FROM words
		WHERE subtitle_id = ? ORDER BY position`, subtitleID)
	if err != nil {
		return nil, fmt.Errorf("query words: %w", err)
	}
	defer rows.Close()
	words := []timing.Word{}
	for rows.Next() {
		var w timing.Word
		if err := rows.Scan(&w.Text, &w.Start, &w.End, &w.Confidence); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

func insertWords(ctx context.Context, tx *sql.Tx, subtitleID string, words []timing.Word) error {
	if len(words) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO words (subtitle_id, position, text, start_time, end_time, confidence)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare words: %w", err)
	}
	defer stmt.Close()
	for i, w := range words {
		if _, err := stmt.ExecContext(ctx, subtitleID, i, w.Text, w.Start, w.End, w.Confidence); err != nil {
			return fmt.Errorf("insert word %d of %s: %w", i, subtitleID, err)
		}
	}
	return nil
}

func touchProject(ctx context.Context, tx *sql.Tx, subtitleID, now string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projects SET updated_at = ?
		WHERE id = (SELECT project_id FROM subtitles WHERE id = ?)`, now, subtitleID)
	if err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	return nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
