package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/whisper-session/internal/types"
)

// ResultRecord is one row of the result history
type ResultRecord struct {
	ID              string    `json:"id"`
	Session         uint64    `json:"session"`
	InputName       string    `json:"input_name"`
	InputHash       string    `json:"input_hash"`
	TokensPerSecond float64   `json:"tps"`
	ModelLoadMs     *float64  `json:"model_load_ms,omitempty"`
	TranscriptionMs *float64  `json:"transcription_ms,omitempty"`
	WordCount       int       `json:"word_count"`
	ChunkCount      int       `json:"chunk_count"`
	LocalPath       string    `json:"local_path"`
	GDriveURL       string    `json:"gdrive_url,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB opens the database and creates the schema
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		result_id TEXT NOT NULL UNIQUE,
		session INTEGER NOT NULL,
		input_name TEXT,
		input_hash TEXT,
		tps REAL,
		model_load_ms REAL,
		transcription_ms REAL,
		word_count INTEGER,
		chunks TEXT NOT NULL,
		local_path TEXT,
		gdrive_url TEXT,
		completed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_completed_at ON results(completed_at);
	CREATE INDEX IF NOT EXISTS idx_results_input_hash ON results(input_hash);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveResult stores a completed result with where it was archived
func (mdb *MetadataDB) SaveResult(result *types.TranscriptionResult, wordCount int, localPath, gdriveURL string) error {
	chunks, err := json.Marshal(result.Chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %v", err)
	}

	query := `
	INSERT INTO results (result_id, session, input_name, input_hash, tps, model_load_ms, transcription_ms,
		word_count, chunks, local_path, gdrive_url, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = mdb.db.Exec(query, result.ID, int64(result.Session), result.InputName, result.InputHash,
		result.TokensPerSecond, nullFloat(result.ModelLoadMs), nullFloat(result.TranscriptionMs),
		wordCount, string(chunks), localPath, gdriveURL, result.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save result metadata: %v", err)
	}

	return nil
}

const selectResults = `
	SELECT result_id, session, input_name, input_hash, tps, model_load_ms, transcription_ms,
		word_count, chunks, local_path, gdrive_url, completed_at
	FROM results`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ResultRecord, error) {
	var (
		rec                  ResultRecord
		session              int64
		inputName, inputHash sql.NullString
		localPath, gdrive    sql.NullString
		chunks               string
		loadMs, transcribeMs sql.NullFloat64
	)

	err := row.Scan(&rec.ID, &session, &inputName, &inputHash, &rec.TokensPerSecond, &loadMs, &transcribeMs,
		&rec.WordCount, &chunks, &localPath, &gdrive, &rec.CompletedAt)
	if err != nil {
		return rec, err
	}

	rec.Session = uint64(session)
	rec.InputName = inputName.String
	rec.InputHash = inputHash.String
	rec.LocalPath = localPath.String
	rec.GDriveURL = gdrive.String
	if loadMs.Valid {
		rec.ModelLoadMs = &loadMs.Float64
	}
	if transcribeMs.Valid {
		rec.TranscriptionMs = &transcribeMs.Float64
	}

	var decoded []types.Chunk
	if err := json.Unmarshal([]byte(chunks), &decoded); err == nil {
		rec.ChunkCount = len(decoded)
	}

	return rec, nil
}

// GetResult retrieves one result by its id
func (mdb *MetadataDB) GetResult(resultID string) (ResultRecord, error) {
	row := mdb.db.QueryRow(selectResults+" WHERE result_id = ?", resultID)
	rec, err := scanRecord(row)
	if err != nil {
		return rec, fmt.Errorf("failed to get result: %w", err)
	}
	return rec, nil
}

// ListResults returns the most recent results first
func (mdb *MetadataDB) ListResults(limit int) ([]ResultRecord, error) {
	rows, err := mdb.db.Query(selectResults+" ORDER BY completed_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %v", err)
	}
	defer rows.Close()

	records := []ResultRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// FindByInputHash returns earlier results produced from the same input
func (mdb *MetadataDB) FindByInputHash(hash string) ([]ResultRecord, error) {
	rows, err := mdb.db.Query(selectResults+" WHERE input_hash = ? ORDER BY completed_at DESC", hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query results by input: %v", err)
	}
	defer rows.Close()

	records := []ResultRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
