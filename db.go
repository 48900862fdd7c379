package kpv

import (
	"database/sql"
	"fmt"

	"github.com/bodgit/kpv/container"
	_ "github.com/mattn/go-sqlite3"
)

// FrameDB is an index of the frames in an encoded container
type FrameDB struct {
	db *sql.DB
}

func NewFrameDB(file string) (*FrameDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS frame (number INTEGER PRIMARY KEY NOT NULL, source TEXT NOT NULL, flags INTEGER NOT NULL, tiles INTEGER NOT NULL, raw INTEGER NOT NULL, payload INTEGER NOT NULL, sha1 TEXT)"); err != nil {
		return nil, err
	}

	if _, err = db.Exec("CREATE INDEX IF NOT EXISTS frame_sha1 ON frame (sha1)"); err != nil {
		return nil, err
	}

	return &FrameDB{
		db: db,
	}, nil
}

// FrameRecord is one row of the index. SHA1 is empty for STAY frames.
type FrameRecord struct {
	Number  int
	Source  string
	Flags   container.Flag
	Tiles   int
	Raw     int
	Payload int
	SHA1    string
}

// Reset removes every frame
func (db *FrameDB) Reset() error {
	_, err := db.db.Exec("DELETE FROM frame")
	return err
}

func (db *FrameDB) AddFrame(r FrameRecord) error {
	var sha sql.NullString
	if r.SHA1 != "" {
		sha.String = r.SHA1
		sha.Valid = true
	}

	if _, err := db.db.Exec("INSERT OR REPLACE INTO frame (number, source, flags, tiles, raw, payload, sha1) VALUES (?, ?, ?, ?, ?, ?, ?)", r.Number, r.Source, int(r.Flags), r.Tiles, r.Raw, r.Payload, sha); err != nil {
		return err
	}
	return nil
}

// Frame returns frame n, or nil if there is no such frame
func (db *FrameDB) Frame(n int) (*FrameRecord, error) {
	var flags int
	var sha sql.NullString
	r := &FrameRecord{Number: n}
	switch err := db.db.QueryRow("SELECT source, flags, tiles, raw, payload, sha1 FROM frame WHERE number = ?", n).Scan(&r.Source, &flags, &r.Tiles, &r.Raw, &r.Payload, &sha); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		r.Flags = container.Flag(flags)
		r.SHA1 = sha.String
		return r, nil
	default:
		return nil, err
	}
}

// Summary totals the index
type Summary struct {
	Frames     int
	Stay       int
	Payload    int64
	MeanTiles  float64 // Over frames with a payload
	Duplicates int     // Frames with the same payload as an earlier frame
}

func (db *FrameDB) Summary() (*Summary, error) {
	s := new(Summary)
	if err := db.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(flags = ?), 0), COALESCE(SUM(payload), 0), COALESCE(AVG(CASE WHEN flags != ? THEN tiles END), 0) FROM frame", int(container.FlagStay), int(container.FlagStay)).Scan(&s.Frames, &s.Stay, &s.Payload, &s.MeanTiles); err != nil {
		return nil, err
	}

	if err := db.db.QueryRow("SELECT COUNT(sha1) - COUNT(DISTINCT sha1) FROM frame").Scan(&s.Duplicates); err != nil {
		return nil, err
	}

	return s, nil
}

func (db *FrameDB) Close() error {
	return db.db.Close()
}
