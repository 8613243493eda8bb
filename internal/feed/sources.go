package feed

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FetchError reports that one game's record could not be obtained. The
// stream continues after it; the game resolves as failed.
type FetchError struct {
	GamePK int64
	Ref    string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("fetch game %d (%s): %v", e.GamePK, e.Ref, e.Err)
	}
	return fmt.Sprintf("fetch game %d: %v", e.GamePK, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher fetches a single game's live feed.
type Fetcher interface {
	FetchLiveFeed(ctx context.Context, gamePK int64) (*Record, error)
}

// GamePKSource fetches each gamePk in turn. Not safe for concurrent use.
type GamePKSource struct {
	fetcher Fetcher
	pks     []int64
	next    int
}

// NewGamePKSource creates a source over the given gamePks
func NewGamePKSource(fetcher Fetcher, pks []int64) *GamePKSource {
	return &GamePKSource{fetcher: fetcher, pks: pks}
}

// Next returns the next record, a *FetchError for a game that could not be
// fetched, or io.EOF when the list is exhausted.
func (s *GamePKSource) Next(ctx context.Context) (*Record, error) {
	if s.next >= len(s.pks) {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pk := s.pks[s.next]
	s.next++

	rec, err := s.fetcher.FetchLiveFeed(ctx, pk)
	if err != nil {
		return nil, &FetchError{GamePK: pk, Err: err}
	}
	return rec, nil
}

// Len returns the number of games the source will yield.
func (s *GamePKSource) Len() int {
	return len(s.pks)
}

// DirSource reads *.json feed documents from a directory in name order.
type DirSource struct {
	files []string
	next  int
}

// NewDirSource lists the feed files under dir
func NewDirSource(dir string) (*DirSource, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list feed files in %s: %w", dir, err)
	}
	sort.Strings(files)
	return &DirSource{files: files}, nil
}

func (s *DirSource) Next(ctx context.Context) (*Record, error) {
	if s.next >= len(s.files) {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.files[s.next]
	s.next++

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{GamePK: pkFromFilename(path), Ref: path, Err: err}
	}
	rec, err := ParseRecord(data)
	if err != nil {
		return nil, &FetchError{GamePK: pkFromFilename(path), Ref: path, Err: err}
	}
	return rec, nil
}

func (s *DirSource) Len() int {
	return len(s.files)
}

// pkFromFilename reads "718012.json" as 718012, or 0.
func pkFromFilename(path string) int64 {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pk, _ := strconv.ParseInt(base, 10, 64)
	return pk
}

// SliceSource yields in-memory records.
type SliceSource struct {
	records []*Record
	next    int
}

func NewSliceSource(records ...*Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next(ctx context.Context) (*Record, error) {
	if s.next >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.next]
	s.next++
	return rec, nil
}

func (s *SliceSource) Len() int {
	return len(s.records)
}
