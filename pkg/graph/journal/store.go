// ABOUTME: File-backed quad store replaying its journal into memory on open
// ABOUTME: Mutations are fsynced to the journal before they are applied

package journal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nainya/typecatalog/pkg/graph"
	"github.com/nainya/typecatalog/pkg/graph/memstore"
	"github.com/nainya/typecatalog/pkg/rdf"
	"github.com/nainya/typecatalog/pkg/rdf/rdfio"
)

var _ graph.QuadStore = (*Store)(nil)

// Store serves reads from memory and appends every mutation to the journal
// file before applying it
type Store struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	mem    *memstore.Store
	lsn    uint64
	closed bool
	log    zerolog.Logger
}

// Open replays the journal at path, creating it when missing. A record cut
// short at the tail is discarded; a checksum failure anywhere is an error.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	s := &Store{path: path, mem: memstore.New(), log: log}

	start := time.Now()
	valid, records, err := s.replay()
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() > valid {
		log.Warn().Int64("discarded_bytes", info.Size()-valid).Msg("Truncating torn journal tail")
		if err := file.Truncate(valid); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to truncate journal: %w", err)
		}
	}
	if _, err := file.Seek(valid, io.SeekStart); err != nil {
		file.Close()
		return nil, err
	}
	s.file = file

	log.Info().
		Str("path", path).
		Int("records", records).
		Int("quads", s.mem.Len()).
		Dur("duration", time.Since(start)).
		Msg("Journal replayed")
	return s, nil
}

// replay applies every intact record and returns the offset after the last one
func (s *Store) replay() (int64, int, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	ctx := context.Background()
	reader := bufio.NewReader(file)
	var offset int64
	records := 0
	for {
		rec, n, err := readRecord(reader)
		if err == io.EOF || errors.Is(err, ErrTruncated) {
			return offset, records, nil
		}
		if err != nil {
			return 0, 0, fmt.Errorf("journal record at offset %d: %w", offset, err)
		}
		if err := s.apply(ctx, rec); err != nil {
			return 0, 0, fmt.Errorf("journal record %d: %w", rec.LSN, err)
		}
		offset += int64(n)
		s.lsn = rec.LSN
		records++
	}
}

func (s *Store) apply(ctx context.Context, rec *Record) error {
	switch rec.Op {
	case OpInsert:
		quads, err := rdfio.ReadNQuads(bytes.NewReader(rec.Payload), rec.Graph, rdfio.KeepBlankLabels())
		if err != nil {
			return err
		}
		return s.mem.Insert(ctx, rec.Graph, quads)
	case OpDrop:
		return s.mem.DropGraph(ctx, rec.Graph)
	default:
		return fmt.Errorf("unknown journal op %d", rec.Op)
	}
}

// append writes and syncs one record
func (s *Store) append(op Op, graphName string, payload []byte) error {
	if s.closed {
		return ErrClosed
	}
	rec := &Record{
		LSN:       s.lsn + 1,
		Op:        op,
		Graph:     graphName,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	if _, err := s.file.Write(rec.Encode()); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	s.lsn = rec.LSN
	return nil
}

func encodeTriples(quads []rdf.Quad) ([]byte, error) {
	triples := make([]rdf.Quad, len(quads))
	for i, q := range quads {
		triples[i] = q.Triple()
	}
	var buf bytes.Buffer
	if err := rdfio.WriteNQuads(&buf, triples); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Insert journals quads for graphName, then applies them
func (s *Store) Insert(ctx context.Context, graphName string, quads []rdf.Quad) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(quads) == 0 {
		return nil
	}
	payload, err := encodeTriples(quads)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.append(OpInsert, graphName, payload); err != nil {
		return err
	}
	return s.mem.Insert(ctx, graphName, quads)
}

// DropGraph journals the drop, then applies it
func (s *Store) DropGraph(ctx context.Context, graphName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.append(OpDrop, graphName, nil); err != nil {
		return err
	}
	return s.mem.DropGraph(ctx, graphName)
}

func (s *Store) Match(ctx context.Context, graphs []string, subj, pred, obj *rdf.Term) ([]rdf.Quad, error) {
	return s.mem.Match(ctx, graphs, subj, pred, obj)
}

func (s *Store) Graphs(ctx context.Context) ([]string, error) {
	return s.mem.Graphs(ctx)
}

// Len returns the number of live quads
func (s *Store) Len() int {
	return s.mem.Len()
}

// LSN returns the sequence number of the last journaled record
func (s *Store) LSN() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lsn
}

// Compact rewrites the journal as one insert record per live graph, dropping
// the history of superseded and dropped quads
func (s *Store) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	graphs, err := s.mem.Graphs(ctx)
	if err != nil {
		return err
	}

	tmpPath := s.path + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create compaction file: %w", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	w := bufio.NewWriter(tmp)
	lsn := uint64(0)
	for _, g := range graphs {
		quads, err := s.mem.Match(ctx, []string{g}, nil, nil, nil)
		if err != nil {
			cleanup()
			return err
		}
		payload, err := encodeTriples(quads)
		if err != nil {
			cleanup()
			return err
		}
		lsn++
		rec := &Record{LSN: lsn, Op: OpInsert, Graph: g, Payload: payload, Timestamp: time.Now()}
		if _, err := w.Write(rec.Encode()); err != nil {
			cleanup()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := s.file.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		s.closed = true
		return fmt.Errorf("failed to replace journal: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		s.closed = true
		return fmt.Errorf("failed to reopen journal: %w", err)
	}
	s.file = file
	s.lsn = lsn

	s.log.Info().Int("graphs", len(graphs)).Int("quads", s.mem.Len()).Msg("Journal compacted")
	return nil
}

// Close syncs and closes the journal file
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
