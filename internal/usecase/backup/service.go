package backup

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/repository"
)

const formatVersion = 1

// Record kinds written after the meta line.
const (
	KindProgress    = "progress"
	KindAchievement = "achievement"
)

var errNoUsers = errors.New("backup: at least one user is required")

type ProgressReporter interface {
	StartKind(kind string, total int)
	Increment(kind string, delta int)
	FinishKind(kind string)
}

type noopProgress struct{}

func (noopProgress) StartKind(string, int) {}
func (noopProgress) Increment(string, int) {}
func (noopProgress) FinishKind(string)     {}

// Service exports learner progress and achievements as NDJSON and restores
// them through the progress store.
type Service struct {
	store   repository.ProgressStore
	content repository.ContentRepository
	clock   func() time.Time
}

func NewService(store repository.ProgressStore, content repository.ContentRepository) *Service {
	return &Service{store: store, content: content, clock: time.Now}
}

type ExportOption func(*exportConfig)

type exportConfig struct {
	kinds    []string
	reporter ProgressReporter
}

// WithKinds restricts export to the provided record kinds.
func WithKinds(kinds []string) ExportOption {
	return func(cfg *exportConfig) {
		if len(kinds) == 0 {
			return
		}
		cfg.kinds = append([]string{}, kinds...)
	}
}

// WithProgressReporter registers a reporter that receives progress callbacks during export.
func WithProgressReporter(reporter ProgressReporter) ExportOption {
	return func(cfg *exportConfig) {
		cfg.reporter = reporter
	}
}

type ImportOption func(*importConfig)

type importConfig struct {
	kinds []string
}

// WithImportKinds restricts import to the provided record kinds.
func WithImportKinds(kinds []string) ImportOption {
	return func(cfg *importConfig) {
		if len(kinds) == 0 {
			return
		}
		cfg.kinds = append([]string{}, kinds...)
	}
}

type record struct {
	Type       string         `json:"type"`
	Version    int            `json:"version,omitempty"`
	ExportedAt *time.Time     `json:"exported_at,omitempty"`
	Users      []string       `json:"users,omitempty"`
	Kinds      []string       `json:"kinds,omitempty"`
	RowCounts  map[string]int `json:"row_counts,omitempty"`
	Payload    any            `json:"payload,omitempty"`
}

type rawRecord struct {
	Type      string          `json:"type"`
	Version   int             `json:"version"`
	Users     []string        `json:"users"`
	RowCounts map[string]int  `json:"row_counts"`
	Payload   json.RawMessage `json:"payload"`
}

// ImportStats counts what Import applied.
type ImportStats struct {
	Lessons      int
	Achievements int
	Skipped      int
}

// Export writes a meta record followed by one record per progress row and
// earned achievement of every user.
func (s *Service) Export(ctx context.Context, w io.Writer, users []string, opts ...ExportOption) error {
	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	kinds, err := selectKinds(cfg.kinds)
	if err != nil {
		return err
	}
	users = normalizeUsers(users)
	if len(users) == 0 {
		return errNoUsers
	}
	reporter := cfg.reporter
	if reporter == nil {
		reporter = noopProgress{}
	}

	rows := make(map[string][]any, len(kinds))
	for _, userID := range users {
		if lo.Contains(kinds, KindProgress) {
			progress, err := s.store.ListProgress(ctx, userID)
			if err != nil {
				return fmt.Errorf("list progress for %s: %w", userID, err)
			}
			for _, p := range progress {
				rows[KindProgress] = append(rows[KindProgress], p)
			}
		}
		if lo.Contains(kinds, KindAchievement) {
			achievements, err := s.store.ListAchievements(ctx, userID)
			if err != nil {
				return fmt.Errorf("list achievements for %s: %w", userID, err)
			}
			for _, a := range achievements {
				rows[KindAchievement] = append(rows[KindAchievement], a)
			}
		}
	}

	writer := bufio.NewWriter(w)
	defer writer.Flush()

	now := s.clock().UTC()
	counts := make(map[string]int, len(kinds))
	for _, kind := range kinds {
		counts[kind] = len(rows[kind])
	}
	meta := record{
		Type:       "meta",
		Version:    formatVersion,
		ExportedAt: &now,
		Users:      users,
		Kinds:      kinds,
		RowCounts:  counts,
	}
	if err := writeRecord(writer, meta); err != nil {
		return err
	}

	for _, kind := range kinds {
		reporter.StartKind(kind, counts[kind])
		for _, payload := range rows[kind] {
			if err := writeRecord(writer, record{Type: kind, Payload: payload}); err != nil {
				return err
			}
			reporter.Increment(kind, 1)
		}
		reporter.FinishKind(kind)
	}
	return writer.Flush()
}

// Import replays a backup through the progress store. Completed lessons are
// re-marked against the current content, so lessons or dialects that no
// longer exist are skipped. Both writes are idempotent, which makes a partial
// import safe to repeat.
func (s *Service) Import(ctx context.Context, r io.Reader, opts ...ImportOption) (*ImportStats, error) {
	cfg := importConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	kinds, err := selectKinds(cfg.kinds)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	var (
		metaSeen bool
		stats    ImportStats
	)

	for {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read backup: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec rawRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("decode record: %w", err)
			}

			switch {
			case rec.Type == "meta":
				if rec.Version != formatVersion {
					return nil, fmt.Errorf("backup: unsupported format version %d", rec.Version)
				}
				metaSeen = true
			case !metaSeen:
				return nil, errors.New("backup: missing meta record")
			case !lo.Contains(kinds, rec.Type):
				// Skip records of kinds not requested.
			case len(rec.Payload) == 0:
				return nil, fmt.Errorf("backup: missing payload for %s", rec.Type)
			case rec.Type == KindProgress:
				if err := s.importProgress(ctx, rec.Payload, &stats); err != nil {
					return nil, err
				}
			case rec.Type == KindAchievement:
				if err := s.importAchievement(ctx, rec.Payload, &stats); err != nil {
					return nil, err
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	if !metaSeen {
		return nil, errors.New("backup: missing meta record")
	}
	return &stats, nil
}

func (s *Service) importProgress(ctx context.Context, payload json.RawMessage, stats *ImportStats) error {
	var p entity.UserProgress
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode progress: %w", err)
	}
	dialect, err := s.content.GetDialect(ctx, p.DialectID)
	if errors.Is(err, entity.ErrDialectNotFound) {
		stats.Skipped += len(p.CompletedLessonIDs)
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve dialect %s: %w", p.DialectID, err)
	}

	for _, lessonID := range p.CompletedLessonIDs {
		lesson, err := s.content.GetLessonByID(ctx, lessonID)
		if errors.Is(err, entity.ErrLessonNotFound) || (err == nil && lesson.DialectID != dialect.ID) {
			stats.Skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("resolve lesson %s: %w", lessonID, err)
		}
		if _, err := s.store.MarkLessonCompleted(ctx, p.UserID, dialect.ID, lessonID, dialect.TotalLessons); err != nil {
			return fmt.Errorf("restore lesson %s for %s: %w", lessonID, p.UserID, err)
		}
		stats.Lessons++
	}
	return nil
}

func (s *Service) importAchievement(ctx context.Context, payload json.RawMessage, stats *ImportStats) error {
	var a entity.Achievement
	if err := json.Unmarshal(payload, &a); err != nil {
		return fmt.Errorf("decode achievement: %w", err)
	}
	if a.EarnedAt.IsZero() {
		a.EarnedAt = s.clock()
	}
	inserted, err := s.store.AwardAchievement(ctx, &a)
	if err != nil {
		return fmt.Errorf("restore achievement %s for %s: %w", a.ID, a.UserID, err)
	}
	if inserted {
		stats.Achievements++
	} else {
		stats.Skipped++
	}
	return nil
}

func selectKinds(requested []string) ([]string, error) {
	all := []string{KindProgress, KindAchievement}
	if len(requested) == 0 {
		return all, nil
	}
	selected := make([]string, 0, len(requested))
	for _, kind := range requested {
		kind = strings.ToLower(strings.TrimSpace(kind))
		if !lo.Contains(all, kind) {
			return nil, fmt.Errorf("backup: unknown record kind %q", kind)
		}
		selected = append(selected, kind)
	}
	return lo.Uniq(selected), nil
}

func normalizeUsers(users []string) []string {
	out := lo.Uniq(lo.Filter(lo.Map(users, func(u string, _ int) string {
		return strings.TrimSpace(u)
	}), func(u string, _ int) bool { return u != "" }))
	sort.Strings(out)
	return out
}

func writeRecord(w io.Writer, rec record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", rec.Type, err)
	}
	if _, err := w.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write %s record: %w", rec.Type, err)
	}
	return nil
}
