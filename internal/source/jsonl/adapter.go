package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/timmy/talentscore/internal/domain"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/source"
)

// maxLineBytes bounds one JSONL record.
const maxLineBytes = 4 * 1024 * 1024

// Adapter serves profiles from a JSON Lines file, one profile object per line.
type Adapter struct {
	path string

	mu       sync.Mutex
	loaded   bool
	profiles []domain.Profile
	index    map[string]int
	skipped  int
}

// NewAdapter creates a new JSONL profile adapter.
// Parameters:
//   - path: path to the .jsonl file; it is read lazily on first use.
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(path string) *Adapter {
	return &Adapter{path: path}
}

// GetSourceID returns the unique identifier for this source.
// Parameters: none.
// Returns:
//   - string: source identifier with "jsonl:" prefix.
func (a *Adapter) GetSourceID() string {
	return "jsonl:" + filepath.Base(a.path)
}

// GetProfile returns the profile with the given ID.
func (a *Adapter) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, id)
	}
	profile := a.profiles[i]
	return &profile, nil
}

// FetchBatch fetches a batch of profiles ordered by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cursor: pagination cursor as an index string.
//   - limit: maximum number of profiles to fetch.
// Returns:
//   - []domain.Profile: batch of profiles.
//   - string: next cursor or empty if no more profiles.
//   - error: non-nil if loading fails or the cursor is invalid.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]domain.Profile, string, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return nil, "", err
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil || startIndex < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if startIndex >= len(a.profiles) {
		return []domain.Profile{}, "", nil
	}
	endIndex := startIndex + limit
	if limit <= 0 || endIndex > len(a.profiles) {
		endIndex = len(a.profiles)
	}

	batch := append([]domain.Profile(nil), a.profiles[startIndex:endIndex]...)
	nextCursor := ""
	if endIndex < len(a.profiles) {
		nextCursor = strconv.Itoa(endIndex)
	}
	return batch, nextCursor, nil
}

// GetTotalCount returns the number of valid profiles and skipped lines.
func (a *Adapter) GetTotalCount(ctx context.Context) (total int, skipped int, err error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return 0, 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.profiles), a.skipped, nil
}

func (a *Adapter) ensureLoaded(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return nil
	}
	if err := a.loadProfiles(ctx); err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	a.loaded = true
	return nil
}

// loadProfiles reads the whole file; callers hold a.mu.
func (a *Adapter) loadProfiles(ctx context.Context) error {
	file, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("failed to open profiles file: %w", err)
	}
	defer file.Close()
	ctx = logger.SetSource(ctx, a.GetSourceID())

	byID := make(map[string]domain.Profile)
	skipped := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var profile domain.Profile
		if err := json.Unmarshal([]byte(line), &profile); err != nil || strings.TrimSpace(profile.ID) == "" {
			skipped++
			logger.With(logger.Fields{"line": lineNo}).Warn(ctx, "Skipping malformed profile record in %s", a.path)
			continue
		}
		// Later lines win for duplicate IDs.
		byID[profile.ID] = profile
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading profiles file: %w", err)
	}

	a.profiles = make([]domain.Profile, 0, len(byID))
	for _, p := range byID {
		a.profiles = append(a.profiles, p)
	}
	sort.Slice(a.profiles, func(i, j int) bool { return a.profiles[i].ID < a.profiles[j].ID })

	a.index = make(map[string]int, len(a.profiles))
	for i, p := range a.profiles {
		a.index[p.ID] = i
	}
	a.skipped = skipped

	logger.With(logger.Fields{"skipped": skipped}).
		WithCount(len(a.profiles)).
		Info(ctx, "Loaded profiles from %s", a.path)
	return nil
}

var _ source.BatchSource = (*Adapter)(nil)
