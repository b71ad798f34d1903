package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Session owns the state of one multi-attachment upload flow: the memoized
// provisional product id, the set of filenames currently in flight and the
// attachments the server has acknowledged. It is an explicit value passed
// into each call; nothing here is ambient or shared between flows.
type Session struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger

	progress ProgressFunc

	mu        sync.Mutex
	productID string
	cleanup   string
	selected  map[string]struct{}
	pending   map[string]struct{}
	completed []Attachment
}

// File is one candidate upload. Open must return a fresh reader per call.
type File struct {
	Name     string
	Size     int64
	MimeType string
	ModTime  time.Time
	Open     func() (io.ReadCloser, error)
}

// Attachment mirrors the server's acknowledged attachment record.
type Attachment struct {
	ID           string `json:"id"`
	Category     string `json:"category"`
	FileName     string `json:"fileName"`
	OriginalName string `json:"originalName"`
	SizeBytes    int64  `json:"sizeBytes"`
	MimeType     string `json:"mimeType"`
	Sort         int    `json:"sort"`
	URL          string `json:"url"`
}

// Result reports one file's outcome. Failures are isolated per file; one
// failed upload never aborts its siblings.
type Result struct {
	Name       string
	Attachment Attachment
	Skipped    bool
	Err        error
}

type ProgressFunc func(name string, sentBytes, totalBytes int64)

type Option func(*Session)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

func WithProgress(fn ProgressFunc) Option {
	return func(s *Session) { s.progress = fn }
}

func New(client *http.Client, baseURL string, opts ...Option) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	s := &Session{
		client:   client,
		baseURL:  baseURL,
		log:      zerolog.Nop(),
		selected: make(map[string]struct{}),
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ProductID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productID
}

func (s *Session) Completed() []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Attachment, len(s.completed))
	copy(out, s.completed)
	return out
}

// AddFiles uploads the genuinely new entries of a selection batch
// concurrently. Entries already selected, completed or mid-flight are
// skipped, so re-selecting the same file object triggers no second network
// call.
func (s *Session) AddFiles(ctx context.Context, category string, files []File) []Result {
	type indexed struct {
		idx  int
		file File
		sort int
	}

	results := make([]Result, len(files))
	var toUpload []indexed

	s.mu.Lock()
	for i, file := range files {
		results[i].Name = file.Name

		key := selectionKey(file)
		if _, seen := s.selected[key]; seen {
			results[i].Skipped = true
			continue
		}
		s.selected[key] = struct{}{}

		if s.isCompletedLocked(file) {
			results[i].Skipped = true
			continue
		}
		if _, inFlight := s.pending[file.Name]; inFlight {
			results[i].Skipped = true
			continue
		}
		s.pending[file.Name] = struct{}{}

		// Sort is a pre-upload snapshot of the completed count for the
		// category. Two in-flight uploads can receive colliding values;
		// first-come ordering, not reconciled after the fact.
		toUpload = append(toUpload, indexed{
			idx:  i,
			file: file,
			sort: s.countCompletedLocked(category) + len(toUpload),
		})
	}
	s.mu.Unlock()

	if len(toUpload) == 0 {
		return results
	}

	if err := s.ensureProduct(ctx); err != nil {
		s.mu.Lock()
		for _, entry := range toUpload {
			delete(s.pending, entry.file.Name)
			results[entry.idx].Err = err
		}
		s.mu.Unlock()
		return results
	}

	var wg sync.WaitGroup
	for _, entry := range toUpload {
		wg.Add(1)
		go func(entry indexed) {
			defer wg.Done()

			attachment, err := s.uploadOne(ctx, category, entry.file, entry.sort)

			s.mu.Lock()
			delete(s.pending, entry.file.Name)
			if err == nil {
				s.completed = append(s.completed, attachment)
			}
			s.mu.Unlock()

			if err != nil {
				s.log.Warn().Err(err).Str("file", entry.file.Name).Msg("upload failed")
				results[entry.idx].Err = err
				return
			}
			results[entry.idx].Attachment = attachment
		}(entry)
	}
	wg.Wait()

	return results
}

// Abandon sends the best-effort cleanup beacon for an unfinalized flow.
// Bounded by a short timeout; the returned error is for logging only and
// the main flow never depends on it.
func (s *Session) Abandon(ctx context.Context) error {
	s.mu.Lock()
	productID := s.productID
	credential := s.cleanup
	selected := len(s.selected)
	s.mu.Unlock()

	if productID == "" || selected == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"token": credential})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/products/%s/cleanup", s.baseURL, productID),
		bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("cleanup beacon: status %d", resp.StatusCode)
	}
	return nil
}

// ensureProduct lazily creates the provisional product exactly once; later
// uploads reuse the memoized id.
func (s *Session) ensureProduct(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.productID != "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/api/v1/products", bytes.NewReader([]byte("{}")))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("create product: status %d", resp.StatusCode)
	}

	var created struct {
		ID           string `json:"id"`
		CleanupToken string `json:"cleanupToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return fmt.Errorf("decode create response: %w", err)
	}

	s.productID = created.ID
	s.cleanup = created.CleanupToken
	return nil
}

func (s *Session) uploadOne(ctx context.Context, category string, file File, sort int) (Attachment, error) {
	reader, err := file.Open()
	if err != nil {
		return Attachment{}, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer reader.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return Attachment{}, err
	}
	if _, err := io.Copy(part, reader); err != nil {
		return Attachment{}, fmt.Errorf("read %s: %w", file.Name, err)
	}
	if err := writer.WriteField("sort", strconv.Itoa(sort)); err != nil {
		return Attachment{}, err
	}
	if err := writer.Close(); err != nil {
		return Attachment{}, err
	}

	total := int64(body.Len())
	var payload io.Reader = &body
	if s.progress != nil {
		payload = &progressReader{
			inner: &body,
			total: total,
			name:  file.Name,
			fn:    s.progress,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/products/%s/%s", s.baseURL, s.ProductID(), category),
		payload)
	if err != nil {
		return Attachment{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.ContentLength = total

	resp, err := s.client.Do(req)
	if err != nil {
		return Attachment{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Attachment{}, fmt.Errorf("upload %s: status %d: %s", file.Name, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var acked struct {
		Attachment Attachment `json:"attachment"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&acked); err != nil {
		return Attachment{}, fmt.Errorf("decode upload response: %w", err)
	}
	return acked.Attachment, nil
}

// isCompletedLocked matches by filename first, then by size+mime as the
// heuristic for renamed-but-identical files.
func (s *Session) isCompletedLocked(file File) bool {
	for _, done := range s.completed {
		if done.OriginalName == file.Name {
			return true
		}
		if done.SizeBytes == file.Size && done.MimeType == file.MimeType {
			return true
		}
	}
	return false
}

func (s *Session) countCompletedLocked(category string) int {
	count := 0
	for _, done := range s.completed {
		if done.Category == category {
			count++
		}
	}
	return count
}

func selectionKey(file File) string {
	return fmt.Sprintf("%s|%d|%s|%d", file.Name, file.Size, file.MimeType, file.ModTime.UnixNano())
}

type progressReader struct {
	inner io.Reader
	total int64
	sent  int64
	name  string
	fn    ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		r.sent += int64(n)
		r.fn(r.name, r.sent, r.total)
	}
	return n, err
}
