package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"archivesyncd/internal/download"
	"github.com/rs/zerolog"
)

// HTTPAdapter is a thin HTTP-based Sink Adapter implementation. The concrete
// wire format of sink-platform uploads is out of scope per spec.md §1; this
// models the contract ("send an ordered group of local files with a caption
// and receive back message ids") as a multipart POST to a configurable
// archive-bot endpoint, so a real network path can be exercised in
// cmd/syncd's health:check without depending on a specific messaging SDK.
//
// Grounded on internal/webhooks/svix_client.go's shape: a struct wrapping an
// HTTP-facing client and a compile-time interface assertion. NewHTTPAdapter
// does not validate baseURL; a bad URL surfaces on the first request.
type HTTPAdapter struct {
	httpClient    *http.Client
	baseURL       string
	apiID         string
	apiHash       string
	stringSession string
	logger        zerolog.Logger
}

var _ Adapter = (*HTTPAdapter)(nil)

// NewHTTPAdapter constructs an HTTPAdapter. baseURL is the archive-bot
// endpoint root; apiID/apiHash are the sink credentials (spec.md §6's
// SINK_API_ID/SINK_API_HASH), carried as bearer-style authentication on
// every request. stringSession (SINK_STRING_SESSION) identifies the
// already-authenticated sink session the archive-bot endpoint is expected
// to hold open; interactive bootstrap of that session is out of scope
// (spec.md §1, the auth:telegram command).
func NewHTTPAdapter(baseURL, apiID, apiHash, stringSession string, logger zerolog.Logger) *HTTPAdapter {
	return &HTTPAdapter{
		httpClient:    &http.Client{},
		baseURL:       baseURL,
		apiID:         apiID,
		apiHash:       apiHash,
		stringSession: stringSession,
		logger:        logger.With().Str("component", "sink").Logger(),
	}
}

type sendGroupResponse struct {
	MessageIDs []string `json:"message_ids"`
}

func (h *HTTPAdapter) SendMediaGroup(ctx context.Context, p MediaGroupParams) (MediaGroupResult, error) {
	groups := groupFiles(p.Files)
	var allIDs []string
	for i, group := range groups {
		ids, err := h.sendGroup(ctx, caption(p, i), group)
		if err != nil {
			return MediaGroupResult{}, fmt.Errorf("send media group %d/%d: %w", i+1, len(groups), err)
		}
		allIDs = append(allIDs, ids...)
	}
	return MediaGroupResult{MessageIDs: allIDs}, nil
}

// sendGroup POSTs one group of at most maxGroupSize files, plus the caption,
// as a multipart/form-data body, and decodes the message ids the archive-bot
// endpoint hands back in order.
func (h *HTTPAdapter) sendGroup(ctx context.Context, caption string, group []download.LocalFile) ([]string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("caption", caption); err != nil {
		return nil, fmt.Errorf("write caption field: %w", err)
	}

	for _, file := range group {
		f, err := openFile(file.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", file.Path, err)
		}
		err = writeMultipartFile(w, "files", filepath.Base(file.Path), f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", file.Path, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/sendMediaGroup", &body)
	if err != nil {
		return nil, fmt.Errorf("build send-media-group request: %w", err)
	}
	h.setAuth(req)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send media group: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("send media group: unexpected status %d", resp.StatusCode)
	}

	var parsed sendGroupResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode send-media-group response: %w", err)
	}
	return parsed.MessageIDs, nil
}

func (h *HTTPAdapter) SendText(ctx context.Context, message string) error {
	body, _ := json.Marshal(map[string]string{"text": message})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/sendText", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send-text request: %w", err)
	}
	h.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send text: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (h *HTTPAdapter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health check request: %w", err)
	}
	h.setAuth(req)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sink health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sink health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (h *HTTPAdapter) Disconnect() error {
	h.httpClient.CloseIdleConnections()
	return nil
}

func (h *HTTPAdapter) setAuth(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s:%s", h.apiID, h.apiHash))
	req.Header.Set("X-Sink-Session", h.stringSession)
}

func openFile(path string) (*os.File, error) {
	return os.Open(path)
}

func writeMultipartFile(w *multipart.Writer, fieldName, filename string, r io.Reader) error {
	part, err := w.CreateFormFile(fieldName, filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}
