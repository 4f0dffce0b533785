package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"
	"gitlab.com/trawler/trawl"
)

// CrashUploadTimeout bounds the best effort upload of a crash report
const CrashUploadTimeout = 2 * time.Second

// Crash is the incident sent to the crash endpoint
type Crash struct {
	ID      string `json:"id"`
	Module  string `json:"module"`
	Method  string `json:"method"`
	URL     string `json:"url"`
	Error   string `json:"error"`
	Stack   string `json:"stack"`
	Created string `json:"created"`
}

// CrashReporter logs module panics and optionally uploads them
type CrashReporter struct {
	endpoint string
	client   *http.Client
}

// NewCrashReporter uploading to endpoint, empty disables uploads
func NewCrashReporter(endpoint string) *CrashReporter {
	return &CrashReporter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: CrashUploadTimeout},
	}
}

// Report a recovered panic and return the incident id
func (c *CrashReporter) Report(ctx context.Context, module string, req *trawl.Request, recovered interface{}) string {
	crash := &Crash{
		ID:      uuid.NewV4().String(),
		Module:  module,
		Method:  req.Method,
		URL:     req.URL,
		Error:   fmt.Sprintf("%v", recovered),
		Stack:   string(debug.Stack()),
		Created: time.Now().UTC().Format(time.RFC3339),
	}
	log.Error().
		Str("crash_id", crash.ID).
		Str("module", module).
		Str("url", req.URL).
		Str("error", crash.Error).
		Str("stack", crash.Stack).
		Msg("module crashed, resource skipped")

	if c == nil || c.endpoint == "" {
		return crash.ID
	}
	if err := c.upload(ctx, crash); err != nil {
		log.Debug().Err(err).Str("crash_id", crash.ID).Msg("crash report upload failed")
	}
	return crash.ID
}

func (c *CrashReporter) upload(ctx context.Context, crash *Crash) error {
	body, err := json.Marshal(crash)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CrashUploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("crash endpoint returned %d", resp.StatusCode)
	}
	return nil
}
