/*
Copyright 2025 QuickApiMapper Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
	"github.com/JerrettDavis/QuickApiMapper-sub001/database"
	storagemonitor "github.com/JerrettDavis/QuickApiMapper-sub001/internal/storage-monitor"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/tokenization"
	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// Redactor replaces configured JSON fields with format-preserving tokens
// before a capture leaves the process.
type Redactor struct {
	paths     []string
	tokenizer *tokenization.TokenizationService
}

func NewRedactor(conf *config.Configuration) *Redactor {
	return &Redactor{
		paths:     conf.Capture.RedactFields,
		tokenizer: tokenization.NewTokenizationService(tokenization.DeriveKey(conf.Server.SecretKey)),
	}
}

// Redact tokenizes each configured path present in the payload. Non-JSON
// payloads and paths that match nothing pass through untouched.
func (r *Redactor) Redact(payload string) string {
	if len(r.paths) == 0 || payload == "" {
		return payload
	}
	for _, path := range r.paths {
		jp := jsonPath(path)
		value := gjson.Get(payload, jp)
		if !value.Exists() {
			continue
		}
		token, err := r.tokenizer.TokenizeWithMode(value.String(), tokenization.FormatPreservingMode)
		if err != nil {
			logrus.Warnf("redacting %s failed: %v", path, err)
			continue
		}
		redacted, err := sjson.Set(payload, jp, token)
		if err != nil {
			logrus.Warnf("redacting %s failed: %v", path, err)
			continue
		}
		payload = redacted
	}
	return payload
}

// CaptureService persists a snapshot of every mapping run for inspection and
// search. The database row is the primary copy, the spool file the fallback
// when no database is wired, and the index task makes captures searchable.
type CaptureService struct {
	conf     *config.Configuration
	ds       database.IDataSource
	queue    *Queue
	redactor *Redactor
	monitor  *storagemonitor.Monitor
	limitHit atomic.Bool
}

// NewCaptureService wires a capture service. The datasource may be nil when
// mappings come from files; captures then land in the spool directory.
func NewCaptureService(conf *config.Configuration, ds database.IDataSource, queue *Queue) *CaptureService {
	s := &CaptureService{
		conf:     conf,
		ds:       ds,
		queue:    queue,
		redactor: NewRedactor(conf),
	}
	if conf.Capture.SpoolDir != "" {
		s.monitor = storagemonitor.NewMonitor(conf.Capture.SpoolDir, conf.Capture.DiskLimitPercent, time.Minute)
	}
	return s
}

// Start runs the disk monitor for the capture spool until the context ends.
func (s *CaptureService) Start(ctx context.Context) {
	if s.monitor == nil {
		return
	}
	events := s.monitor.Broker.Subscribe()
	go s.monitor.Start(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-events:
				s.limitHit.Store(true)
				logrus.Warnf("capture spooling paused: %s", event.Message)
			}
		}
	}()
}

func (s *CaptureService) enabled() bool {
	return s.conf.Capture.Enabled == nil || *s.conf.Capture.Enabled
}

// spoolAllowed rechecks disk usage once the limit flag is set, so spooling
// resumes on its own after an operator frees space.
func (s *CaptureService) spoolAllowed() bool {
	if s.monitor == nil {
		return true
	}
	if !s.limitHit.Load() {
		return true
	}
	_, over, err := s.monitor.CheckOnce()
	if err != nil || over {
		return false
	}
	s.limitHit.Store(false)
	return true
}

// Record stores one capture. Failures here never fail the mapping run that
// produced the capture; the pipeline only logs the returned error.
func (s *CaptureService) Record(ctx context.Context, capture *model.MessageCapture) error {
	if !s.enabled() {
		return nil
	}

	capture.SourcePayload = s.redactor.Redact(capture.SourcePayload)
	capture.MappedPayload = s.redactor.Redact(capture.MappedPayload)

	var stored bool
	if s.ds != nil {
		if _, err := s.ds.RecordCapture(ctx, capture); err != nil {
			logrus.Errorf("ERROR saving capture to db. %s", err)
		} else {
			stored = true
		}
	}
	if !stored && s.conf.Capture.SpoolDir != "" {
		if !s.spoolAllowed() {
			return fmt.Errorf("capture spool paused: disk usage above %.0f%%", s.conf.Capture.DiskLimitPercent)
		}
		if err := s.spool(capture); err != nil {
			logrus.Errorf("ERROR spooling capture. %s", err)
			return err
		}
	}

	if s.queue != nil {
		if err := s.queue.queueIndexData(capture.CaptureID, "captures", capture); err != nil {
			logrus.Errorf("ERROR indexing capture. %s", err)
		}
	}
	return nil
}

func (s *CaptureService) spool(capture *model.MessageCapture) error {
	if err := os.MkdirAll(s.conf.Capture.SpoolDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(capture, "", "  ")
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s.json", capture.CreatedAt.UTC().Format("20060102T150405"), capture.CaptureID)
	return os.WriteFile(filepath.Join(s.conf.Capture.SpoolDir, name), data, 0o644)
}

// Prune deletes stored captures older than the retention window and returns
// how many rows went away.
func (s *CaptureService) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s.ds == nil {
		return 0, nil
	}
	return s.ds.DeleteCapturesBefore(ctx, time.Now().Add(-olderThan))
}
