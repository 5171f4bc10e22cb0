// Package events records security events asynchronously. Recording is
// fire-and-forget from the caller's perspective: a full queue or a failed
// insert is logged and dropped, never surfaced to the authentication path.
package events

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/metrics"
	"github.com/sentra/authengine/internal/models"
	"github.com/sentra/authengine/internal/storage"
	"github.com/sentra/authengine/pkg/logger"
)

// Entry is the caller-facing shape of a security event.
type Entry struct {
	Identity  string
	EventKind string
	Method    string
	RiskScore *float64
	Metadata  map[string]interface{}
}

type Service struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient

	queue     chan models.SecurityEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	now       func() time.Time
}

func NewService(db *gorm.DB, storageClient *storage.MinIOClient, queueSize int) *Service {
	s := &Service{
		DB:      db,
		Storage: storageClient,
		queue:   make(chan models.SecurityEvent, queueSize),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	s.wg.Add(1)
	go s.processQueue()
	return s
}

// RecordAsync enqueues the event for background insertion. A full queue
// drops the event with a warning, and so does a call after Close.
func (s *Service) RecordAsync(entry Entry) {
	select {
	case <-s.done:
		logger.Warn("security_event_after_close", map[string]interface{}{
			"event_kind": entry.EventKind,
			"dropped":    true,
		})
		return
	default:
	}

	row := models.SecurityEvent{
		Identity:  entry.Identity,
		EventKind: entry.EventKind,
		Method:    entry.Method,
		RiskScore: entry.RiskScore,
		Metadata:  entry.Metadata,
		CreatedAt: s.now().UTC(),
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("security_event_queue_full", map[string]interface{}{
			"event_kind": entry.EventKind,
			"dropped":    true,
		})
	}
}

// Close stops accepting events, stops the exporter if one is running, and
// waits for already queued events to drain. The queue channel itself is
// never closed, so a RecordAsync racing Close cannot panic.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

func (s *Service) processQueue() {
	defer s.wg.Done()
	for {
		select {
		case row := <-s.queue:
			s.insert(row)
		case <-s.done:
			for {
				select {
				case row := <-s.queue:
					s.insert(row)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) insert(row models.SecurityEvent) {
	if err := s.DB.Create(&row).Error; err != nil {
		logger.Error("security_event_insert_failed", err, map[string]interface{}{
			"event_kind": row.EventKind,
		})
		return
	}
	metrics.RecordSecurityEvent(row.EventKind)
}
