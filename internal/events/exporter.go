package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sentra/authengine/internal/models"
	"github.com/sentra/authengine/pkg/logger"
)

// StartExporter runs a background goroutine that periodically ships new
// security event rows to object storage as NDJSON files.
func (s *Service) StartExporter(interval time.Duration) {
	if s.Storage == nil {
		logger.Info("event_exporter_disabled", map[string]interface{}{
			"reason": "no storage client configured",
		})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.export()
			case <-s.done:
				return
			}
		}
	}()

	logger.Info("event_exporter_started", map[string]interface{}{
		"interval": interval.String(),
	})
}

func (s *Service) export() {
	var cursor models.SecurityEventExportCursor
	err := s.DB.First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cursor = models.SecurityEventExportCursor{
				LastExportAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			}
			if createErr := s.DB.Create(&cursor).Error; createErr != nil {
				logger.Error("event_export_cursor_create_failed", createErr, nil)
				return
			}
		} else {
			logger.Error("event_export_cursor_load_failed", err, nil)
			return
		}
	}

	var rows []models.SecurityEvent
	if err := s.DB.Where("created_at > ?", cursor.LastExportAt).
		Order("created_at ASC").
		Limit(10000).
		Find(&rows).Error; err != nil {
		logger.Error("event_export_query_failed", err, nil)
		return
	}

	if len(rows) == 0 {
		return
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			logger.Error("event_export_encode_failed", err, map[string]interface{}{
				"event_id": row.ID.String(),
			})
			continue
		}
	}

	now := s.now().UTC()
	objectName := fmt.Sprintf("security-events/%s/%s.ndjson",
		now.Format("2006/01/02"),
		now.Format("15-04-05"),
	)

	if err := s.Storage.Upload(
		context.Background(),
		objectName,
		&buf,
		int64(buf.Len()),
		"application/x-ndjson",
	); err != nil {
		logger.Error("event_export_upload_failed", err, map[string]interface{}{
			"object_name": objectName,
			"count":       len(rows),
		})
		return
	}

	lastCreatedAt := rows[len(rows)-1].CreatedAt
	s.DB.Model(&cursor).Updates(map[string]interface{}{
		"last_export_at": lastCreatedAt,
		"exported_count": gorm.Expr("exported_count + ?", len(rows)),
	})

	logger.Info("event_export_success", map[string]interface{}{
		"object_name": objectName,
		"count":       len(rows),
	})
}
