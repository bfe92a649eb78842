package services

import (
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/pkg/logger"
)

const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// AuditLogger writes system_logs rows. A nil *AuditLogger discards entries.
type AuditLogger struct {
	db *gorm.DB
}

func NewAuditLogger(db *gorm.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

func (a *AuditLogger) Info(module, action, message string, userID *uint, client ClientInfo, extra interface{}) {
	a.write(LogLevelInfo, module, action, message, userID, client, extra)
}

func (a *AuditLogger) Warning(module, action, message string, userID *uint, client ClientInfo, extra interface{}) {
	a.write(LogLevelWarning, module, action, message, userID, client, extra)
}

func (a *AuditLogger) Error(module, action, message string, userID *uint, client ClientInfo, extra interface{}) {
	a.write(LogLevelError, module, action, message, userID, client, extra)
}

func (a *AuditLogger) write(level, module, action, message string, userID *uint, client ClientInfo, extra interface{}) {
	if a == nil || a.db == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    userID,
		IP:        client.IP,
		UserAgent: truncate(client.UserAgent, 500),
		RequestID: client.RequestID,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := a.db.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("failed to write system log")
	}
}

type SystemLogService struct {
	db        *gorm.DB
	configSvc *SystemConfigService
	cron      *cron.Cron
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{
		db:        db,
		configSvc: NewSystemConfigService(db),
	}
}

type SystemLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	UserID    uint   `form:"user_id"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*Page[models.SystemLog], error) {
	query := s.db.Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.UserID != 0 {
		query = query.Where("user_id = ?", req.UserID)
	}
	if start, err := time.Parse(time.DateOnly, req.StartDate); err == nil {
		query = query.Where("created_at >= ?", start)
	}
	if end, err := time.Parse(time.DateOnly, req.EndDate); err == nil {
		query = query.Where("created_at < ?", end.AddDate(0, 0, 1))
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	return Paginate[models.SystemLog](query.Order("created_at DESC, id DESC"), PageRequest{Page: req.Page, PageSize: req.PageSize})
}

// CleanupOldLogs deletes logs older than retentionDays and returns the number removed.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoffTime).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// GetRetentionDays reads log_retention_days, defaulting to 30. Zero disables cleanup.
func (s *SystemLogService) GetRetentionDays() int {
	value, err := s.configSvc.Get("log_retention_days")
	if err != nil {
		return 30
	}
	days, err := parseNonNegativeInt(value)
	if err != nil {
		return 30
	}
	return days
}

// StartCleanupScheduler runs the retention cleanup once now and then daily at 03:00.
func (s *SystemLogService) StartCleanupScheduler() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("0 3 * * *", s.runCleanup); err != nil {
		return err
	}
	s.cron.Start()

	go s.runCleanup()
	logger.Infof("[SystemLog] Cleanup scheduler started")
	return nil
}

// StopCleanupScheduler waits for a running cleanup to finish.
func (s *SystemLogService) StopCleanupScheduler() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *SystemLogService) runCleanup() {
	retentionDays := s.GetRetentionDays()
	if retentionDays <= 0 {
		logger.Infof("[SystemLog] Log cleanup disabled (retention_days <= 0)")
		return
	}

	deleted, err := s.CleanupOldLogs(retentionDays)
	if err != nil {
		logger.Errorf("[SystemLog] Failed to cleanup old logs: %v", err)
		return
	}

	if deleted > 0 {
		logger.Infof("[SystemLog] Cleaned up %d logs older than %d days", deleted, retentionDays)
	}
}
