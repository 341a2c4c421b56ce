package service

import (
	"context"
	"time"

	"github.com/punchcard-next/internal/models"
	"github.com/punchcard-next/internal/repository"

	"gorm.io/gorm"
)

// PunchEntry 一次打卡的流水输入
type PunchEntry struct {
	CardID      uint
	PunchCodeID uint
	PunchedBy   uint
	At          time.Time
}

// PunchLedger 打卡流水账本，集点进度的唯一来源
type PunchLedger struct {
	repo repository.PunchEventRepository
}

// NewPunchLedger 创建打卡账本
func NewPunchLedger(repo repository.PunchEventRepository) *PunchLedger {
	return &PunchLedger{repo: repo}
}

// WithTx 绑定事务
func (l *PunchLedger) WithTx(tx *gorm.DB) *PunchLedger {
	if tx == nil {
		return l
	}
	return &PunchLedger{repo: l.repo.WithTx(tx)}
}

// WithContext 绑定请求上下文
func (l *PunchLedger) WithContext(ctx context.Context) *PunchLedger {
	if ctx == nil {
		return l
	}
	return &PunchLedger{repo: l.repo.WithContext(ctx)}
}

// CountForCard 当前打卡次数
func (l *PunchLedger) CountForCard(cardID uint) (int, error) {
	total, err := l.repo.CountByCard(cardID)
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

// CountForCards 批量统计打卡次数，缺失的卡片计为 0
func (l *PunchLedger) CountForCards(cardIDs []uint) (map[uint]int, error) {
	totals, err := l.repo.CountByCards(cardIDs)
	if err != nil {
		return nil, err
	}
	result := make(map[uint]int, len(cardIDs))
	for _, id := range cardIDs {
		result[id] = int(totals[id])
	}
	return result, nil
}

// Append 追加一条打卡流水
func (l *PunchLedger) Append(entry PunchEntry) (*models.PunchEvent, error) {
	if entry.CardID == 0 {
		return nil, ErrCardInvalid
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	event := &models.PunchEvent{
		CardID:    entry.CardID,
		CreatedAt: at,
	}
	if entry.PunchCodeID > 0 {
		codeID := entry.PunchCodeID
		event.PunchCodeID = &codeID
	}
	if entry.PunchedBy > 0 {
		punchedBy := entry.PunchedBy
		event.PunchedBy = &punchedBy
	}
	if err := l.repo.Append(event); err != nil {
		return nil, err
	}
	return event, nil
}

// History 按时间顺序返回打卡流水
func (l *PunchLedger) History(cardID uint, limit int) ([]models.PunchEvent, error) {
	return l.repo.ListByCard(cardID, limit)
}
