package services

import (
	"bytes"
	"context"
	"fmt"

	"social-autoreply-platform/internal/database"
	"social-autoreply-platform/internal/logger"
	"social-autoreply-platform/models"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	repliesSheetName = "Replies"
	maxExportRecords = 10000
)

// ExportService renders a tenant's reply records as a spreadsheet.
type ExportService struct {
	replies database.ReplyRepository
}

func NewExportService(replies database.ReplyRepository) *ExportService {
	return &ExportService{replies: replies}
}

// ExportReplies returns an xlsx workbook and the number of data rows in it.
func (es *ExportService) ExportReplies(ctx context.Context, tenantID primitive.ObjectID) ([]byte, int, error) {
	records, err := es.replies.ListReplies(ctx, tenantID, maxExportRecords)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list replies: %w", err)
	}

	data, err := es.renderExcel(records)
	if err != nil {
		return nil, 0, err
	}
	return data, len(records), nil
}

func (es *ExportService) renderExcel(records []models.ReplyRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	index, err := f.NewSheet(repliesSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headers := []string{"Comment ID", "Post ID", "Comment", "Reply", "Status", "Claimed At", "Replied At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(repliesSheetName, cell, header)
	}

	for rowIdx, rec := range records {
		row := rowIdx + 2
		repliedAt := ""
		if rec.RepliedAt != nil {
			repliedAt = rec.RepliedAt.Format("2006-01-02 15:04:05")
		}

		values := []interface{}{
			rec.CommentID,
			rec.PostID,
			rec.CommentText,
			rec.ReplyText,
			rec.Status,
			rec.ClaimedAt.Format("2006-01-02 15:04:05"),
			repliedAt,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(repliesSheetName, cell, v)
		}
	}

	f.SetColWidth(repliesSheetName, "A", "B", 22)
	f.SetColWidth(repliesSheetName, "C", "D", 60)
	f.SetColWidth(repliesSheetName, "E", "G", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
