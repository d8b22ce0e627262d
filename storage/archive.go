package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Archiver сохраняет JSON снимки (отчеты медика, журналы завершенных вето) для аудита.
type Archiver interface {
	ArchiveBracketReport(ctx context.Context, tournamentID int, report any) (string, error)
	ArchiveVetoLog(ctx context.Context, sessionID int, state any) (string, error)
	DropVetoLog(ctx context.Context, sessionID int) error
}

type uploaderArchiver struct {
	uploader FileUploader
	now      func() time.Time
}

func NewArchiver(uploader FileUploader) Archiver {
	return &uploaderArchiver{uploader: uploader, now: time.Now}
}

func BracketReportKey(tournamentID int, at time.Time) string {
	return fmt.Sprintf("reports/tournaments/%d/%s.json", tournamentID, at.UTC().Format("20060102T150405Z"))
}

func VetoLogKey(sessionID int) string {
	return fmt.Sprintf("veto/sessions/%d.json", sessionID)
}

func (a *uploaderArchiver) ArchiveBracketReport(ctx context.Context, tournamentID int, report any) (string, error) {
	return a.put(ctx, BracketReportKey(tournamentID, a.now()), report)
}

func (a *uploaderArchiver) ArchiveVetoLog(ctx context.Context, sessionID int, state any) (string, error) {
	return a.put(ctx, VetoLogKey(sessionID), state)
}

func (a *uploaderArchiver) DropVetoLog(ctx context.Context, sessionID int) error {
	return a.uploader.Delete(ctx, VetoLogKey(sessionID))
}

func (a *uploaderArchiver) put(ctx context.Context, key string, doc any) (string, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode archive document %s: %w", key, err)
	}
	res, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return res.Key, nil
}

type noopArchiver struct{}

// NewNoopArchiver используется, когда бакет не задан.
func NewNoopArchiver() Archiver {
	return noopArchiver{}
}

func (noopArchiver) ArchiveBracketReport(context.Context, int, any) (string, error) { return "", nil }
func (noopArchiver) ArchiveVetoLog(context.Context, int, any) (string, error)       { return "", nil }
func (noopArchiver) DropVetoLog(context.Context, int) error                           { return nil }
