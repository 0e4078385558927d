package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"interview-proctor/internal/protocol"
)

// FileArchive сохраняет отчеты как JSON файлы report_<session>.json
type FileArchive struct {
	dir string
}

func NewFileArchive(dir string) *FileArchive {
	if dir == "" {
		dir = "results"
	}
	return &FileArchive{dir: dir}
}

func reportName(sessionID string) string {
	return fmt.Sprintf("report_%s.json", sessionID)
}

// SaveResult сохраняет результат интервью в JSON файл
func (a *FileArchive) SaveResult(ctx context.Context, result *protocol.Result) error {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return fmt.Errorf("ошибка создания директории %s: %w", a.dir, err)
	}

	path := filepath.Join(a.dir, reportName(filepath.Base(result.SessionID)))

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации результата: %w", err)
	}

	// запись через временный файл, чтобы читатель не увидел половину отчета
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("ошибка записи файла %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("ошибка записи файла %s: %w", path, err)
	}
	return nil
}

// LoadResult загружает результат интервью из JSON файла
func (a *FileArchive) LoadResult(sessionID string) (*protocol.Result, error) {
	path := filepath.Join(a.dir, reportName(filepath.Base(sessionID)))

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}

	var result protocol.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("ошибка десериализации JSON: %w", err)
	}
	return &result, nil
}

// ListResults возвращает id сессий всех сохраненных отчетов
func (a *FileArchive) ListResults() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", a.dir, err)
	}

	results := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "report_") || filepath.Ext(name) != ".json" {
			continue
		}
		results = append(results, strings.TrimSuffix(strings.TrimPrefix(name, "report_"), ".json"))
	}
	return results, nil
}

// MultiArchive сохраняет отчет во все архивы и собирает ошибки
type MultiArchive []Archive

func (m MultiArchive) SaveResult(ctx context.Context, result *protocol.Result) error {
	var errs []error
	for _, a := range m {
		if err := a.SaveResult(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
