// Пакет docstore — файловое хранилище текстовых артефактов отчётов.
// Артефакты адресуются непрозрачной ссылкой (имя файла внутри каталога).
package docstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound — артефакт не найден.
var ErrNotFound = errors.New("артефакт не найден")

// Store — хранилище документов на локальной файловой системе.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New создаёт хранилище документов. Каталог создаётся при необходимости.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With(slog.String("component", "docstore")),
	}, nil
}

// resolve превращает ссылку в путь внутри каталога хранилища.
// Ссылки с выходом за пределы каталога отклоняются.
func (s *Store) resolve(ref string) (string, error) {
	clean := filepath.Clean(ref)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("недопустимая ссылка на артефакт: %q", ref)
	}
	return filepath.Join(s.dir, clean), nil
}

// Save сохраняет текст документа и возвращает ссылку на артефакт.
func (s *Store) Save(ref, content string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("ошибка записи артефакта %s: %w", ref, err)
	}
	s.logger.Debug("Артефакт сохранён", slog.String("ref", ref))
	return nil
}

// Read возвращает текст документа по ссылке.
func (s *Store) Read(ref string) (string, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка чтения артефакта %s: %w", ref, err)
	}
	return string(data), nil
}

// Remove удаляет артефакт. Отсутствие артефакта — не ошибка.
func (s *Store) Remove(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления артефакта %s: %w", ref, err)
	}
	return nil
}
