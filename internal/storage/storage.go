package storage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome resultado de un envío reclamado
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeUnknown Outcome = "unknown"
)

// Entry registro de un envío ya reclamado (feedback_sent = true)
type Entry struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"dr_number"`
	Recipient   string    `json:"recipient"`
	Message     string    `json:"message"`
	Outcome     Outcome   `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	ClaimedAt   time.Time `json:"claimed_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Storage guarda un archivo JSON por envío dentro de la carpeta del destinatario.
// Los envíos fallidos o inciertos quedan aquí para seguimiento manual.
type Storage struct {
	basePath string
	mu       sync.Mutex
}

// New crea una nueva instancia de Storage
func New(basePath string) (*Storage, error) {
	// Crear directorio base si no existe
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}

	return &Storage{
		basePath: basePath,
	}, nil
}

// SaveEntry guarda el registro del envío. Un envío por evaluación: si existe, se sobrescribe.
func (s *Storage) SaveEntry(entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	recipientPath := s.getRecipientPath(entry.Recipient)
	if err := os.MkdirAll(recipientPath, 0755); err != nil {
		return fmt.Errorf("error creando carpeta de recipient: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializando envío: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Escritura atómica: archivo temporal + rename
	filePath := filepath.Join(recipientPath, s.getFileName(entry.Identifier))
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("error escribiendo envío %s: %w", entry.Identifier, err)
	}
	return os.Rename(tmpPath, filePath)
}

// GetEntry carga el registro de envío de una evaluación
func (s *Storage) GetEntry(identifier, recipient string) (*Entry, error) {
	filePath := filepath.Join(s.getRecipientPath(recipient), s.getFileName(identifier))

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetAllEntries obtiene todos los envíos registrados, del más reciente al más antiguo
func (s *Storage) GetAllEntries() ([]*Entry, error) {
	var entries []*Entry

	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(info.Name(), ".json") {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				return fmt.Errorf("registro inválido %s: %w", path, err)
			}

			entries = append(entries, &entry)
		}

		return nil
	})

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ClaimedAt.Equal(entries[j].ClaimedAt) {
			return entries[i].Identifier < entries[j].Identifier
		}
		return entries[i].ClaimedAt.After(entries[j].ClaimedAt)
	})

	return entries, err
}

// GetFollowUps envíos reclamados que no se confirmaron (fallidos o inciertos)
func (s *Storage) GetFollowUps() ([]*Entry, error) {
	all, err := s.GetAllEntries()
	if err != nil {
		return nil, err
	}

	var pending []*Entry
	for _, entry := range all {
		if entry.Outcome != OutcomeSent {
			pending = append(pending, entry)
		}
	}
	return pending, nil
}

// getFileName genera el nombre del archivo para una evaluación
func (s *Storage) getFileName(identifier string) string {
	return sanitize(identifier) + ".json"
}

// getRecipientPath genera la ruta de carpeta para un destinatario
func (s *Storage) getRecipientPath(recipient string) string {
	if recipient == "" {
		recipient = "default"
	}
	return filepath.Join(s.basePath, sanitize(recipient))
}

// sanitize codifica el nombre como un segmento de ruta reversible: nombres distintos
// nunca comparten archivo y "/", "." o ":" no pueden salir de la carpeta base
func sanitize(name string) string {
	return strings.NewReplacer(".", "%2E", ":", "%3A").Replace(url.PathEscape(name))
}
