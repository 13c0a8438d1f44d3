// Package session хранит сессию пользователя клиента: токен, имя и роль.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mmeshcher/food-ordering-system/internal/model"
)

var ErrNoSession = errors.New("no active session")

// Session хранит данные вошедшего пользователя.
type Session struct {
	Token    string     `json:"token"`
	UserID   string     `json:"userId"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
}

// FromAuthResult строит сессию из ответа на вход или регистрацию.
func FromAuthResult(res *model.AuthResult) Session {
	return Session{
		Token:    res.Token,
		UserID:   res.User.ID,
		Username: res.User.Username,
		Role:     res.User.Role,
	}
}

// FileStore хранит сессию в JSON-файле.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load читает сессию. Отсутствие файла означает ErrNoSession.
func (s *FileStore) Load() (Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if sess.Token == "" {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (s *FileStore) Save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Store сохраняет и загружает сессию.
type Store interface {
	Load() (Session, error)
	Save(Session) error
	Delete() error
}

// Manager держит текущую сессию в памяти и синхронизирует её с хранилищем.
// Передаётся явно в API-клиент и в сценарий оформления заказа.
type Manager struct {
	store Store

	mu      sync.RWMutex
	current *Session
}

// NewManager создаёт менеджер и восстанавливает сохранённую сессию, если она есть.
func NewManager(store Store) (*Manager, error) {
	m := &Manager{store: store}

	sess, err := store.Load()
	switch {
	case errors.Is(err, ErrNoSession):
	case err != nil:
		return m, err
	default:
		m.current = &sess
	}
	return m, nil
}

// Current возвращает текущую сессию.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// Set делает сессию текущей и сохраняет её.
func (m *Manager) Set(sess Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(sess); err != nil {
		return err
	}
	m.current = &sess
	return nil
}

// Clear завершает сессию.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	return m.store.Delete()
}

// Token возвращает токен текущей сессии или пустую строку.
func (m *Manager) Token() string {
	sess, _ := m.Current()
	return sess.Token
}

// Role возвращает роль текущего пользователя или пустую роль без сессии.
func (m *Manager) Role() model.Role {
	sess, _ := m.Current()
	return sess.Role
}
