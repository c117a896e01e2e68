// Package accounts persists linked official-account credentials: global named
// configurations managed over the admin channel and CLI, and per-user accounts
// bound from chat. One YAML file, rewritten atomically on every mutation.
package accounts

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sup-lh/wechat-tool/internal/fsstore"
	"gopkg.in/yaml.v3"
)

// Account holds one official account's credentials. Token is only set for
// named configurations that also serve the message listener.
type Account struct {
	AppID  string `yaml:"appid"`
	Secret string `yaml:"secret"`
	Token  string `yaml:"token,omitempty"`
}

type storeFile struct {
	Named map[string]Account            `yaml:"named,omitempty"`
	Users map[string]map[string]Account `yaml:"users,omitempty"`
}

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: strings.TrimSpace(path)}
}

func (s *Store) SaveNamed(name string, account Account) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("config name is required")
	}
	if account.AppID == "" || account.Secret == "" {
		return fmt.Errorf("appid and secret are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.loadLocked()
	if err != nil {
		return err
	}
	if file.Named == nil {
		file.Named = make(map[string]Account)
	}
	file.Named[name] = account
	return s.saveLocked(file)
}

func (s *Store) GetNamed(name string) (Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.loadLocked()
	if err != nil {
		return Account{}, false, err
	}
	account, ok := file.Named[strings.TrimSpace(name)]
	return account, ok, nil
}

// ListNamed returns configuration names in sorted order.
func (s *Store) ListNamed() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(file.Named))
	for name := range file.Named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) DeleteNamed(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	name = strings.TrimSpace(name)
	if _, ok := file.Named[name]; !ok {
		return false, nil
	}
	delete(file.Named, name)
	return true, s.saveLocked(file)
}

// SaveUser binds an account under the user's chosen nickname. Re-binding the
// same nickname overwrites.
func (s *Store) SaveUser(userID string, nickname string, account Account) error {
	userID = strings.TrimSpace(userID)
	nickname = strings.TrimSpace(nickname)
	if userID == "" || nickname == "" {
		return fmt.Errorf("user id and nickname are required")
	}
	if account.AppID == "" || account.Secret == "" {
		return fmt.Errorf("appid and secret are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.loadLocked()
	if err != nil {
		return err
	}
	if file.Users == nil {
		file.Users = make(map[string]map[string]Account)
	}
	if file.Users[userID] == nil {
		file.Users[userID] = make(map[string]Account)
	}
	file.Users[userID][nickname] = account
	return s.saveLocked(file)
}

func (s *Store) GetUser(userID string, nickname string) (Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.loadLocked()
	if err != nil {
		return Account{}, false, err
	}
	account, ok := file.Users[strings.TrimSpace(userID)][strings.TrimSpace(nickname)]
	return account, ok, nil
}

// ListUser returns the user's accounts keyed by nickname.
func (s *Store) ListUser(userID string) (map[string]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Account, len(file.Users[strings.TrimSpace(userID)]))
	for nickname, account := range file.Users[strings.TrimSpace(userID)] {
		out[nickname] = account
	}
	return out, nil
}

// AllUsers returns every user's accounts, for the admin monitoring panel.
func (s *Store) AllUsers() (map[string]map[string]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]Account, len(file.Users))
	for userID, byNickname := range file.Users {
		inner := make(map[string]Account, len(byNickname))
		for nickname, account := range byNickname {
			inner[nickname] = account
		}
		out[userID] = inner
	}
	return out, nil
}

func (s *Store) loadLocked() (storeFile, error) {
	var file storeFile
	content, exists, err := fsstore.ReadText(s.path)
	if err != nil {
		return storeFile{}, err
	}
	if !exists {
		return storeFile{}, nil
	}
	if err := yaml.Unmarshal([]byte(content), &file); err != nil {
		return storeFile{}, fmt.Errorf("parse accounts file %s: %w", s.path, err)
	}
	return file, nil
}

func (s *Store) saveLocked(file storeFile) error {
	raw, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode accounts file: %w", err)
	}
	return fsstore.WriteTextAtomic(s.path, string(raw), fsstore.FileOptions{
		DirPerm:  0o700,
		FilePerm: 0o600,
	})
}
