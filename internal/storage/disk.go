package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"notebook-backend/internal/model"
	"notebook-backend/pkg/logger"
)

// DiskStorage keeps one JSON file per notebook, its messages and each
// presentation, with a small index for listing. Recently used notebooks stay
// in memory up to cacheSize.
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.Notebook
	cacheSize int
}

type NotebookIndex struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const indexFile = "notebooks.json"

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	if cacheSize <= 0 {
		cacheSize = 100
	}
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.Notebook),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.warmCache(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("Disk storage initialized at %s", d.dataDir)
	return nil
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "notebooks"),
		filepath.Join(d.dataDir, "messages"),
		filepath.Join(d.dataDir, "presentations"),
		filepath.Join(d.dataDir, "backup"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func (d *DiskStorage) warmCache() error {
	indexes, err := d.readIndex()
	if err != nil {
		return err
	}

	for _, index := range indexes {
		if len(d.cache) >= d.cacheSize {
			break
		}
		notebook, err := d.loadNotebookFromFile(index.ID)
		if err != nil {
			logger.Errorf("Failed to load notebook %s: %v", index.ID, err)
			continue
		}
		d.cache[index.ID] = notebook
	}
	return nil
}

func (d *DiskStorage) notebookPath(id string) string {
	return filepath.Join(d.dataDir, "notebooks", id+".json")
}

func (d *DiskStorage) messagesPath(id string) string {
	return filepath.Join(d.dataDir, "messages", id+".json")
}

func (d *DiskStorage) presentationPath(id string) string {
	return filepath.Join(d.dataDir, "presentations", id+".json")
}

// writeJSON replaces path atomically via a temp file and rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidData, filepath.Base(path), err)
	}
	return nil
}

func (d *DiskStorage) loadNotebookFromFile(id string) (*model.Notebook, error) {
	var notebook model.Notebook
	if err := readJSON(d.notebookPath(id), &notebook); err != nil {
		return nil, err
	}

	var messages []model.Message
	if err := readJSON(d.messagesPath(id), &messages); err != nil && !os.IsNotExist(err) {
		logger.Errorf("Failed to load messages for notebook %s: %v", id, err)
	}
	notebook.Messages = messages
	return &notebook, nil
}

func (d *DiskStorage) saveNotebook(notebook *model.Notebook) error {
	meta := *notebook
	meta.Messages = nil
	if err := writeJSON(d.notebookPath(notebook.ID), meta); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	messages := notebook.Messages
	if messages == nil {
		messages = []model.Message{}
	}
	if err := writeJSON(d.messagesPath(notebook.ID), messages); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := d.upsertIndex(notebook); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

// notebook returns the cached notebook, loading it if needed. Callers hold
// d.mu for writing.
func (d *DiskStorage) notebook(id string) (*model.Notebook, error) {
	if notebook, exists := d.cache[id]; exists {
		return notebook, nil
	}
	notebook, err := d.loadNotebookFromFile(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotebookNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	d.cache[id] = notebook
	d.evictCache()
	return notebook, nil
}

func (d *DiskStorage) CreateNotebook(notebook *model.Notebook) error {
	if err := validNotebook(notebook); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	stored := cloneNotebook(notebook)
	if err := d.saveNotebook(stored); err != nil {
		return err
	}
	d.cache[stored.ID] = stored
	d.evictCache()
	return nil
}

func (d *DiskStorage) GetNotebook(notebookID string) (*model.Notebook, error) {
	d.mu.RLock()
	if notebook, exists := d.cache[notebookID]; exists {
		defer d.mu.RUnlock()
		return cloneNotebook(notebook), nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	notebook, err := d.notebook(notebookID)
	if err != nil {
		return nil, err
	}
	return cloneNotebook(notebook), nil
}

func (d *DiskStorage) UpdateNotebook(notebook *model.Notebook) error {
	if err := validNotebook(notebook); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.notebook(notebook.ID); err != nil {
		return err
	}
	stored := cloneNotebook(notebook)
	if err := d.saveNotebook(stored); err != nil {
		return err
	}
	d.cache[stored.ID] = stored
	return nil
}

func (d *DiskStorage) DeleteNotebook(notebookID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	notebookPath := d.notebookPath(notebookID)
	if _, err := os.Stat(notebookPath); os.IsNotExist(err) {
		return ErrNotebookNotFound
	}

	if err := os.Remove(notebookPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := os.Remove(d.messagesPath(notebookID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	presentations, err := d.listPresentations(notebookID)
	if err != nil {
		return err
	}
	for _, p := range presentations {
		if err := os.Remove(d.presentationPath(p.ID)); err != nil && !os.IsNotExist(err) {
			logger.Warnf("Failed to remove presentation %s: %v", p.ID, err)
		}
	}

	delete(d.cache, notebookID)
	return d.removeFromIndex(notebookID)
}

func (d *DiskStorage) ListNotebooks() ([]*model.Notebook, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	indexes, err := d.readIndex()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	notebooks := make([]*model.Notebook, 0, len(indexes))
	for _, index := range indexes {
		notebook, err := d.notebook(index.ID)
		if err != nil {
			logger.Errorf("Failed to load notebook %s for listing: %v", index.ID, err)
			continue
		}
		notebooks = append(notebooks, cloneNotebook(notebook))
	}

	sort.Slice(notebooks, func(i, j int) bool {
		return notebooks[i].UpdatedAt.After(notebooks[j].UpdatedAt)
	})
	return notebooks, nil
}

func (d *DiskStorage) AddSource(notebookID string, source *model.Source) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	notebook, err := d.notebook(notebookID)
	if err != nil {
		return err
	}
	notebook.Sources = append(notebook.Sources, *source)
	notebook.UpdatedAt = time.Now()
	return d.saveNotebook(notebook)
}

func (d *DiskStorage) DeleteSource(notebookID, sourceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	notebook, err := d.notebook(notebookID)
	if err != nil {
		return err
	}
	for i, s := range notebook.Sources {
		if s.ID == sourceID {
			notebook.Sources = append(notebook.Sources[:i:i], notebook.Sources[i+1:]...)
			notebook.UpdatedAt = time.Now()
			return d.saveNotebook(notebook)
		}
	}
	return ErrSourceNotFound
}

func (d *DiskStorage) AddMessage(notebookID string, message *model.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	notebook, err := d.notebook(notebookID)
	if err != nil {
		return err
	}
	notebook.Messages = append(notebook.Messages, *message)
	notebook.UpdatedAt = time.Now()
	return d.saveNotebook(notebook)
}

func (d *DiskStorage) GetMessages(notebookID string) ([]*model.Message, error) {
	notebook, err := d.GetNotebook(notebookID)
	if err != nil {
		return nil, err
	}
	return messagePointers(notebook.Messages), nil
}

func (d *DiskStorage) SavePresentation(presentation *model.Presentation) error {
	if presentation == nil || presentation.ID == "" {
		return ErrInvalidData
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := writeJSON(d.presentationPath(presentation.ID), presentation); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) GetPresentation(presentationID string) (*model.Presentation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var p model.Presentation
	if err := readJSON(d.presentationPath(presentationID), &p); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPresentationNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (d *DiskStorage) ListPresentations(notebookID string) ([]*model.Presentation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listPresentations(notebookID)
}

func (d *DiskStorage) listPresentations(notebookID string) ([]*model.Presentation, error) {
	files, err := os.ReadDir(filepath.Join(d.dataDir, "presentations"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	var out []*model.Presentation
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}
		var p model.Presentation
		if err := readJSON(filepath.Join(d.dataDir, "presentations", file.Name()), &p); err != nil {
			logger.Warnf("Skipping unreadable presentation %s: %v", file.Name(), err)
			continue
		}
		if notebookID == "" || p.NotebookID == notebookID {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (d *DiskStorage) readIndex() ([]*NotebookIndex, error) {
	var indexes []*NotebookIndex
	err := readJSON(filepath.Join(d.dataDir, indexFile), &indexes)
	if os.IsNotExist(err) {
		return []*NotebookIndex{}, nil
	}
	return indexes, err
}

func (d *DiskStorage) upsertIndex(notebook *model.Notebook) error {
	indexes, err := d.readIndex()
	if err != nil && !errors.Is(err, ErrInvalidData) {
		return err
	}

	entry := &NotebookIndex{
		ID:        notebook.ID,
		Title:     notebook.Title,
		CreatedAt: notebook.CreatedAt,
		UpdatedAt: notebook.UpdatedAt,
	}
	replaced := false
	for i, index := range indexes {
		if index.ID == notebook.ID {
			indexes[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		indexes = append(indexes, entry)
	}
	return writeJSON(filepath.Join(d.dataDir, indexFile), indexes)
}

func (d *DiskStorage) removeFromIndex(notebookID string) error {
	indexes, err := d.readIndex()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	kept := indexes[:0]
	for _, index := range indexes {
		if index.ID != notebookID {
			kept = append(kept, index)
		}
	}
	if err := writeJSON(filepath.Join(d.dataDir, indexFile), kept); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) evictCache() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type cacheEntry struct {
		id        string
		updatedAt time.Time
	}

	var entries []cacheEntry
	for id, notebook := range d.cache {
		entries = append(entries, cacheEntry{id: id, updatedAt: notebook.UpdatedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt.Before(entries[j].updatedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].id)
	}
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]*model.Notebook)
	return nil
}

func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().UnixNano()))
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	for _, dir := range []string{"notebooks", "messages", "presentations"} {
		dstDir := filepath.Join(backupDir, dir)
		if err := os.MkdirAll(dstDir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
		if err := copyDir(filepath.Join(d.dataDir, dir), dstDir); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	indexSrc := filepath.Join(d.dataDir, indexFile)
	if _, err := os.Stat(indexSrc); err == nil {
		if err := copyFile(indexSrc, filepath.Join(backupDir, indexFile)); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}

func copyDir(src, dst string) error {
	files, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, file.Name()), filepath.Join(dst, file.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
