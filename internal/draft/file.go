package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileSlot 以单个 JSON 文件作为草稿槽位
type FileSlot struct {
	path string
}

// NewFileSlot 创建文件槽位
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

// Load 读取草稿文件，文件不存在时返回 nil, nil
func (s *FileSlot) Load(_ context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("草稿文件 %s 已损坏: %w", s.path, err)
	}
	return &rec, nil
}

// Save 覆盖写入草稿文件
func (s *FileSlot) Save(_ context.Context, rec *Record) error {
	return writeJSON(s.path, rec)
}

// Clear 删除草稿文件
func (s *FileSlot) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// FileCollection 以 JSON 文件保存的离线病例集合，最新的在前
type FileCollection struct {
	path string
}

// NewFileCollection 创建离线病例集合
func NewFileCollection(path string) *FileCollection {
	return &FileCollection{path: path}
}

// List 返回全部离线病例
func (c *FileCollection) List(_ context.Context) ([]Record, error) {
	return c.load()
}

// Get 根据 ID 获取离线病例，不存在时返回 nil
func (c *FileCollection) Get(_ context.Context, id string) (*Record, error) {
	records, err := c.load()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, nil
}

// Upsert 保存病例，ID 已存在时原地替换，否则插入到最前面
func (c *FileCollection) Upsert(_ context.Context, rec *Record) error {
	if rec.ID == "" {
		return ErrMissingID
	}
	records, err := c.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = *rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append([]Record{*rec}, records...)
	}
	return writeJSON(c.path, records)
}

// Delete 删除病例
func (c *FileCollection) Delete(_ context.Context, id string) (bool, error) {
	records, err := c.load()
	if err != nil {
		return false, err
	}

	kept := records[:0]
	found := false
	for _, r := range records {
		if r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return false, nil
	}
	return true, writeJSON(c.path, kept)
}

func (c *FileCollection) load() ([]Record, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("病例文件 %s 已损坏: %w", c.path, err)
	}
	for i := range records {
		records[i].normalize()
	}
	return records, nil
}

// writeJSON 先写临时文件再重命名，避免写到一半时留下损坏的文件
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
