package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/codemem/engine/domain/project"
	"github.com/codemem/engine/internal/database"
)

// fileEntryModel is the gorm-mapped row for one project file table entry.
type fileEntryModel struct {
	Project   string `gorm:"primaryKey"`
	Path      string `gorm:"primaryKey"`
	Hash      string
	IndexedAt time.Time
	UnitCount int
}

func (fileEntryModel) TableName() string { return "project_file_entries" }

type fileEntryMapper struct{}

func (fileEntryMapper) ToModel(e project.FileEntry) fileEntryModel {
	return fileEntryModel{Project: e.Project, Path: e.Path, Hash: e.Hash, IndexedAt: e.IndexedAt, UnitCount: e.UnitCount}
}

func (fileEntryMapper) ToEntity(m fileEntryModel) project.FileEntry {
	return project.FileEntry{Project: m.Project, Path: m.Path, Hash: m.Hash, IndexedAt: m.IndexedAt, UnitCount: m.UnitCount}
}

// FileTableStore persists the per-project file table the indexer uses as
// its source of truth for change detection.
type FileTableStore struct {
	repo *database.Repository[fileEntryModel, project.FileEntry]
	db   *gorm.DB
}

// NewFileTableStore builds a FileTableStore and migrates its table.
func NewFileTableStore(ctx context.Context, db *gorm.DB) (*FileTableStore, error) {
	if err := PreMigrate(ctx, db, &fileEntryModel{}); err != nil {
		return nil, err
	}
	return &FileTableStore{
		repo: database.NewRepository[fileEntryModel, project.FileEntry](db, fileEntryMapper{}),
		db:   db,
	}, nil
}

// Get returns the file table entry for (project, path), if present.
func (s *FileTableStore) Get(ctx context.Context, proj, path string) (project.FileEntry, bool, error) {
	q := database.NewQuery().Equal("project", proj).Equal("path", path)
	return s.repo.FindOne(ctx, q)
}

// Put upserts the file table entry.
func (s *FileTableStore) Put(ctx context.Context, entry project.FileEntry) error {
	return s.repo.Save(ctx, entry)
}

// Remove deletes the file table entry for (project, path).
func (s *FileTableStore) Remove(ctx context.Context, proj, path string) error {
	q := database.NewQuery().Equal("project", proj).Equal("path", path)
	_, err := s.repo.DeleteBy(ctx, q)
	return err
}

// ListProject returns every file table entry for a project.
func (s *FileTableStore) ListProject(ctx context.Context, proj string) ([]project.FileEntry, error) {
	return s.repo.Find(ctx, database.NewQuery().Equal("project", proj).OrderAsc("path"))
}

// DeleteProject removes every file table entry for a project, returning
// the count removed. Idempotent.
func (s *FileTableStore) DeleteProject(ctx context.Context, proj string) (int64, error) {
	return s.repo.DeleteBy(ctx, database.NewQuery().Equal("project", proj))
}
