package embedding

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/codemem/engine/infrastructure/persistence"
)

// cacheRowModel is the gorm-mapped row for one persisted cache entry,
// stored append-on-write.
type cacheRowModel struct {
	Hash      string `gorm:"primaryKey"`
	Model     string `gorm:"primaryKey"`
	VectorJSON string
}

func (cacheRowModel) TableName() string { return "embedding_cache_entries" }

// GormPersister is the sqlite/postgres-backed Persister implementation.
type GormPersister struct {
	db *gorm.DB
}

// NewGormPersister builds a GormPersister and migrates its table.
func NewGormPersister(ctx context.Context, db *gorm.DB) (*GormPersister, error) {
	if err := persistence.PreMigrate(ctx, db, &cacheRowModel{}); err != nil {
		return nil, err
	}
	return &GormPersister{db: db}, nil
}

func (p *GormPersister) Load(ctx context.Context) (map[string][]float32, error) {
	var rows []cacheRowModel
	if err := p.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(rows))
	for _, r := range rows {
		var vec []float32
		if err := json.Unmarshal([]byte(r.VectorJSON), &vec); err != nil {
			continue
		}
		out[r.Hash] = vec
	}
	return out, nil
}

func (p *GormPersister) Save(ctx context.Context, hash, model string, vector []float32) error {
	buf, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	row := cacheRowModel{Hash: hash, Model: model, VectorJSON: string(buf)}
	return p.db.WithContext(ctx).Save(&row).Error
}
