// Package vectorstore implements the vector store: CRUD plus filtered
// search over a named collection of (id, vector, payload) points. Vectors
// are stored as JSON and ranked by cosine similarity in Go after the SQL
// filter narrows the candidate set; the same implementation therefore
// serves both the sqlite and Postgres backends without requiring a vector
// extension at the target instance.
package vectorstore

import (
	"encoding/json"

	"github.com/codemem/engine/domain/search"
)

// pointModel is the gorm-mapped row for one vector-store point. Payload
// fields are dedicated columns (not a nested JSON blob) so that filter
// predicates translate to ordinary SQL WHERE clauses pushed to the
// backend unchanged; only the vector itself is stored as JSON, ranked in
// Go after the SQL filter narrows the candidate set.
type pointModel struct {
	Collection       string  `gorm:"column:collection;primaryKey;index:idx_points_collection"`
	ID               string  `gorm:"column:id;primaryKey"`
	Project          string  `gorm:"column:project;index"`
	Category         string  `gorm:"column:category;index"`
	Content          string  `gorm:"column:content"`
	Language         string  `gorm:"column:language;index"`
	FilePath         string  `gorm:"column:file_path;index"`
	TagsJSON         string  `gorm:"column:tags_json"`
	Importance       float64 `gorm:"column:importance;index"`
	LifecycleState   string  `gorm:"column:lifecycle_state;index"`
	CreatedAtUnix    int64   `gorm:"column:created_at_unix"`
	UpdatedAtUnix    int64   `gorm:"column:updated_at_unix"`
	AccessCount      int64   `gorm:"column:access_count"`
	LastAccessedUnix int64   `gorm:"column:last_accessed_unix"`
	VectorJSON       string  `gorm:"column:vector_json"`
}

func (pointModel) TableName() string { return "vector_points" }

func toModel(collection string, d search.Document) (pointModel, error) {
	tagsBuf, err := json.Marshal(d.Tags)
	if err != nil {
		return pointModel{}, err
	}
	vecBuf, err := json.Marshal(d.Vector)
	if err != nil {
		return pointModel{}, err
	}
	return pointModel{
		Collection: collection, ID: d.ID, Project: d.Project, Category: d.Category,
		Content: d.Content, Language: d.Language, FilePath: d.FilePath,
		TagsJSON: string(tagsBuf), Importance: d.Importance, LifecycleState: d.LifecycleState,
		CreatedAtUnix: d.CreatedAtUnix, UpdatedAtUnix: d.UpdatedAtUnix, AccessCount: d.AccessCount,
		LastAccessedUnix: d.LastAccessedUnix, VectorJSON: string(vecBuf),
	}, nil
}

func toDocument(m pointModel) search.Document {
	var tags []string
	_ = json.Unmarshal([]byte(m.TagsJSON), &tags)
	var vec []float32
	_ = json.Unmarshal([]byte(m.VectorJSON), &vec)
	return search.Document{
		ID: m.ID, Project: m.Project, Category: m.Category, Content: m.Content,
		Language: m.Language, FilePath: m.FilePath, Tags: tags, Importance: m.Importance,
		LifecycleState: m.LifecycleState, CreatedAtUnix: m.CreatedAtUnix, UpdatedAtUnix: m.UpdatedAtUnix,
		AccessCount: m.AccessCount, LastAccessedUnix: m.LastAccessedUnix, Vector: vec,
	}
}
