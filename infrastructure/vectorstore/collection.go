package vectorstore

// collectionMetaModel records the vector dimension a collection was
// created with: the dimension is parameterized at first write and locked
// thereafter.
type collectionMetaModel struct {
	Collection string `gorm:"column:collection;primaryKey"`
	Dimension  int    `gorm:"column:dimension"`
}

func (collectionMetaModel) TableName() string { return "vector_collection_meta" }
