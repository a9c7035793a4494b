package specification

import "gorm.io/gorm"

// ByEmbeddingModel restricts rows to one embedding space.
type ByEmbeddingModel struct {
	Model string
}

func (s ByEmbeddingModel) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("embedding_model = ?", s.Model)
}

// ByCategory filters knowledge chunks by their category (e.g. "auto", "vie").
type ByCategory struct {
	Category string
}

func (s ByCategory) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("category = ?", s.Category)
}

type BySource struct {
	Source string
}

func (s BySource) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source = ?", s.Source)
}
