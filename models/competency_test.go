package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func uintPtr(v uint) *uint { return &v }

func comp(id uint, code string, parentID *uint) Competency {
	c := Competency{Code: code, Name: code, ParentID: parentID}
	c.ID = id
	return c
}

func TestBuildCompetencyForest(t *testing.T) {
	t.Run("цепочка из трех уровней", func(t *testing.T) {
		forest := BuildCompetencyForest([]Competency{
			comp(1, "ENG1", nil),
			comp(2, "ENG1.1", uintPtr(1)),
			comp(3, "ENG1.1.1", uintPtr(2)),
		})

		assert.Equal(t, []uint{1}, forest.RootIDs)
		assert.Equal(t, []uint{2}, forest.Nodes[1].ChildIDs)
		assert.Equal(t, []uint{3}, forest.Nodes[2].ChildIDs)

		assert.Equal(t, 1, forest.Depth(1))
		assert.Equal(t, 2, forest.Depth(2))
		assert.Equal(t, 3, forest.Depth(3))
		assert.Equal(t, []uint{1, 2, 3}, forest.Flatten())
	})

	t.Run("порядок братьев повторяет порядок списка", func(t *testing.T) {
		forest := BuildCompetencyForest([]Competency{
			comp(10, "MAT1", nil),
			comp(12, "MAT1.2", uintPtr(10)),
			comp(11, "MAT1.1", uintPtr(10)),
			comp(20, "SCI1", nil),
		})

		assert.Equal(t, []uint{10, 20}, forest.RootIDs)
		assert.Equal(t, []uint{12, 11}, forest.Nodes[10].ChildIDs)
		assert.Equal(t, []uint{10, 12, 11, 20}, forest.Flatten())
	})

	t.Run("нулевой ParentID считается корнем", func(t *testing.T) {
		forest := BuildCompetencyForest([]Competency{
			comp(1, "ENG1", uintPtr(0)),
		})
		assert.Equal(t, []uint{1}, forest.RootIDs)
	})

	t.Run("узел с отсутствующим родителем поднимается в корни", func(t *testing.T) {
		forest := BuildCompetencyForest([]Competency{
			comp(1, "ENG1", nil),
			comp(2, "ENG9.9", uintPtr(999)),
		})

		assert.Equal(t, []uint{1, 2}, forest.RootIDs)
		assert.Equal(t, 1, forest.Depth(2), "сирота становится корнем, а не теряется")
		assert.ElementsMatch(t, []uint{1, 2}, forest.Flatten())
	})

	t.Run("пустой список", func(t *testing.T) {
		forest := BuildCompetencyForest(nil)
		assert.Empty(t, forest.RootIDs)
		assert.Empty(t, forest.Flatten())
		assert.Equal(t, 0, forest.Depth(1))
	})
}

func TestCompetencyForestCycleGuard(t *testing.T) {
	forest := BuildCompetencyForest([]Competency{
		comp(1, "ENG1", nil),
		comp(2, "ENG1.1", uintPtr(1)),
	})

	// Портим данные руками: ребенок объявляет корень своим потомком.
	forest.Nodes[2].ChildIDs = append(forest.Nodes[2].ChildIDs, 1)
	forest.Nodes[1].Competency.ParentID = uintPtr(2)

	// Обход завершается, каждый узел встречается один раз.
	assert.Equal(t, []uint{1, 2}, forest.Flatten())

	// Подъем по родителям тоже завершается.
	assert.Equal(t, 2, forest.Depth(2))
}
