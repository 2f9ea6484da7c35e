// maarif-assessment/models/competency.go
package models

import "gorm.io/gorm"

// Competency представляет компетенцию - кодируемый иерархический критерий оценивания.
// Пороговые значения (strong/neutral) используются отчетами для классификации баллов.
type Competency struct {
	gorm.Model
	Code             string   `json:"code" gorm:"uniqueIndex;not null"`
	Name             string   `json:"name" gorm:"not null"`
	Description      string   `json:"description"`
	ParentID         *uint    `json:"parentId"`
	StrongThreshold  *float64 `json:"strongThreshold"`
	NeutralThreshold *float64 `json:"neutralThreshold"`

	Children []Competency `json:"children,omitempty" gorm:"foreignKey:ParentID"`
}

// CompetencyTreeNode - один узел дерева компетенций в "арене": сама компетенция
// плюс ID ее дочерних узлов в порядке добавления.
type CompetencyTreeNode struct {
	Competency Competency `json:"competency"`
	ChildIDs   []uint     `json:"childIds"`
}

// CompetencyForest - индексированное по ID представление леса компетенций.
// Клиент обходит его по RootIDs и ChildIDs, не по указателям, поэтому
// некорректная цепочка родителей не может привести к бесконечной рекурсии.
type CompetencyForest struct {
	Nodes   map[uint]*CompetencyTreeNode `json:"nodes"`
	RootIDs []uint                       `json:"rootIds"`
}

// BuildCompetencyForest строит лес из плоского списка компетенций.
// Порядок следования в списке определяет порядок узлов среди "братьев".
// Узел без родителя (ParentID = nil или 0) становится корнем.
// Узел, чей родитель отсутствует в списке, тоже поднимается в корни -
// раньше такие узлы молча терялись, что приводило к "невидимым" компетенциям
// в каталоге после частичного импорта.
func BuildCompetencyForest(list []Competency) *CompetencyForest {
	forest := &CompetencyForest{
		Nodes:   make(map[uint]*CompetencyTreeNode, len(list)),
		RootIDs: make([]uint, 0),
	}

	// Первый проход: кладем все узлы в арену.
	for i := range list {
		forest.Nodes[list[i].ID] = &CompetencyTreeNode{
			Competency: list[i],
			ChildIDs:   make([]uint, 0),
		}
	}

	// Второй проход: привязываем детей к родителям в исходном порядке.
	for i := range list {
		node := list[i]
		if node.ParentID == nil || *node.ParentID == 0 {
			forest.RootIDs = append(forest.RootIDs, node.ID)
			continue
		}
		parent, ok := forest.Nodes[*node.ParentID]
		if !ok {
			forest.RootIDs = append(forest.RootIDs, node.ID)
			continue
		}
		parent.ChildIDs = append(parent.ChildIDs, node.ID)
	}

	return forest
}

// Flatten возвращает ID узлов в порядке обхода в глубину от корней.
// Повторное посещение узла обрывает обход этой ветки: так испорченная
// цепочка родителей (цикл) не зациклит сериализацию или экспорт.
func (f *CompetencyForest) Flatten() []uint {
	visited := make(map[uint]bool, len(f.Nodes))
	order := make([]uint, 0, len(f.Nodes))

	var walk func(id uint)
	walk = func(id uint) {
		if visited[id] {
			return
		}
		visited[id] = true
		order = append(order, id)
		node, ok := f.Nodes[id]
		if !ok {
			return
		}
		for _, childID := range node.ChildIDs {
			walk(childID)
		}
	}

	for _, rootID := range f.RootIDs {
		walk(rootID)
	}
	return order
}

// Depth возвращает глубину узла относительно корня (корень = 1).
// Защищен от циклов тем же способом, что и Flatten.
func (f *CompetencyForest) Depth(id uint) int {
	depth := 0
	visited := make(map[uint]bool)
	current, ok := f.Nodes[id]
	for ok {
		if visited[current.Competency.ID] {
			break
		}
		visited[current.Competency.ID] = true
		depth++
		if current.Competency.ParentID == nil || *current.Competency.ParentID == 0 {
			break
		}
		current, ok = f.Nodes[*current.Competency.ParentID]
	}
	return depth
}
