package summary

// IdentifierMapping ties the three names of one subject together: the document id, the
// document title and the graph entity id.
type IdentifierMapping struct {
	DocumentID int64  `gorm:"column:wikipedia_id;primaryKey;autoIncrement:false" json:"document_id"`
	Title      string `gorm:"column:wikipedia_title;type:varchar(255);index" json:"title"`
	EntityID   string `gorm:"column:wikidata_id;type:varchar(32);index" json:"entity_id"`
}

func (IdentifierMapping) TableName() string { return "wiki_page_to_wiki_data_mappings" }

type Predicate struct {
	ID          string  `gorm:"column:property_id;type:varchar(32);primaryKey" json:"id"`
	Label       string  `gorm:"column:property_label" json:"label"`
	Description string  `gorm:"column:description" json:"description"`
	Quantity    float64 `gorm:"column:quantity" json:"quantity,omitempty"`
}

func (Predicate) TableName() string { return "predicates" }

// Text is the string embedded for disambiguation.
func (p Predicate) Text() string {
	return p.Label + ", " + p.Description
}
