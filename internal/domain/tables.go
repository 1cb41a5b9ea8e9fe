package domain

var Tables = []interface{}{
	&Category{},
	&Product{},
}

// ProductColumns lists the product columns a listing may be ordered by.
var ProductColumns = map[string]bool{
	"id":          true,
	"name":        true,
	"description": true,
	"image":       true,
	"category_id": true,
	"price":       true,
	"qty":         true,
	"created_at":  true,
	"updated_at":  true,
}
