package repository

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talkincode/catalog/internal/domain"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 500
	WidgetPageSize  = 2
	DefaultSort     = "created_at"
)

// ListQuery describes a filtered, sorted and paginated product listing.
type ListQuery struct {
	Search    string
	Sort      string // product column or "category"
	Direction string // asc or desc
	Page      int    // 0-indexed
	Limit     int
}

// NewProduct holds the fields accepted on creation. Qty is not settable.
type NewProduct struct {
	Name        string
	Description string
	Image       string
	CategoryID  int64
	Price       decimal.Decimal
}

// ProductPatch is a partial update, nil fields are left untouched.
type ProductPatch struct {
	Name        *string
	Description *string
	Image       *string
	CategoryID  *int64
	Price       *decimal.Decimal
	Qty         *int
}

// ProductRepository handles product persistence
type ProductRepository interface {
	List(ctx context.Context, q ListQuery) (*Page[domain.ProductWithCategory], error)
	Create(ctx context.Context, p NewProduct) (*domain.Product, error)
	Update(ctx context.Context, id int64, patch ProductPatch) (previousImage string, err error)
	Delete(ctx context.Context, id int64) (image string, err error)
	SearchByKeyword(ctx context.Context, keyword string, page int) (*Page[domain.Product], error)
	ListSortedBy(ctx context.Context, field string, page int) (*Page[domain.Product], error)
	ImageNames(ctx context.Context) (map[string]bool, error)
}

// GormProductRepository is the GORM implementation of ProductRepository
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GORM-based repository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// nameContains matches column case-insensitively, ILIKE on postgres
func nameContains(column, keyword string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if keyword == "" {
			return db
		}
		if isPostgres(db) {
			return db.Where(column+" ILIKE ?", "%"+keyword+"%")
		}
		return db.Where("LOWER("+column+") LIKE ?", "%"+strings.ToLower(keyword)+"%")
	}
}

func orderColumn(sort string) clause.Column {
	if sort == "category" {
		return clause.Column{Table: "categories", Name: "name"}
	}
	if !domain.ProductColumns[sort] {
		sort = DefaultSort
	}
	return clause.Column{Table: domain.Product{}.TableName(), Name: sort}
}

// listScope compiles a ListQuery into the joined product query, ordering is
// left out so the same scope serves the count.
func listScope(q ListQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Model(&domain.Product{}).
			Joins("JOIN categories ON categories.id = products.category_id").
			Scopes(nameContains("products.name", q.Search))
	}
}

func normalizeListQuery(q ListQuery) ListQuery {
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	return q
}

func (r *GormProductRepository) List(ctx context.Context, q ListQuery) (*Page[domain.ProductWithCategory], error) {
	q = normalizeListQuery(q)
	page := &Page[domain.ProductWithCategory]{Results: []domain.ProductWithCategory{}, Page: q.Page, Limit: q.Limit}

	if err := r.db.WithContext(ctx).Scopes(listScope(q)).Count(&page.Total).Error; err != nil {
		return nil, errors.Wrap(err, "count products")
	}

	err := r.db.WithContext(ctx).Scopes(listScope(q)).
		Select("products.*, categories.name AS category").
		Order(clause.OrderByColumn{Column: orderColumn(q.Sort), Desc: strings.EqualFold(q.Direction, "desc")}).
		Scopes(paginate(q.Page, q.Limit)).
		Find(&page.Results).Error
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return page, nil
}

func (r *GormProductRepository) Create(ctx context.Context, in NewProduct) (*domain.Product, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Category{}).Where("id = ?", in.CategoryID).Count(&n).Error; err != nil {
		return nil, errors.Wrap(ErrPersistence, err.Error())
	}
	if n == 0 {
		return nil, errors.Wrapf(ErrPersistence, "category %d does not exist", in.CategoryID)
	}

	p := &domain.Product{
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		CategoryID:  in.CategoryID,
		Price:       in.Price,
		Qty:         0,
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, errors.Wrap(ErrPersistence, err.Error())
	}
	return p, nil
}

func (r *GormProductRepository) getByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "product %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(ErrPersistence, err.Error())
	}
	return &p, nil
}

func (r *GormProductRepository) Update(ctx context.Context, id int64, patch ProductPatch) (string, error) {
	current, err := r.getByID(ctx, id)
	if err != nil {
		return "", err
	}

	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Image != nil {
		updates["image"] = *patch.Image
	}
	if patch.CategoryID != nil {
		updates["category_id"] = *patch.CategoryID
	}
	if patch.Price != nil {
		updates["price"] = *patch.Price
	}
	if patch.Qty != nil {
		qty := *patch.Qty
		if qty < 0 {
			qty = 0
		}
		updates["qty"] = qty
	}
	if len(updates) == 0 {
		return current.Image, nil
	}

	if err := r.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return "", errors.Wrap(ErrPersistence, err.Error())
	}
	return current.Image, nil
}

func (r *GormProductRepository) Delete(ctx context.Context, id int64) (string, error) {
	current, err := r.getByID(ctx, id)
	if err != nil {
		return "", err
	}
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Product{}).Error; err != nil {
		return "", errors.Wrap(ErrPersistence, err.Error())
	}
	return current.Image, nil
}

func (r *GormProductRepository) productPage(ctx context.Context, scope func(*gorm.DB) *gorm.DB, order string, page int) (*Page[domain.Product], error) {
	if page < 0 {
		page = 0
	}
	res := &Page[domain.Product]{Results: []domain.Product{}, Page: page, Limit: WidgetPageSize}
	if err := r.db.WithContext(ctx).Model(&domain.Product{}).Scopes(scope).Count(&res.Total).Error; err != nil {
		return nil, errors.Wrap(err, "count products")
	}
	err := r.db.WithContext(ctx).Model(&domain.Product{}).Scopes(scope).
		Order(clause.OrderByColumn{Column: clause.Column{Name: order}}).
		Scopes(paginate(page, WidgetPageSize)).
		Find(&res.Results).Error
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return res, nil
}

// SearchByKeyword pages products whose name contains keyword, ordered by name
func (r *GormProductRepository) SearchByKeyword(ctx context.Context, keyword string, page int) (*Page[domain.Product], error) {
	return r.productPage(ctx, nameContains("name", keyword), "name", page)
}

// ListSortedBy pages all products ordered ascending by field
func (r *GormProductRepository) ListSortedBy(ctx context.Context, field string, page int) (*Page[domain.Product], error) {
	if !domain.ProductColumns[field] {
		field = DefaultSort
	}
	return r.productPage(ctx, func(db *gorm.DB) *gorm.DB { return db }, field, page)
}

// ImageNames returns the set of image filenames referenced by any product
func (r *GormProductRepository) ImageNames(ctx context.Context) (map[string]bool, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&domain.Product{}).Where("image <> ?", "").Pluck("image", &names).Error; err != nil {
		return nil, errors.Wrap(err, "query product images")
	}
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set, nil
}
