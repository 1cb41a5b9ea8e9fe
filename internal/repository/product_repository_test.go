package repository

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/talkincode/catalog/internal/domain"
)

func setupDB(c *qt.C) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(c.TempDir(), "catalog.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(db.AutoMigrate(domain.Tables...), qt.IsNil)
	c.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedCategories(c *qt.C, db *gorm.DB, names ...string) []domain.Category {
	var out []domain.Category
	for _, name := range names {
		cat := domain.Category{Name: name}
		c.Assert(db.Create(&cat).Error, qt.IsNil)
		out = append(out, cat)
	}
	return out
}

func seedProduct(c *qt.C, db *gorm.DB, p domain.Product) domain.Product {
	c.Assert(db.Create(&p).Error, qt.IsNil)
	return p
}

func ctx() context.Context { return context.Background() }

func productNames(rows []domain.ProductWithCategory) []string {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names
}

func plainNames(rows []domain.Product) []string {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names
}

func TestCreateForcesZeroQty(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	cats := seedCategories(c, db, "Tools")
	repo := NewGormProductRepository(db)

	p, err := repo.Create(ctx(), NewProduct{
		Name:       "Widget",
		Image:      "a.png",
		CategoryID: cats[0].ID,
		Price:      decimal.RequireFromString("9.99"),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(p.ID > 0, qt.IsTrue)
	c.Assert(p.Qty, qt.Equals, 0)
	c.Assert(p.CreatedAt.IsZero(), qt.IsFalse)

	var stored domain.Product
	c.Assert(db.First(&stored, p.ID).Error, qt.IsNil)
	c.Assert(stored.Qty, qt.Equals, 0)
	c.Assert(stored.Price.Equal(decimal.RequireFromString("9.99")), qt.IsTrue)
	c.Assert(stored.Image, qt.Equals, "a.png")
}

func TestCreateUnknownCategory(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	repo := NewGormProductRepository(db)

	_, err := repo.Create(ctx(), NewProduct{Name: "Widget", CategoryID: 42, Price: decimal.Zero})
	c.Assert(errors.Is(err, ErrPersistence), qt.IsTrue)

	var n int64
	c.Assert(db.Model(&domain.Product{}).Count(&n).Error, qt.IsNil)
	c.Assert(n, qt.Equals, int64(0))
}

func TestUpdateClampsNegativeQty(t *testing.T) {
	tests := []struct {
		qty  int
		want int
	}{
		{qty: -5, want: 0},
		{qty: 0, want: 0},
		{qty: 7, want: 7},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			c := qt.New(t)
			db := setupDB(c)
			cats := seedCategories(c, db, "Tools")
			p := seedProduct(c, db, domain.Product{Name: "Widget", CategoryID: cats[0].ID, Qty: 3, Image: "old.png"})
			repo := NewGormProductRepository(db)

			qty := tt.qty
			prev, err := repo.Update(ctx(), p.ID, ProductPatch{Qty: &qty})
			c.Assert(err, qt.IsNil)
			c.Assert(prev, qt.Equals, "old.png")

			var stored domain.Product
			c.Assert(db.First(&stored, p.ID).Error, qt.IsNil)
			c.Assert(stored.Qty, qt.Equals, tt.want)
		})
	}
}

func TestUpdatePartialPatch(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	cats := seedCategories(c, db, "Tools", "Toys")
	p := seedProduct(c, db, domain.Product{
		Name: "Widget", Description: "small", CategoryID: cats[0].ID,
		Price: decimal.RequireFromString("1.50"), Image: "old.png",
	})
	repo := NewGormProductRepository(db)

	name, image, qty := "Gadget", "new.png", 4
	prev, err := repo.Update(ctx(), p.ID, ProductPatch{Name: &name, Image: &image, CategoryID: &cats[1].ID, Qty: &qty})
	c.Assert(err, qt.IsNil)
	c.Assert(prev, qt.Equals, "old.png")

	var stored domain.Product
	c.Assert(db.First(&stored, p.ID).Error, qt.IsNil)
	c.Assert(stored.Name, qt.Equals, "Gadget")
	c.Assert(stored.Description, qt.Equals, "small")
	c.Assert(stored.Image, qt.Equals, "new.png")
	c.Assert(stored.CategoryID, qt.Equals, cats[1].ID)
	c.Assert(stored.Qty, qt.Equals, 4)
	c.Assert(stored.Price.Equal(decimal.RequireFromString("1.5")), qt.IsTrue)
}

func TestUpdateMissingProduct(t *testing.T) {
	c := qt.New(t)
	repo := NewGormProductRepository(setupDB(c))

	qty := 1
	_, err := repo.Update(ctx(), 99, ProductPatch{Qty: &qty})
	c.Assert(errors.Is(err, ErrNotFound), qt.IsTrue)
}

func TestDeleteReturnsImage(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	cats := seedCategories(c, db, "Tools")
	p := seedProduct(c, db, domain.Product{Name: "Widget", CategoryID: cats[0].ID, Image: "abc.jpg"})
	repo := NewGormProductRepository(db)

	image, err := repo.Delete(ctx(), p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(image, qt.Equals, "abc.jpg")

	err = db.First(&domain.Product{}, p.ID).Error
	c.Assert(errors.Is(err, gorm.ErrRecordNotFound), qt.IsTrue)

	_, err = repo.Delete(ctx(), p.ID)
	c.Assert(errors.Is(err, ErrNotFound), qt.IsTrue)
}

func TestListJoinsCategory(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	cats := seedCategories(c, db, "Zebra", "Apple")
	seedProduct(c, db, domain.Product{Name: "alpha", CategoryID: cats[0].ID})
	seedProduct(c, db, domain.Product{Name: "beta", CategoryID: cats[1].ID})
	seedProduct(c, db, domain.Product{Name: "gamma", CategoryID: cats[0].ID})
	repo := NewGormProductRepository(db)

	page, err := repo.List(ctx(), ListQuery{Sort: "category", Direction: "asc"})
	c.Assert(err, qt.IsNil)
	c.Assert(page.Total, qt.Equals, int64(3))
	c.Assert(page.Limit, qt.Equals, DefaultPageSize)
	c.Assert(page.Results[0].Name, qt.Equals, "beta")
	c.Assert(page.Results[0].Category, qt.Equals, "Apple")
	c.Assert(page.Results[1].Category, qt.Equals, "Zebra")
	c.Assert(page.Results[2].Category, qt.Equals, "Zebra")

	page, err = repo.List(ctx(), ListQuery{Sort: "category", Direction: "DESC"})
	c.Assert(err, qt.IsNil)
	c.Assert(page.Results[2].Category, qt.Equals, "Apple")
}

func TestListSearchSortAndPaginate(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	cats := seedCategories(c, db, "Tools")
	for _, name := range []string{"Red Widget", "Blue widget", "Hammer", "Green WIDGET"} {
		seedProduct(c, db, domain.Product{Name: name, CategoryID: cats[0].ID})
	}
	repo := NewGormProductRepository(db)

	page, err := repo.List(ctx(), ListQuery{Search: "widget", Sort: "name", Direction: "asc", Limit: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(page.Total, qt.Equals, int64(3))
	c.Assert(productNames(page.Results), qt.DeepEquals, []string{"Blue widget", "Green WIDGET"})

	page, err = repo.List(ctx(), ListQuery{Search: "widget", Sort: "name", Direction: "asc", Page: 1, Limit: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(productNames(page.Results), qt.DeepEquals, []string{"Red Widget"})
	c.Assert(page.Page, qt.Equals, 1)

	page, err = repo.List(ctx(), ListQuery{Search: "nothing"})
	c.Assert(err, qt.IsNil)
	c.Assert(page.Total, qt.Equals, int64(0))
	c.Assert(page.Results, qt.HasLen, 0)
}

func TestListUnknownSortFallsBack(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	cats := seedCategories(c, db, "Tools")
	seedProduct(c, db, domain.Product{Name: "b", CategoryID: cats[0].ID})
	seedProduct(c, db, domain.Product{Name: "a", CategoryID: cats[0].ID})
	repo := NewGormProductRepository(db)

	page, err := repo.List(ctx(), ListQuery{Sort: "name; DROP TABLE products", Limit: -1, Page: -3})
	c.Assert(err, qt.IsNil)
	c.Assert(page.Total, qt.Equals, int64(2))
	c.Assert(page.Page, qt.Equals, 0)
	c.Assert(page.Limit, qt.Equals, DefaultPageSize)
}

func TestListHugePageIsEmpty(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	cats := seedCategories(c, db, "Tools")
	seedProduct(c, db, domain.Product{Name: "a", CategoryID: cats[0].ID})
	repo := NewGormProductRepository(db)

	page, err := repo.List(ctx(), ListQuery{Page: math.MaxInt, Limit: 1 << 20})
	c.Assert(err, qt.IsNil)
	c.Assert(page.Total, qt.Equals, int64(1))
	c.Assert(page.Limit, qt.Equals, MaxPageSize)
	c.Assert(page.Results, qt.HasLen, 0)

	widgets, err := repo.ListSortedBy(ctx(), "name", math.MaxInt)
	c.Assert(err, qt.IsNil)
	c.Assert(widgets.Results, qt.HasLen, 0)
}

func TestSearchByKeywordPagesOfTwo(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	cats := seedCategories(c, db, "Tools")
	for _, name := range []string{"pen c", "pen a", "cup", "pen b"} {
		seedProduct(c, db, domain.Product{Name: name, CategoryID: cats[0].ID})
	}
	repo := NewGormProductRepository(db)

	page, err := repo.SearchByKeyword(ctx(), "PEN", 0)
	c.Assert(err, qt.IsNil)
	c.Assert(page.Total, qt.Equals, int64(3))
	c.Assert(plainNames(page.Results), qt.DeepEquals, []string{"pen a", "pen b"})

	page, err = repo.SearchByKeyword(ctx(), "pen", 1)
	c.Assert(err, qt.IsNil)
	c.Assert(plainNames(page.Results), qt.DeepEquals, []string{"pen c"})
}

func TestListSortedBy(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	cats := seedCategories(c, db, "Tools")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"c", "a", "b"} {
		p := seedProduct(c, db, domain.Product{Name: name, CategoryID: cats[0].ID})
		c.Assert(db.Model(&p).UpdateColumn("updated_at", base.Add(time.Duration(i)*time.Hour)).Error, qt.IsNil)
	}
	repo := NewGormProductRepository(db)

	page, err := repo.ListSortedBy(ctx(), "name", 0)
	c.Assert(err, qt.IsNil)
	c.Assert(plainNames(page.Results), qt.DeepEquals, []string{"a", "b"})
	c.Assert(page.Limit, qt.Equals, WidgetPageSize)

	page, err = repo.ListSortedBy(ctx(), "updated_at", 0)
	c.Assert(err, qt.IsNil)
	c.Assert(plainNames(page.Results), qt.DeepEquals, []string{"c", "a"})

	page, err = repo.ListSortedBy(ctx(), "updated_at", 1)
	c.Assert(err, qt.IsNil)
	c.Assert(plainNames(page.Results), qt.DeepEquals, []string{"b"})
}

func TestImageNames(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	cats := seedCategories(c, db, "Tools")
	seedProduct(c, db, domain.Product{Name: "a", CategoryID: cats[0].ID, Image: "a.png"})
	seedProduct(c, db, domain.Product{Name: "b", CategoryID: cats[0].ID})
	repo := NewGormProductRepository(db)

	names, err := repo.ImageNames(ctx())
	c.Assert(err, qt.IsNil)
	c.Assert(names, qt.DeepEquals, map[string]bool{"a.png": true})
}

func TestCategoryList(t *testing.T) {
	c := qt.New(t)
	db := setupDB(c)
	seedCategories(c, db, "Toys", "Books")

	categories, err := NewGormCategoryRepository(db).List(ctx())
	c.Assert(err, qt.IsNil)
	c.Assert(categories, qt.HasLen, 2)
	c.Assert(categories[0].Name, qt.Equals, "Books")
}
