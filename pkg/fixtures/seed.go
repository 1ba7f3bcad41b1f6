package fixtures

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/gantry/pkg/storage"
)

// Ptr returns a pointer to v, for optional fixture fields
func Ptr[T any](v T) *T {
	return &v
}

// Date returns midnight UTC of a day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SeedDummies persists n dummies. Dummy #i is dated 2015-04-i, even ones
// are smart, odd ones have an alias and a boolean.
func SeedDummies(ctx context.Context, m *storage.Manager, n int) ([]*Dummy, error) {
	dummies := make([]*Dummy, 0, n)
	for i := 1; i <= n; i++ {
		d := &Dummy{
			Name:        fmt.Sprintf("Dummy #%d", i),
			Description: Ptr("Not so smart dummy."),
			DummyDate:   Ptr(Date(2015, time.April, i)),
			DummyFloat:  Ptr(float64(i) + 0.5),
			DummyPrice:  Ptr(decimal.NewFromInt(int64(i * 10))),
			EmbeddedDummy: EmbeddableDummy{
				DummyName: Ptr(fmt.Sprintf("Embedded #%d", i)),
			},
		}
		if i%2 == 0 {
			d.Description = Ptr("Smart dummy.")
		} else {
			d.Alias = Ptr(fmt.Sprintf("Alias #%d", n-i))
			d.DummyBoolean = Ptr(i%4 == 1)
			d.EmbeddedDummy.DummyBoolean = Ptr(true)
		}
		dummies = append(dummies, d)
		m.Persist(d)
	}
	return dummies, m.Flush(ctx)
}

// SeedRelatedDummies persists one dummy per related dummy name, the
// related dummy pointing at a third level of level i+1
func SeedRelatedDummies(ctx context.Context, m *storage.Manager, names ...string) ([]*Dummy, error) {
	dummies := make([]*Dummy, 0, len(names))
	for i, name := range names {
		third := &ThirdLevel{Level: i + 1, Test: true}
		related := &RelatedDummy{Name: Ptr(name), Symfony: "symfony", ThirdLevel: third}
		d := &Dummy{
			Name:           fmt.Sprintf("Dummy with %s", name),
			RelatedDummy:   related,
			RelatedDummies: []*RelatedDummy{related},
		}
		m.Persist(third, related, d)
		dummies = append(dummies, d)
	}
	return dummies, m.Flush(ctx)
}

// SeedDummyProducts persists one product per quantity, priced at a tenth
// of the quantity
func SeedDummyProducts(ctx context.Context, m *storage.Manager, quantities ...int) ([]*DummyProduct, error) {
	categories := []string{"book", "food", "toy"}
	products := make([]*DummyProduct, 0, len(quantities))
	for i, q := range quantities {
		p := &DummyProduct{
			Name:     fmt.Sprintf("Product %d", i+1),
			Quantity: q,
			Price:    decimal.NewFromInt(int64(q)).Div(decimal.NewFromInt(10)),
			Category: categories[i%len(categories)],
		}
		products = append(products, p)
		m.Persist(p)
	}
	return products, m.Flush(ctx)
}

// SeedDummyBooleans persists one item per state, nil meaning unknown
func SeedDummyBooleans(ctx context.Context, m *storage.Manager, states ...*bool) ([]*DummyBoolean, error) {
	out := make([]*DummyBoolean, 0, len(states))
	for _, state := range states {
		b := &DummyBoolean{IsDummyBoolean: state}
		out = append(out, b)
		m.Persist(b)
	}
	return out, m.Flush(ctx)
}

// SeedConvertedBooleans persists one item per state
func SeedConvertedBooleans(ctx context.Context, m *storage.Manager, states ...bool) ([]*ConvertedBoolean, error) {
	out := make([]*ConvertedBoolean, 0, len(states))
	for _, state := range states {
		b := &ConvertedBoolean{NameConverted: Ptr(state)}
		out = append(out, b)
		m.Persist(b)
	}
	return out, m.Flush(ctx)
}

// SeedDummyDates persists one item per day of April 2015; every date
// property holds the day, and a nil day leaves them all null
func SeedDummyDates(ctx context.Context, m *storage.Manager, days ...*int) ([]*DummyDate, error) {
	out := make([]*DummyDate, 0, len(days))
	for _, day := range days {
		d := &DummyDate{}
		if day != nil {
			date := Date(2015, time.April, *day)
			d.DummyDate = Ptr(date)
			d.DateIncludeNullAfter = Ptr(date)
			d.DateIncludeNullBefore = Ptr(date)
			d.DateIncludeNullBeforeAndAfter = Ptr(date)
		}
		out = append(out, d)
		m.Persist(d)
	}
	return out, m.Flush(ctx)
}

// SeedDummyImmutableDates persists one item per date
func SeedDummyImmutableDates(ctx context.Context, m *storage.Manager, dates ...time.Time) ([]*DummyImmutableDate, error) {
	out := make([]*DummyImmutableDate, 0, len(dates))
	for _, date := range dates {
		d := &DummyImmutableDate{DummyDate: date}
		out = append(out, d)
		m.Persist(d)
	}
	return out, m.Flush(ctx)
}

// SeedChickens persists coops holding the given numbers of chickens.
// Chickens are named "<coop>-<n>", coops counting from 1.
func SeedChickens(ctx context.Context, m *storage.Manager, perCoop ...int) ([]*ChickenCoop, error) {
	coops := make([]*ChickenCoop, 0, len(perCoop))
	for i, n := range perCoop {
		coop := &ChickenCoop{}
		m.Persist(coop)
		for j := 1; j <= n; j++ {
			chicken := &Chicken{Name: fmt.Sprintf("%d-%d", i+1, j), ChickenCoop: coop}
			coop.Chickens = append(coop.Chickens, chicken)
			m.Persist(chicken)
		}
		coops = append(coops, coop)
	}
	return coops, m.Flush(ctx)
}

// SeedCompanies persists companies with their employees
func SeedCompanies(ctx context.Context, m *storage.Manager, staff map[string][]string) ([]*Company, error) {
	var companies []*Company
	for _, name := range sortedKeys(staff) {
		company := &Company{Name: name}
		m.Persist(company)
		for _, employee := range staff[name] {
			e := &Employee{Name: employee, Company: company}
			company.Employees = append(company.Employees, e)
			m.Persist(e)
		}
		companies = append(companies, company)
	}
	return companies, m.Flush(ctx)
}

// SeedTree persists a root with the given children names, each child
// having one grandchild named "<child>.1"
func SeedTree(ctx context.Context, m *storage.Manager, root string, children ...string) (*TreeDummy, error) {
	r := &TreeDummy{Name: root}
	m.Persist(r)
	for _, name := range children {
		child := &TreeDummy{Name: name, Parent: r}
		grandchild := &TreeDummy{Name: name + ".1", Parent: child}
		child.Children = []*TreeDummy{grandchild}
		r.Children = append(r.Children, child)
		m.Persist(child, grandchild)
	}
	return r, m.Flush(ctx)
}

// SeedAnimals persists cats and dogs by name
func SeedAnimals(ctx context.Context, m *storage.Manager, cats, dogs []string) error {
	for i, name := range cats {
		m.Persist(&Cat{Animal: Animal{Name: name}, Lives: Ptr(9 - i)})
	}
	for i, name := range dogs {
		m.Persist(&Dog{Animal: Animal{Name: name}, GoodBoy: Ptr(i%2 == 0)})
	}
	return m.Flush(ctx)
}

// SeedSecuredDummies persists one item per owner
func SeedSecuredDummies(ctx context.Context, m *storage.Manager, owners ...string) ([]*SecuredDummy, error) {
	out := make([]*SecuredDummy, 0, len(owners))
	for i, owner := range owners {
		d := &SecuredDummy{
			Title:       fmt.Sprintf("#%d", i+1),
			Description: "Owned by " + owner,
			Owner:       owner,
		}
		out = append(out, d)
		m.Persist(d)
	}
	return out, m.Flush(ctx)
}

// SeedDemo loads a small data set touching every fixture family, for
// a server started with seeding enabled
func SeedDemo(ctx context.Context, m *storage.Manager) error {
	if _, err := SeedDummies(ctx, m, 30); err != nil {
		return fmt.Errorf("dummies: %w", err)
	}
	if _, err := SeedRelatedDummies(ctx, m, "foo", "bar", "baz"); err != nil {
		return fmt.Errorf("related dummies: %w", err)
	}
	if _, err := SeedDummyProducts(ctx, m, 1, 5, 10); err != nil {
		return fmt.Errorf("products: %w", err)
	}
	if _, err := SeedDummyBooleans(ctx, m, Ptr(true), Ptr(false), nil); err != nil {
		return fmt.Errorf("booleans: %w", err)
	}
	if _, err := SeedDummyDates(ctx, m, Ptr(1), Ptr(2), nil); err != nil {
		return fmt.Errorf("dates: %w", err)
	}
	if _, err := SeedChickens(ctx, m, 2, 1); err != nil {
		return fmt.Errorf("chickens: %w", err)
	}
	if _, err := SeedTree(ctx, m, "root", "left", "right"); err != nil {
		return fmt.Errorf("tree: %w", err)
	}
	if err := SeedAnimals(ctx, m, []string{"Tom"}, []string{"Rex"}); err != nil {
		return fmt.Errorf("animals: %w", err)
	}
	if _, err := SeedSecuredDummies(ctx, m, "dunglas", "kevin"); err != nil {
		return fmt.Errorf("secured dummies: %w", err)
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
