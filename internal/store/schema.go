package store

// IndexKind declares the scalar type of an indexed field, so engines can
// give the backing column a concrete type.
type IndexKind int

const (
	// KindText indexes a string field (timestamps are stored as RFC 3339
	// text, which sorts chronologically).
	KindText IndexKind = iota

	// KindInt indexes an integer field.
	KindInt

	// KindReal indexes a floating-point field.
	KindReal
)

// Index declares a secondary index on a collection.
type Index struct {
	// Name is the index name, also used as the OrderBy key in ListOptions.
	Name string

	// Field is the JSON document field the index covers.
	Field string

	// Column is the backing column name in SQL engines.
	Column string

	// Unique rejects duplicate values on creation when true.
	Unique bool

	// Kind is the scalar type of the indexed field.
	Kind IndexKind
}

// Collection declares a named group of records and its indexes.
type Collection struct {
	// Name is the collection (table) name.
	Name string

	// Indexes are the declared secondary indexes.
	Indexes []Index
}

// Index returns the declared index with the given name, or nil.
func (c *Collection) Index(name string) *Index {
	for i := range c.Indexes {
		if c.Indexes[i].Name == name {
			return &c.Indexes[i]
		}
	}
	return nil
}

// Schema declares the full set of collections and gates migrations by
// version. Schema creation is idempotent: applying it skips collections
// and indexes that already exist, and it must complete before any store
// operation runs.
type Schema struct {
	// Version gates future schema changes. A store opened with a higher
	// version than recorded triggers migration (create what's missing).
	Version int

	// Collections are the declared collections.
	Collections []Collection
}

// Collection returns the declared collection with the given name, or nil.
func (s *Schema) Collection(name string) *Collection {
	for i := range s.Collections {
		if s.Collections[i].Name == name {
			return &s.Collections[i]
		}
	}
	return nil
}

// Collection names for the storefront schema.
const (
	CollectionUsers     = "users"
	CollectionOrders    = "orders"
	CollectionAddresses = "addresses"
)

// DefaultSchema returns the storefront schema: users, orders and addresses
// with their secondary indexes.
func DefaultSchema() Schema {
	return Schema{
		Version: 1,
		Collections: []Collection{
			{
				Name: CollectionUsers,
				Indexes: []Index{
					{Name: "email", Field: "email", Column: "email", Unique: true, Kind: KindText},
					{Name: "created_at", Field: "createdAt", Column: "created_at", Kind: KindText},
				},
			},
			{
				Name: CollectionOrders,
				Indexes: []Index{
					{Name: "user_id", Field: "userId", Column: "user_id", Kind: KindInt},
					{Name: "order_date", Field: "orderDate", Column: "order_date", Kind: KindText},
					{Name: "status", Field: "status", Column: "status", Kind: KindText},
					{Name: "order_number", Field: "orderNumber", Column: "order_number", Unique: true, Kind: KindText},
				},
			},
			{
				Name: CollectionAddresses,
				Indexes: []Index{
					{Name: "user_id", Field: "userId", Column: "user_id", Kind: KindInt},
				},
			},
		},
	}
}
