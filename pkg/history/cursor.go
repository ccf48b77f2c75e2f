package history

// Cursor is the highest record id already merged into a collection.
type Cursor struct {
	LastSeenID uint64
}

// Advance returns the cursor moved to the highest id among records. It never
// moves backwards, whatever the order or content of records.
func (c Cursor) Advance(records []Record) Cursor {
	for _, r := range records {
		if r.ID > c.LastSeenID {
			c.LastSeenID = r.ID
		}
	}
	return c
}

// Collection holds merged records, newest batch first.
//
// It is owned by a single control loop and is not safe for concurrent use.
type Collection struct {
	records []Record
	ids     map[uint64]struct{}
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{ids: make(map[uint64]struct{})}
}

// Prepend inserts batch at the head of the collection, keeping the order the
// source returned it in. Records whose id is already present are skipped.
// It returns the number of records inserted.
func (c *Collection) Prepend(batch []Record) int {
	fresh := make([]Record, 0, len(batch))
	for _, r := range batch {
		if _, dup := c.ids[r.ID]; dup {
			continue
		}
		c.ids[r.ID] = struct{}{}
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return 0
	}

	c.records = append(fresh, c.records...)
	return len(fresh)
}

// Records returns the collection in display order. The slice must not be
// modified.
func (c *Collection) Records() []Record {
	return c.records
}

// Len returns the number of records.
func (c *Collection) Len() int {
	return len(c.records)
}

// Merge inserts records into col and returns the advanced cursor and the
// number of records actually inserted.
func Merge(cursor Cursor, col *Collection, records []Record) (Cursor, int) {
	n := col.Prepend(records)
	if n > 0 {
		recordsMergedTotal.Add(float64(n))
	}
	return cursor.Advance(records), n
}
