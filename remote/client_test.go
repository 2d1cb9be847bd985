package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport drives callbacks synchronously from canned data. Setting
// doubleFire makes every callback fire twice, reproducing the transport
// defect the guard exists for.
type fakeTransport struct {
	records    map[string]*Record
	assets     map[string]map[string][]byte
	pages      [][]string
	fetchErr   error
	doubleFire bool
	silent     bool // never invoke callbacks at all
}

func (f *fakeTransport) Fetch(id string, done func(*Record, error)) {
	if f.silent {
		return
	}
	rec, ok := f.records[id]
	var err error
	if f.fetchErr != nil {
		rec, err = nil, f.fetchErr
	} else if !ok {
		err = ErrNotFound
	}
	done(rec, err)
	if f.doubleFire {
		done(nil, errors.New("spurious second invocation"))
	}
}

func (f *fakeTransport) Save(rec *Record, done func(*Record, error)) {
	if f.silent {
		return
	}
	if f.records == nil {
		f.records = make(map[string]*Record)
	}
	f.records[rec.ID] = rec
	done(rec, nil)
	if f.doubleFire {
		done(rec, nil)
	}
}

func (f *fakeTransport) Query(cursor Cursor, done func([]string, Cursor, error)) {
	if f.silent {
		return
	}
	page := 0
	if cursor.Token != "" {
		page = int(cursor.Token[0] - '0')
	}
	if page >= len(f.pages) {
		done(nil, Cursor{}, nil)
		return
	}
	next := Cursor{}
	if page+1 < len(f.pages) {
		next = Cursor{Token: string(rune('0' + page + 1))}
	}
	done(f.pages[page], next, nil)
	if f.doubleFire {
		done(nil, Cursor{}, errors.New("spurious second invocation"))
	}
}

func (f *fakeTransport) FetchAssets(id string, done func(map[string][]byte, error)) {
	if f.silent {
		return
	}
	a, ok := f.assets[id]
	if !ok {
		done(nil, ErrNotFound)
		return
	}
	done(a, nil)
	if f.doubleFire {
		done(a, nil)
	}
}

func TestClientGet(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		records: map[string]*Record{
			"r1": {ID: "r1", Fields: map[string]any{"title": "soup"}},
		},
	}
	c, err := NewClient(ft)
	require.NoError(t, err)

	rec, err := c.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, "soup", rec.Fields["title"])

	_, err = c.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClientGetDoubleFire(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		records:    map[string]*Record{"r1": {ID: "r1"}},
		doubleFire: true,
	}
	c, err := NewClient(ft)
	require.NoError(t, err)

	// The first callback wins; the spurious second one is discarded.
	rec, err := c.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
}

func TestClientTimeout(t *testing.T) {
	t.Parallel()

	c, err := NewClient(&fakeTransport{silent: true}, WithCallTimeout(30*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "r1")
	require.ErrorIs(t, err, ErrTransient, "unanswered call must fail as transient")
}

func TestClientListIDsPagination(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		pages:      [][]string{{"a", "b"}, {"c"}, {"d", "e"}},
		doubleFire: true,
	}
	c, err := NewClient(ft)
	require.NoError(t, err)

	var all []string
	cursor := Cursor{}
	for {
		ids, next, err := c.ListIDs(context.Background(), cursor)
		require.NoError(t, err)
		all = append(all, ids...)
		if next.IsZero() {
			break
		}
		cursor = next
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, all)
}

func TestClientPutIdempotent(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{doubleFire: true}
	c, err := NewClient(ft)
	require.NoError(t, err)

	rec := &Record{ID: "r9", Fields: map[string]any{"title": "stew"}}
	stored, err := c.Put(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "r9", stored.ID)

	// Same id again: replace, not conflict.
	stored, err = c.Put(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "r9", stored.ID)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Classify(nil))
	assert.ErrorIs(t, Classify(ErrNotFound), ErrNotFound)
	assert.ErrorIs(t, Classify(context.DeadlineExceeded), ErrTransient)
	assert.ErrorIs(t, Classify(errors.New("bad payload")), ErrPermanent)

	wrapped := Classify(ErrTransient)
	assert.ErrorIs(t, wrapped, ErrTransient)
	assert.NotErrorIs(t, wrapped, ErrPermanent)
}
