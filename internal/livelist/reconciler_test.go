package livelist

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/starford/smartmarks/internal/models"
)

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func bm(id, title string) models.Bookmark {
	return models.Bookmark{ID: id, Title: title, URL: "https://" + id + ".example", OwnerID: "u1", CreatedAt: created}
}

func ids(items []models.Bookmark) []string {
	out := make([]string, len(items))
	for i, b := range items {
		out[i] = b.ID
	}
	return out
}

func TestInsertIntoEmpty(t *testing.T) {
	r := NewReconciler()
	r.Seed(nil)
	a := models.Bookmark{ID: "a", Title: "Site", URL: "https://x.com"}
	r.Apply(models.Inserted(a))

	got := r.Items()
	if len(got) != 1 || got[0] != a {
		t.Errorf("items = %+v", got)
	}
}

func TestInsertPrepends(t *testing.T) {
	r := NewReconciler()
	r.Seed([]models.Bookmark{bm("a", "A")})
	r.Apply(models.Inserted(bm("b", "B")))

	if got := ids(r.Items()); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("order = %v, want [b a]", got)
	}
}

func TestDeleteRemovesMatch(t *testing.T) {
	r := NewReconciler()
	r.Seed([]models.Bookmark{bm("a", "A"), bm("b", "B")})
	r.Apply(models.Deleted("u1", "a"))

	if got := ids(r.Items()); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("items = %v, want [b]", got)
	}
}

func TestUpdateKeepsOtherFields(t *testing.T) {
	r := NewReconciler()
	a := bm("a", "Old")
	r.Seed([]models.Bookmark{a})
	r.Apply(models.Updated(models.Bookmark{ID: "a", Title: "New"}))

	want := a
	want.Title = "New"
	if got := r.Items(); len(got) != 1 || got[0] != want {
		t.Errorf("items = %+v, want %+v", got, want)
	}
}

func TestUpdateFullRowReplaces(t *testing.T) {
	r := NewReconciler()
	r.Seed([]models.Bookmark{bm("a", "Old")})
	next := bm("a", "New")
	next.URL = "https://moved.example"
	r.Update(next)
	if got := r.Items()[0]; got != next {
		t.Errorf("got %+v, want %+v", got, next)
	}
}

func TestInsertAlwaysAtIndexZero(t *testing.T) {
	r := NewReconciler()
	r.Seed([]models.Bookmark{bm("x", "X"), bm("y", "Y")})
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("n%d", i)
		r.Insert(bm(id, id))
		if r.Items()[0].ID != id {
			t.Fatalf("insert %s not at index 0: %v", id, ids(r.Items()))
		}
	}
}

func TestAbsentUpdateAndDeleteAreNoOps(t *testing.T) {
	r := NewReconciler()
	seed := []models.Bookmark{bm("a", "A"), bm("b", "B")}
	r.Seed(seed)

	r.Update(bm("zzz", "Nope"))
	r.Delete("zzz")

	if got := r.Items(); !reflect.DeepEqual(got, seed) {
		t.Errorf("items changed: %+v", got)
	}
}

func TestDuplicateInsertIsAccepted(t *testing.T) {
	r := NewReconciler()
	r.Insert(bm("a", "A"))
	r.Insert(bm("a", "A"))
	if got := ids(r.Items()); !reflect.DeepEqual(got, []string{"a", "a"}) {
		t.Errorf("items = %v, want duplicate entries", got)
	}

	// Update and delete act on every copy.
	r.Update(models.Bookmark{ID: "a", Title: "Z"})
	for _, b := range r.Items() {
		if b.Title != "Z" {
			t.Errorf("copy not updated: %+v", b)
		}
	}
	r.Delete("a")
	if n := len(r.Items()); n != 0 {
		t.Errorf("len = %d after delete", n)
	}
}

func TestUpsertInserts(t *testing.T) {
	r := NewReconciler(WithUpsertInserts())
	r.Seed([]models.Bookmark{bm("a", "A"), bm("b", "B")})
	r.Insert(bm("b", "B2"))
	r.Insert(bm("c", "C"))

	got := r.Items()
	if !reflect.DeepEqual(ids(got), []string{"c", "a", "b"}) || got[2].Title != "B2" {
		t.Errorf("items = %+v", got)
	}
}

func TestUnknownAndEmptyEventsIgnored(t *testing.T) {
	r := NewReconciler()
	r.Seed([]models.Bookmark{bm("a", "A")})
	r.Apply(models.Change{Type: "truncate"})
	r.Apply(models.Change{Type: models.ChangeInsert})
	r.Apply(models.Change{Type: models.ChangeUpdate})
	if n := len(r.Items()); n != 1 {
		t.Errorf("len = %d", n)
	}
}

func TestSeedAndItemsCopy(t *testing.T) {
	seed := []models.Bookmark{bm("a", "A")}
	r := NewReconciler()
	r.Seed(seed)
	seed[0].Title = "mutated"
	items := r.Items()
	items[0].Title = "mutated too"
	if r.Items()[0].Title != "A" {
		t.Error("reconciler shares memory with caller")
	}
}

// replay is a straightforward model of the feed semantics used to check the
// reconciler against random event sequences.
func replay(events []models.Change) []models.Bookmark {
	var out []models.Bookmark
	for _, c := range events {
		switch c.Type {
		case models.ChangeInsert:
			out = append([]models.Bookmark{*c.Record}, out...)
		case models.ChangeUpdate:
			for i := range out {
				if out[i].ID == c.Record.ID {
					out[i] = *c.Record
				}
			}
		case models.ChangeDelete:
			var kept []models.Bookmark
			for _, b := range out {
				if b.ID != c.OldID {
					kept = append(kept, b)
				}
			}
			out = kept
		}
	}
	return out
}

func TestRandomSequencesMatchReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		var events []models.Change
		for i := 0; i < 30; i++ {
			id := fmt.Sprintf("id%d", rng.Intn(6))
			b := bm(id, fmt.Sprintf("t%d", rng.Intn(100)))
			switch rng.Intn(3) {
			case 0:
				events = append(events, models.Inserted(b))
			case 1:
				events = append(events, models.Updated(b))
			default:
				events = append(events, models.Deleted("u1", id))
			}
		}

		r := NewReconciler()
		r.Seed(nil)
		for _, c := range events {
			r.Apply(c)
		}
		want := replay(events)
		got := r.Items()
		if len(want) == 0 && len(got) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round %d: got %v, want %v", round, ids(got), ids(want))
		}
	}
}
