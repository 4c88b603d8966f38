package browse

import (
	"reflect"
	"testing"
	"time"

	"github.com/shelfmark/shelf/internal/records"
)

func strPtr(s string) *string { return &s }

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixture() []records.Bookmark {
	return []records.Bookmark{
		{ID: "1", Title: "Go blog", URL: "https://go.dev/blog", Tags: []string{"go", "news"}, FolderID: strPtr("f1"), CreatedAt: base, IsFavorite: true, VisitCount: 3},
		{ID: "2", Title: "alpha", URL: "https://alpha.example", Description: strPtr("Rust tips"), Tags: []string{"rust"}, CreatedAt: base.Add(time.Hour), VisitCount: 9},
		{ID: "3", Title: "Zeta", URL: "https://zeta.example", Tags: []string{"go"}, FolderID: strPtr("f1"), CreatedAt: base.Add(2 * time.Hour)},
		{ID: "4", Title: "Old", URL: "https://old.example", CreatedAt: base.Add(-time.Hour), IsArchived: true},
	}
}

func ids(bms []records.Bookmark) []string {
	out := make([]string, len(bms))
	for i, b := range bms {
		out[i] = b.ID
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"default newest first hides archived", Query{}, []string{"3", "2", "1"}},
		{"folder", Query{FolderID: "f1"}, []string{"3", "1"}},
		{"favorites", Query{Favorites: true}, []string{"1"}},
		{"tag exact", Query{Tag: "go"}, []string{"3", "1"}},
		{"search title", Query{Search: "ZET"}, []string{"3"}},
		{"search description", Query{Search: "rust tips"}, []string{"2"}},
		{"search tag", Query{Search: "new"}, []string{"1"}},
		{"search url", Query{Search: "go.dev"}, []string{"1"}},
		{"archived only", Query{Archived: true}, []string{"4"}},
		{"title asc case-insensitive", Query{Sort: SortTitle, Order: Asc}, []string{"2", "1", "3"}},
		{"created asc", Query{Sort: SortCreated, Order: Asc}, []string{"1", "2", "3"}},
		{"visits desc", Query{Sort: SortVisits, Order: Desc}, []string{"2", "1", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fixture()
			got := ids(Apply(in, tt.q))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Apply = %v, want %v", got, tt.want)
			}
			if !reflect.DeepEqual(ids(in), []string{"1", "2", "3", "4"}) {
				t.Fatalf("Apply mutated input order: %v", ids(in))
			}
		})
	}
}

func TestParseSortAndOrder(t *testing.T) {
	if f, err := ParseSort(""); err != nil || f != SortCreated {
		t.Fatalf("ParseSort(\"\") = %q, %v", f, err)
	}
	if f, err := ParseSort("Title"); err != nil || f != SortTitle {
		t.Fatalf("ParseSort(Title) = %q, %v", f, err)
	}
	if _, err := ParseSort("size"); err == nil {
		t.Fatal("ParseSort(size) succeeded")
	}
	if o, err := ParseOrder(""); err != nil || o != Desc {
		t.Fatalf("ParseOrder(\"\") = %q, %v", o, err)
	}
	if _, err := ParseOrder("sideways"); err == nil {
		t.Fatal("ParseOrder(sideways) succeeded")
	}
}

func TestTagsAndFolderCounts(t *testing.T) {
	got := Tags(fixture())
	want := []records.Tag{{Name: "go", Count: 2}, {Name: "news", Count: 1}, {Name: "rust", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tags = %v, want %v", got, want)
	}

	counts := FolderCounts(fixture())
	if counts["f1"] != 2 || len(counts) != 1 {
		t.Fatalf("FolderCounts = %v", counts)
	}
}

func TestParseTags(t *testing.T) {
	got := ParseTags(" go, Rust,,GO ,  ")
	if !reflect.DeepEqual(got, []string{"go", "rust"}) {
		t.Fatalf("ParseTags = %v", got)
	}
	if got := ParseTags(""); got == nil || len(got) != 0 {
		t.Fatalf("ParseTags(\"\") = %#v, want empty non-nil", got)
	}
}

func TestComputeStats(t *testing.T) {
	bms := fixture()
	v1 := base.Add(3 * time.Hour)
	v2 := base.Add(5 * time.Hour)
	bms[0].LastVisited = &v1
	bms[1].LastVisited = &v2

	now := base.AddDate(0, 0, 7).Add(30 * time.Minute)
	st := ComputeStats(bms, []records.Folder{{ID: "f1"}}, now)

	if st.Total != 4 || st.Favorites != 1 || st.Archived != 1 || st.Folders != 1 {
		t.Fatalf("counts = %+v", st)
	}
	// Only bookmarks created after now-7d: ids 2 (base+1h) and 3 (base+2h).
	if st.AddedThisWeek != 2 {
		t.Fatalf("AddedThisWeek = %d, want 2", st.AddedThisWeek)
	}
	if !reflect.DeepEqual(ids(st.MostVisited), []string{"2", "1"}) {
		t.Fatalf("MostVisited = %v", ids(st.MostVisited))
	}
	if !reflect.DeepEqual(ids(st.RecentlyVisited), []string{"2", "1"}) {
		t.Fatalf("RecentlyVisited = %v", ids(st.RecentlyVisited))
	}
	if len(st.Tags) != 3 {
		t.Fatalf("Tags = %v", st.Tags)
	}
}
