package livesync

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/shelfmark/shelf/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func folder(id, name string) records.Folder {
	return records.Folder{ID: id, UserID: "u1", Name: name}
}

func names(items []records.Folder) []string {
	out := make([]string, len(items))
	for i, f := range items {
		out[i] = f.Name
	}
	return out
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	coll := FolderCollection()
	in := []records.Folder{folder("1", "A"), folder("2", "B")}

	out, changed := coll.merge(in, Change[records.Folder]{Kind: Update, ID: "1", Record: folder("1", "Z")})
	require.True(t, changed)
	assert.Equal(t, []string{"A", "B"}, names(in))
	assert.Equal(t, []string{"Z", "B"}, names(out))

	out, changed = coll.merge(in, Change[records.Folder]{Kind: Delete, ID: "2"})
	require.True(t, changed)
	assert.Equal(t, []string{"A", "B"}, names(in))
	assert.Equal(t, []string{"A"}, names(out))
}

func TestMergeNoOps(t *testing.T) {
	coll := FolderCollection()
	in := []records.Folder{folder("1", "A")}

	_, changed := coll.merge(in, Change[records.Folder]{Kind: Insert, ID: "1", Record: folder("1", "other")})
	assert.False(t, changed, "insert of present id")

	_, changed = coll.merge(in, Change[records.Folder]{Kind: Delete, ID: "9"})
	assert.False(t, changed, "delete of absent id")
}

func TestMergeUpdateAbsentUpserts(t *testing.T) {
	coll := FolderCollection()
	in := []records.Folder{folder("1", "A"), folder("2", "C")}

	out, changed := coll.merge(in, Change[records.Folder]{Kind: Update, ID: "3", Record: folder("3", "B")})
	require.True(t, changed)
	assert.Equal(t, []string{"A", "B", "C"}, names(out))
}

func TestBookmarkInsertPrepends(t *testing.T) {
	coll := BookmarkCollection()
	in := []records.Bookmark{{ID: "old", Title: "a"}}

	out, changed := coll.merge(in, Change[records.Bookmark]{Kind: Insert, ID: "new", Record: records.Bookmark{ID: "new", Title: "z"}})
	require.True(t, changed)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].ID)
	assert.Equal(t, "old", out[1].ID)
}

func TestMergeRandomSequences(t *testing.T) {
	coll := FolderCollection()
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		var items []records.Folder
		for step := 0; step < 40; step++ {
			id := fmt.Sprintf("%d", rng.Intn(8))
			name := string(rune('a' + rng.Intn(26)))
			var ch Change[records.Folder]
			switch rng.Intn(3) {
			case 0:
				ch = Change[records.Folder]{Kind: Insert, ID: id, Record: folder(id, name)}
			case 1:
				ch = Change[records.Folder]{Kind: Update, ID: id, Record: folder(id, name)}
			default:
				ch = Change[records.Folder]{Kind: Delete, ID: id}
			}
			items, _ = coll.merge(items, ch)

			seen := map[string]bool{}
			for _, f := range items {
				require.False(t, seen[f.ID], "duplicate id %s after %s", f.ID, ch.Kind)
				seen[f.ID] = true
			}
		}
	}
}

func TestInsertOnlySequencesStaySorted(t *testing.T) {
	coll := FolderCollection()
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 100; round++ {
		var items []records.Folder
		for step := 0; step < 30; step++ {
			id := fmt.Sprintf("%d", rng.Intn(50))
			name := fmt.Sprintf("%c%c", 'A'+rng.Intn(26), 'a'+rng.Intn(26))
			items, _ = coll.merge(items, Change[records.Folder]{Kind: Insert, ID: id, Record: folder(id, name)})

			ok := sort.SliceIsSorted(items, func(i, j int) bool {
				return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
			})
			require.True(t, ok, "not sorted: %v", names(items))
		}
	}
}

func TestInsertTwiceIsIdempotent(t *testing.T) {
	coll := FolderCollection()
	base := []records.Folder{folder("1", "A")}
	ins := Change[records.Folder]{Kind: Insert, ID: "2", Record: folder("2", "B")}

	once, _ := coll.merge(base, ins)
	twice, _ := coll.merge(once, ins)
	assert.Equal(t, once, twice)
}
