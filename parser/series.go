package parser

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// volumeSuffix matches trailing volume numbers such as "Saga. 3" or "Saga 3".
var volumeSuffix = regexp.MustCompile(`[\p{P}\s]*(\d+)$`)

// SplitVolume separates one trailing volume number from title, e.g.
// "Saga. 3" -> ("Saga", 3). Only the last number group is removed, so
// "Saga 1 2" -> ("Saga 1", 2) and "1984" -> ("", 1984). A number too large
// for an int leaves the title unsplit.
func SplitVolume(title string) (base string, volume int) {
	m := volumeSuffix.FindStringSubmatchIndex(title)
	if m == nil {
		return title, 0
	}
	n, err := strconv.Atoi(title[m[2]:m[3]])
	if err != nil {
		return title, 0
	}
	return title[:m[0]], n
}

// SortRecords orders records by (base title, volume number) so volumes of a
// series sit together in increasing order. Ties keep their input order.
func SortRecords(records []models.BookRecord) {
	type sortKey struct {
		base   string
		volume int
	}
	keys := make(map[string]sortKey, len(records))
	for _, r := range records {
		base, vol := SplitVolume(r.Title)
		keys[r.Title] = sortKey{base: base, volume: vol}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := keys[records[i].Title], keys[records[j].Title]
		if a.base != b.base {
			return a.base < b.base
		}
		return a.volume < b.volume
	})
}
