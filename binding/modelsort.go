package qbind

import (
	"fmt"
	"sort"
)

// SortableModel can be implemented by models to use the SortModel
// functions, which handle logic to keep models sorted during insertions.
type SortableModel interface {
	// Inherently implemented by models
	ModelDataSource
	Inserted(start, count int)

	// RowLess is a less function, equivalent to the sort package
	RowLess(i, j int) bool
	// RowMove should move row 'src' to index 'dst', without notifying
	RowMove(src, dst int)
}

// SortModelInserted sorts newly appended rows [start:end] into positions
// <= their index and announces them as insertions. Rows before start must
// already be sorted, and none of [start:end] may have been announced.
func SortModelInserted(model SortableModel, start, end int) {
	mvStart, mvEnd := -1, -1
	emitCount := 0

	for i := start; i < end; i++ {
		n := sort.Search(i, func(j int) bool { return model.RowLess(i, j) })

		// A pending run is announced before any row lands outside of it,
		// so that rows read during the notification are already final.
		if mvStart >= 0 && (n < mvStart || n > mvEnd+1) {
			model.Inserted(mvStart, mvEnd-mvStart+1)
			emitCount += (mvEnd - mvStart) + 1
			mvStart, mvEnd = -1, -1
		}

		if i != n {
			model.RowMove(i, n)
		}

		if mvStart < 0 {
			mvStart = n
			mvEnd = n
		} else {
			mvEnd = mvEnd + 1
		}
	}

	if mvStart >= 0 && mvEnd >= 0 {
		model.Inserted(mvStart, mvEnd-mvStart+1)
		emitCount += (mvEnd - mvStart) + 1
	}

	if emitCount != end-start {
		panic(fmt.Sprintf("emitted inserts for %d rows, insert had %d", emitCount, end-start))
	}
}
