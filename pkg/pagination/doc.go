// Package pagination computes the visible page of a growing, optionally
// filtered collection.
//
// A State holds the current page, the page size and an optional filter
// predicate. The filter is applied to the whole collection before the page
// window is cut, so every page except the last holds exactly ItemsPerPage
// matching items:
//
//	state := pagination.NewState[history.Record]()
//	state.Filter = history.Filter(history.FilterCode, "4")
//	rows := pagination.VisibleSlice(col.Records(), state)
//
// Page navigation never fails. Next, Prev, SetItemsPerPage and Clamp keep
// the state inside the collection and silently ignore moves past either end.
package pagination
