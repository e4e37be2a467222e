// Package mock provides test doubles shared by several packages.
//
// Clock only moves when a test advances it, so retention deadlines and
// orphan ages can be checked without sleeping. Source is a scripted branch
// source:
//
//	clock := mock.NewClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
//	src := mock.NewSource("main", "feature/x")
//	src.SetError(errors.New("offline"))
//
// WriteHeadsFile prepares the input of a file-backed source.
package mock
