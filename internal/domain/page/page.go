package page

import "fmt"

// Size is the default number of files per page.
const Size = 36

// Action is a navigation request from the gallery.
type Action string

// Navigation actions.
const (
	// None keeps the requested page.
	None  Action = ""
	First Action = "first"
	Prev  Action = "prev"
	Next  Action = "next"
	End   Action = "end"
)

// ParseAction accepts the machine names and the gallery button labels.
func ParseAction(s string) (Action, error) {
	switch s {
	case "", "none":
		return None, nil
	case "first", "First Page":
		return First, nil
	case "prev", "Prev Page":
		return Prev, nil
	case "next", "Next Page":
		return Next, nil
	case "end", "End Page":
		return End, nil
	default:
		return None, fmt.Errorf("unknown page action %q", s)
	}
}

// Result is one page of a file listing.
type Result struct {
	Files    []string
	Page     int
	LastPage int
}

// Paginate returns the page of files selected by requested and action,
// using the default page size.
func Paginate(files []string, requested *int, action Action) Result {
	return PaginateSize(files, requested, action, Size)
}

// PaginateSize splits files into chunks of size and resolves the page.
// A nil or out-of-range requested page resets to 1 before the action is
// applied. Prev/Next that would leave [1, last] stay on the current page.
func PaginateSize(files []string, requested *int, action Action, size int) Result {
	if size <= 0 {
		size = Size
	}
	last := (len(files) + size - 1) / size
	if last < 1 {
		last = 1
	}

	current := 1
	if requested != nil && *requested >= 1 && *requested <= last {
		current = *requested
	}

	switch action {
	case First:
		current = 1
	case End:
		current = last
	case Prev:
		if current-1 >= 1 {
			current--
		}
	case Next:
		if current+1 <= last {
			current++
		}
	}

	start := (current - 1) * size
	end := start + size
	if start > len(files) {
		start = len(files)
	}
	if end > len(files) {
		end = len(files)
	}
	return Result{Files: files[start:end], Page: current, LastPage: last}
}
