package jobstore

// DefaultLimit and MaxLimit bound the Poll API's history pagination per
// spec §4.E/§6.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page is the shape returned by List, per spec §4.E.
type Page struct {
	Data       []*Job
	Page       int
	Limit      int
	Total      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// NormalizePage clamps page/limit to the documented defaults and bounds.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// BuildPage assembles the Page envelope from a slice of matching rows, the
// total row count, and the requested page/limit.
func BuildPage(data []*Job, total, page, limit int) Page {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Page{
		Data:       data,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
