package model

import (
	"github.com/lib/pq"
)

// StringList is an ordered list of strings persisted as a Postgres
// text[] column via pq.StringArray. Order is preserved;
// selected_poster_ids and badge_types must keep submission order.
type StringList = pq.StringArray
