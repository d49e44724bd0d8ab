package api

import (
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/query"
)

// filterFrom parses queue query parameters.
func filterFrom(r *http.Request) (query.Filter, error) {
	q := r.URL.Query()
	f := query.Filter{
		State:      model.State(q.Get("state")),
		Priority:   model.Priority(q.Get("priority")),
		AssignedTo: q.Get("assigned_to"),
	}
	if f.State != "" && !f.State.Valid() {
		return f, eris.Errorf("unknown state %q", f.State)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return f, eris.Errorf("unknown priority %q", f.Priority)
	}
	if v := q.Get("flagged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, eris.Errorf("invalid flagged %q", v)
		}
		f.Flagged = &b
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		return f, eris.Errorf("invalid limit %q", q.Get("limit"))
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		return f, eris.Errorf("invalid offset %q", q.Get("offset"))
	}
	return f, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
