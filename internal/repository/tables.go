package repository

import (
	"fmt"
	"regexp"
)

// Tables names the fact table and the two lookup tables. Names are
// interpolated into SQL, so they must be plain (optionally schema-qualified)
// identifiers.
type Tables struct {
	Facts     string
	Products  string
	Countries string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func (t Tables) Validate() error {
	for name, v := range map[string]string{"facts": t.Facts, "products": t.Products, "countries": t.Countries} {
		if !identRe.MatchString(v) {
			return fmt.Errorf("invalid %s table name %q", name, v)
		}
	}
	return nil
}

// DefaultTables matches the staging schema the trade statistics load into.
func DefaultTables() Tables {
	return Tables{Facts: "stg.skfo", Products: "stg.tnveds", Countries: "stg.countries"}
}
