package patient

import (
	"strings"

	"github.com/rxledger/statements/internal/types"
)

// Patient is an individually billed patient
type Patient struct {
	ID        int64  `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
	types.BaseModel
}

// DisplayName is "Last, First", or whichever part is present
func (p *Patient) DisplayName() string {
	first := strings.TrimSpace(p.FirstName)
	last := strings.TrimSpace(p.LastName)
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return last + ", " + first
}
