package document

import (
	"strings"
	"time"
)

// IdentityRecord is the person bound to a document. It belongs to one
// verification run and is never cached by the lookup service.
type IdentityRecord struct {
	FullName    string    `json:"full_name"`
	Age         int       `json:"age"`
	DateOfBirth time.Time `json:"date_of_birth"`
}

// DOB renders the date of birth as YYYY-MM-DD.
func (r IdentityRecord) DOB() string {
	if r.DateOfBirth.IsZero() {
		return ""
	}
	return r.DateOfBirth.Format(time.DateOnly)
}

// Result is the answer of one lookup. Found=false is the "unknown card"
// branch and is not an error.
type Result struct {
	CardID   string
	Found    bool
	Identity *IdentityRecord
	Latency  time.Duration
}

// NormalizeCardID trims and upper-cases a scanned card identifier.
func NormalizeCardID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Card pairs an identifier with its record, used for seeding registries.
type Card struct {
	ID       string
	Identity IdentityRecord
}

// DemoCards returns the cards issued to the demo lane.
func DemoCards() []Card {
	return []Card{
		{ID: "NFC-001-TANAKA", Identity: IdentityRecord{FullName: "田中太郎", Age: 22, DateOfBirth: date(2003, time.March, 15)}},
		{ID: "NFC-002-SUZUKI", Identity: IdentityRecord{FullName: "鈴木花子", Age: 17, DateOfBirth: date(2008, time.July, 22)}},
		{ID: "NFC-003-SATO", Identity: IdentityRecord{FullName: "佐藤健一", Age: 35, DateOfBirth: date(1990, time.January, 10)}},
		{ID: "NFC-004-YAMADA", Identity: IdentityRecord{FullName: "山田美咲", Age: 19, DateOfBirth: date(2006, time.November, 5)}},
		{ID: "NFC-005-TAKAGI", Identity: IdentityRecord{FullName: "高木翔太", Age: 24, DateOfBirth: date(2001, time.June, 30)}},
		{ID: "NFC-006-NAKAMURA", Identity: IdentityRecord{FullName: "中村遥", Age: 15, DateOfBirth: date(2010, time.September, 12)}},
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
