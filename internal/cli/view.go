package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/idlink/internal/ir"
)

// viewText renders a contact view for text output.
type viewText ir.ContactView

func (v viewText) String() string {
	ids := make([]string, len(v.SecondaryContactIDs))
	for i, id := range v.SecondaryContactIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "primary:       %d\n", v.PrimaryContactID)
	fmt.Fprintf(&b, "emails:        %s\n", orNone(v.Emails))
	fmt.Fprintf(&b, "phone numbers: %s\n", orNone(v.PhoneNumbers))
	fmt.Fprintf(&b, "secondaries:   %s", orNone(ids))
	return b.String()
}

func orNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
