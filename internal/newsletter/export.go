package newsletter

import (
	"bytes"
	"fmt"
)

// exportHeader matches the legacy download format admins feed into other
// tools; the column order differs from the struct order on purpose.
const exportHeader = `"E-mail";"Authorized Date";"Inserted Date";"Source";"Active"`

// exportCSV renders contacts as a quoted, semicolon-delimited table. Dates
// are YYYY-MM-DD, missing values render as empty strings, and active is y/n.
func exportCSV(contacts []*Contact) []byte {
	var buf bytes.Buffer
	buf.WriteString(exportHeader)
	buf.WriteByte('\n')

	for i, c := range contacts {
		if i > 0 {
			buf.WriteByte('\n')
		}

		authorizedDate := ""
		if c.AuthorizedAt != nil {
			authorizedDate = c.AuthorizedAt.Format("2006-01-02")
		}
		source := ""
		if c.Source != nil {
			source = *c.Source
		}
		active := "n"
		if c.AuthorizedAt != nil && !c.Canceled {
			active = "y"
		}

		fmt.Fprintf(&buf, `"%s";"%s";"%s";"%s";"%s"`,
			c.Email, authorizedDate, c.InsertedAt.Format("2006-01-02"), source, active)
	}
	return buf.Bytes()
}
