package reports

import (
	"fmt"
	"io"
)

// Render writes the text report used by the console front end.
func Render(w io.Writer, views []AccountView) error {
	if _, err := fmt.Fprintln(w, "\nAccounts:"); err != nil {
		return err
	}
	for _, v := range views {
		if _, err := fmt.Fprintln(w, v.Format()); err != nil {
			return err
		}
	}
	return nil
}
