package ws

import "fmt"

var errUnknownCommand = fmt.Errorf("unknown command")

func errMissingField(field string) error {
	return fmt.Errorf("missing field %q", field)
}
